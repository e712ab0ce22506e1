package cache

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Prathmesh00007/awwninja/internal/briefing"
)

// ErrCacheMiss is returned when no live entry exists for a fingerprint
var ErrCacheMiss = fmt.Errorf("cache miss")

type entry struct {
	briefing    *briefing.FinalBriefing
	accessedAt  time.Time
	accessCount int
}

// Stats represents cache statistics
type Stats struct {
	TotalEntries   int       `json:"total_entries"`
	HitCount       int64     `json:"hit_count"`
	MissCount      int64     `json:"miss_count"`
	HitRate        float64   `json:"hit_rate"`
	ExpiredEntries int       `json:"expired_entries"`
	AudioBytes     int64     `json:"audio_bytes"`
	OldestEntry    time.Time `json:"oldest_entry,omitempty"`
}

// Cache holds finished briefings keyed by request fingerprint. Expiry
// follows each briefing's own freshness window and is a hard bound: an
// expired entry is never served, the pipeline runs again instead.
type Cache struct {
	entries   map[string]*entry
	mutex     sync.RWMutex
	hitCount  int64
	missCount int64
	group     singleflight.Group
	stop      chan struct{}
	closeOnce sync.Once
}

// New creates a briefing cache and starts its expiry sweeper
func New(cleanupInterval time.Duration) *Cache {
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	c := &Cache{
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	go c.cleanupLoop(cleanupInterval)
	return c
}

// Get retrieves a live briefing, counting the hit or miss
func (c *Cache) Get(fingerprint string) (*briefing.FinalBriefing, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, exists := c.entries[fingerprint]
	if !exists {
		c.missCount++
		return nil, ErrCacheMiss
	}
	if e.briefing.Expired(time.Now()) {
		delete(c.entries, fingerprint)
		c.missCount++
		return nil, ErrCacheMiss
	}

	e.accessedAt = time.Now()
	e.accessCount++
	c.hitCount++
	return e.briefing, nil
}

// peek checks for a live entry without touching the counters
func (c *Cache) peek(fingerprint string) (*briefing.FinalBriefing, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	e, exists := c.entries[fingerprint]
	if !exists || e.briefing.Expired(time.Now()) {
		return nil, false
	}
	return e.briefing, true
}

// GetOrCreate returns the cached briefing for the fingerprint or runs
// compute to produce it. Concurrent callers with the same fingerprint
// share a single in-flight computation and receive the same result.
// Failed computations are not cached.
func (c *Cache) GetOrCreate(ctx context.Context, fingerprint string, compute func(ctx context.Context) (*briefing.FinalBriefing, error)) (*briefing.FinalBriefing, error) {
	if b, err := c.Get(fingerprint); err == nil {
		return b, nil
	}

	v, err, _ := c.group.Do(fingerprint, func() (interface{}, error) {
		if b, ok := c.peek(fingerprint); ok {
			return b, nil
		}
		b, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.set(fingerprint, b)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*briefing.FinalBriefing), nil
}

func (c *Cache) set(fingerprint string, b *briefing.FinalBriefing) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries[fingerprint] = &entry{briefing: b, accessedAt: time.Now()}
}

// Delete removes one fingerprint
func (c *Cache) Delete(fingerprint string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.entries, fingerprint)
}

// Clear removes all entries and resets the counters
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries = make(map[string]*entry)
	c.hitCount = 0
	c.missCount = 0
}

// PurgeExpired removes expired entries and reports how many went
func (c *Cache) PurgeExpired() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	purged := 0
	for fingerprint, e := range c.entries {
		if e.briefing.Expired(now) {
			delete(c.entries, fingerprint)
			purged++
		}
	}
	return purged
}

// GetStats returns cache statistics
func (c *Cache) GetStats() *Stats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	stats := &Stats{
		TotalEntries: len(c.entries),
		HitCount:     c.hitCount,
		MissCount:    c.missCount,
	}
	if c.hitCount+c.missCount > 0 {
		stats.HitRate = float64(c.hitCount) / float64(c.hitCount+c.missCount)
	}

	now := time.Now()
	for _, e := range c.entries {
		stats.AudioBytes += int64(len(e.briefing.Audio))
		if stats.OldestEntry.IsZero() || e.briefing.CreatedAt.Before(stats.OldestEntry) {
			stats.OldestEntry = e.briefing.CreatedAt
		}
		if e.briefing.Expired(now) {
			stats.ExpiredEntries++
		}
	}
	return stats
}

// Close stops the expiry sweeper
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if purged := c.PurgeExpired(); purged > 0 {
				log.Printf("Cache: purged %d expired briefings", purged)
			}
		case <-c.stop:
			return
		}
	}
}
