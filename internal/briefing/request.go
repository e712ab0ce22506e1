package briefing

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Request duration bounds in seconds
const (
	MinDurationSeconds = 30
	MaxDurationSeconds = 300
)

// Defaults applied during normalization
const (
	DefaultFreshness = 2 * time.Hour
	DefaultLanguage  = "en-US"
)

// SourceMix weights news content against discussion content during ranking
type SourceMix struct {
	News       float64 `json:"news"`
	Discussion float64 `json:"discussion"`
}

// DefaultSourceMix returns an even news/discussion weighting
func DefaultSourceMix() SourceMix {
	return SourceMix{News: 1.0, Discussion: 1.0}
}

// Request describes one briefing to produce. A normalized Request is
// immutable for the lifetime of its run and identifies the run.
type Request struct {
	Topics          []string      `json:"topics"`
	DurationSeconds int           `json:"duration_seconds"`
	Freshness       time.Duration `json:"freshness"`
	Mix             SourceMix     `json:"source_mix"`
	Language        string        `json:"language"`
}

// Normalize canonicalizes the request in place and validates it.
// Topics are trimmed, lowercased, deduplicated and sorted so that
// equivalent requests share a fingerprint; empty topics means "general".
func (r *Request) Normalize() error {
	seen := make(map[string]bool)
	topics := make([]string, 0, len(r.Topics))
	for _, topic := range r.Topics {
		t := strings.ToLower(strings.Join(strings.Fields(topic), " "))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		topics = append(topics, t)
	}
	sort.Strings(topics)
	r.Topics = topics

	if r.Freshness <= 0 {
		r.Freshness = DefaultFreshness
	}
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	if r.Mix.News == 0 && r.Mix.Discussion == 0 {
		r.Mix = DefaultSourceMix()
	}

	return r.validate()
}

func (r *Request) validate() error {
	if r.DurationSeconds < MinDurationSeconds || r.DurationSeconds > MaxDurationSeconds {
		return &ValidationError{
			Field:   "duration_seconds",
			Message: fmt.Sprintf("must be between %d and %d", MinDurationSeconds, MaxDurationSeconds),
		}
	}
	if r.Mix.News < 0 || r.Mix.Discussion < 0 {
		return &ValidationError{Field: "source_mix", Message: "weights must not be negative"}
	}
	return nil
}

// TargetDuration returns the requested duration as a time.Duration
func (r Request) TargetDuration() time.Duration {
	return time.Duration(r.DurationSeconds) * time.Second
}

// Fingerprint returns the deterministic cache key for the request.
// Every field that changes the produced briefing participates.
func (r Request) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "topics=%s|duration=%d|freshness=%d|mix=%.3f:%.3f|lang=%s",
		strings.Join(r.Topics, ","),
		r.DurationSeconds,
		int64(r.Freshness/time.Second),
		r.Mix.News, r.Mix.Discussion,
		strings.ToLower(r.Language),
	)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// ValidationError represents an invalid request field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
