package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Prathmesh00007/awwninja/internal/briefing"
)

// LocalStore keeps artifacts on the local filesystem, one WAV and one
// JSON sidecar per fingerprint.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the artifact directory if needed
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		dir = "audio"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) wavPath(fingerprint string) string {
	return filepath.Join(s.dir, fingerprint+".wav")
}

func (s *LocalStore) sidecarPath(fingerprint string) string {
	return filepath.Join(s.dir, fingerprint+".json")
}

// Save writes the audio and its metadata sidecar
func (s *LocalStore) Save(ctx context.Context, b *briefing.FinalBriefing) error {
	if err := os.WriteFile(s.wavPath(b.Fingerprint), b.Audio, 0o644); err != nil {
		return fmt.Errorf("writing audio: %w", err)
	}

	b.AudioFile = s.wavPath(b.Fingerprint)
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := os.WriteFile(s.sidecarPath(b.Fingerprint), data, 0o644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

// Load reads the sidecar and audio back. A briefing whose audio file
// is missing counts as not found.
func (s *LocalStore) Load(ctx context.Context, fingerprint string) (*briefing.FinalBriefing, error) {
	data, err := os.ReadFile(s.sidecarPath(fingerprint))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading metadata: %w", err)
	}

	var b briefing.FinalBriefing
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}

	audio, err := os.ReadFile(s.wavPath(fingerprint))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading audio: %w", err)
	}
	b.Audio = audio

	return &b, nil
}

// Delete removes both files, tolerating ones already gone
func (s *LocalStore) Delete(ctx context.Context, fingerprint string) error {
	for _, path := range []string{s.wavPath(fingerprint), s.sidecarPath(fingerprint)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	return nil
}

// SweepExpired deletes artifacts whose briefing has expired
func (s *LocalStore) SweepExpired(ctx context.Context) (int, error) {
	sidecars, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("listing sidecars: %w", err)
	}

	now := time.Now()
	swept := 0
	for _, path := range sidecars {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var b briefing.FinalBriefing
		if err := json.Unmarshal(data, &b); err != nil {
			continue
		}
		if !b.Expired(now) {
			continue
		}
		fingerprint := strings.TrimSuffix(filepath.Base(path), ".json")
		if err := s.Delete(ctx, fingerprint); err != nil {
			return swept, err
		}
		swept++
	}
	return swept, nil
}

// Close is a no-op for the filesystem backend
func (s *LocalStore) Close() error { return nil }
