package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Prathmesh00007/awwninja/internal/briefing"
)

func storedBriefing(fingerprint string, ttl time.Duration) *briefing.FinalBriefing {
	now := time.Now().UTC().Truncate(time.Second)
	return &briefing.FinalBriefing{
		Fingerprint:     fingerprint,
		Topics:          []string{"tech"},
		Language:        "en-US",
		Provider:        "murf",
		Voice:           "wayne",
		Audio:           []byte("RIFF fake wav payload"),
		DurationSeconds: 88.5,
		TargetSeconds:   90,
		Script:          "Good morning.",
		CreatedAt:       now,
		ExpiresAt:       now.Add(ttl),
	}
}

func TestLocalSaveLoadRoundTrip(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore returned error: %v", err)
	}
	ctx := context.Background()

	saved := storedBriefing("abc123", time.Hour)
	if err := s.Save(ctx, saved); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded, err := s.Load(ctx, "abc123")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if !bytes.Equal(loaded.Audio, saved.Audio) {
		t.Error("audio bytes did not round trip")
	}
	if loaded.Fingerprint != "abc123" || loaded.Provider != "murf" || loaded.TargetSeconds != 90 {
		t.Errorf("metadata did not round trip: %+v", loaded)
	}
	if loaded.AudioFile == "" {
		t.Error("sidecar should record the audio file path")
	}
	if !loaded.ExpiresAt.Equal(saved.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", loaded.ExpiresAt, saved.ExpiresAt)
	}
}

func TestLocalLoadMissing(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Load(context.Background(), "nothere"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalLoadWithoutAudioFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := s.Save(ctx, storedBriefing("orphan", time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, "orphan.wav")); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Load(ctx, "orphan"); !errors.Is(err, ErrNotFound) {
		t.Errorf("sidecar without audio should be ErrNotFound, got %v", err)
	}
}

func TestLocalSweepExpired(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := s.Save(ctx, storedBriefing("stale", -time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, storedBriefing("fresh", time.Hour)); err != nil {
		t.Fatal(err)
	}

	swept, err := s.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired returned error: %v", err)
	}
	if swept != 1 {
		t.Errorf("swept = %d, want 1", swept)
	}

	if _, err := s.Load(ctx, "stale"); !errors.Is(err, ErrNotFound) {
		t.Error("expired artifact should be gone")
	}
	if _, err := s.Load(ctx, "fresh"); err != nil {
		t.Errorf("fresh artifact should survive, got %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "stale.wav")); !errors.Is(err, os.ErrNotExist) {
		t.Error("sweep should remove the audio file too")
	}
}

func TestLocalDeleteIdempotent(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := s.Save(ctx, storedBriefing("gone", time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := s.Delete(ctx, "gone"); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
}

func TestNewUnsupportedType(t *testing.T) {
	if _, err := New(context.Background(), "redis", "", ""); err == nil {
		t.Error("expected error for unsupported store type")
	}
}
