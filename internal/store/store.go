// Package store persists finished briefing artifacts: the rendered
// WAV addressed by request fingerprint plus a JSON metadata sidecar.
package store

import (
	"context"
	"fmt"

	"github.com/Prathmesh00007/awwninja/internal/briefing"
)

// ErrNotFound is returned when no artifact exists for a fingerprint
var ErrNotFound = fmt.Errorf("briefing not found")

// Store reads and writes briefing artifacts
type Store interface {
	Save(ctx context.Context, b *briefing.FinalBriefing) error
	Load(ctx context.Context, fingerprint string) (*briefing.FinalBriefing, error)
	Delete(ctx context.Context, fingerprint string) error
	SweepExpired(ctx context.Context) (int, error)
	Close() error
}

// New creates a store backend by type
func New(ctx context.Context, storeType, dir, bucket string) (Store, error) {
	switch storeType {
	case "local":
		return NewLocalStore(dir)
	case "cloud-storage":
		return NewGCSStore(ctx, bucket)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
}
