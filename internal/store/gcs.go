package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/Prathmesh00007/awwninja/internal/briefing"
)

// GCSStore keeps artifacts in a Cloud Storage bucket under a fixed
// prefix, one WAV object and one JSON sidecar per fingerprint.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore creates a Cloud Storage backed artifact store
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("cloud-storage store requires a bucket name")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCSStore{
		client: client,
		bucket: bucket,
		prefix: "briefings/",
	}, nil
}

func (s *GCSStore) wavObject(fingerprint string) string {
	return s.prefix + fingerprint + ".wav"
}

func (s *GCSStore) sidecarObject(fingerprint string) string {
	return s.prefix + fingerprint + ".json"
}

func (s *GCSStore) write(ctx context.Context, object, contentType string, data []byte) error {
	writer := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return fmt.Errorf("writing object %s: %w", object, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing object %s: %w", object, err)
	}
	return nil
}

func (s *GCSStore) read(ctx context.Context, object string) ([]byte, error) {
	reader, err := s.client.Bucket(s.bucket).Object(object).NewReader(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("opening object %s: %w", object, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", object, err)
	}
	return data, nil
}

// Save uploads the audio and its metadata sidecar
func (s *GCSStore) Save(ctx context.Context, b *briefing.FinalBriefing) error {
	if err := s.write(ctx, s.wavObject(b.Fingerprint), "audio/wav", b.Audio); err != nil {
		return err
	}

	b.AudioFile = s.wavObject(b.Fingerprint)
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return s.write(ctx, s.sidecarObject(b.Fingerprint), "application/json", data)
}

// Load downloads the sidecar and audio for a fingerprint
func (s *GCSStore) Load(ctx context.Context, fingerprint string) (*briefing.FinalBriefing, error) {
	data, err := s.read(ctx, s.sidecarObject(fingerprint))
	if err != nil {
		return nil, err
	}

	var b briefing.FinalBriefing
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}

	audio, err := s.read(ctx, s.wavObject(fingerprint))
	if err != nil {
		return nil, err
	}
	b.Audio = audio

	return &b, nil
}

// Delete removes both objects, tolerating ones already gone
func (s *GCSStore) Delete(ctx context.Context, fingerprint string) error {
	bucket := s.client.Bucket(s.bucket)
	for _, object := range []string{s.wavObject(fingerprint), s.sidecarObject(fingerprint)} {
		if err := bucket.Object(object).Delete(ctx); err != nil && err != storage.ErrObjectNotExist {
			return fmt.Errorf("deleting object %s: %w", object, err)
		}
	}
	return nil
}

// SweepExpired deletes artifacts whose briefing has expired
func (s *GCSStore) SweepExpired(ctx context.Context) (int, error) {
	bucket := s.client.Bucket(s.bucket)
	it := bucket.Objects(ctx, &storage.Query{Prefix: s.prefix})

	now := time.Now()
	swept := 0
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return swept, fmt.Errorf("listing objects: %w", err)
		}
		if !strings.HasSuffix(attrs.Name, ".json") {
			continue
		}

		data, err := s.read(ctx, attrs.Name)
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
		fingerprint := strings.TrimSuffix(strings.TrimPrefix(attrs.Name, s.prefix), ".json")
		if err := s.Delete(ctx, fingerprint); err != nil {
			return swept, err
		}
		swept++
	}
	return swept, nil
}

// Close closes the Cloud Storage client
func (s *GCSStore) Close() error {
	return s.client.Close()
}
