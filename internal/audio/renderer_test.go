package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Prathmesh00007/awwninja/internal/briefing"
	"github.com/Prathmesh00007/awwninja/internal/tts"
)

// fakeProvider renders 800 samples per call, each sample carrying the
// length of the segment text so tests can verify ordering.
type fakeProvider struct {
	name    string
	rate    int
	failOn  map[string]bool
	garbage bool

	mu     sync.Mutex
	calls  []string
	voices []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.voices = append(f.voices, voice)
	fail := f.failOn[text]
	f.mu.Unlock()

	if fail {
		return nil, errors.New("quota exhausted")
	}
	if f.garbage {
		return []byte("definitely not a wav"), nil
	}

	samples := make([]int16, 800)
	for i := range samples {
		samples[i] = int16(len(text))
	}
	return EncodeWAV(samples, f.rate)
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testVoices() tts.Voices {
	return tts.Voices{Providers: map[string]tts.Catalog{
		"primary":  {Default: "p-voice"},
		"fallback": {Default: "f-voice"},
	}}
}

func testScript() *briefing.Script {
	return &briefing.Script{
		Segments: []briefing.Segment{
			{Index: 0, Text: "a"},
			{Index: 1, Text: "bb"},
			{Index: 2, Text: "ccc"},
			{Index: 3, Text: "dddd"},
		},
		Language: "en-US",
	}
}

func TestRenderPrimary(t *testing.T) {
	primary := &fakeProvider{name: "primary", rate: 8000}
	fallback := &fakeProvider{name: "fallback", rate: 8000}
	r := NewRenderer(primary, fallback, testVoices(), Options{Concurrency: 2, UnitTimeout: time.Second})

	rendered, err := r.Render(context.Background(), testScript())
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	if rendered.Provider != "primary" || rendered.Voice != "p-voice" {
		t.Errorf("expected primary/p-voice, got %s/%s", rendered.Provider, rendered.Voice)
	}
	if fallback.callCount() != 0 {
		t.Errorf("fallback should be untouched, got %d calls", fallback.callCount())
	}
	if rendered.Seconds < 0.39 || rendered.Seconds > 0.41 {
		t.Errorf("Seconds = %.3f, want ~0.4", rendered.Seconds)
	}
	if len(rendered.Segments) != 4 {
		t.Fatalf("expected 4 audio segments, got %d", len(rendered.Segments))
	}
	for i, seg := range rendered.Segments {
		if seg.Index != i {
			t.Errorf("segment %d has index %d", i, seg.Index)
		}
		if seg.Provider != "primary" {
			t.Errorf("segment %d rendered by %q", i, seg.Provider)
		}
	}

	// concatenation must follow script order regardless of completion order
	samples, _, err := DecodeWAV(rendered.Data)
	if err != nil {
		t.Fatalf("output not decodable: %v", err)
	}
	for i := 0; i < 4; i++ {
		if got := samples[i*800]; got != int16(i+1) {
			t.Errorf("chunk %d carries value %d, want %d", i, got, i+1)
		}
	}
}

func TestRenderFailsOverWholeRun(t *testing.T) {
	primary := &fakeProvider{name: "primary", rate: 8000, failOn: map[string]bool{"ccc": true}}
	fallback := &fakeProvider{name: "fallback", rate: 8000}
	r := NewRenderer(primary, fallback, testVoices(), Options{Concurrency: 1, UnitTimeout: time.Second})

	rendered, err := r.Render(context.Background(), testScript())
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	if rendered.Provider != "fallback" || rendered.Voice != "f-voice" {
		t.Errorf("expected fallback/f-voice, got %s/%s", rendered.Provider, rendered.Voice)
	}
	if fallback.callCount() != 4 {
		t.Errorf("fallback must re-render every segment, got %d calls", fallback.callCount())
	}
	for _, voice := range fallback.voices {
		if voice != "f-voice" {
			t.Errorf("mixed voices on fallback run: %q", voice)
		}
	}
	for _, seg := range rendered.Segments {
		if seg.Provider != "fallback" {
			t.Errorf("segment %d kept primary output", seg.Index)
		}
	}
}

func TestRenderUndecodableAudioFailsOver(t *testing.T) {
	primary := &fakeProvider{name: "primary", rate: 8000, garbage: true}
	fallback := &fakeProvider{name: "fallback", rate: 8000}
	r := NewRenderer(primary, fallback, testVoices(), Options{Concurrency: 2, UnitTimeout: time.Second})

	rendered, err := r.Render(context.Background(), testScript())
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if rendered.Provider != "fallback" {
		t.Errorf("expected fallback after undecodable primary audio, got %q", rendered.Provider)
	}
}

func TestRenderNoFallback(t *testing.T) {
	primary := &fakeProvider{name: "primary", rate: 8000, failOn: map[string]bool{"a": true}}
	r := NewRenderer(primary, nil, testVoices(), Options{Concurrency: 2, UnitTimeout: time.Second})

	_, err := r.Render(context.Background(), testScript())
	if !errors.Is(err, briefing.ErrRenderingFailed) {
		t.Errorf("expected ErrRenderingFailed, got %v", err)
	}
}

func TestRenderBothProvidersFail(t *testing.T) {
	primary := &fakeProvider{name: "primary", rate: 8000, failOn: map[string]bool{"bb": true}}
	fallback := &fakeProvider{name: "fallback", rate: 8000, failOn: map[string]bool{"dddd": true}}
	r := NewRenderer(primary, fallback, testVoices(), Options{Concurrency: 1, UnitTimeout: time.Second})

	_, err := r.Render(context.Background(), testScript())
	if !errors.Is(err, briefing.ErrRenderingFailed) {
		t.Errorf("expected ErrRenderingFailed, got %v", err)
	}
}

func TestRenderCancelledContext(t *testing.T) {
	primary := &fakeProvider{name: "primary", rate: 8000}
	fallback := &fakeProvider{name: "fallback", rate: 8000}
	r := NewRenderer(primary, fallback, testVoices(), Options{Concurrency: 2, UnitTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx, testScript())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if fallback.callCount() != 0 {
		t.Error("cancellation must not trigger provider failover")
	}
}

func TestRenderEmptyScript(t *testing.T) {
	r := NewRenderer(&fakeProvider{name: "primary", rate: 8000}, nil, testVoices(), Options{})
	_, err := r.Render(context.Background(), &briefing.Script{Language: "en-US"})
	if !errors.Is(err, briefing.ErrRenderingFailed) {
		t.Errorf("expected ErrRenderingFailed, got %v", err)
	}
}
