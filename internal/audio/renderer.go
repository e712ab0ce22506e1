package audio

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Prathmesh00007/awwninja/internal/briefing"
	"github.com/Prathmesh00007/awwninja/internal/metrics"
	"github.com/Prathmesh00007/awwninja/internal/tts"
)

// Options configures segment rendering
type Options struct {
	Concurrency int              // parallel TTS calls per run
	UnitTimeout time.Duration    // bound on one segment synthesis
	Metrics     *metrics.Metrics // may be nil
}

// Renderer turns a script into one stitched WAV. Segments render
// concurrently on the primary provider; if any segment fails, all
// primary output is discarded and the whole script is re-rendered on
// the fallback so a briefing never mixes voices.
type Renderer struct {
	primary  tts.Provider
	fallback tts.Provider
	voices   tts.Voices
	opts     Options
}

// NewRenderer creates a renderer. fallback may be nil.
func NewRenderer(primary, fallback tts.Provider, voices tts.Voices, opts Options) *Renderer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.UnitTimeout <= 0 {
		opts.UnitTimeout = 60 * time.Second
	}
	return &Renderer{primary: primary, fallback: fallback, voices: voices, opts: opts}
}

// Render produces the briefing audio for a script
func (r *Renderer) Render(ctx context.Context, script *briefing.Script) (*briefing.RenderedAudio, error) {
	if len(script.Segments) == 0 {
		return nil, fmt.Errorf("script has no segments: %w", briefing.ErrRenderingFailed)
	}

	providers := []tts.Provider{r.primary}
	if r.fallback != nil {
		providers = append(providers, r.fallback)
	}

	var lastErr error
	for i, provider := range providers {
		if i > 0 {
			r.opts.Metrics.RecordProviderFallback()
		}
		voice := r.voices.VoiceFor(provider.Name(), script.Language)
		parts, err := r.renderAll(ctx, provider, voice, script.Segments)
		if err == nil {
			return assemble(provider.Name(), voice, script.Segments, parts)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		log.Printf("TTS provider %s failed, discarding its output: %v", provider.Name(), err)
	}

	return nil, fmt.Errorf("all providers exhausted: %v: %w", lastErr, briefing.ErrRenderingFailed)
}

// renderAll renders every segment with one provider and voice. A
// parent cancel lets in-flight segments finish under their unit
// timeout but starts no new ones.
func (r *Renderer) renderAll(ctx context.Context, provider tts.Provider, voice string, segments []briefing.Segment) ([][]byte, error) {
	parts := make([][]byte, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for i, seg := range segments {
		if gctx.Err() != nil {
			break
		}
		i, seg := i, seg
		g.Go(func() error {
			unitCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), r.opts.UnitTimeout)
			defer cancel()

			audio, err := provider.Synthesize(unitCtx, seg.Text, voice)
			if err != nil {
				return fmt.Errorf("segment %d: %w", seg.Index, err)
			}
			if _, _, err := DecodeWAV(audio); err != nil {
				return fmt.Errorf("segment %d: undecodable audio: %w", seg.Index, err)
			}
			parts[i] = audio
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, part := range parts {
		if part == nil {
			return nil, fmt.Errorf("segment %d was never rendered", i)
		}
	}
	return parts, nil
}

// assemble concatenates rendered parts in script order
func assemble(provider, voice string, segments []briefing.Segment, parts [][]byte) (*briefing.RenderedAudio, error) {
	data, err := Concat(parts)
	if err != nil {
		return nil, fmt.Errorf("concatenating segments: %v: %w", err, briefing.ErrRenderingFailed)
	}
	total, err := Duration(data)
	if err != nil {
		return nil, fmt.Errorf("measuring output: %v: %w", err, briefing.ErrRenderingFailed)
	}

	rendered := &briefing.RenderedAudio{
		Data:     data,
		Seconds:  total,
		Provider: provider,
		Voice:    voice,
		Segments: make([]briefing.AudioSegment, len(parts)),
	}
	for i, part := range parts {
		seconds, _ := Duration(part)
		rendered.Segments[i] = briefing.AudioSegment{
			Index:    segments[i].Index,
			Provider: provider,
			Seconds:  seconds,
			Bytes:    len(part),
		}
	}
	return rendered, nil
}
