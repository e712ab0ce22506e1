// Package tts wraps the text-to-speech vendors behind a common
// provider interface. Vendor request and response shapes stay inside
// this package.
package tts

import "context"

// Provider renders narration text to WAV audio
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}
