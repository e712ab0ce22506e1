package briefing

import "errors"

// Pipeline error taxonomy. Transient fetch errors never surface past the
// collectors; these are the conditions the orchestrator routes on.
var (
	// ErrSourceUnavailable means one collector produced zero usable items.
	// Non-fatal while the sibling collector has data.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrNoContentAvailable means both collectors came back empty. Fatal.
	ErrNoContentAvailable = errors.New("no content available")

	// ErrSynthesisFailed means the LLM failed twice to produce a usable
	// script. Fatal; no fallback script is fabricated.
	ErrSynthesisFailed = errors.New("synthesis failed")

	// ErrRenderingFailed means the primary TTS provider failed with no
	// usable fallback, or the fallback failed too. Fatal.
	ErrRenderingFailed = errors.New("rendering failed")
)
