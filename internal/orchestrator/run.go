package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/Prathmesh00007/awwninja/internal/briefing"
)

// Run is the caller-facing handle for one briefing request. Its mutable
// fields are guarded; exported fields are set once at submit time.
type Run struct {
	ID          string
	Fingerprint string
	Request     briefing.Request
	CreatedAt   time.Time

	mu       sync.Mutex
	state    State
	warnings []string
	result   *briefing.FinalBriefing
	err      error

	cancelFunc context.CancelFunc
	done       chan struct{}
}

// State returns the stage the run is currently in
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Terminal reports whether the run has finished, either way
func (r *Run) Terminal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateComplete || r.state == StateFailed
}

// Warnings returns a copy of the warnings accumulated so far
func (r *Run) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.warnings) == 0 {
		return nil
	}
	out := make([]string, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// Err returns the run's terminal error, if any
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Done is closed once the run reaches a terminal state
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Result returns the finished briefing or the run's terminal error.
// It does not block; callers wait on Done first.
func (r *Run) Result() (*briefing.FinalBriefing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case StateComplete:
		return r.result, nil
	case StateFailed:
		return nil, r.err
	default:
		return nil, ErrRunNotFinished
	}
}

// setState advances the run unless it already terminated
func (r *Run) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateComplete || r.state == StateFailed {
		return
	}
	r.state = s
}

// addWarning records a non-fatal degradation
func (r *Run) addWarning(w string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.warnings {
		if existing == w {
			return
		}
	}
	r.warnings = append(r.warnings, w)
}

// complete marks the run successful. Warnings carried by a briefing
// that another run computed are adopted onto this handle.
func (r *Run) complete(b *briefing.FinalBriefing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateComplete || r.state == StateFailed {
		return
	}
	r.state = StateComplete
	r.result = b
	if len(r.warnings) == 0 && len(b.Warnings) > 0 {
		r.warnings = append([]string(nil), b.Warnings...)
	}
}

// fail marks the run failed
func (r *Run) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateComplete || r.state == StateFailed {
		return
	}
	r.state = StateFailed
	r.err = err
}
