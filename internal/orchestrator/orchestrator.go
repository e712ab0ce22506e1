// Package orchestrator sequences the briefing pipeline and tracks runs.
//
// A run walks ParsingRequest, Collecting, Ranking, Synthesizing and
// Rendering before landing in Complete, or in Failed from any stage.
// Cancellation is observed at stage boundaries: work already in flight
// finishes its unit, no further stages start.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Prathmesh00007/awwninja/internal/briefing"
	"github.com/Prathmesh00007/awwninja/internal/cache"
	"github.com/Prathmesh00007/awwninja/internal/history"
	"github.com/Prathmesh00007/awwninja/internal/metrics"
	"github.com/Prathmesh00007/awwninja/internal/store"
)

// State names the pipeline stage a run is in
type State string

const (
	StateParsingRequest State = "ParsingRequest"
	StateCollecting     State = "Collecting"
	StateRanking        State = "Ranking"
	StateSynthesizing   State = "Synthesizing"
	StateRendering      State = "Rendering"
	StateComplete       State = "Complete"
	StateFailed         State = "Failed"
)

// ErrRunNotFinished is returned by Result while a run is still in flight
var ErrRunNotFinished = errors.New("run not finished")

// ArticleSource gathers news articles for the requested topics
type ArticleSource interface {
	FetchArticles(ctx context.Context, topics []string, window time.Duration) ([]briefing.SourceArticle, error)
}

// ThreadSource gathers discussion threads for the requested topics
type ThreadSource interface {
	FetchThreads(ctx context.Context, topics []string, window time.Duration) ([]briefing.DiscussionThread, error)
}

// Ranker merges, deduplicates and scores the collected corpus
type Ranker interface {
	Rank(req briefing.Request, articles []briefing.SourceArticle, threads []briefing.DiscussionThread) ([]briefing.RankedItem, error)
}

// Synthesizer turns the ranked corpus into a segmented script
type Synthesizer interface {
	Synthesize(ctx context.Context, req briefing.Request, items []briefing.RankedItem) (*briefing.Script, []briefing.Attribution, error)
}

// Renderer produces one WAV for the whole script
type Renderer interface {
	Render(ctx context.Context, script *briefing.Script) (*briefing.RenderedAudio, error)
}

// HistoryWriter records terminal runs
type HistoryWriter interface {
	Insert(r *history.Record) error
}

// Deps are the collaborators a pipeline run needs. Cache, Store and
// History may be nil; the corresponding step is skipped.
type Deps struct {
	Articles    ArticleSource
	Threads     ThreadSource
	Ranker      Ranker
	Synthesizer Synthesizer
	Renderer    Renderer
	Cache       *cache.Cache
	Store       store.Store
	History     HistoryWriter
	Metrics     *metrics.Metrics
}

// Options bound a run's execution
type Options struct {
	RunTimeout       time.Duration // end to end ceiling per run
	CollectorTimeout time.Duration // hard bound per collector call
	DeviationWarn    float64       // warn when |audio-target|/target exceeds this
	RetainRuns       int           // finished runs kept for status lookups
}

// Orchestrator executes briefing runs and registers their handles
type Orchestrator struct {
	deps Deps
	opts Options

	mu     sync.Mutex
	runs   map[string]*Run
	order  []string
	active map[string]*Run
}

// New creates an orchestrator, filling option defaults
func New(deps Deps, opts Options) *Orchestrator {
	if opts.RunTimeout == 0 {
		opts.RunTimeout = 120 * time.Second
	}
	if opts.CollectorTimeout == 0 {
		opts.CollectorTimeout = 30 * time.Second
	}
	if opts.DeviationWarn == 0 {
		opts.DeviationWarn = 0.15
	}
	if opts.RetainRuns == 0 {
		opts.RetainRuns = 256
	}

	return &Orchestrator{
		deps:   deps,
		opts:   opts,
		runs:   make(map[string]*Run),
		active: make(map[string]*Run),
	}
}

// Submit validates the request and starts a run for it. A second submit
// of a fingerprint that is still in flight returns the existing handle.
func (o *Orchestrator) Submit(req briefing.Request) (*Run, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	fingerprint := req.Fingerprint()

	o.mu.Lock()
	if existing, ok := o.active[fingerprint]; ok {
		o.mu.Unlock()
		return existing, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.opts.RunTimeout)
	run := &Run{
		ID:          uuid.NewString(),
		Fingerprint: fingerprint,
		Request:     req,
		CreatedAt:   time.Now(),
		state:       StateParsingRequest,
		cancelFunc:  cancel,
		done:        make(chan struct{}),
	}
	o.runs[run.ID] = run
	o.order = append(o.order, run.ID)
	o.active[fingerprint] = run
	o.evictLocked()
	o.mu.Unlock()

	o.deps.Metrics.RecordRunStarted()
	log.Printf("Run %s started: topics=%v duration=%ds fingerprint=%.12s",
		run.ID, req.Topics, req.DurationSeconds, fingerprint)

	go o.execute(ctx, run)

	return run, nil
}

// Get returns the run registered under id
func (o *Orchestrator) Get(id string) (*Run, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	run, ok := o.runs[id]
	return run, ok
}

// Cancel requests cancellation of a run. Work already in flight finishes
// its current unit; no further stages start.
func (o *Orchestrator) Cancel(id string) bool {
	o.mu.Lock()
	run, ok := o.runs[id]
	o.mu.Unlock()
	if !ok {
		return false
	}
	run.cancelFunc()
	return true
}

// Execute runs a request synchronously and returns its briefing. It
// goes through the same registry and cache as Submit.
func (o *Orchestrator) Execute(ctx context.Context, req briefing.Request) (*briefing.FinalBriefing, error) {
	run, err := o.Submit(req)
	if err != nil {
		return nil, err
	}

	select {
	case <-run.Done():
	case <-ctx.Done():
		o.Cancel(run.ID)
		<-run.Done()
	}

	return run.Result()
}

// execute drives one run to a terminal state
func (o *Orchestrator) execute(ctx context.Context, run *Run) {
	start := time.Now()
	defer func() {
		run.cancelFunc()
		o.mu.Lock()
		if o.active[run.Fingerprint] == run {
			delete(o.active, run.Fingerprint)
		}
		o.mu.Unlock()
		close(run.done)
	}()

	computed := false
	compute := func(cctx context.Context) (*briefing.FinalBriefing, error) {
		computed = true
		return o.loadOrBuild(cctx, run)
	}

	var result *briefing.FinalBriefing
	var err error
	if o.deps.Cache != nil {
		result, err = o.deps.Cache.GetOrCreate(ctx, run.Fingerprint, compute)
	} else {
		result, err = compute(ctx)
	}
	elapsed := time.Since(start)

	if err != nil {
		run.fail(err)
		if errors.Is(err, context.Canceled) {
			log.Printf("Run %s cancelled after %s", run.ID, elapsed.Round(time.Millisecond))
			o.deps.Metrics.RecordRunCancelled()
		} else {
			log.Printf("Run %s failed after %s: %v", run.ID, elapsed.Round(time.Millisecond), err)
			o.deps.Metrics.RecordRunFailed(elapsed.Seconds())
		}
		o.recordHistory(run, nil, elapsed)
		return
	}

	run.complete(result)
	if o.deps.Cache != nil {
		if computed {
			o.deps.Metrics.RecordCacheMiss()
		} else {
			o.deps.Metrics.RecordCacheHit()
		}
	}
	o.deps.Metrics.RecordRunCompleted(elapsed.Seconds(), result.DeviationPercent()/100)
	log.Printf("Run %s complete in %s: %.1fs audio for a %ds target via %s",
		run.ID, elapsed.Round(time.Millisecond), result.DurationSeconds, result.TargetSeconds, result.Provider)
	o.recordHistory(run, result, elapsed)
}

// loadOrBuild reuses a persisted briefing when one is still fresh,
// otherwise runs the full pipeline.
func (o *Orchestrator) loadOrBuild(ctx context.Context, run *Run) (*briefing.FinalBriefing, error) {
	if o.deps.Store != nil {
		if b, err := o.deps.Store.Load(ctx, run.Fingerprint); err == nil && !b.Expired(time.Now()) {
			log.Printf("Run %s: reusing persisted briefing %.12s", run.ID, run.Fingerprint)
			return b, nil
		}
	}
	return o.pipeline(ctx, run)
}

// pipeline walks the run through every stage and assembles the briefing
func (o *Orchestrator) pipeline(ctx context.Context, run *Run) (*briefing.FinalBriefing, error) {
	req := run.Request
	started := time.Now()

	run.setState(StateCollecting)
	articles, threads, err := o.collect(ctx, run)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run.setState(StateRanking)
	items, err := o.deps.Ranker.Rank(req, articles, threads)
	if err != nil {
		return nil, err
	}
	o.deps.Metrics.RecordRanking(len(items), len(articles)+len(threads)-len(items))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run.setState(StateSynthesizing)
	script, attributions, err := o.deps.Synthesizer.Synthesize(ctx, req, items)
	if err != nil {
		return nil, err
	}
	o.deps.Metrics.RecordScriptAccepted(script.WordCount)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run.setState(StateRendering)
	renderStart := time.Now()
	rendered, err := o.deps.Renderer.Render(ctx, script)
	if err != nil {
		return nil, err
	}
	o.deps.Metrics.RecordRender(time.Since(renderStart).Seconds(), len(rendered.Data))
	for range rendered.Segments {
		o.deps.Metrics.RecordSegmentRendered(rendered.Provider)
	}

	now := time.Now()
	result := &briefing.FinalBriefing{
		Fingerprint:     run.Fingerprint,
		Topics:          req.Topics,
		Language:        req.Language,
		Provider:        rendered.Provider,
		Voice:           rendered.Voice,
		Audio:           rendered.Data,
		DurationSeconds: rendered.Seconds,
		TargetSeconds:   req.DurationSeconds,
		Script:          script.Text(),
		Attributions:    attributions,
		CreatedAt:       now,
		ExpiresAt:       now.Add(req.Freshness),
		ProcessingMS:    time.Since(started).Milliseconds(),
	}

	if result.DeviationPercent() > o.opts.DeviationWarn*100 {
		run.addWarning(fmt.Sprintf("audio runs %.1fs against a %ds target",
			result.DurationSeconds, result.TargetSeconds))
	}
	result.Warnings = run.Warnings()

	if o.deps.Store != nil {
		if err := o.deps.Store.Save(ctx, result); err != nil {
			log.Printf("Run %s: persisting briefing: %v", run.ID, err)
			run.addWarning("briefing audio was not persisted")
			result.Warnings = run.Warnings()
		}
	}

	return result, nil
}

// collect fans out to both collectors and joins their results. One
// failed collector degrades to a warning while the sibling has data;
// both failing is fatal.
func (o *Orchestrator) collect(ctx context.Context, run *Run) ([]briefing.SourceArticle, []briefing.DiscussionThread, error) {
	req := run.Request

	type articlesResult struct {
		articles []briefing.SourceArticle
		err      error
	}
	type threadsResult struct {
		threads []briefing.DiscussionThread
		err     error
	}

	articlesCh := make(chan articlesResult, 1)
	threadsCh := make(chan threadsResult, 1)

	go func() {
		cctx, cancel := context.WithTimeout(ctx, o.opts.CollectorTimeout)
		defer cancel()
		start := time.Now()
		articles, err := o.deps.Articles.FetchArticles(cctx, req.Topics, req.Freshness)
		if err == nil {
			o.deps.Metrics.RecordCollection("news", len(articles), time.Since(start).Seconds())
		}
		articlesCh <- articlesResult{articles, err}
	}()

	go func() {
		cctx, cancel := context.WithTimeout(ctx, o.opts.CollectorTimeout)
		defer cancel()
		start := time.Now()
		threads, err := o.deps.Threads.FetchThreads(cctx, req.Topics, req.Freshness)
		if err == nil {
			o.deps.Metrics.RecordCollection("discussion", len(threads), time.Since(start).Seconds())
		}
		threadsCh <- threadsResult{threads, err}
	}()

	aRes := <-articlesCh
	tRes := <-threadsCh

	if aRes.err != nil {
		o.deps.Metrics.RecordCollectorFailure("news")
		log.Printf("Run %s: news collector: %v", run.ID, aRes.err)
	}
	if tRes.err != nil {
		o.deps.Metrics.RecordCollectorFailure("discussion")
		log.Printf("Run %s: discussion collector: %v", run.ID, tRes.err)
	}

	if aRes.err != nil && tRes.err != nil {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("news: %v; discussion: %v: %w",
			aRes.err, tRes.err, briefing.ErrNoContentAvailable)
	}
	if aRes.err != nil || tRes.err != nil {
		run.addWarning("reduced source diversity")
	}

	return aRes.articles, tRes.threads, nil
}

// recordHistory writes the run's terminal record
func (o *Orchestrator) recordHistory(run *Run, result *briefing.FinalBriefing, elapsed time.Duration) {
	if o.deps.History == nil {
		return
	}

	rec := &history.Record{
		RunID:         run.ID,
		Fingerprint:   run.Fingerprint,
		Topics:        run.Request.Topics,
		Language:      run.Request.Language,
		State:         string(run.State()),
		TargetSeconds: run.Request.DurationSeconds,
		Warnings:      run.Warnings(),
		ProcessingMS:  elapsed.Milliseconds(),
		CreatedAt:     run.CreatedAt,
	}
	if result != nil {
		rec.Provider = result.Provider
		rec.DurationSeconds = result.DurationSeconds
	}
	if err := run.Err(); err != nil {
		rec.Error = err.Error()
	}

	if err := o.deps.History.Insert(rec); err != nil {
		log.Printf("Run %s: recording history: %v", run.ID, err)
	}
}

// evictLocked drops the oldest terminal runs beyond the retention bound.
// Callers hold o.mu.
func (o *Orchestrator) evictLocked() {
	for len(o.runs) > o.opts.RetainRuns {
		evicted := false
		for i, id := range o.order {
			run := o.runs[id]
			if run == nil {
				o.order = append(o.order[:i], o.order[i+1:]...)
				evicted = true
				break
			}
			if run.Terminal() {
				delete(o.runs, id)
				o.order = append(o.order[:i], o.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}
