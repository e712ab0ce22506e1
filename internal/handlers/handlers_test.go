package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Prathmesh00007/awwninja/internal/briefing"
	"github.com/Prathmesh00007/awwninja/internal/cache"
	"github.com/Prathmesh00007/awwninja/internal/config"
	"github.com/Prathmesh00007/awwninja/internal/history"
	"github.com/Prathmesh00007/awwninja/internal/metrics"
	"github.com/Prathmesh00007/awwninja/internal/orchestrator"
	"github.com/Prathmesh00007/awwninja/internal/rank"
	"github.com/Prathmesh00007/awwninja/internal/store"
)

type stubArticles struct {
	block chan struct{}
}

func (s *stubArticles) FetchArticles(ctx context.Context, topics []string, window time.Duration) ([]briefing.SourceArticle, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []briefing.SourceArticle{{
		URL:         "https://news.example.com/chip-launch",
		Title:       "Chip launch",
		Body:        "Extended technology coverage of the new chip launch and its markets.",
		PublishedAt: time.Now().Add(-10 * time.Minute),
		Outlet:      "Example News",
		Status:      briefing.ExtractionOK,
	}}, nil
}

type stubThreads struct{}

func (s *stubThreads) FetchThreads(ctx context.Context, topics []string, window time.Duration) ([]briefing.DiscussionThread, error) {
	return []briefing.DiscussionThread{{
		Subreddit:  "technology",
		Title:      "Chip launch discussion",
		Permalink:  "https://www.reddit.com/r/technology/comments/xyz/",
		Comments:   []briefing.Comment{{Body: "Benchmarks for the technology look real.", Score: 55}},
		Score:      410,
		Engagement: 520,
		CreatedAt:  time.Now().Add(-30 * time.Minute),
	}}, nil
}

type stubSynth struct{}

func (s *stubSynth) Synthesize(ctx context.Context, req briefing.Request, items []briefing.RankedItem) (*briefing.Script, []briefing.Attribution, error) {
	script := &briefing.Script{
		Segments:     []briefing.Segment{{Index: 0, Text: "Here is your briefing.", Seconds: 60, Sources: []int{1}}},
		TotalSeconds: 60,
		WordCount:    150,
		Language:     req.Language,
	}
	attrs := []briefing.Attribution{{Index: 1, Kind: items[0].Kind, Title: items[0].Title(), Source: items[0].SourceLabel(), URL: items[0].SourceURL()}}
	return script, attrs, nil
}

type stubRenderer struct{}

func (s *stubRenderer) Render(ctx context.Context, script *briefing.Script) (*briefing.RenderedAudio, error) {
	return &briefing.RenderedAudio{
		Data:     []byte("wav-data-bytes"),
		Seconds:  61,
		Provider: "murf",
		Voice:    "en-US-wayne",
		Segments: []briefing.AudioSegment{{Index: 0, Provider: "murf", Seconds: 61, Bytes: 14}},
	}, nil
}

func newTestServer(t *testing.T, token string) (*Server, http.Handler, *stubArticles) {
	t.Helper()

	cfg := &config.Config{
		Port:         "8080",
		Host:         "127.0.0.1",
		GeminiModel:  "gemini-1.5-flash",
		GeminiAPIKey: "super-secret-key",
		StoreType:    "local",
		APIAuthToken: token,
	}

	c := cache.New(time.Hour)
	t.Cleanup(c.Close)

	localStore, err := store.NewLocalStore(filepath.Join(t.TempDir(), "audio"))
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	runHistory, err := history.New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("history.New: %v", err)
	}
	t.Cleanup(func() { runHistory.Close() })

	articles := &stubArticles{}
	m := metrics.New(prometheus.NewRegistry())

	orch := orchestrator.New(orchestrator.Deps{
		Articles:    articles,
		Threads:     &stubThreads{},
		Ranker:      rank.New(rank.Options{}),
		Synthesizer: &stubSynth{},
		Renderer:    &stubRenderer{},
		Cache:       c,
		Store:       localStore,
		History:     runHistory,
		Metrics:     m,
	}, orchestrator.Options{RunTimeout: 5 * time.Second, CollectorTimeout: 2 * time.Second})

	s := &Server{
		config:       cfg,
		orchestrator: orch,
		cache:        c,
		store:        localStore,
		history:      runHistory,
		metrics:      m,
		startedAt:    time.Now(),
	}

	return s, s.SetupRoutes(), articles
}

func submitBody() string {
	return `{"topics":["technology"],"duration_seconds":60,"freshness_minutes":120}`
}

func doRequest(router http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func submitAndWait(t *testing.T, s *Server, router http.Handler) string {
	t.Helper()

	rec := doRequest(router, "POST", "/api/v1/briefings", submitBody(), "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		RunID string `json:"run_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding submit response: %v", err)
	}

	run, ok := s.orchestrator.Get(resp.RunID)
	if !ok {
		t.Fatalf("run %s not registered", resp.RunID)
	}
	<-run.Done()
	return resp.RunID
}

func TestSubmitBriefingLifecycle(t *testing.T) {
	s, router, _ := newTestServer(t, "")

	runID := submitAndWait(t, s, router)

	// Poll status
	rec := doRequest(router, "GET", "/api/v1/briefings/"+runID, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status poll: expected 200, got %d", rec.Code)
	}
	var status struct {
		RunID string `json:"run_id"`
		State string `json:"state"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if status.State != "Complete" || status.Error != "" {
		t.Errorf("expected Complete without error, got %+v", status)
	}

	// Fetch result
	rec = doRequest(router, "GET", "/api/v1/briefings/"+runID+"/result", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("result: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		RunID       string `json:"run_id"`
		Fingerprint string `json:"fingerprint"`
		Script      string `json:"script"`
		AudioBase64 string `json:"audio_base64"`
		Provider    string `json:"provider"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.RunID != runID || result.Provider != "murf" || result.Script == "" {
		t.Errorf("unexpected result payload: %+v", result)
	}
	decoded, err := base64.StdEncoding.DecodeString(result.AudioBase64)
	if err != nil || string(decoded) != "wav-data-bytes" {
		t.Errorf("expected base64 audio round trip, got %q (%v)", decoded, err)
	}

	// Raw audio
	rec = doRequest(router, "GET", "/api/v1/briefings/"+runID+"/audio", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("audio: expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("expected audio/wav, got %s", ct)
	}
	if rec.Body.String() != "wav-data-bytes" {
		t.Errorf("unexpected audio body %q", rec.Body.String())
	}
}

func TestSubmitInvalidRequests(t *testing.T) {
	_, router, _ := newTestServer(t, "")

	rec := doRequest(router, "POST", "/api/v1/briefings", "{not json", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", rec.Code)
	}

	rec = doRequest(router, "POST", "/api/v1/briefings",
		`{"topics":["tech"],"duration_seconds":10}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("out of range duration: expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "duration_seconds") {
		t.Errorf("expected the invalid field in the message, got %s", rec.Body.String())
	}
}

func TestResultConflictAndCancel(t *testing.T) {
	s, router, articles := newTestServer(t, "")
	articles.block = make(chan struct{}) // released only by cancellation

	rec := doRequest(router, "POST", "/api/v1/briefings", submitBody(), "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var resp struct {
		RunID string `json:"run_id"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)

	rec = doRequest(router, "GET", "/api/v1/briefings/"+resp.RunID+"/result", "", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("result while running: expected 409, got %d", rec.Code)
	}

	rec = doRequest(router, "DELETE", "/api/v1/briefings/"+resp.RunID, "", "")
	if rec.Code != http.StatusAccepted {
		t.Errorf("cancel: expected 202, got %d", rec.Code)
	}

	run, _ := s.orchestrator.Get(resp.RunID)
	<-run.Done()

	rec = doRequest(router, "GET", "/api/v1/briefings/"+resp.RunID, "", "")
	var status struct {
		State string `json:"state"`
		Error string `json:"error"`
	}
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status.State != "Failed" || status.Error == "" {
		t.Errorf("expected a Failed status with error after cancel, got %+v", status)
	}
}

func TestUnknownRunRoutes(t *testing.T) {
	_, router, _ := newTestServer(t, "")

	paths := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/briefings/nope"},
		{"GET", "/api/v1/briefings/nope/result"},
		{"GET", "/api/v1/briefings/nope/audio"},
		{"DELETE", "/api/v1/briefings/nope"},
	}
	for _, p := range paths {
		rec := doRequest(router, p.method, p.path, "", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: expected 404, got %d", p.method, p.path, rec.Code)
		}
	}
}

func TestAuthTokenGuardsMutations(t *testing.T) {
	_, router, _ := newTestServer(t, "sekrit")

	rec := doRequest(router, "POST", "/api/v1/briefings", submitBody(), "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated POST: expected 401, got %d", rec.Code)
	}

	rec = doRequest(router, "DELETE", "/api/v1/cache", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated DELETE: expected 401, got %d", rec.Code)
	}

	rec = doRequest(router, "POST", "/api/v1/briefings", submitBody(), "sekrit")
	if rec.Code != http.StatusAccepted {
		t.Errorf("authenticated POST: expected 202, got %d", rec.Code)
	}

	// Reads stay open
	rec = doRequest(router, "GET", "/api/v1/health", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("health without token: expected 200, got %d", rec.Code)
	}
}

func TestCacheEndpoints(t *testing.T) {
	s, router, _ := newTestServer(t, "")

	submitAndWait(t, s, router)

	rec := doRequest(router, "GET", "/api/v1/cache/stats", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cache stats: expected 200, got %d", rec.Code)
	}
	var stats struct {
		TotalEntries int `json:"total_entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if stats.TotalEntries != 1 {
		t.Errorf("expected 1 cached briefing, got %d", stats.TotalEntries)
	}

	rec = doRequest(router, "DELETE", "/api/v1/cache", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("cache clear: expected 200, got %d", rec.Code)
	}

	rec = doRequest(router, "GET", "/api/v1/cache/stats", "", "")
	json.Unmarshal(rec.Body.Bytes(), &stats)
	if stats.TotalEntries != 0 {
		t.Errorf("expected an empty cache after clear, got %d entries", stats.TotalEntries)
	}
}

func TestListBriefings(t *testing.T) {
	s, router, _ := newTestServer(t, "")

	submitAndWait(t, s, router)

	rec := doRequest(router, "GET", "/api/v1/briefings?limit=5", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var resp struct {
		Count int `json:"count"`
		Runs  []struct {
			State string `json:"state"`
		} `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if resp.Count != 1 || len(resp.Runs) != 1 {
		t.Fatalf("expected 1 run in history, got %+v", resp)
	}
	if resp.Runs[0].State != "Complete" {
		t.Errorf("expected Complete, got %s", resp.Runs[0].State)
	}
}

func TestConfigEndpointOmitsSecrets(t *testing.T) {
	_, router, _ := newTestServer(t, "")

	rec := doRequest(router, "GET", "/api/v1/config", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("config: expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "super-secret-key") {
		t.Error("config response leaked the API key")
	}
	if !strings.Contains(body, "gemini_model") {
		t.Error("expected sanitized config fields in the response")
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, router, _ := newTestServer(t, "")

	rec := doRequest(router, "GET", "/api/v1/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected health body: %s", rec.Body.String())
	}
	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected CORS header, got %q", origin)
	}
}
