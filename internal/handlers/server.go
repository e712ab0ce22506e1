package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Prathmesh00007/awwninja/internal/audio"
	"github.com/Prathmesh00007/awwninja/internal/briefing"
	"github.com/Prathmesh00007/awwninja/internal/cache"
	"github.com/Prathmesh00007/awwninja/internal/config"
	"github.com/Prathmesh00007/awwninja/internal/gemini"
	"github.com/Prathmesh00007/awwninja/internal/history"
	"github.com/Prathmesh00007/awwninja/internal/metrics"
	"github.com/Prathmesh00007/awwninja/internal/news"
	"github.com/Prathmesh00007/awwninja/internal/orchestrator"
	"github.com/Prathmesh00007/awwninja/internal/rank"
	"github.com/Prathmesh00007/awwninja/internal/reddit"
	"github.com/Prathmesh00007/awwninja/internal/script"
	"github.com/Prathmesh00007/awwninja/internal/store"
	"github.com/Prathmesh00007/awwninja/internal/tts"
)

// Server holds the HTTP server and its dependencies
type Server struct {
	config       *config.Config
	orchestrator *orchestrator.Orchestrator
	cache        *cache.Cache
	store        store.Store
	history      *history.Store
	metrics      *metrics.Metrics
	startedAt    time.Time
}

// NewServer creates a new HTTP server wiring the full briefing pipeline
func NewServer(cfg *config.Config) (*Server, error) {
	voices, err := tts.LoadCatalog(cfg.VoicesFile)
	if err != nil {
		return nil, fmt.Errorf("loading voice catalog: %w", err)
	}

	var primary, fallback tts.Provider
	if cfg.MurfAPIKey != "" {
		primary = tts.NewMurfClient(cfg.MurfAPIKey)
	}
	if cfg.PiperURL != "" {
		piper := tts.NewPiperClient(cfg.PiperURL)
		if primary == nil {
			primary = piper
		} else {
			fallback = piper
		}
	}

	briefingStore, err := store.New(context.Background(), cfg.StoreType, cfg.AudioDir, cfg.StoreBucket)
	if err != nil {
		return nil, fmt.Errorf("creating briefing store: %w", err)
	}

	runHistory, err := history.New(cfg.HistoryDB)
	if err != nil {
		return nil, fmt.Errorf("opening run history: %w", err)
	}

	m := metrics.NewMetrics()
	briefingCache := cache.New(time.Duration(cfg.CacheCleanupMinutes) * time.Minute)

	orch := orchestrator.New(orchestrator.Deps{
		Articles: news.NewCollector(news.Options{MaxPerTopic: cfg.MaxArticlesPerTopic}),
		Threads:  reddit.NewCollector(reddit.Options{MaxComments: cfg.MaxCommentsPerThread}),
		Ranker:   rank.New(rank.Options{MaxItems: cfg.MaxCorpusItems, NewsFirst: cfg.NewsFirst}),
		Synthesizer: script.NewSynthesizer(gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel), script.Options{
			WordsPerMinute:  cfg.WordsPerMinute,
			Tolerance:       cfg.ScriptTolerance,
			MaxSegmentChars: cfg.MaxSegmentChars,
			Metrics:         m,
		}),
		Renderer: audio.NewRenderer(primary, fallback, voices, audio.Options{Concurrency: cfg.MaxConcurrentTTS, Metrics: m}),
		Cache:    briefingCache,
		Store:    briefingStore,
		History:  runHistory,
		Metrics:  m,
	}, orchestrator.Options{
		RunTimeout:       time.Duration(cfg.RunTimeout) * time.Second,
		CollectorTimeout: time.Duration(cfg.CollectorTimeout) * time.Second,
		DeviationWarn:    cfg.ScriptTolerance,
	})

	return &Server{
		config:       cfg,
		orchestrator: orch,
		cache:        briefingCache,
		store:        briefingStore,
		history:      runHistory,
		metrics:      m,
		startedAt:    time.Now(),
	}, nil
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes() *mux.Router {
	r := mux.NewRouter()

	// Prometheus endpoint sits outside the API prefix
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.corsMiddleware)
	api.Use(s.loggingMiddleware)
	api.Use(s.authMiddleware)

	// Health check
	api.HandleFunc("/health", s.healthHandler).Methods("GET")

	// Briefing operations
	api.HandleFunc("/briefings", s.submitBriefingHandler).Methods("POST")
	api.HandleFunc("/briefings", s.listBriefingsHandler).Methods("GET")
	api.HandleFunc("/briefings/{id}", s.briefingStatusHandler).Methods("GET")
	api.HandleFunc("/briefings/{id}/result", s.briefingResultHandler).Methods("GET")
	api.HandleFunc("/briefings/{id}/audio", s.briefingAudioHandler).Methods("GET")
	api.HandleFunc("/briefings/{id}", s.cancelBriefingHandler).Methods("DELETE")

	// Cache operations
	api.HandleFunc("/cache/stats", s.cacheStatsHandler).Methods("GET")
	api.HandleFunc("/cache", s.cacheClearHandler).Methods("DELETE")

	// Status and configuration
	api.HandleFunc("/status", s.statusHandler).Methods("GET")
	api.HandleFunc("/config", s.configHandler).Methods("GET")

	return r
}

// healthHandler provides health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"version":   "v1.0.0",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// ExecuteBriefing runs one briefing synchronously. The CLI entry point
// uses it; HTTP callers go through Submit and polling instead.
func (s *Server) ExecuteBriefing(ctx context.Context, req briefing.Request) (*briefing.FinalBriefing, error) {
	return s.orchestrator.Execute(ctx, req)
}

// RunMaintenance purges expired cache entries and sweeps expired
// persisted briefings. The cron schedule in cmd/server drives it.
func (s *Server) RunMaintenance(ctx context.Context) error {
	purged := s.cache.PurgeExpired()

	swept, err := s.store.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("sweeping expired briefings: %w", err)
	}

	log.Printf("Maintenance: purged %d cached, removed %d persisted briefings", purged, swept)
	return nil
}

// Close releases the server's long-lived resources
func (s *Server) Close() error {
	s.cache.Close()
	if err := s.history.Close(); err != nil {
		return err
	}
	return s.store.Close()
}

// Middleware functions

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests and records request metrics
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap the ResponseWriter to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		// Label by route template, not raw path, to keep metric
		// cardinality bounded.
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}
		s.metrics.RecordHTTPRequest(r.Method, endpoint, strconv.Itoa(wrapped.statusCode), duration.Seconds())

		log.Printf("%s %s %d %v", r.Method, r.URL.Path, wrapped.statusCode, duration)
	})
}

// authMiddleware guards mutating endpoints when a token is configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.APIAuthToken == "" || (r.Method != http.MethodPost && r.Method != http.MethodDelete) {
			next.ServeHTTP(w, r)
			return
		}

		if r.Header.Get("Authorization") != "Bearer "+s.config.APIAuthToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
