package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/Prathmesh00007/awwninja/internal/briefing"
	"github.com/Prathmesh00007/awwninja/internal/orchestrator"
)

// briefingRequest is the submit payload
type briefingRequest struct {
	Topics           []string            `json:"topics"`
	DurationSeconds  int                 `json:"duration_seconds"`
	FreshnessMinutes int                 `json:"freshness_minutes"`
	SourceMix        *briefing.SourceMix `json:"source_mix,omitempty"`
	Language         string              `json:"language"`
}

func (r briefingRequest) toRequest() briefing.Request {
	req := briefing.Request{
		Topics:          r.Topics,
		DurationSeconds: r.DurationSeconds,
		Freshness:       time.Duration(r.FreshnessMinutes) * time.Minute,
		Language:        r.Language,
	}
	if r.SourceMix != nil {
		req.Mix = *r.SourceMix
	}
	return req
}

// submitBriefingHandler accepts a briefing request and starts a run
func (s *Server) submitBriefingHandler(w http.ResponseWriter, r *http.Request) {
	var req briefingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	run, err := s.orchestrator.Submit(req.toRequest())
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid briefing request: %v", err), http.StatusBadRequest)
		return
	}

	response := map[string]interface{}{
		"run_id":      run.ID,
		"state":       run.State(),
		"fingerprint": run.Fingerprint,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(response)
}

// briefingStatusHandler reports where a run currently is
func (s *Server) briefingStatusHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.orchestrator.Get(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "Unknown run", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"run_id":     run.ID,
		"state":      run.State(),
		"warnings":   run.Warnings(),
		"created_at": run.CreatedAt,
	}
	if err := run.Err(); err != nil {
		response["error"] = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// briefingResultHandler returns the finished briefing with base64 audio
func (s *Server) briefingResultHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.orchestrator.Get(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "Unknown run", http.StatusNotFound)
		return
	}

	result, err := run.Result()
	if err != nil {
		s.writeRunError(w, run, err)
		return
	}

	response := struct {
		*briefing.FinalBriefing
		RunID       string `json:"run_id"`
		AudioBase64 string `json:"audio_base64"`
	}{
		FinalBriefing: result,
		RunID:         run.ID,
		AudioBase64:   base64.StdEncoding.EncodeToString(result.Audio),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// briefingAudioHandler streams the finished briefing as audio/wav
func (s *Server) briefingAudioHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.orchestrator.Get(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "Unknown run", http.StatusNotFound)
		return
	}

	result, err := run.Result()
	if err != nil {
		s.writeRunError(w, run, err)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Audio)))
	w.Write(result.Audio)
}

// writeRunError maps an unfinished or failed run to a response
func (s *Server) writeRunError(w http.ResponseWriter, run *orchestrator.Run, err error) {
	if err == orchestrator.ErrRunNotFinished {
		response := map[string]interface{}{
			"run_id": run.ID,
			"state":  run.State(),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(response)
		return
	}

	response := map[string]interface{}{
		"run_id": run.ID,
		"state":  run.State(),
		"error":  err.Error(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(response)
}

// cancelBriefingHandler requests cancellation of a run
func (s *Server) cancelBriefingHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.orchestrator.Cancel(id) {
		http.Error(w, "Unknown run", http.StatusNotFound)
		return
	}

	response := map[string]string{
		"run_id": id,
		"status": "cancellation requested",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(response)
}

// listBriefingsHandler returns recent run history
func (s *Server) listBriefingsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := s.history.Recent(limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error reading run history: %v", err), http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"runs":  records,
		"count": len(records),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// cacheStatsHandler returns cache statistics
func (s *Server) cacheStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := s.cache.GetStats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// cacheClearHandler clears the cache
func (s *Server) cacheClearHandler(w http.ResponseWriter, r *http.Request) {
	s.cache.Clear()

	response := map[string]string{
		"status":  "success",
		"message": "Cache cleared successfully",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// statusHandler returns system status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":         "running",
		"version":        "v1.0.0",
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"cache":          s.cache.GetStats(),
		"store_type":     s.config.StoreType,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// configHandler returns configuration (sanitized)
func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	// Return sanitized configuration without sensitive data
	response := map[string]interface{}{
		"port":                s.config.Port,
		"host":                s.config.Host,
		"gemini_model":        s.config.GeminiModel,
		"piper_configured":    s.config.PiperURL != "",
		"murf_configured":     s.config.MurfAPIKey != "",
		"words_per_minute":    s.config.WordsPerMinute,
		"script_tolerance":    s.config.ScriptTolerance,
		"max_corpus_items":    s.config.MaxCorpusItems,
		"max_concurrent_tts":  s.config.MaxConcurrentTTS,
		"run_timeout_seconds": s.config.RunTimeout,
		"store_type":          s.config.StoreType,
		"audio_dir":           s.config.AudioDir,
		"cleanup_schedule":    s.config.CleanupSchedule,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
