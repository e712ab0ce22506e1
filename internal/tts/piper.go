package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Prathmesh00007/awwninja/internal/fetch"
)

// PiperClient calls a self-hosted Piper HTTP server, which returns the
// rendered WAV directly in the response body.
type PiperClient struct {
	baseURL    string
	httpClient *http.Client
	retry      fetch.RetryPolicy
}

// NewPiperClient creates a client for the Piper server at baseURL
func NewPiperClient(baseURL string) *PiperClient {
	return &PiperClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		retry: fetch.DefaultPolicy(),
	}
}

// Name identifies the provider in logs, metrics and briefing metadata
func (c *PiperClient) Name() string { return "piper" }

type piperRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// Synthesize renders one segment to WAV
func (c *PiperClient) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	body, err := json.Marshal(piperRequest{Text: text, Voice: voice})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var audio []byte
	err = fetch.Do(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &fetch.StatusError{StatusCode: resp.StatusCode, URL: c.baseURL, Body: string(excerpt)}
		}

		audio, err = io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
		if err != nil {
			return fmt.Errorf("reading audio: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("piper synthesize: %w", err)
	}

	return audio, nil
}
