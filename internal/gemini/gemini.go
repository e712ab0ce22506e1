package gemini

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

// Client handles Gemini API operations
type Client struct {
	apiKey      string
	model       string
	httpClient  *http.Client
	baseURL     string
	temperature float64
	maxTokens   int
	retry       fetch.RetryPolicy
}

// NewClient creates a new Gemini API client
func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://generativelanguage.googleapis.com/v1beta/models",
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		temperature: 0.3,
		maxTokens:   2048,
		retry:       fetch.DefaultPolicy(),
	}
}

// geminiRequest represents the request structure for Gemini API
type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// geminiResponse represents the response structure from Gemini API
type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

// Generate sends a prompt to the Gemini API and returns the model's
// text output. Transient API failures are retried under the client's
// retry policy.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	geminiReq := geminiRequest{
		Contents: []geminiContent{
			{
				Parts: []geminiPart{
					{Text: prompt},
				},
			},
		},
		GenerationConfig: &generationConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: c.maxTokens,
		},
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	body, err := json.Marshal(geminiReq)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	var text string
	err = fetch.Do(ctx, c.retry, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &fetch.StatusError{StatusCode: resp.StatusCode, URL: c.baseURL + "/" + c.model, Body: string(excerpt)}
		}

		var geminiResp geminiResponse
		if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}

		if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
			return fmt.Errorf("no content in response")
		}

		text = geminiResp.Candidates[0].Content.Parts[0].Text
		return nil
	})
	if err != nil {
		return "", err
	}

	return text, nil
}
