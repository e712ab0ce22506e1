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

// maxAudioBytes bounds a single downloaded segment
const maxAudioBytes = 64 << 20

// MurfClient calls the Murf speech generation API. Generation returns
// a URL to the rendered audio, which is downloaded in a second step.
type MurfClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	retry      fetch.RetryPolicy
}

// NewMurfClient creates a Murf API client
func NewMurfClient(apiKey string) *MurfClient {
	return &MurfClient{
		apiKey:  apiKey,
		baseURL: "https://api.murf.ai",
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		retry: fetch.DefaultPolicy(),
	}
}

// Name identifies the provider in logs, metrics and briefing metadata
func (c *MurfClient) Name() string { return "murf" }

type murfRequest struct {
	VoiceID     string  `json:"voiceId"`
	Text        string  `json:"text"`
	Format      string  `json:"format"`
	SampleRate  float64 `json:"sampleRate"`
	ChannelType string  `json:"channelType"`
}

type murfResponse struct {
	AudioFile            string  `json:"audioFile"`
	AudioLengthInSeconds float64 `json:"audioLengthInSeconds"`
}

// Synthesize renders one segment to mono WAV at 44.1kHz
func (c *MurfClient) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	payload := murfRequest{
		VoiceID:     voice,
		Text:        text,
		Format:      "WAV",
		SampleRate:  44100,
		ChannelType: "MONO",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var audioURL string
	err = fetch.Do(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/speech/generate", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api-key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &fetch.StatusError{StatusCode: resp.StatusCode, URL: c.baseURL + "/v1/speech/generate", Body: string(excerpt)}
		}

		var murfResp murfResponse
		if err := json.NewDecoder(resp.Body).Decode(&murfResp); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		if murfResp.AudioFile == "" {
			return fmt.Errorf("response missing audio URL")
		}
		audioURL = murfResp.AudioFile
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("murf generate: %w", err)
	}

	var audio []byte
	err = fetch.Do(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", audioURL, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &fetch.StatusError{StatusCode: resp.StatusCode, URL: audioURL}
		}

		audio, err = io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
		if err != nil {
			return fmt.Errorf("reading audio: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("murf download: %w", err)
	}

	return audio, nil
}
