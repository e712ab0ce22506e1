package script

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Prathmesh00007/awwninja/internal/briefing"
)

type fakeLLM struct {
	responses []string
	prompts   []string
	err       error
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	idx := len(f.prompts) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

func testItems() []briefing.RankedItem {
	article := &briefing.SourceArticle{
		URL:         "https://example.com/chip",
		Title:       "Chip launch",
		Body:        "The chip shipped to partners this week.",
		PublishedAt: time.Now(),
		Outlet:      "Example News",
		Status:      briefing.ExtractionOK,
	}
	thread := &briefing.DiscussionThread{
		Subreddit:  "technology",
		Title:      "Chip launch discussion",
		Permalink:  "https://reddit.com/r/technology/comments/1",
		Engagement: 500,
		CreatedAt:  time.Now(),
	}
	return []briefing.RankedItem{
		{Kind: briefing.KindNews, Article: article, DedupKey: "k1"},
		{Kind: briefing.KindDiscussion, Thread: thread, DedupKey: "k2"},
	}
}

func testRequest() briefing.Request {
	return briefing.Request{
		Topics:          []string{"chips"},
		DurationSeconds: 60,
		Freshness:       2 * time.Hour,
		Mix:             briefing.DefaultSourceMix(),
		Language:        "en-US",
	}
}

// block builds a paragraph of exactly n spoken words plus an optional
// source marker.
func block(n int, marker string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "story"
	}
	parts[n-1] = "story."
	s := strings.Join(parts, " ")
	if marker != "" {
		s += " " + marker
	}
	return s
}

func TestSynthesizeWithinTolerance(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		block(50, "") + "\n\n" + block(50, "[1]") + "\n\n" + block(50, "[2]"),
	}}
	syn := NewSynthesizer(llm, Options{})

	script, attributions, err := syn.Synthesize(context.Background(), testRequest(), testItems())
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}

	if len(llm.prompts) != 1 {
		t.Errorf("expected a single generation, got %d", len(llm.prompts))
	}
	if script.WordCount != 150 {
		t.Errorf("WordCount = %d, want 150", script.WordCount)
	}
	if len(script.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(script.Segments))
	}
	if script.TotalSeconds < 59.9 || script.TotalSeconds > 60.1 {
		t.Errorf("TotalSeconds = %.2f, want ~60", script.TotalSeconds)
	}
	for _, seg := range script.Segments {
		if strings.Contains(seg.Text, "[") {
			t.Errorf("segment text still contains a marker: %q", seg.Text)
		}
	}
	if got := script.Segments[1].Sources; len(got) != 1 || got[0] != 1 {
		t.Errorf("segment 1 sources = %v, want [1]", got)
	}

	if len(attributions) != 2 {
		t.Fatalf("expected 2 attributions, got %d", len(attributions))
	}
	if attributions[0].Source != "Example News" || attributions[0].Index != 1 {
		t.Errorf("unexpected first attribution: %+v", attributions[0])
	}
	if attributions[1].Source != "r/technology" || attributions[1].URL != "https://reddit.com/r/technology/comments/1" {
		t.Errorf("unexpected second attribution: %+v", attributions[1])
	}
}

func TestSynthesizeExtendsShortDraft(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		block(100, "[1]"),
		block(75, "[1]") + "\n\n" + block(75, "[2]"),
	}}
	syn := NewSynthesizer(llm, Options{})

	script, _, err := syn.Synthesize(context.Background(), testRequest(), testItems())
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if len(llm.prompts) != 2 {
		t.Fatalf("expected one correction round, got %d prompts", len(llm.prompts))
	}
	if !strings.Contains(llm.prompts[1], "Extend") {
		t.Errorf("correction should ask to extend, got: %.120s", llm.prompts[1])
	}
	if !strings.Contains(llm.prompts[1], "Draft:") {
		t.Error("correction should carry the previous draft")
	}
	if script.WordCount != 150 {
		t.Errorf("WordCount = %d, want 150", script.WordCount)
	}
}

func TestSynthesizeRewritesBadMiss(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		block(40, "[1]"),
		block(150, "[1]"),
	}}
	syn := NewSynthesizer(llm, Options{})

	_, _, err := syn.Synthesize(context.Background(), testRequest(), testItems())
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if !strings.Contains(llm.prompts[1], "completely new script") {
		t.Errorf("a 73%% miss should trigger a rewrite, got: %.120s", llm.prompts[1])
	}
}

func TestSynthesizeFailsAfterCorrection(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		block(100, "[1]"),
		block(100, "[1]"),
	}}
	syn := NewSynthesizer(llm, Options{})

	_, _, err := syn.Synthesize(context.Background(), testRequest(), testItems())
	if !errors.Is(err, briefing.ErrSynthesisFailed) {
		t.Fatalf("expected ErrSynthesisFailed, got %v", err)
	}
	if len(llm.prompts) != 2 {
		t.Errorf("expected exactly one correction before failing, got %d prompts", len(llm.prompts))
	}
}

func TestSynthesizeLLMError(t *testing.T) {
	llm := &fakeLLM{err: errors.New("api quota exhausted")}
	syn := NewSynthesizer(llm, Options{})

	_, _, err := syn.Synthesize(context.Background(), testRequest(), testItems())
	if !errors.Is(err, briefing.ErrSynthesisFailed) {
		t.Errorf("expected ErrSynthesisFailed, got %v", err)
	}
}

func TestSynthesizeEmptyCorpus(t *testing.T) {
	syn := NewSynthesizer(&fakeLLM{}, Options{})
	_, _, err := syn.Synthesize(context.Background(), testRequest(), nil)
	if !errors.Is(err, briefing.ErrNoContentAvailable) {
		t.Errorf("expected ErrNoContentAvailable, got %v", err)
	}
}

func TestParseDropsFencesAndBadMarkers(t *testing.T) {
	syn := NewSynthesizer(&fakeLLM{}, Options{})
	raw := "```\nWelcome to the show. [1] [9]\n\nSecond story wraps\nacross lines. [2]\n```"

	segments := syn.parse(raw, 2)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Text != "Welcome to the show." {
		t.Errorf("unexpected segment text: %q", segments[0].Text)
	}
	if len(segments[0].Sources) != 1 || segments[0].Sources[0] != 1 {
		t.Errorf("out-of-range marker should be dropped, sources = %v", segments[0].Sources)
	}
	if segments[1].Text != "Second story wraps across lines." {
		t.Errorf("wrapped lines should join: %q", segments[1].Text)
	}
}

func TestPromptCarriesLanguage(t *testing.T) {
	llm := &fakeLLM{responses: []string{block(150, "[1]")}}
	syn := NewSynthesizer(llm, Options{})

	req := testRequest()
	req.Language = "hi-IN"
	if _, _, err := syn.Synthesize(context.Background(), req, testItems()); err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if !strings.Contains(llm.prompts[0], "Hindi") {
		t.Error("prompt should instruct the model to write in Hindi")
	}

	llm2 := &fakeLLM{responses: []string{block(150, "[1]")}}
	syn2 := NewSynthesizer(llm2, Options{})
	if _, _, err := syn2.Synthesize(context.Background(), testRequest(), testItems()); err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if strings.Contains(llm2.prompts[0], "Write the entire script in") {
		t.Error("English requests should not carry a language instruction")
	}
}

func TestSplitOversizeSegments(t *testing.T) {
	llm := &fakeLLM{responses: []string{block(150, "[1]")}}
	syn := NewSynthesizer(llm, Options{MaxSegmentChars: 200})

	script, _, err := syn.Synthesize(context.Background(), testRequest(), testItems())
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if len(script.Segments) < 2 {
		t.Fatalf("a 150-word segment should split under a 200-char limit, got %d segments", len(script.Segments))
	}
	for i, seg := range script.Segments {
		if len(seg.Text) > 200 {
			t.Errorf("segment %d is %d chars, over the limit", i, len(seg.Text))
		}
		if seg.Index != i {
			t.Errorf("segment indexes not sequential: got %d at position %d", seg.Index, i)
		}
		if len(seg.Sources) != 1 || seg.Sources[0] != 1 {
			t.Errorf("split chunk lost its sources: %v", seg.Sources)
		}
	}
	if script.WordCount != 150 {
		t.Errorf("WordCount = %d, want 150", script.WordCount)
	}
}

func TestChunkSentences(t *testing.T) {
	text := "Alpha beta gamma delta. Epsilon zeta eta theta. Iota kappa lambda mu."
	chunks := chunkSentences(text, 30)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %v", len(chunks), chunks)
	}
	for _, chunk := range chunks {
		if len(chunk) > 30 {
			t.Errorf("chunk over limit: %q", chunk)
		}
		if !strings.HasSuffix(chunk, ".") {
			t.Errorf("chunk should end at a sentence boundary: %q", chunk)
		}
	}

	long := strings.Repeat("verylongword ", 10)
	wrapped := chunkSentences(strings.TrimSpace(long), 30)
	for _, chunk := range wrapped {
		if len(chunk) > 30 {
			t.Errorf("wrapped chunk over limit: %q", chunk)
		}
		for _, word := range strings.Fields(chunk) {
			if word != "verylongword" {
				t.Errorf("word split mid-token: %q", word)
			}
		}
	}
}
