package script

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Prathmesh00007/awwninja/internal/briefing"
	"github.com/Prathmesh00007/awwninja/internal/metrics"
)

// LLM generates text from a prompt. Satisfied by gemini.Client.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options configures script synthesis
type Options struct {
	WordsPerMinute  int              // narration pace used for all duration math
	Tolerance       float64          // accepted word-count deviation from target
	RewriteCutoff   float64          // deviation beyond which the correction asks for a new script
	MaxSegmentChars int              // provider limit for a single narration request
	Metrics         *metrics.Metrics // may be nil
}

// DefaultOptions matches a typical broadcast pace of 150 words per minute
func DefaultOptions() Options {
	return Options{
		WordsPerMinute:  150,
		Tolerance:       0.15,
		RewriteCutoff:   0.40,
		MaxSegmentChars: 3000,
	}
}

// Synthesizer turns a ranked corpus into a narration-ready script
type Synthesizer struct {
	llm  LLM
	opts Options
}

// NewSynthesizer creates a synthesizer, filling option defaults
func NewSynthesizer(llm LLM, opts Options) *Synthesizer {
	defaults := DefaultOptions()
	if opts.WordsPerMinute == 0 {
		opts.WordsPerMinute = defaults.WordsPerMinute
	}
	if opts.Tolerance == 0 {
		opts.Tolerance = defaults.Tolerance
	}
	if opts.RewriteCutoff == 0 {
		opts.RewriteCutoff = defaults.RewriteCutoff
	}
	if opts.MaxSegmentChars == 0 {
		opts.MaxSegmentChars = defaults.MaxSegmentChars
	}
	return &Synthesizer{llm: llm, opts: opts}
}

// Synthesize drafts the script, verifies its word count against the
// requested duration and re-prompts once with a corrective instruction
// if the draft misses the budget. A second miss fails the synthesis.
func (s *Synthesizer) Synthesize(ctx context.Context, req briefing.Request, items []briefing.RankedItem) (*briefing.Script, []briefing.Attribution, error) {
	if len(items) == 0 {
		return nil, nil, fmt.Errorf("empty corpus: %w", briefing.ErrNoContentAvailable)
	}

	target := s.targetWords(req)
	prompt := s.buildPrompt(req, items, target)

	draft, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, nil, fmt.Errorf("generating draft: %v: %w", err, briefing.ErrSynthesisFailed)
	}

	segments := s.parse(draft, len(items))
	words := totalWords(segments)

	if deviation(words, target) > s.opts.Tolerance {
		s.opts.Metrics.RecordScriptCorrection()
		correction := s.correctionPrompt(prompt, draft, words, target)
		draft, err = s.llm.Generate(ctx, correction)
		if err != nil {
			return nil, nil, fmt.Errorf("generating correction: %v: %w", err, briefing.ErrSynthesisFailed)
		}
		segments = s.parse(draft, len(items))
		words = totalWords(segments)
		if deviation(words, target) > s.opts.Tolerance {
			return nil, nil, fmt.Errorf("script is %d words against a target of %d after correction: %w",
				words, target, briefing.ErrSynthesisFailed)
		}
	}

	segments = s.splitOversize(segments)

	script := &briefing.Script{
		Segments:  segments,
		WordCount: words,
		Language:  req.Language,
	}
	for _, seg := range segments {
		script.TotalSeconds += seg.Seconds
	}

	return script, buildAttributions(segments, items), nil
}

func (s *Synthesizer) targetWords(req briefing.Request) int {
	return int(math.Round(float64(req.DurationSeconds) / 60 * float64(s.opts.WordsPerMinute)))
}

func totalWords(segments []briefing.Segment) int {
	total := 0
	for _, seg := range segments {
		total += len(strings.Fields(seg.Text))
	}
	return total
}

func deviation(words, target int) float64 {
	if target == 0 {
		return 0
	}
	return math.Abs(float64(words-target)) / float64(target)
}

func (s *Synthesizer) buildPrompt(req briefing.Request, items []briefing.RankedItem, target int) string {
	margin := int(float64(target) * s.opts.Tolerance)
	topics := "today's top stories"
	if len(req.Topics) > 0 {
		topics = strings.Join(req.Topics, ", ")
	}

	var b strings.Builder
	b.WriteString("You are writing the script for a spoken news briefing that a text-to-speech voice will narrate.\n\n")
	fmt.Fprintf(&b, "Topics requested: %s.\n", topics)
	fmt.Fprintf(&b, "Target length: %d words. The script must land between %d and %d words.\n\n", target, target-margin, target+margin)
	b.WriteString("Rules:\n")
	b.WriteString("- Plain spoken prose only. No markdown, no emoji, no headings, no stage directions.\n")
	b.WriteString("- Separate stories with one blank line.\n")
	b.WriteString("- Attribute every story by appending the bracketed number of its source, for example [2].\n")
	b.WriteString("- Open with a one-sentence welcome naming the topics and end with a brief sign-off.\n")
	if name := languageName(req.Language); name != "English" {
		fmt.Fprintf(&b, "- Write the entire script in %s.\n", name)
	}

	b.WriteString("\nSources:\n")
	for i, item := range items {
		label := "NEWS"
		if item.Kind == briefing.KindDiscussion {
			label = "DISCUSSION"
		}
		fmt.Fprintf(&b, "[%d] %s | %s | %s\n%s\n\n", i+1, label, item.Title(), item.SourceLabel(), excerpt(item.Text(), 500))
	}

	return b.String()
}

// correctionPrompt builds the single re-prompt. Small misses ask for a
// revision of the existing draft; misses beyond the rewrite cutoff ask
// for a fresh script.
func (s *Synthesizer) correctionPrompt(original, draft string, words, target int) string {
	if deviation(words, target) > s.opts.RewriteCutoff {
		return original + fmt.Sprintf(
			"\nYour previous attempt was %d words against a target of %d. Discard it and write a completely new script that meets the target length.\n", words, target)
	}

	margin := int(float64(target) * s.opts.Tolerance)
	verb := "Shorten"
	if words < target {
		verb = "Extend"
	}
	return fmt.Sprintf(
		"Your draft is %d words; the target is %d words (between %d and %d). %s the script to fit while keeping the blank lines between stories and every bracketed source citation. Return the full corrected script.\n\nDraft:\n%s",
		words, target, target-margin, target+margin, verb, draft)
}

var (
	markerRe = regexp.MustCompile(`\[(\d+)\]`)
	blankRe  = regexp.MustCompile(`\n\s*\n+`)
)

// parse splits the model output into segments, pulling the bracketed
// source markers out of the spoken text. Markers referencing sources
// outside the corpus are dropped.
func (s *Synthesizer) parse(raw string, itemCount int) []briefing.Segment {
	text := stripFences(raw)
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var segments []briefing.Segment
	for _, block := range blankRe.Split(text, -1) {
		var sources []int
		spoken := markerRe.ReplaceAllStringFunc(block, func(m string) string {
			n, err := strconv.Atoi(m[1 : len(m)-1])
			if err == nil && n >= 1 && n <= itemCount && !contains(sources, n) {
				sources = append(sources, n)
			}
			return ""
		})
		spoken = strings.Join(strings.Fields(spoken), " ")
		if spoken == "" {
			continue
		}
		segments = append(segments, briefing.Segment{
			Index:   len(segments),
			Text:    spoken,
			Seconds: s.seconds(spoken),
			Sources: sources,
		})
	}
	return segments
}

func (s *Synthesizer) seconds(text string) float64 {
	return float64(len(strings.Fields(text))) / float64(s.opts.WordsPerMinute) * 60
}

func stripFences(raw string) string {
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func contains(nums []int, n int) bool {
	for _, v := range nums {
		if v == n {
			return true
		}
	}
	return false
}

// splitOversize rechunks segments longer than the provider limit at
// sentence boundaries. Chunks inherit the segment's sources.
func (s *Synthesizer) splitOversize(segments []briefing.Segment) []briefing.Segment {
	out := make([]briefing.Segment, 0, len(segments))
	for _, seg := range segments {
		if len(seg.Text) <= s.opts.MaxSegmentChars {
			out = append(out, seg)
			continue
		}
		for _, chunk := range chunkSentences(seg.Text, s.opts.MaxSegmentChars) {
			out = append(out, briefing.Segment{
				Text:    chunk,
				Seconds: s.seconds(chunk),
				Sources: seg.Sources,
			})
		}
	}
	for i := range out {
		out[i].Index = i
	}
	return out
}

// chunkSentences packs whole sentences into chunks under maxChars. A
// single sentence over the limit is wrapped at word boundaries.
func chunkSentences(text string, maxChars int) []string {
	var chunks []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}

	for _, sentence := range splitSentences(text) {
		if len(sentence) > maxChars {
			flush()
			chunks = append(chunks, wrapWords(sentence, maxChars)...)
			continue
		}
		if cur.Len() > 0 && cur.Len()+1+len(sentence) > maxChars {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(sentence)
	}
	flush()
	return chunks
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if (c == '.' || c == '!' || c == '?') && (i+1 == len(text) || text[i+1] == ' ') {
			if sentence := strings.TrimSpace(text[start : i+1]); sentence != "" {
				out = append(out, sentence)
			}
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

func wrapWords(sentence string, maxChars int) []string {
	var chunks []string
	var cur strings.Builder
	for _, word := range strings.Fields(sentence) {
		if cur.Len() > 0 && cur.Len()+1+len(word) > maxChars {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

func buildAttributions(segments []briefing.Segment, items []briefing.RankedItem) []briefing.Attribution {
	seen := make(map[int]bool)
	for _, seg := range segments {
		for _, n := range seg.Sources {
			seen[n] = true
		}
	}

	nums := make([]int, 0, len(seen))
	for n := range seen {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	out := make([]briefing.Attribution, 0, len(nums))
	for _, n := range nums {
		item := items[n-1]
		out = append(out, briefing.Attribution{
			Index:  n,
			Kind:   item.Kind,
			Title:  item.Title(),
			Source: item.SourceLabel(),
			URL:    item.SourceURL(),
		})
	}
	return out
}

func excerpt(text string, maxChars int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= maxChars {
		return text
	}
	cut := text[:maxChars]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}

var languageNames = map[string]string{
	"en": "English",
	"hi": "Hindi",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"pt": "Portuguese",
	"ru": "Russian",
	"zh": "Mandarin Chinese",
}

// languageName maps a BCP-47 tag to the name used in the prompt,
// falling back to the tag itself for unknown languages.
func languageName(tag string) string {
	base := strings.ToLower(tag)
	if i := strings.IndexAny(base, "-_"); i > 0 {
		base = base[:i]
	}
	if name, ok := languageNames[base]; ok {
		return name
	}
	return tag
}
