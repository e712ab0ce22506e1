package briefing

import "time"

// Segment is one narration unit of a synthesized script, rendered as a
// single TTS call. Sources holds the 1-based corpus indices it cites.
type Segment struct {
	Index   int     `json:"index"`
	Text    string  `json:"text"`
	Seconds float64 `json:"seconds"`
	Sources []int   `json:"sources,omitempty"`
}

// Script is the ordered narration produced for one request
type Script struct {
	Segments     []Segment `json:"segments"`
	TotalSeconds float64   `json:"total_seconds"`
	WordCount    int       `json:"word_count"`
	Language     string    `json:"language"`
}

// Text joins all segments into the full script body
func (s *Script) Text() string {
	out := ""
	for i, seg := range s.Segments {
		if i > 0 {
			out += "\n\n"
		}
		out += seg.Text
	}
	return out
}

// AudioSegment is the rendered audio for one script segment
type AudioSegment struct {
	Index    int     `json:"index"`
	Provider string  `json:"provider"`
	Seconds  float64 `json:"seconds"`
	Bytes    int     `json:"bytes"`
}

// RenderedAudio is the stitched output of rendering a full script with
// one provider and one voice throughout.
type RenderedAudio struct {
	Data     []byte         `json:"-"`
	Seconds  float64        `json:"seconds"`
	Provider string         `json:"provider"`
	Voice    string         `json:"voice"`
	Segments []AudioSegment `json:"segments"`
}

// Attribution links briefing content back to where it came from
type Attribution struct {
	Index  int      `json:"index"`
	Kind   ItemKind `json:"kind"`
	Title  string   `json:"title"`
	Source string   `json:"source"`
	URL    string   `json:"url"`
}

// FinalBriefing is the finished artifact for one request fingerprint.
// Immutable once produced; Audio is excluded from JSON so the struct
// doubles as the sidecar metadata record.
type FinalBriefing struct {
	Fingerprint     string        `json:"fingerprint"`
	Topics          []string      `json:"topics"`
	Language        string        `json:"language"`
	Provider        string        `json:"provider"`
	Voice           string        `json:"voice"`
	Audio           []byte        `json:"-"`
	AudioFile       string        `json:"audio_file,omitempty"`
	DurationSeconds float64       `json:"duration_seconds"`
	TargetSeconds   int           `json:"target_seconds"`
	Script          string        `json:"script"`
	Attributions    []Attribution `json:"attributions"`
	Warnings        []string      `json:"warnings,omitempty"`
	ProcessingMS    int64         `json:"processing_ms"`
	CreatedAt       time.Time     `json:"created_at"`
	ExpiresAt       time.Time     `json:"expires_at"`
}

// Expired reports whether the briefing is past its freshness-derived expiry
func (b *FinalBriefing) Expired(now time.Time) bool {
	return now.After(b.ExpiresAt)
}

// DeviationPercent returns how far the rendered duration landed from the
// requested duration, as a percentage of the target.
func (b *FinalBriefing) DeviationPercent() float64 {
	if b.TargetSeconds == 0 {
		return 0
	}
	diff := b.DurationSeconds - float64(b.TargetSeconds)
	if diff < 0 {
		diff = -diff
	}
	return diff / float64(b.TargetSeconds) * 100
}
