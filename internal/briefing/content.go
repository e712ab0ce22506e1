package briefing

import (
	"crypto/md5"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ExtractionStatus tags how much of an article body was recovered
type ExtractionStatus string

const (
	ExtractionOK      ExtractionStatus = "ok"
	ExtractionPartial ExtractionStatus = "partial"
	ExtractionFailed  ExtractionStatus = "failed"
)

// SourceArticle is one news article gathered by the source collector
type SourceArticle struct {
	URL         string           `json:"url"`
	Title       string           `json:"title"`
	Body        string           `json:"body"`
	PublishedAt time.Time        `json:"published_at"`
	Outlet      string           `json:"outlet"`
	Status      ExtractionStatus `json:"status"`
}

// Comment is one top-level comment on a discussion thread
type Comment struct {
	Body  string `json:"body"`
	Score int    `json:"score"`
}

// DiscussionThread is one thread gathered by the discussion collector.
// Comments are ordered by score, highest first.
type DiscussionThread struct {
	Subreddit   string    `json:"subreddit"`
	Title       string    `json:"title"`
	Permalink   string    `json:"permalink"`
	Comments    []Comment `json:"comments"`
	Score       int       `json:"score"`
	NumComments int       `json:"num_comments"`
	Engagement  float64   `json:"engagement"`
	CreatedAt   time.Time `json:"created_at"`
	CapturedAt  time.Time `json:"captured_at"`
}

// ItemKind distinguishes the two content sources
type ItemKind string

const (
	KindNews       ItemKind = "news"
	KindDiscussion ItemKind = "discussion"
)

// RankedItem wraps one article or thread with its relevance score and
// dedup key. Exactly one of Article/Thread is set, matching Kind.
type RankedItem struct {
	Kind     ItemKind          `json:"kind"`
	Article  *SourceArticle    `json:"article,omitempty"`
	Thread   *DiscussionThread `json:"thread,omitempty"`
	Score    float64           `json:"score"`
	DedupKey string            `json:"dedup_key"`
}

// Title returns the item's headline
func (r RankedItem) Title() string {
	if r.Kind == KindNews && r.Article != nil {
		return r.Article.Title
	}
	if r.Thread != nil {
		return r.Thread.Title
	}
	return ""
}

// Text returns the item's full readable text for scoring and prompting
func (r RankedItem) Text() string {
	if r.Kind == KindNews && r.Article != nil {
		return r.Article.Body
	}
	if r.Thread != nil {
		var b strings.Builder
		for _, c := range r.Thread.Comments {
			b.WriteString(c.Body)
			b.WriteString(" ")
		}
		return b.String()
	}
	return ""
}

// PublishedAt returns when the underlying content was created
func (r RankedItem) PublishedAt() time.Time {
	if r.Kind == KindNews && r.Article != nil {
		return r.Article.PublishedAt
	}
	if r.Thread != nil {
		return r.Thread.CreatedAt
	}
	return time.Time{}
}

// SourceLabel returns the outlet or subreddit for attribution
func (r RankedItem) SourceLabel() string {
	if r.Kind == KindNews && r.Article != nil {
		return r.Article.Outlet
	}
	if r.Thread != nil {
		return "r/" + r.Thread.Subreddit
	}
	return ""
}

// SourceURL returns the item's canonical link
func (r RankedItem) SourceURL() string {
	if r.Kind == KindNews && r.Article != nil {
		return r.Article.URL
	}
	if r.Thread != nil {
		return r.Thread.Permalink
	}
	return ""
}

// DedupKey derives a content-hash key from a title and leading content.
// Near-duplicate items across sources normalize to the same key.
func DedupKey(title, content string) string {
	text := normalizeText(title)
	if text == "" {
		text = normalizeText(firstRunes(content, 200))
	}
	hash := md5.Sum([]byte(text))
	return fmt.Sprintf("item:%x", hash)
}

// normalizeText lowercases, strips punctuation and collapses whitespace
func normalizeText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
