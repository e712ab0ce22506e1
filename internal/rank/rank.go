package rank

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Prathmesh00007/awwninja/internal/briefing"
)

// engagementNorm is the engagement level that saturates the score
const engagementNorm = 5000.0

// neutralEngagement is the engagement component for news items, which
// carry no vote or comment signal.
const neutralEngagement = 0.5

// Weights for the relevance score components. They should sum to 1.
type Weights struct {
	TopicMatch float64
	Recency    float64
	Engagement float64
}

// DefaultWeights favors topical relevance over freshness and buzz
func DefaultWeights() Weights {
	return Weights{TopicMatch: 0.5, Recency: 0.3, Engagement: 0.2}
}

// Options configures the ranker
type Options struct {
	Weights   Weights
	MaxItems  int  // corpus budget handed to the LLM
	NewsFirst bool // tie-break priority between sources
}

// Ranker merges, deduplicates, scores and truncates collector output
type Ranker struct {
	opts Options
}

// New creates a ranker, filling option defaults
func New(opts Options) *Ranker {
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights()
	}
	if opts.MaxItems == 0 {
		opts.MaxItems = 12
	}
	return &Ranker{opts: opts}
}

// Rank produces the ordered corpus for script synthesis. The result
// never contains two items with the same dedup key, covers every
// requested topic that has a matching item, and is capped at the
// configured corpus budget.
func (r *Ranker) Rank(req briefing.Request, articles []briefing.SourceArticle, threads []briefing.DiscussionThread) ([]briefing.RankedItem, error) {
	items := r.merge(articles, threads)
	if len(items) == 0 {
		return nil, fmt.Errorf("both collectors empty: %w", briefing.ErrNoContentAvailable)
	}

	now := time.Now()
	for i := range items {
		items[i].Score = r.score(req, items[i], now)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		pi, pj := items[i].PublishedAt(), items[j].PublishedAt()
		if !pi.Equal(pj) {
			return pi.After(pj)
		}
		if r.opts.NewsFirst {
			return items[i].Kind == briefing.KindNews && items[j].Kind != briefing.KindNews
		}
		return items[i].Kind == briefing.KindDiscussion && items[j].Kind != briefing.KindDiscussion
	})

	return r.truncate(req, items), nil
}

// merge unions the collector outputs, dropping near-duplicates. On a
// key collision the more engaged item wins, then the more recent.
func (r *Ranker) merge(articles []briefing.SourceArticle, threads []briefing.DiscussionThread) []briefing.RankedItem {
	byKey := make(map[string]briefing.RankedItem)
	var order []string

	add := func(item briefing.RankedItem) {
		existing, ok := byKey[item.DedupKey]
		if !ok {
			byKey[item.DedupKey] = item
			order = append(order, item.DedupKey)
			return
		}
		if engagement(item) > engagement(existing) {
			byKey[item.DedupKey] = item
			return
		}
		if engagement(item) == engagement(existing) && item.PublishedAt().After(existing.PublishedAt()) {
			byKey[item.DedupKey] = item
		}
	}

	for i := range articles {
		a := &articles[i]
		add(briefing.RankedItem{
			Kind:     briefing.KindNews,
			Article:  a,
			DedupKey: briefing.DedupKey(a.Title, a.Body),
		})
	}
	for i := range threads {
		t := &threads[i]
		add(briefing.RankedItem{
			Kind:     briefing.KindDiscussion,
			Thread:   t,
			DedupKey: briefing.DedupKey(t.Title, ""),
		})
	}

	items := make([]briefing.RankedItem, 0, len(byKey))
	for _, key := range order {
		items = append(items, byKey[key])
	}
	return items
}

func engagement(item briefing.RankedItem) float64 {
	if item.Kind == briefing.KindDiscussion && item.Thread != nil {
		return item.Thread.Engagement
	}
	return 0
}

// score computes the weighted relevance of one item, scaled by the
// request's source mix.
func (r *Ranker) score(req briefing.Request, item briefing.RankedItem, now time.Time) float64 {
	w := r.opts.Weights

	topicScore := topicOverlap(req.Topics, item)
	recencyScore := recencyDecay(item.PublishedAt(), now, req.Freshness)

	engagementScore := neutralEngagement
	if item.Kind == briefing.KindDiscussion {
		engagementScore = math.Log1p(engagement(item)) / math.Log1p(engagementNorm)
		if engagementScore > 1 {
			engagementScore = 1
		}
	}

	score := w.TopicMatch*topicScore + w.Recency*recencyScore + w.Engagement*engagementScore
	return score * mixFactor(req.Mix, item.Kind)
}

// topicOverlap returns the fraction of requested topics the item
// matches, or 1 for a general (topic-less) request.
func topicOverlap(topics []string, item briefing.RankedItem) float64 {
	if len(topics) == 0 {
		return 1
	}
	text := strings.ToLower(item.Title() + " " + item.Text())
	matched := 0
	for _, topic := range topics {
		if matchesTopic(text, topic) {
			matched++
		}
	}
	return float64(matched) / float64(len(topics))
}

// matchesTopic reports whether every significant word of the topic
// appears in the text. Short words only count when the topic has
// nothing longer.
func matchesTopic(textLower, topic string) bool {
	words := strings.Fields(strings.ToLower(topic))
	significant := words[:0]
	for _, word := range words {
		if len(word) > 2 {
			significant = append(significant, word)
		}
	}
	if len(significant) == 0 {
		significant = words
	}
	for _, word := range significant {
		if !strings.Contains(textLower, word) {
			return false
		}
	}
	return len(significant) > 0
}

// recencyDecay is linear over the freshness window: 1 at publication,
// 0 once the window has fully elapsed.
func recencyDecay(published, now time.Time, window time.Duration) float64 {
	if published.IsZero() || window <= 0 {
		return 0
	}
	age := now.Sub(published)
	if age <= 0 {
		return 1
	}
	if age >= window {
		return 0
	}
	return 1 - float64(age)/float64(window)
}

// mixFactor scales an item by the request's source weighting,
// normalized so the heavier source scores unscaled.
func mixFactor(mix briefing.SourceMix, kind briefing.ItemKind) float64 {
	heavier := mix.News
	if mix.Discussion > heavier {
		heavier = mix.Discussion
	}
	if heavier == 0 {
		return 1
	}
	if kind == briefing.KindNews {
		return mix.News / heavier
	}
	return mix.Discussion / heavier
}

// truncate caps the corpus at the budget while keeping at least one
// matching item per requested topic when one exists. Reserved items
// stay in score order.
func (r *Ranker) truncate(req briefing.Request, items []briefing.RankedItem) []briefing.RankedItem {
	if len(items) <= r.opts.MaxItems {
		return items
	}

	keep := make(map[int]bool)

	for _, topic := range req.Topics {
		if len(keep) >= r.opts.MaxItems {
			break
		}
		for idx, item := range items {
			if keep[idx] {
				continue
			}
			text := strings.ToLower(item.Title() + " " + item.Text())
			if matchesTopic(text, topic) {
				keep[idx] = true
				break
			}
		}
	}

	for idx := range items {
		if len(keep) >= r.opts.MaxItems {
			break
		}
		keep[idx] = true
	}

	out := make([]briefing.RankedItem, 0, r.opts.MaxItems)
	for idx, item := range items {
		if keep[idx] {
			out = append(out, item)
		}
	}
	return out
}
