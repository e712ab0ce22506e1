package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"math"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Prathmesh00007/awwninja/internal/briefing"
	"github.com/Prathmesh00007/awwninja/internal/fetch"
)

// feed represents a Google News RSS document
type feed struct {
	Items []feedItem `xml:"channel>item"`
}

// feedItem represents one RSS entry
type feedItem struct {
	Title       string     `xml:"title"`
	Link        string     `xml:"link"`
	Description string     `xml:"description"`
	PubDate     string     `xml:"pubDate"`
	Source      feedSource `xml:"source"`
	parsedDate  time.Time
}

type feedSource struct {
	URL  string `xml:"url,attr"`
	Name string `xml:",chardata"`
}

// Options configures the news collector
type Options struct {
	BaseURL      string        // feed endpoint, default Google News RSS
	Language     string        // hl parameter for the feed
	MaxPerTopic  int           // articles kept per topic
	MinBodyChars int           // below this an extraction counts as partial
	MaxBodyChars int           // extracted body cap
	UnitTimeout  time.Duration // budget for one article fetch incl. retries
	Concurrency  int           // parallel article fetches
	FetchTimeout time.Duration // per-request HTTP timeout
	Retry        fetch.RetryPolicy
}

// Collector gathers news articles for requested topics
type Collector struct {
	client *fetch.Client
	opts   Options
}

// NewCollector creates a news collector, filling option defaults
func NewCollector(opts Options) *Collector {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://news.google.com/rss"
	}
	if opts.Language == "" {
		opts.Language = "en-US"
	}
	if opts.MaxPerTopic == 0 {
		opts.MaxPerTopic = 4
	}
	if opts.MinBodyChars == 0 {
		opts.MinBodyChars = 300
	}
	if opts.MaxBodyChars == 0 {
		opts.MaxBodyChars = 4000
	}
	if opts.UnitTimeout == 0 {
		opts.UnitTimeout = 25 * time.Second
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = 4
	}
	if opts.FetchTimeout == 0 {
		opts.FetchTimeout = 10 * time.Second
	}

	return &Collector{
		client: fetch.NewClient(opts.FetchTimeout, "awwninja/1.0", opts.Retry),
		opts:   opts,
	}
}

// FetchArticles returns usable articles for the topics within the
// freshness window. Individual article failures are absorbed; the error
// is briefing.ErrSourceUnavailable only when nothing usable remains.
func (c *Collector) FetchArticles(ctx context.Context, topics []string, window time.Duration) ([]briefing.SourceArticle, error) {
	queries := topics
	if len(queries) == 0 {
		queries = []string{""}
	}

	entries, feedErrors := c.fetchFeeds(ctx, queries, window)
	if len(entries) == 0 {
		if len(feedErrors) > 0 {
			return nil, fmt.Errorf("all news feeds failed (%d errors, first: %v): %w",
				len(feedErrors), feedErrors[0], briefing.ErrSourceUnavailable)
		}
		return nil, fmt.Errorf("no articles within freshness window: %w", briefing.ErrSourceUnavailable)
	}

	articles := c.extractAll(ctx, entries)

	usable := articles[:0]
	for _, a := range articles {
		if a.Status != briefing.ExtractionFailed {
			usable = append(usable, a)
		}
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("no article bodies extractable: %w", briefing.ErrSourceUnavailable)
	}

	return usable, nil
}

// fetchFeeds queries one feed per topic concurrently and returns the
// deduplicated entries that fall inside the freshness window.
func (c *Collector) fetchFeeds(ctx context.Context, queries []string, window time.Duration) ([]feedItem, []error) {
	type result struct {
		items []feedItem
		err   error
	}

	results := make(chan result, len(queries))
	for _, query := range queries {
		go func(q string) {
			items, err := c.fetchFeed(ctx, q, window)
			results <- result{items: items, err: err}
		}(query)
	}

	var entries []feedItem
	var errs []error
	seen := make(map[string]bool)

	for i := 0; i < len(queries); i++ {
		res := <-results
		if res.err != nil {
			log.Printf("News feed error: %v", res.err)
			errs = append(errs, res.err)
			continue
		}
		for _, item := range res.items {
			if item.Link == "" || seen[item.Link] {
				continue
			}
			seen[item.Link] = true
			entries = append(entries, item)
		}
	}

	return entries, errs
}

// fetchFeed fetches and parses one topic's feed
func (c *Collector) fetchFeed(ctx context.Context, topic string, window time.Duration) ([]feedItem, error) {
	body, err := c.client.Get(ctx, c.feedURL(topic, window))
	if err != nil {
		return nil, fmt.Errorf("fetching feed for %q: %w", topic, err)
	}

	var f feed
	if err := xml.Unmarshal(body, &f); err != nil {
		return nil, fmt.Errorf("parsing feed for %q: %w", topic, err)
	}

	cutoff := time.Now().Add(-window)
	var items []feedItem
	for _, item := range f.Items {
		parsed, err := parseFeedDate(item.PubDate)
		if err != nil || parsed.Before(cutoff) {
			continue
		}
		item.parsedDate = parsed
		items = append(items, item)
		if len(items) >= c.opts.MaxPerTopic {
			break
		}
	}

	return items, nil
}

// feedURL builds the search feed URL for a topic, or the top-stories
// feed when the topic is empty. The when: qualifier narrows results to
// the freshness window server-side.
func (c *Collector) feedURL(topic string, window time.Duration) string {
	params := url.Values{}
	params.Set("hl", c.opts.Language)
	params.Set("gl", "US")
	params.Set("ceid", "US:en")

	if topic == "" {
		return c.opts.BaseURL + "?" + params.Encode()
	}

	hours := int(math.Ceil(window.Hours()))
	if hours < 1 {
		hours = 1
	}
	params.Set("q", fmt.Sprintf("%s when:%dh", topic, hours))
	return c.opts.BaseURL + "/search?" + params.Encode()
}

// extractAll fetches article pages concurrently and tags each with an
// extraction status. In-flight fetches finish on cancellation; no new
// fetches start once the context is done.
func (c *Collector) extractAll(ctx context.Context, entries []feedItem) []briefing.SourceArticle {
	articles := make([]briefing.SourceArticle, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

	for i, entry := range entries {
		if gctx.Err() != nil {
			break
		}
		i, entry := i, entry
		g.Go(func() error {
			unitCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), c.opts.UnitTimeout)
			defer cancel()
			articles[i] = c.extractArticle(unitCtx, entry)
			return nil
		})
	}
	g.Wait()

	var out []briefing.SourceArticle
	for _, a := range articles {
		if a.URL != "" {
			out = append(out, a)
		}
	}
	return out
}

// extractArticle fetches one article page and recovers its body text.
// A page that cannot be fetched or parsed degrades to the headline and
// feed description (partial) before being marked failed.
func (c *Collector) extractArticle(ctx context.Context, entry feedItem) briefing.SourceArticle {
	article := briefing.SourceArticle{
		URL:         entry.Link,
		Title:       entry.Title,
		PublishedAt: entry.parsedDate,
		Outlet:      entry.Source.Name,
	}

	page, err := c.client.Get(ctx, entry.Link)
	if err != nil {
		log.Printf("Article fetch failed for %s: %v", entry.Link, err)
		return c.degrade(article, entry)
	}

	body, err := ExtractBody(page, c.opts.MaxBodyChars)
	if err != nil || body == "" {
		return c.degrade(article, entry)
	}

	article.Body = body
	if len(body) >= c.opts.MinBodyChars {
		article.Status = briefing.ExtractionOK
	} else {
		article.Status = briefing.ExtractionPartial
	}
	return article
}

// degrade falls back to headline plus feed description, or failed
func (c *Collector) degrade(article briefing.SourceArticle, entry feedItem) briefing.SourceArticle {
	summary := StripTags(entry.Description)
	if article.Title == "" && summary == "" {
		article.Status = briefing.ExtractionFailed
		return article
	}
	article.Body = summary
	article.Status = briefing.ExtractionPartial
	return article
}

// parseFeedDate parses the date formats Google News feeds use
func parseFeedDate(dateStr string) (time.Time, error) {
	formats := []string{
		time.RFC1123Z,
		time.RFC1123,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		"2006-01-02T15:04:05Z07:00",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}
