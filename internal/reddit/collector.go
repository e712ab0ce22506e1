package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Prathmesh00007/awwninja/internal/briefing"
	"github.com/Prathmesh00007/awwninja/internal/fetch"
)

// browserUserAgent is required for Reddit's public JSON endpoints,
// which reject default Go client agents.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0"

// listing represents a Reddit API listing of posts
type listing struct {
	Data struct {
		Children []struct {
			Kind string   `json:"kind"`
			Data postData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type postData struct {
	Subreddit   string  `json:"subreddit"`
	Title       string  `json:"title"`
	Permalink   string  `json:"permalink"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Stickied    bool    `json:"stickied"`
}

// commentListing represents one element of a comment page response
type commentListing struct {
	Data struct {
		Children []struct {
			Kind string `json:"kind"`
			Data struct {
				Body  string `json:"body"`
				Score int    `json:"score"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Options configures the discussion collector
type Options struct {
	BaseURL      string        // default https://www.reddit.com
	MaxPosts     int           // threads kept per topic
	MaxComments  int           // top-level comments kept per thread
	UnitTimeout  time.Duration // budget for one comment fetch incl. retries
	Concurrency  int           // parallel comment fetches
	FetchTimeout time.Duration // per-request HTTP timeout
	Retry        fetch.RetryPolicy
}

// Collector gathers discussion threads for requested topics
type Collector struct {
	client *fetch.Client
	opts   Options
}

// NewCollector creates a discussion collector, filling option defaults
func NewCollector(opts Options) *Collector {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.reddit.com"
	}
	if opts.MaxPosts == 0 {
		opts.MaxPosts = 4
	}
	if opts.MaxComments == 0 {
		opts.MaxComments = 5
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
		client: fetch.NewClient(opts.FetchTimeout, browserUserAgent, opts.Retry),
		opts:   opts,
	}
}

// FetchThreads returns discussion threads for the topics within the
// freshness window. Comment fetch failures degrade to title-only
// threads; the error is briefing.ErrSourceUnavailable only when no
// thread could be gathered at all.
func (c *Collector) FetchThreads(ctx context.Context, topics []string, window time.Duration) ([]briefing.DiscussionThread, error) {
	posts, searchErrors := c.searchAll(ctx, topics, window)
	if len(posts) == 0 {
		if len(searchErrors) > 0 {
			return nil, fmt.Errorf("all discussion searches failed (%d errors, first: %v): %w",
				len(searchErrors), searchErrors[0], briefing.ErrSourceUnavailable)
		}
		return nil, fmt.Errorf("no threads within freshness window: %w", briefing.ErrSourceUnavailable)
	}

	threads := make([]briefing.DiscussionThread, len(posts))
	capturedAt := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

	for i, post := range posts {
		if gctx.Err() != nil {
			break
		}
		i, post := i, post
		g.Go(func() error {
			unitCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), c.opts.UnitTimeout)
			defer cancel()

			comments, err := c.fetchComments(unitCtx, post.Permalink)
			if err != nil {
				log.Printf("Reddit comments fetch failed for %s: %v", post.Permalink, err)
			}

			threads[i] = briefing.DiscussionThread{
				Subreddit:   post.Subreddit,
				Title:       post.Title,
				Permalink:   c.opts.BaseURL + post.Permalink,
				Comments:    comments,
				Score:       post.Score,
				NumComments: post.NumComments,
				Engagement:  float64(post.Score) + 2*float64(post.NumComments),
				CreatedAt:   time.Unix(int64(post.CreatedUTC), 0),
				CapturedAt:  capturedAt,
			}
			return nil
		})
	}
	g.Wait()

	var out []briefing.DiscussionThread
	for _, t := range threads {
		if t.Title != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no usable threads gathered: %w", briefing.ErrSourceUnavailable)
	}

	return out, nil
}

// searchAll runs one top-post search per topic concurrently and merges
// the results, deduplicated by permalink.
func (c *Collector) searchAll(ctx context.Context, topics []string, window time.Duration) ([]postData, []error) {
	queries := topics
	if len(queries) == 0 {
		queries = []string{""}
	}

	type result struct {
		posts []postData
		err   error
	}

	results := make(chan result, len(queries))
	for _, query := range queries {
		go func(q string) {
			posts, err := c.search(ctx, q, window)
			results <- result{posts: posts, err: err}
		}(query)
	}

	var posts []postData
	var errs []error
	seen := make(map[string]bool)

	for i := 0; i < len(queries); i++ {
		res := <-results
		if res.err != nil {
			log.Printf("Reddit search error: %v", res.err)
			errs = append(errs, res.err)
			continue
		}
		for _, p := range res.posts {
			if p.Permalink == "" || seen[p.Permalink] {
				continue
			}
			seen[p.Permalink] = true
			posts = append(posts, p)
		}
	}

	return posts, errs
}

// search fetches top posts for one topic, or the default news
// subreddits when the topic is empty.
func (c *Collector) search(ctx context.Context, topic string, window time.Duration) ([]postData, error) {
	var endpoint string
	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", c.opts.MaxPosts*2))
	params.Set("t", freshnessBucket(window))

	if topic == "" {
		endpoint = c.opts.BaseURL + "/r/news+worldnews/top.json?" + params.Encode()
	} else {
		params.Set("q", topic)
		params.Set("sort", "top")
		endpoint = c.opts.BaseURL + "/search.json?" + params.Encode()
	}

	body, err := c.client.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", topic, err)
	}

	var page listing
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parsing search response for %q: %w", topic, err)
	}

	cutoff := time.Now().Add(-window)
	var posts []postData
	for _, child := range page.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		post := child.Data
		if post.Stickied || post.Title == "" {
			continue
		}
		if time.Unix(int64(post.CreatedUTC), 0).Before(cutoff) {
			continue
		}
		posts = append(posts, post)
		if len(posts) >= c.opts.MaxPosts {
			break
		}
	}

	return posts, nil
}

// fetchComments pulls the top-level comments for a post, skipping
// deleted and removed bodies. The first listing in the response is the
// post itself.
func (c *Collector) fetchComments(ctx context.Context, permalink string) ([]briefing.Comment, error) {
	jsonURL := fmt.Sprintf("%s%s.json?sort=top&limit=%d", c.opts.BaseURL, permalink, c.opts.MaxComments*4)

	body, err := c.client.Get(ctx, jsonURL)
	if err != nil {
		return nil, fmt.Errorf("fetching comments: %w", err)
	}

	var listings []commentListing
	if err := json.Unmarshal(body, &listings); err != nil {
		return nil, fmt.Errorf("parsing comments response: %w", err)
	}
	if len(listings) < 2 {
		return nil, fmt.Errorf("unexpected comments response structure")
	}

	var comments []briefing.Comment
	for _, child := range listings[1].Data.Children {
		if child.Kind != "t1" {
			continue
		}
		body := child.Data.Body
		if body == "" || body == "[deleted]" || body == "[removed]" {
			continue
		}
		comments = append(comments, briefing.Comment{Body: body, Score: child.Data.Score})
	}

	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].Score > comments[j].Score
	})
	if len(comments) > c.opts.MaxComments {
		comments = comments[:c.opts.MaxComments]
	}

	return comments, nil
}

// freshnessBucket maps a window to Reddit's coarse time filter
func freshnessBucket(window time.Duration) string {
	switch {
	case window <= time.Hour:
		return "hour"
	case window <= 24*time.Hour:
		return "day"
	case window <= 7*24*time.Hour:
		return "week"
	case window <= 31*24*time.Hour:
		return "month"
	default:
		return "year"
	}
}
