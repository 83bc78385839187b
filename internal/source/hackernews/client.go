package hackernews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"hn_newsletter/internal/domain"
)

const (
	SourceID   = "hackernews"
	SourceName = "Hacker News"

	// Discussion page used when an item has no external URL.
	pageURL = "https://news.ycombinator.com/item?id="
)

var (
	// ErrUnavailable marks network/transport failures talking to the API.
	ErrUnavailable = errors.New("story source unavailable")
	// ErrMalformed marks responses that could not be decoded.
	ErrMalformed = errors.New("story source returned malformed response")
)

// Config holds Hacker News API client configuration.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	Workers        int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client fetches the ranked top-stories list from the Hacker News API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	workers        int
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a new Hacker News client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.MaxAttempts < 1 {
		// The retry loop must run at least once or the list fetch would
		// report a nil error as its cause.
		cfg.MaxAttempts = 1
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		workers:        cfg.Workers,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", SourceID),
	}
}

// ID returns the source identifier.
func (c *Client) ID() string {
	return SourceID
}

// Name returns human-readable name.
func (c *Client) Name() string {
	return SourceName
}

// TopStories fetches the ranked story ID list and resolves metadata for the
// first limit entries. Items that fail to resolve are dropped and the
// survivors keep their relative order, re-ranked 1..n.
func (c *Client) TopStories(ctx context.Context, limit int) ([]domain.Story, error) {
	ids, err := c.fetchRankedIDs(ctx)
	if err != nil {
		return nil, err
	}
	if limit < len(ids) {
		ids = ids[:limit]
	}

	c.logger.Debug("fetched ranked id list", "ids", len(ids), "limit", limit)

	resolved := make([]*domain.Story, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, id := range ids {
		g.Go(func() error {
			story, err := c.fetchItem(gctx, id)
			if err != nil {
				// Recoverable per item: the story is dropped, the rest
				// of the list still goes out.
				c.logger.Warn("failed to resolve story", "id", id, "error", err)
				return nil
			}
			resolved[i] = story
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stories := make([]domain.Story, 0, len(resolved))
	for _, s := range resolved {
		if s == nil {
			continue
		}
		s.Rank = len(stories) + 1
		stories = append(stories, *s)
	}

	return stories, nil
}

// fetchRankedIDs retries with backoff: without the list the whole run is dead.
func (c *Client) fetchRankedIDs(ctx context.Context) ([]int64, error) {
	url := c.baseURL + "/topstories.json"

	var ids []int64
	var err error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		ids, err = c.doListRequest(ctx, url)
		if err == nil {
			return ids, nil
		}
		if errors.Is(err, ErrMalformed) {
			// A broken body will not fix itself on retry.
			return nil, err
		}
		if attempt == c.maxAttempts {
			break
		}

		backoff := c.calculateBackoff(attempt)
		c.logger.Warn("top stories request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", c.maxAttempts, err)
}

func (c *Client) doListRequest(ctx context.Context, url string) ([]int64, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var ids []int64
	if err := json.NewDecoder(body).Decode(&ids); err != nil {
		return nil, fmt.Errorf("%w: decode id list: %v", ErrMalformed, err)
	}
	return ids, nil
}

func (c *Client) fetchItem(ctx context.Context, id int64) (*domain.Story, error) {
	url := fmt.Sprintf("%s/item/%d.json", c.baseURL, id)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	// The API answers "null" for dead or missing items.
	var item *Item
	if err := json.NewDecoder(body).Decode(&item); err != nil {
		return nil, fmt.Errorf("%w: decode item %d: %v", ErrMalformed, id, err)
	}
	if item == nil || item.Title == "" {
		return nil, fmt.Errorf("item %d is missing or empty", id)
	}

	return c.transform(item), nil
}

func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "HNNewsletter/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	return resp.Body, nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}

func (c *Client) transform(item *Item) *domain.Story {
	url := pageURL + fmt.Sprint(item.ID)
	if item.URL != nil && *item.URL != "" {
		url = *item.URL
	}

	return &domain.Story{
		ID:          item.ID,
		By:          item.By,
		Title:       item.Title,
		URL:         url,
		Score:       item.Score,
		SubmittedAt: time.Unix(item.Time, 0).UTC(),
	}
}
