package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-demo/watchroom/internal/config"
	"github.com/go-demo/watchroom/internal/pkg/metrics"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

var (
	ErrItemNotFound = errors.New("catalog item not found")
	ErrDisabled     = errors.New("catalog lookups are not configured")
)

// Item is the subset of a catalog title a room needs.
type Item struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	PosterPath string `json:"poster_path,omitempty"`
}

// Lookup resolves a catalog id to an item
type Lookup interface {
	Lookup(ctx context.Context, id int64) (*Item, error)
}

// Client queries the TMDb movie endpoint behind a circuit breaker.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*Item]
	logger  *zap.Logger
}

func NewClient(cfg *config.CatalogConfig, logger *zap.Logger) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[*Item](gobreaker.Settings{
		Name:        "tmdb",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// an unknown id is a valid answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrItemNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Catalog circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return c
}

type movieResponse struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Name       string `json:"name"`
	PosterPath string `json:"poster_path"`
}

// Lookup fetches a movie by id
func (c *Client) Lookup(ctx context.Context, id int64) (*Item, error) {
	if c.apiKey == "" {
		return nil, ErrDisabled
	}

	item, err := c.breaker.Execute(func() (*Item, error) {
		return c.fetch(ctx, id)
	})
	switch {
	case err == nil:
		metrics.IncCatalogLookup("hit")
	case errors.Is(err, ErrItemNotFound):
		metrics.IncCatalogLookup("not_found")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.IncCatalogLookup("rejected")
	default:
		metrics.IncCatalogLookup("error")
	}
	return item, err
}

func (c *Client) fetch(ctx context.Context, id int64) (*Item, error) {
	endpoint := fmt.Sprintf("%s/movie/%d?api_key=%s", c.baseURL, id, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrItemNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("TMDb API error %d", resp.StatusCode)
	}

	var body movieResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	title := body.Title
	if title == "" {
		title = body.Name
	}
	return &Item{ID: id, Title: title, PosterPath: body.PosterPath}, nil
}
