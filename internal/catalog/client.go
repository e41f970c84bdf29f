// Package catalog looks spines up in Google Books
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	books "google.golang.org/api/books/v1"
	"google.golang.org/api/googleapi/transport"
	"google.golang.org/api/option"

	"github.com/lehigh-university-libraries/shelfscanner/internal/config"
	"github.com/lehigh-university-libraries/shelfscanner/internal/metrics"
	"github.com/lehigh-university-libraries/shelfscanner/internal/models"
)

// MissingAPIKeyMessage tells the operator how to enable lookups
const MissingAPIKeyMessage = "Google Books API key is not configured. Set GOOGLE_BOOKS_API_KEY in secrets/.env."

// ErrMissingAPIKey is returned by Search when no key is configured
var ErrMissingAPIKey = errors.New("missing_api_key: " + MissingAPIKeyMessage)

const (
	breakerName = "google-books"

	// DescriptionSnippetLength is the rune limit of LookupItem.DescriptionSnippet
	DescriptionSnippetLength = 280
)

// Cache stores lookup results by query
type Cache interface {
	Get(key string) (models.SearchResult, bool)
	Set(key string, result models.SearchResult)
}

// Options configure a Client
type Options struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxResults int
	Cache      Cache
}

// Client queries the Google Books volumes endpoint
type Client struct {
	apiKey     string
	maxResults int
	service    *books.Service
	breaker    *gobreaker.CircuitBreaker[*books.Volumes]
	cache      Cache
}

// New builds a client. A configured key is attached to every request by
// the HTTP transport.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}

	apiKey := strings.TrimSpace(opts.APIKey)
	httpClient := &http.Client{Timeout: opts.Timeout}
	if apiKey != "" {
		httpClient.Transport = &transport.APIKey{Key: apiKey}
	}

	clientOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.BaseURL))
	}

	service, err := books.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create books service: %w", err)
	}

	metrics.SetBreakerState(breakerName, 0)
	breaker := gobreaker.NewCircuitBreaker[*books.Volumes](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a caller that gave up says nothing about the health of the API
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			metrics.SetBreakerState(name, stateValue(to))
		},
	})

	return &Client{
		apiKey:     apiKey,
		maxResults: opts.MaxResults,
		service:    service,
		breaker:    breaker,
		cache:      opts.Cache,
	}, nil
}

// NewFromConfig builds a client from the lookup settings
func NewFromConfig(ctx context.Context, cfg *config.Config, cache Cache) (*Client, error) {
	return New(ctx, Options{
		APIKey:     cfg.Lookup.APIKey,
		BaseURL:    cfg.Lookup.BaseURL,
		Timeout:    cfg.Lookup.Timeout,
		MaxResults: cfg.Lookup.MaxResults,
		Cache:      cache,
	})
}

// HasAPIKey reports whether a non-blank key is configured
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

// BuildQuery builds an intitle/inauthor query; empty when both parts are blank
func BuildQuery(title, author string) string {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	switch {
	case title != "" && author != "":
		return fmt.Sprintf(`intitle:"%s" inauthor:"%s"`, title, author)
	case title != "":
		return fmt.Sprintf(`intitle:"%s"`, title)
	case author != "":
		return fmt.Sprintf(`inauthor:"%s"`, author)
	default:
		return ""
	}
}

// Lookup searches for a title and optional author using the configured
// result limit. Both blank returns an empty result without a request.
func (c *Client) Lookup(ctx context.Context, title, author string) (models.SearchResult, error) {
	query := BuildQuery(title, author)
	if query == "" {
		return models.SearchResult{Items: []models.LookupItem{}}, nil
	}

	key := fmt.Sprintf("%d|%s", c.maxResults, query)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			metrics.RecordLookup("cached")
			return cached, nil
		}
	}

	result, err := c.search(ctx, query, c.maxResults)
	if err != nil {
		return models.SearchResult{}, err
	}
	if c.cache != nil {
		c.cache.Set(key, result)
	}
	return result, nil
}

// Search runs a free-text query
func (c *Client) Search(ctx context.Context, query string, maxResults int) (models.SearchResult, error) {
	if !c.HasAPIKey() {
		return models.SearchResult{}, ErrMissingAPIKey
	}
	return c.search(ctx, query, maxResults)
}

func (c *Client) search(ctx context.Context, query string, maxResults int) (models.SearchResult, error) {
	volumes, err := c.breaker.Execute(func() (*books.Volumes, error) {
		return c.service.Volumes.List(query).
			PrintType("books").
			MaxResults(int64(maxResults)).
			Context(ctx).
			Do()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordLookup("rejected")
		} else {
			metrics.RecordLookup("error")
		}
		return models.SearchResult{}, fmt.Errorf("google books search failed: %w", err)
	}

	result := models.SearchResult{
		TotalItems: int(volumes.TotalItems),
		Items:      make([]models.LookupItem, 0, len(volumes.Items)),
	}
	for _, v := range volumes.Items {
		if v == nil {
			continue
		}
		result.Items = append(result.Items, Compact(v))
	}

	if len(result.Items) > 0 {
		metrics.RecordLookup("hit")
	} else {
		metrics.RecordLookup("miss")
	}
	return result, nil
}

// Compact reduces a volume to the fields the scanner shows
func Compact(v *books.Volume) models.LookupItem {
	item := models.LookupItem{
		ID:         v.Id,
		Authors:    []string{},
		Categories: []string{},
	}

	info := v.VolumeInfo
	if info == nil {
		return item
	}

	item.Title = optionalString(info.Title)
	if info.Authors != nil {
		item.Authors = info.Authors
	}
	item.PublishedDate = optionalString(info.PublishedDate)
	if info.Categories != nil {
		item.Categories = info.Categories
	}
	if info.AverageRating != 0 {
		rating := info.AverageRating
		item.AverageRating = &rating
	}
	if info.RatingsCount != 0 {
		count := info.RatingsCount
		item.RatingsCount = &count
	}
	if info.PageCount != 0 {
		pages := info.PageCount
		item.PageCount = &pages
	}
	if info.ImageLinks != nil {
		item.ImageLinks.Thumbnail = optionalString(info.ImageLinks.Thumbnail)
		item.ImageLinks.SmallThumbnail = optionalString(info.ImageLinks.SmallThumbnail)
	}
	item.Publisher = optionalString(info.Publisher)
	item.InfoLink = optionalString(info.InfoLink)
	item.PreviewLink = optionalString(info.PreviewLink)
	item.DescriptionSnippet = snippet(info.Description, DescriptionSnippetLength)
	return item
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func snippet(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
