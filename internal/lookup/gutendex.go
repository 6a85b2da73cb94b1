// Package lookup resolves book titles to catalogue metadata.
//
// The resolver asks the Gutendex API first, falls back to the static book
// table from configuration, and caches found results per instance. A title
// that resolves nowhere yields Found=false; lookup failures never abort a run.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/listenupapp/moments-pipeline/internal/domain"
	"github.com/listenupapp/moments-pipeline/internal/id"
	"github.com/listenupapp/moments-pipeline/internal/logger"
	"github.com/listenupapp/moments-pipeline/internal/normalize"
	"github.com/listenupapp/moments-pipeline/internal/ratelimit"
)

const (
	defaultBurst = 1
	userAgent    = "moments-pipeline/1.0"
)

// Config holds catalogue service settings.
type Config struct {
	Enabled           bool          `yaml:"enabled"`
	APIBaseURL        string        `yaml:"api_base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	CacheResults      bool          `yaml:"cache_results"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// DefaultConfig returns the public Gutendex settings.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		APIBaseURL:        "https://gutendex.com/books",
		Timeout:           10 * time.Second,
		CacheResults:      true,
		MaxAttempts:       3,
		RetryDelay:        2 * time.Second,
		RequestsPerSecond: 2,
	}
}

// BookEntry is one row of the static book table.
type BookEntry struct {
	Title       string `yaml:"book_title"`
	GutenbergID int    `yaml:"gutenberg_id"`
	Author      string `yaml:"author"`
}

// Resolver looks up book metadata. Safe for concurrent use.
type Resolver struct {
	cfg      Config
	http     *http.Client
	limiter  *ratelimit.KeyedRateLimiter
	cache    *SyncMap[string, domain.BookMetadata]
	fallback map[string]BookEntry
	logger   *slog.Logger
}

// New creates a resolver. books is the static fallback table.
func New(cfg Config, books []BookEntry, log *slog.Logger) *Resolver {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	fallback := make(map[string]BookEntry, len(books))
	for _, b := range books {
		fallback[normalize.Title(b.Title)] = b
	}
	return &Resolver{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  ratelimit.New(cfg.RequestsPerSecond, defaultBurst),
		cache:    NewSyncMap[string, domain.BookMetadata](),
		fallback: fallback,
		logger:   logger.OrDiscard(log),
	}
}

// ResolveBook returns metadata for title: cache, then API, then the static
// table. Only a cancelled context produces an error.
func (r *Resolver) ResolveBook(ctx context.Context, title string) (domain.BookMetadata, error) {
	key := normalize.Title(title)

	if r.cfg.CacheResults {
		if md, ok := r.cache.Load(key); ok {
			r.logger.Debug("metadata cache hit", "title", title)
			md.Source = domain.SourceCache
			return md, nil
		}
	}

	md := notFound(title)
	if r.cfg.Enabled {
		var err error
		md, err = r.fetch(ctx, title)
		if err != nil {
			if ctx.Err() != nil {
				return domain.BookMetadata{}, ctx.Err()
			}
			r.logger.Warn("metadata lookup failed, trying static table", "title", title, "error", err)
		}
	}

	if !md.Found {
		md = r.fromTable(title)
	}

	if r.cfg.CacheResults && md.Found {
		r.cache.Store(key, md)
	}
	return md, nil
}

// Cached returns the titles currently cached.
func (r *Resolver) Cached() []string {
	return Keys(r.cache)
}

// fetch queries the API with retries. An empty result set is a definitive
// miss and is not retried.
func (r *Resolver) fetch(ctx context.Context, title string) (domain.BookMetadata, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		results, err := r.search(ctx, title)
		if err == nil {
			md, ok := bestMatch(title, results)
			if !ok {
				r.logger.Warn("metadata lookup returned no results", "title", title)
				return notFound(title), nil
			}
			r.logger.Info("metadata found", "title", title, "gutenberg_id", md.CatalogID, "author", md.Author)
			return md, nil
		}

		lastErr = &Error{Op: "search", Title: title, Attempt: attempt, Err: err}
		r.logger.Warn("metadata lookup attempt failed", "title", title, "attempt", attempt, "max_attempts", r.cfg.MaxAttempts, "error", err)

		if attempt < r.cfg.MaxAttempts {
			if err := sleep(ctx, r.cfg.RetryDelay); err != nil {
				return notFound(title), err
			}
		}
	}
	return notFound(title), lastErr
}

type searchResponse struct {
	Count   int            `json:"count"`
	Results []searchResult `json:"results"`
}

type searchResult struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
}

func (r *Resolver) search(ctx context.Context, title string) ([]searchResult, error) {
	u, err := url.Parse(r.cfg.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("search", title)
	u.RawQuery = q.Encode()

	if err := r.limiter.WaitURL(ctx, u.String()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	r.logger.Debug("gutendex request", "title", title)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Body fully read below

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, ErrServer
	default:
		return nil, fmt.Errorf("%w %d", ErrBadStatus, resp.StatusCode)
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return sr.Results, nil
}

// bestMatch picks the first result whose title contains the query
// (case-insensitively), else the first result.
func bestMatch(title string, results []searchResult) (domain.BookMetadata, bool) {
	if len(results) == 0 {
		return domain.BookMetadata{}, false
	}
	best := results[0]
	needle := strings.ToLower(title)
	for _, res := range results {
		if strings.Contains(strings.ToLower(res.Title), needle) {
			best = res
			break
		}
	}

	author := "Unknown"
	if len(best.Authors) > 0 {
		author = normalize.AuthorName(best.Authors[0].Name)
	}
	return domain.BookMetadata{
		Title:     title,
		CatalogID: best.ID,
		BookID:    id.BookID(best.ID),
		Author:    author,
		Found:     true,
		Source:    domain.SourceAPI,
	}, true
}

func (r *Resolver) fromTable(title string) domain.BookMetadata {
	b, ok := r.fallback[normalize.Title(title)]
	if !ok {
		r.logger.Warn("book not found in static table", "title", title)
		return notFound(title)
	}
	author := b.Author
	if author == "" {
		author = "Unknown"
	}
	r.logger.Info("static table match", "title", title, "gutenberg_id", b.GutenbergID)
	return domain.BookMetadata{
		Title:     title,
		CatalogID: b.GutenbergID,
		BookID:    id.BookID(b.GutenbergID),
		Author:    author,
		Found:     true,
		Source:    domain.SourceConfig,
	}
}

func notFound(title string) domain.BookMetadata {
	return domain.BookMetadata{Title: title, Source: domain.SourceNone}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
