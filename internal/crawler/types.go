package crawler

import (
	"context"
	"time"
)

// Page is one fetched search results page
type Page struct {
	URL      string
	HTML     string
	Markdown string
}

// Fetcher retrieves a page. Implementations may hold resources and also
// implement io.Closer.
type Fetcher interface {
	// Fetch retrieves url; an error stops the crawl
	Fetch(ctx context.Context, url string) (*Page, error)

	// Name returns the engine name for logging and metadata
	Name() string
}

// FetcherFunc adapts a function to a Fetcher
type FetcherFunc struct {
	Engine string
	Func   func(ctx context.Context, url string) (*Page, error)
}

// Fetch calls the wrapped function
func (f FetcherFunc) Fetch(ctx context.Context, url string) (*Page, error) {
	return f.Func(ctx, url)
}

// Name returns the engine name
func (f FetcherFunc) Name() string {
	return f.Engine
}

// Metadata describes one crawl run and is written next to the pages
type Metadata struct {
	RunID        string    `json:"run_id"`
	Engine       string    `json:"engine"`
	Region       string    `json:"region"`
	Zone         string    `json:"zone"`
	MinArea      float64   `json:"min_area"`
	MaxArea      float64   `json:"max_area"`
	BaseURL      string    `json:"base_url"`
	PagesCrawled int       `json:"pages_crawled"`
	Files        []string  `json:"files"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	StoppedAt    int       `json:"stopped_at_page,omitempty"`
	StopReason   string    `json:"stop_reason,omitempty"`
}
