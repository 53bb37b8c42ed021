package crawler

import (
	"context"
	"fmt"
	"io"

	"github.com/nery-alan/vivareal-market-research/config"
	"github.com/nery-alan/vivareal-market-research/helpers"
	"github.com/nery-alan/vivareal-market-research/internal/firecrawl"
	"github.com/nery-alan/vivareal-market-research/pkg/errors"
)

// DirectFetcher downloads pages over plain HTTP with browser-like headers
type DirectFetcher struct{}

// NewDirectFetcher creates a direct HTTP fetcher
func NewDirectFetcher() *DirectFetcher {
	return &DirectFetcher{}
}

// Name returns the engine name
func (f *DirectFetcher) Name() string {
	return config.EngineDirect
}

// Fetch downloads url and returns its body as HTML
func (f *DirectFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	reader, err := helpers.FetchWithRandomHeaders(ctx, url)
	if err != nil {
		return nil, errors.NewNetwork(config.EngineDirect, "fetch failed", err)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.NewNetwork(config.EngineDirect, "failed to read page", err)
	}
	return &Page{URL: url, HTML: string(body)}, nil
}

// Scraper is the subset of the Firecrawl client used by FirecrawlFetcher
type Scraper interface {
	Scrape(ctx context.Context, url string, formats ...string) (*firecrawl.Document, error)
}

// FirecrawlFetcher renders pages through the Firecrawl API, which returns
// both HTML and Markdown.
type FirecrawlFetcher struct {
	client Scraper
}

// NewFirecrawlFetcher creates a fetcher on top of a Firecrawl client
func NewFirecrawlFetcher(client Scraper) *FirecrawlFetcher {
	return &FirecrawlFetcher{client: client}
}

// Name returns the engine name
func (f *FirecrawlFetcher) Name() string {
	return config.EngineFirecrawl
}

// Fetch scrapes url in HTML and Markdown
func (f *FirecrawlFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	doc, err := f.client.Scrape(ctx, url, firecrawl.FormatHTML, firecrawl.FormatMarkdown)
	if err != nil {
		return nil, err
	}
	if doc.HTML == "" && doc.Markdown == "" {
		return nil, errors.NewNetwork(config.EngineFirecrawl, fmt.Sprintf("empty document for %s", url), nil)
	}
	return &Page{URL: url, HTML: doc.HTML, Markdown: doc.Markdown}, nil
}

// NewFetcher builds the fetcher selected by cfg.FetchEngine
func NewFetcher(cfg *config.Config) (Fetcher, error) {
	switch cfg.FetchEngine {
	case config.EngineDirect:
		return NewDirectFetcher(), nil
	case config.EngineFirecrawl:
		client, err := firecrawl.NewClient(cfg.FirecrawlAPIURL, cfg.FirecrawlAPIKey)
		if err != nil {
			return nil, err
		}
		return NewFirecrawlFetcher(client), nil
	case config.EngineChrome:
		return NewChromeFetcher(cfg.ChromeBin, DefaultRenderWait), nil
	default:
		return nil, errors.NewConfiguration(fmt.Sprintf("unknown fetch engine %q", cfg.FetchEngine), nil)
	}
}
