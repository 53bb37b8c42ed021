package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nery-alan/vivareal-market-research/pkg/errors"
)

// Output formats understood by the scrape endpoint
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

const source = "firecrawl"

// Document is the content of one scraped page
type Document struct {
	Markdown string                 `json:"markdown"`
	HTML     string                 `json:"html"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type scrapeResponse struct {
	Success bool     `json:"success"`
	Data    Document `json:"data"`
	Error   string   `json:"error"`
}

// Client calls the Firecrawl scrape API
type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client; an empty key is a configuration error
func NewClient(apiURL, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.NewConfiguration("Firecrawl API key not configured; set FIRECRAWL_API_KEY", nil)
	}
	return &Client{
		apiURL: strings.TrimRight(apiURL, "/"),
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// WithHTTPClient replaces the underlying HTTP client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Scrape fetches url through Firecrawl. The whole page is requested, not
// just the main content, since result lists often sit in side panels.
func (c *Client) Scrape(ctx context.Context, url string, formats ...string) (*Document, error) {
	if len(formats) == 0 {
		formats = []string{FormatMarkdown, FormatHTML}
	}

	body, err := json.Marshal(scrapeRequest{URL: url, Formats: formats, OnlyMainContent: false})
	if err != nil {
		return nil, errors.NewNetwork(source, "failed to encode scrape request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/v1/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewNetwork(source, "failed to create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewNetwork(source, fmt.Sprintf("scrape %s failed", url), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetwork(source, "failed to read response body", err)
	}

	var parsed scrapeResponse
	decodeErr := json.Unmarshal(data, &parsed)

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("scrape %s returned status %d", url, resp.StatusCode)
		if decodeErr == nil && parsed.Error != "" {
			msg += ": " + parsed.Error
		}
		return nil, errors.NewNetwork(source, msg, nil)
	}
	if decodeErr != nil {
		return nil, errors.NewParsing(source, "invalid scrape response", decodeErr)
	}
	if !parsed.Success {
		msg := parsed.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, errors.NewNetwork(source, fmt.Sprintf("scrape %s failed: %s", url, msg), nil)
	}

	return &parsed.Data, nil
}
