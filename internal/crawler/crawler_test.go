package crawler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nery-alan/vivareal-market-research/internal/listing"
)

const testBaseURL = "https://www.vivareal.com.br"

func searchFor(t *testing.T, params SearchParams) string {
	t.Helper()
	u, err := BuildSearchURL(testBaseURL, params)
	require.NoError(t, err)
	return u
}

func TestCrawlerRun(t *testing.T) {
	dir := t.TempDir()
	params := DefaultSearchParams("moema", listing.DefaultAreaRange)
	searchURL := searchFor(t, params)

	fetcher := NewMockFetcher()
	fetcher.pages[PageURL(searchURL, 1)] = &Page{HTML: "<html>1</html>", Markdown: "# 1"}
	fetcher.pages[PageURL(searchURL, 2)] = &Page{HTML: "<html>2</html>"}
	fetcher.pages[PageURL(searchURL, 3)] = &Page{Markdown: "# 3"}

	c := New(fetcher, Options{BaseURL: testBaseURL, OutputDir: dir, MaxPages: 3})
	meta, err := c.Run(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, 3, meta.PagesCrawled)
	assert.Equal(t, "mock", meta.Engine)
	assert.Equal(t, "moema", meta.Region)
	assert.Equal(t, "zona-sul", meta.Zone)
	assert.Equal(t, searchURL, meta.BaseURL)
	assert.NotEmpty(t, meta.RunID)
	assert.Zero(t, meta.StoppedAt)
	assert.Equal(t, []string{
		filepath.Join(dir, "page_001.html"),
		filepath.Join(dir, "page_001.md"),
		filepath.Join(dir, "page_002.html"),
		filepath.Join(dir, "page_003.md"),
	}, meta.Files)

	data, err := os.ReadFile(filepath.Join(dir, "page_002.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>2</html>", string(data))

	saved, err := ReadMetadata(dir)
	require.NoError(t, err)
	assert.Equal(t, meta.RunID, saved.RunID)
	assert.Equal(t, meta.Files, saved.Files)
}

func TestCrawlerStopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	params := DefaultSearchParams("santana", listing.DefaultAreaRange)
	searchURL := searchFor(t, params)

	fetcher := NewMockFetcher()
	fetcher.pages[PageURL(searchURL, 1)] = &Page{HTML: "<html>1</html>"}
	fetcher.fail[PageURL(searchURL, 2)] = errors.New("status 403")
	fetcher.pages[PageURL(searchURL, 3)] = &Page{HTML: "<html>3</html>"}

	errLog := &MockErrorLog{}
	c := New(fetcher, Options{BaseURL: testBaseURL, OutputDir: dir, MaxPages: 5, ErrorLog: errLog})
	meta, err := c.Run(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, 1, meta.PagesCrawled)
	assert.Equal(t, 2, meta.StoppedAt)
	assert.Contains(t, meta.StopReason, "status 403")
	assert.Len(t, fetcher.Calls(), 2)
	assert.Equal(t, []string{"crawler/page_002.*: status 403"}, errLog.errors)

	_, err = os.Stat(filepath.Join(dir, "page_003.html"))
	assert.True(t, os.IsNotExist(err))
}

func TestCrawlerRemovesStalePages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page_009.md"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644))

	params := DefaultSearchParams("lapa", listing.DefaultAreaRange)
	fetcher := NewMockFetcher()
	fetcher.pages[searchFor(t, params)] = &Page{Markdown: "# new"}

	_, err := New(fetcher, Options{BaseURL: testBaseURL, OutputDir: dir, MaxPages: 1}).Run(context.Background(), params)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "page_009.md"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, err)
}

func TestCrawlerWaitsBetweenPages(t *testing.T) {
	dir := t.TempDir()
	params := DefaultSearchParams("moema", listing.DefaultAreaRange)
	searchURL := searchFor(t, params)

	fetcher := NewMockFetcher()
	for page := 1; page <= 3; page++ {
		fetcher.pages[PageURL(searchURL, page)] = &Page{HTML: "<html></html>"}
	}

	delay := 50 * time.Millisecond
	start := time.Now()
	_, err := New(fetcher, Options{BaseURL: testBaseURL, OutputDir: dir, MaxPages: 3, Delay: delay}).Run(context.Background(), params)
	require.NoError(t, err)

	// two pauses between three pages
	assert.GreaterOrEqual(t, time.Since(start), 2*delay-5*time.Millisecond)
}

func TestCrawlerCanceled(t *testing.T) {
	dir := t.TempDir()
	params := DefaultSearchParams("moema", listing.DefaultAreaRange)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := NewMockFetcher()
	meta, err := New(fetcher, Options{BaseURL: testBaseURL, OutputDir: dir, MaxPages: 3}).Run(ctx, params)
	require.NoError(t, err)
	assert.Zero(t, meta.PagesCrawled)
	assert.Empty(t, fetcher.Calls())
}

func TestCrawlerInvalidParams(t *testing.T) {
	_, err := New(NewMockFetcher(), Options{BaseURL: testBaseURL, OutputDir: t.TempDir()}).Run(context.Background(), SearchParams{})
	assert.Error(t, err)
}

func TestReadMetadataMissing(t *testing.T) {
	_, err := ReadMetadata(t.TempDir())
	assert.Error(t, err)
}
