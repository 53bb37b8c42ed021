package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nery-alan/vivareal-market-research/internal/crawler"
	"github.com/nery-alan/vivareal-market-research/internal/geo"
	"github.com/nery-alan/vivareal-market-research/internal/listing"
	"github.com/nery-alan/vivareal-market-research/internal/mapview"
	"github.com/nery-alan/vivareal-market-research/internal/parser"
	"github.com/nery-alan/vivareal-market-research/internal/report"
	perrors "github.com/nery-alan/vivareal-market-research/pkg/errors"
	"github.com/nery-alan/vivareal-market-research/services/publisher"
)

const resultsPage = `<html><body>
<div class="results-list">
  <div class="property-card__content">
    <a href="/imovel/apartamento-2-quartos-moema-zona-sul-sao-paulo-42m2-venda-RS420000-id-1/">Apartamento</a>
    <div class="property-card__price">R$ 420.000</div>
    <span>42 m²</span>
  </div>
  <div class="property-card__content">
    <a href="/imovel/apartamento-1-quarto-moema-zona-sul-sao-paulo-44m2-id-2/">Apartamento</a>
    <div class="property-card__price">R$ 500.000</div>
    <span>44 m²</span>
  </div>
  <div class="property-card__content">
    <a href="/imovel/apartamento-3-quartos-moema-zona-sul-sao-paulo-90m2-id-3/">Apartamento grande</a>
    <div class="property-card__price">R$ 1.200.000</div>
    <span>90 m²</span>
  </div>
</div>
</body></html>`

// MockPublisher implements the publisher.Publisher interface for testing
type MockPublisher struct {
	mu       sync.Mutex
	messages map[string][]byte
	trimmed  int
	err      error
}

// Ensure MockPublisher implements publisher.Publisher
var _ publisher.Publisher = (*MockPublisher)(nil)

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{messages: make(map[string][]byte)}
}

func (m *MockPublisher) Publish(ctx context.Context, key string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	messageCopy := make([]byte, len(message))
	copy(messageCopy, message)
	m.messages[key] = messageCopy
	return nil
}

func (m *MockPublisher) TrimStreams(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimmed++
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// MockEnricher geocodes every listing to a fixed point
type MockEnricher struct {
	calls int
}

func (m *MockEnricher) Enrich(ctx context.Context, listings []listing.Listing) ([]listing.Listing, geo.Stats) {
	m.calls++
	out := append([]listing.Listing(nil), listings...)
	for i := range out {
		out[i].Address = &listing.Address{FullAddress: "Avenida Ibirapuera, 3000 - Moema, São Paulo - SP", Neighborhood: "Moema"}
		out[i].Coordinates = &listing.Coordinates{Lat: -23.6, Lng: -46.66}
	}
	return out, geo.Stats{Total: len(out), WithAddress: len(out), WithCoordinate: len(out)}
}

// MockErrorLog records logged failures
type MockErrorLog struct {
	mu     sync.Mutex
	errors []string
}

func (m *MockErrorLog) LogError(source string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, fmt.Sprintf("%s: %v", source, err))
}

func (m *MockErrorLog) LogInfo(format string, args ...interface{}) {}

type fixture struct {
	dir    string
	paths  Paths
	errLog *MockErrorLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	return &fixture{
		dir: dir,
		paths: Paths{
			RawDir:     filepath.Join(dir, "raw"),
			Listings:   filepath.Join(dir, "processed", "listings.json"),
			Enriched:   filepath.Join(dir, "processed", "listings_with_addresses.json"),
			ReportsDir: filepath.Join(dir, "reports"),
			MinReport:  1,
		},
		errLog: &MockErrorLog{},
	}
}

func (f *fixture) crawler(fetch func(ctx context.Context, url string) (*crawler.Page, error)) *crawler.Crawler {
	return crawler.New(crawler.FetcherFunc{Engine: "mock", Func: fetch}, crawler.Options{
		BaseURL:   "https://www.vivareal.com.br",
		OutputDir: f.paths.RawDir,
		MaxPages:  3,
		ErrorLog:  f.errLog,
	})
}

// onePage serves the results page once and fails on page 2
func onePage(ctx context.Context, url string) (*crawler.Page, error) {
	if strings.Contains(url, "pagina=") {
		return nil, errors.New("404 Not Found")
	}
	return &crawler.Page{URL: url, HTML: resultsPage}, nil
}

func fixedClock(w *Worker) {
	w.now = func() time.Time { return time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC) }
}

func TestWorkerRunFullPipeline(t *testing.T) {
	f := newFixture(t)
	pub := NewMockPublisher()
	enricher := &MockEnricher{}

	w := NewWorker(f.crawler(onePage), parser.New(listing.DefaultSite()), enricher, pub, f.errLog, f.paths)
	fixedClock(w)

	summary, err := w.Run(context.Background(), crawler.DefaultSearchParams("Moema", listing.AreaRange{Min: 40, Max: 45}))
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 1, summary.Pages)
	assert.Equal(t, 3, summary.Candidates)
	assert.Equal(t, 2, summary.Listings)
	require.NotNil(t, summary.Enrichment)
	assert.Equal(t, 2, summary.Enrichment.WithCoordinate)
	assert.Equal(t, 1, enricher.calls)

	wantDir := filepath.Join(f.paths.ReportsDir, "moema-40-45-20240309")
	assert.Equal(t, wantDir, summary.ReportDir)
	assert.FileExists(t, filepath.Join(wantDir, report.WorkbookFile))
	assert.Equal(t, filepath.Join(wantDir, mapview.FileName), summary.Map)
	assert.FileExists(t, summary.Map)

	parsed, err := listing.Load(f.paths.Listings)
	require.NoError(t, err)
	assert.Len(t, parsed, 2)
	assert.Nil(t, parsed[0].Coordinates)

	enriched, err := listing.Load(f.paths.Enriched)
	require.NoError(t, err)
	require.Len(t, enriched, 2)
	assert.NotNil(t, enriched[0].Coordinates)

	assert.Equal(t, 2, summary.Published)
	assert.Len(t, pub.messages, 2)
	assert.Equal(t, 1, pub.trimmed)

	// the failed second page is the crawl's normal end, logged once
	assert.Len(t, f.errLog.errors, 1)
	assert.Contains(t, f.errLog.errors[0], "crawler/page_002")
}

func TestWorkerRunWithoutOptionalStages(t *testing.T) {
	f := newFixture(t)

	w := NewWorker(f.crawler(onePage), parser.New(listing.DefaultSite()), nil, nil, nil, f.paths)
	fixedClock(w)

	summary, err := w.Run(context.Background(), crawler.DefaultSearchParams("moema", listing.AreaRange{Min: 40, Max: 45}))
	require.NoError(t, err)
	assert.Nil(t, summary.Enrichment)
	assert.Equal(t, 0, summary.Published)
	assert.NoFileExists(t, f.paths.Enriched)
	assert.FileExists(t, summary.Map)
}

func TestWorkerRunAbortsWhenNothingCrawled(t *testing.T) {
	f := newFixture(t)
	failing := func(ctx context.Context, url string) (*crawler.Page, error) {
		return nil, errors.New("403 Forbidden")
	}

	w := NewWorker(f.crawler(failing), parser.New(listing.DefaultSite()), nil, nil, f.errLog, f.paths)
	_, err := w.Run(context.Background(), crawler.DefaultSearchParams("moema", listing.DefaultAreaRange))
	assert.True(t, perrors.IsType(err, perrors.ErrorTypeValidation))

	_, statErr := os.Stat(f.paths.Listings)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWorkerRunAbortsBelowReportMinimum(t *testing.T) {
	f := newFixture(t)
	f.paths.MinReport = 5

	w := NewWorker(f.crawler(onePage), parser.New(listing.DefaultSite()), nil, nil, f.errLog, f.paths)
	summary, err := w.Run(context.Background(), crawler.DefaultSearchParams("moema", listing.DefaultAreaRange))
	assert.True(t, perrors.IsType(err, perrors.ErrorTypeValidation))
	assert.Equal(t, 2, summary.Listings)
	assert.Empty(t, summary.ReportDir)
	assert.FileExists(t, f.paths.Listings)
}

func TestWorkerRunKeepsFilesWhenPublishFails(t *testing.T) {
	f := newFixture(t)
	pub := NewMockPublisher()
	pub.err = errors.New("connection refused")

	w := NewWorker(f.crawler(onePage), parser.New(listing.DefaultSite()), nil, pub, f.errLog, f.paths)
	summary, err := w.Run(context.Background(), crawler.DefaultSearchParams("moema", listing.DefaultAreaRange))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Published)
	assert.FileExists(t, summary.Map)
	assert.Contains(t, strings.Join(f.errLog.errors, "\n"), "worker/publish")
}

func TestReportTarget(t *testing.T) {
	dir := t.TempDir()

	slug, area := ReportTarget(dir, "", nil)
	assert.Equal(t, "", slug)
	assert.Nil(t, area)

	require.NoError(t, os.WriteFile(filepath.Join(dir, crawler.MetadataFile),
		[]byte(`{"run_id":"r1","region":"pinheiros","min_area":40,"max_area":45}`), 0o644))

	slug, area = ReportTarget(dir, "", nil)
	assert.Equal(t, "pinheiros", slug)
	require.NotNil(t, area)
	assert.Equal(t, listing.AreaRange{Min: 40, Max: 45}, *area)

	slug, _ = ReportTarget(dir, "moema", nil)
	assert.Equal(t, "moema", slug)
}
