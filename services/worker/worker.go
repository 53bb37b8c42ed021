package worker

import (
	"context"
	"time"

	"github.com/nery-alan/vivareal-market-research/helpers"
	"github.com/nery-alan/vivareal-market-research/internal/crawler"
	"github.com/nery-alan/vivareal-market-research/internal/geo"
	"github.com/nery-alan/vivareal-market-research/internal/listing"
	"github.com/nery-alan/vivareal-market-research/internal/mapview"
	"github.com/nery-alan/vivareal-market-research/internal/parser"
	"github.com/nery-alan/vivareal-market-research/internal/report"
	"github.com/nery-alan/vivareal-market-research/logger"
	"github.com/nery-alan/vivareal-market-research/pkg/errors"
	"github.com/nery-alan/vivareal-market-research/services/publisher"
)

// Crawler runs one search crawl
type Crawler interface {
	Run(ctx context.Context, params crawler.SearchParams) (*crawler.Metadata, error)
}

// Enricher attaches addresses and coordinates to listings
type Enricher interface {
	Enrich(ctx context.Context, listings []listing.Listing) ([]listing.Listing, geo.Stats)
}

// Paths are the files and folders a run reads and writes
type Paths struct {
	RawDir     string
	Listings   string
	Enriched   string
	ReportsDir string
	MinReport  int
	MapsAPIKey string
}

// Summary is the outcome of one pipeline run
type Summary struct {
	RunID      string
	Pages      int
	Candidates int
	Listings   int
	Enrichment *geo.Stats
	ReportDir  string
	Workbook   string
	Map        string
	Published  int
	Elapsed    time.Duration
}

// Worker runs the research pipeline stage by stage
type Worker struct {
	crawler   Crawler
	parser    *parser.Parser
	enricher  Enricher
	publisher publisher.Publisher
	errLog    helpers.LoggerInterface
	paths     Paths
	now       func() time.Time
	log       *logger.Logger
}

// NewWorker creates a new worker. A nil enricher skips enrichment and a nil
// publisher skips publishing.
func NewWorker(
	c Crawler,
	p *parser.Parser,
	enricher Enricher,
	pub publisher.Publisher,
	errLog helpers.LoggerInterface,
	paths Paths,
) *Worker {
	return &Worker{
		crawler:   c,
		parser:    p,
		enricher:  enricher,
		publisher: pub,
		errLog:    errLog,
		paths:     paths,
		now:       time.Now,
		log:       logger.ForWorker(),
	}
}

// Run crawls, parses, optionally enriches, reports, maps and optionally
// publishes. Any stage before publishing that fails ends the run; a publish
// failure is logged and recorded but the files on disk stand.
func (w *Worker) Run(ctx context.Context, params crawler.SearchParams) (*Summary, error) {
	start := w.now()
	summary := &Summary{}

	meta, err := w.crawler.Run(ctx, params)
	if err != nil {
		return w.fail(summary, "crawl", err)
	}
	summary.RunID = meta.RunID
	summary.Pages = meta.PagesCrawled
	log := w.log.WithFields(logger.Fields{"run_id": meta.RunID, "region": meta.Region})
	log.Info().Int("pages", meta.PagesCrawled).Msg("Crawl stage finished")

	if meta.PagesCrawled == 0 {
		return w.fail(summary, "crawl", errors.NewValidation("crawler", "no pages were crawled"))
	}

	area := listing.AreaRange{Min: meta.MinArea, Max: meta.MaxArea}
	parsed, err := w.parser.Run(parser.Options{
		Input:  w.paths.RawDir,
		Output: w.paths.Listings,
		Format: parser.FormatAuto,
		Range:  area,
	})
	if err != nil {
		return w.fail(summary, "parse", err)
	}
	summary.Candidates = parsed.Candidates
	summary.Listings = len(parsed.Listings)
	log.Info().Int("listings", len(parsed.Listings)).Msg("Parse stage finished")

	final := parsed.Listings
	if w.enricher != nil && len(final) > 0 {
		enriched, stats := w.enricher.Enrich(ctx, final)
		if err := listing.Save(w.paths.Enriched, enriched); err != nil {
			return w.fail(summary, "enrich", err)
		}
		final = enriched
		summary.Enrichment = &stats
		log.Info().
			Int("with_address", stats.WithAddress).
			Int("with_coordinates", stats.WithCoordinate).
			Msg("Enrich stage finished")
	}

	rep, err := report.Generate(final, report.Options{
		ReportsDir: w.paths.ReportsDir,
		Region:     meta.Region,
		Range:      &area,
		Date:       w.now(),
		MinCount:   w.paths.MinReport,
	})
	if err != nil {
		return w.fail(summary, "report", err)
	}
	summary.ReportDir = rep.Dir
	summary.Workbook = rep.Workbook

	m, err := mapview.Generate(final, mapview.Options{OutputDir: rep.Dir, APIKey: w.paths.MapsAPIKey})
	if err != nil {
		return w.fail(summary, "map", err)
	}
	summary.Map = m.Path

	if w.publisher != nil {
		n, err := publisher.PublishListings(ctx, w.publisher, final)
		summary.Published = n
		if err != nil {
			w.logError("worker/publish", err)
			log.Error().Err(err).Int("published", n).Msg("Publish stage failed")
		}
	}

	summary.Elapsed = w.now().Sub(start)
	log.Info().
		Int("listings", summary.Listings).
		Str("report", summary.ReportDir).
		Dur("elapsed", summary.Elapsed).
		Msg("Research run finished")

	return summary, nil
}

func (w *Worker) fail(summary *Summary, stage string, err error) (*Summary, error) {
	w.logError("worker/"+stage, err)
	w.log.WithError(err).Error().Str("stage", stage).Msg("Research run aborted")
	return summary, err
}

func (w *Worker) logError(source string, err error) {
	if w.errLog != nil {
		w.errLog.LogError(source, err)
	}
}

// ReportTarget fills in the region and area range of a standalone report
// from the last crawl's metadata when the caller gave none.
func ReportTarget(rawDir, regionSlug string, area *listing.AreaRange) (string, *listing.AreaRange) {
	if regionSlug != "" && area != nil {
		return regionSlug, area
	}

	meta, err := crawler.ReadMetadata(rawDir)
	if err != nil {
		return regionSlug, area
	}
	if regionSlug == "" {
		regionSlug = meta.Region
	}
	if area == nil && (meta.MinArea > 0 || meta.MaxArea > 0) {
		area = &listing.AreaRange{Min: meta.MinArea, Max: meta.MaxArea}
	}
	return regionSlug, area
}
