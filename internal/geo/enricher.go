package geo

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/nery-alan/vivareal-market-research/helpers"
	"github.com/nery-alan/vivareal-market-research/internal/crawler"
	"github.com/nery-alan/vivareal-market-research/internal/listing"
	"github.com/nery-alan/vivareal-market-research/logger"
)

// Stats counts the outcome of an enrichment pass
type Stats struct {
	Total          int
	WithAddress    int
	WithCoordinate int
	FetchFailures  int
}

// Enricher attaches addresses and coordinates to listings, one listing at
// a time with a fixed pause between page fetches.
type Enricher struct {
	fetcher  crawler.Fetcher
	geocoder Geocoder
	limiter  *rate.Limiter
	errLog   helpers.LoggerInterface
	log      *logger.Logger
}

// NewEnricher creates an enricher. errLog may be nil.
func NewEnricher(fetcher crawler.Fetcher, geocoder Geocoder, delay time.Duration, errLog helpers.LoggerInterface) *Enricher {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Enricher{
		fetcher:  fetcher,
		geocoder: geocoder,
		limiter:  rate.NewLimiter(limit, 1),
		errLog:   errLog,
		log:      logger.ForGeocoder(),
	}
}

// Enrich returns a copy of listings with address and coordinates attached
// where they could be found. A listing that fails at any step is kept as
// it was. Cancellation stops the pass and returns what was done so far
// together with the remaining listings unchanged.
func (e *Enricher) Enrich(ctx context.Context, listings []listing.Listing) ([]listing.Listing, Stats) {
	result := make([]listing.Listing, len(listings))
	copy(result, listings)

	stats := Stats{Total: len(listings)}

	for i := range result {
		if err := e.limiter.Wait(ctx); err != nil {
			e.log.Warn().Err(err).Int("done", i).Msg("Enrichment interrupted")
			break
		}

		l := &result[i]
		log := e.log.WithFields(logger.Fields{"index": i + 1, "total": len(result)})

		text, err := e.pageText(ctx, l.Link)
		if err != nil {
			stats.FetchFailures++
			log.Warn().Err(err).Str("link", l.Link).Msg("Listing page fetch failed")
			if e.errLog != nil {
				e.errLog.LogError("geocoder/fetch", err)
			}
			continue
		}

		addr, ok := ExtractAddress(text, l.Link)
		if !ok {
			log.Debug().Str("link", l.Link).Msg("Address not found")
			continue
		}
		l.Address = addr
		stats.WithAddress++

		coords, err := e.geocoder.Geocode(ctx, addr.FullAddress)
		if err != nil {
			log.Warn().Err(err).Str("address", addr.FullAddress).Msg("Geocoding failed")
			if e.errLog != nil {
				e.errLog.LogError("geocoder/"+e.geocoder.Name(), err)
			}
			continue
		}
		l.Coordinates = coords
		stats.WithCoordinate++

		log.Debug().
			Str("address", addr.FullAddress).
			Float64("lat", coords.Lat).
			Float64("lng", coords.Lng).
			Msg("Listing enriched")
	}

	e.log.Info().
		Int("total", stats.Total).
		Int("with_address", stats.WithAddress).
		Int("with_coordinates", stats.WithCoordinate).
		Msg("Enrichment finished")

	return result, stats
}

// pageText returns the listing page as Markdown, or the visible text of
// its HTML when the engine produces no Markdown.
func (e *Enricher) pageText(ctx context.Context, link string) (string, error) {
	page, err := e.fetcher.Fetch(ctx, link)
	if err != nil {
		return "", err
	}
	if page.Markdown != "" {
		return page.Markdown, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()

	var lines []string
	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			lines = append(lines, text)
		}
	})
	return strings.Join(lines, "\n"), nil
}
