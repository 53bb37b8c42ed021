package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nery-alan/vivareal-market-research/config"
	"github.com/nery-alan/vivareal-market-research/helpers"
	"github.com/nery-alan/vivareal-market-research/internal/crawler"
	"github.com/nery-alan/vivareal-market-research/internal/geo"
	"github.com/nery-alan/vivareal-market-research/internal/listing"
	"github.com/nery-alan/vivareal-market-research/internal/mapview"
	"github.com/nery-alan/vivareal-market-research/internal/parser"
	"github.com/nery-alan/vivareal-market-research/internal/region"
	"github.com/nery-alan/vivareal-market-research/internal/report"
	"github.com/nery-alan/vivareal-market-research/logger"
	"github.com/nery-alan/vivareal-market-research/services/cache"
	"github.com/nery-alan/vivareal-market-research/services/publisher"
	"github.com/nery-alan/vivareal-market-research/services/worker"
)

const usage = `usage: vivareal-research <command> [flags]

commands:
  crawl    fetch search result pages into the raw directory
  parse    extract listings from raw pages
  enrich   attach addresses and coordinates to parsed listings
  report   write the Excel report
  map      write the HTML map next to the report
  run      crawl, parse, enrich, report, map and publish in one go
`

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// Load and validate configuration
	cfg := config.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "crawl":
		err = runCrawl(ctx, cfg, args)
	case "parse":
		err = runParse(cfg, args)
	case "enrich":
		err = runEnrich(ctx, cfg, args)
	case "report":
		err = runReport(cfg, args)
	case "map":
		err = runMap(cfg, args)
	case "run":
		err = runPipeline(ctx, cfg, args)
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		stop()
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("Command failed")
	}
}

// searchFlags are shared by crawl and run
type searchFlags struct {
	region  *string
	zone    *string
	minArea *float64
	maxArea *float64
	pages   *int
	engine  *string
}

func addSearchFlags(fs *flag.FlagSet, cfg *config.Config) searchFlags {
	return searchFlags{
		region:  fs.String("region", "", "neighbourhood to search, e.g. \"Vila Mariana\" (required)"),
		zone:    fs.String("zone", "", "zone slug; looked up from the neighbourhood table when empty"),
		minArea: fs.Float64("min-area", cfg.MinArea, "minimum floor area in m²"),
		maxArea: fs.Float64("max-area", cfg.MaxArea, "maximum floor area in m²"),
		pages:   fs.Int("pages", cfg.MaxPages, "maximum number of result pages"),
		engine:  fs.String("engine", cfg.FetchEngine, "fetch engine: direct, firecrawl or chrome"),
	}
}

func (s searchFlags) apply(cfg *config.Config) (crawler.SearchParams, error) {
	if *s.region == "" {
		return crawler.SearchParams{}, fmt.Errorf("-region is required")
	}
	cfg.FetchEngine = *s.engine
	cfg.MaxPages = *s.pages
	cfg.MinArea = *s.minArea
	cfg.MaxArea = *s.maxArea
	if err := cfg.Validate(); err != nil {
		return crawler.SearchParams{}, err
	}

	params := crawler.DefaultSearchParams(*s.region, listing.AreaRange{Min: cfg.MinArea, Max: cfg.MaxArea})
	params.Zone = *s.zone
	return params, nil
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		fs.SetOutput(os.Stderr)
		fs.PrintDefaults()
		return err
	}
	return nil
}

func runCrawl(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("crawl", flag.ContinueOnError)
	search := addSearchFlags(fs, cfg)
	output := fs.String("output", cfg.RawDir, "directory for the raw pages")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	params, err := search.apply(cfg)
	if err != nil {
		return err
	}

	fetcher, err := crawler.NewFetcher(cfg)
	if err != nil {
		return err
	}
	defer closeFetcher(fetcher)

	c := crawler.New(fetcher, crawler.Options{
		BaseURL:   cfg.SiteBaseURL,
		OutputDir: *output,
		MaxPages:  cfg.MaxPages,
		Delay:     cfg.CrawlDelay,
		ErrorLog:  helpers.NewLogger(cfg.ErrorLog),
	})

	meta, err := c.Run(ctx, params)
	if err != nil {
		return err
	}
	if meta.PagesCrawled == 0 {
		return fmt.Errorf("no pages crawled: %s", meta.StopReason)
	}
	return nil
}

func runParse(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("parse", flag.ContinueOnError)
	input := fs.String("input", cfg.RawDir, "page file or directory of page_NNN files")
	output := fs.String("output", cfg.ListingsPath(), "listings JSON to write")
	format := fs.String("format", parser.FormatAuto, "input format: auto, html or markdown")
	minArea := fs.Float64("min-area", cfg.MinArea, "minimum floor area in m²")
	maxArea := fs.Float64("max-area", cfg.MaxArea, "maximum floor area in m²")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	p := parser.New(listing.NewSite(cfg.SiteBaseURL)).WithErrorLog(helpers.NewLogger(cfg.ErrorLog))
	_, err := p.Run(parser.Options{
		Input:  *input,
		Output: *output,
		Format: *format,
		Range:  listing.AreaRange{Min: *minArea, Max: *maxArea},
	})
	return err
}

func runEnrich(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("enrich", flag.ContinueOnError)
	input := fs.String("input", cfg.ListingsPath(), "listings JSON to enrich")
	output := fs.String("output", cfg.EnrichedListingsPath(), "enriched listings JSON to write")
	engine := fs.String("engine", cfg.FetchEngine, "fetch engine for listing pages")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	cfg.FetchEngine = *engine
	if err := cfg.Validate(); err != nil {
		return err
	}

	listings, err := listing.Load(*input)
	if err != nil {
		return err
	}

	enricher, closeFn, err := newEnricher(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	enriched, _ := enricher.Enrich(ctx, listings)
	return listing.Save(*output, enriched)
}

// defaultInput prefers the enriched listings when they exist
func defaultInput(cfg *config.Config) string {
	if _, err := os.Stat(cfg.EnrichedListingsPath()); err == nil {
		return cfg.EnrichedListingsPath()
	}
	return cfg.ListingsPath()
}

// outputFlags are shared by report and map
type outputFlags struct {
	input   *string
	region  *string
	minArea *float64
	maxArea *float64
}

func addOutputFlags(fs *flag.FlagSet, cfg *config.Config) outputFlags {
	return outputFlags{
		input:   fs.String("input", defaultInput(cfg), "listings JSON"),
		region:  fs.String("region", "", "region for the folder name; taken from the last crawl when empty"),
		minArea: fs.Float64("min-area", 0, "area range for the folder name; taken from the last crawl when unset"),
		maxArea: fs.Float64("max-area", 0, "area range for the folder name; taken from the last crawl when unset"),
	}
}

func (o outputFlags) options(cfg *config.Config) report.Options {
	var area *listing.AreaRange
	if *o.minArea > 0 || *o.maxArea > 0 {
		area = &listing.AreaRange{Min: *o.minArea, Max: *o.maxArea}
	}
	slug, area := worker.ReportTarget(cfg.RawDir, region.Normalize(*o.region), area)

	return report.Options{
		ReportsDir: cfg.ReportsDir,
		Region:     slug,
		Range:      area,
		MinCount:   cfg.MinReportCount,
	}
}

func runReport(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	out := addOutputFlags(fs, cfg)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	_, err := report.FromFile(*out.input, out.options(cfg))
	return err
}

func runMap(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("map", flag.ContinueOnError)
	out := addOutputFlags(fs, cfg)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	_, err := mapview.FromFile(*out.input, mapview.Options{
		OutputDir: report.OutputDir(out.options(cfg)),
		APIKey:    cfg.GoogleMapsAPIKey,
	})
	return err
}

func runPipeline(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	search := addSearchFlags(fs, cfg)
	enrich := fs.Bool("enrich", true, "geocode listing addresses")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	params, err := search.apply(cfg)
	if err != nil {
		return err
	}

	log := logger.ForWorker()
	log.Info().
		Str("environment", cfg.Environment).
		Str("engine", cfg.FetchEngine).
		Str("region", params.Region).
		Msg("Starting research run")

	services, err := initializeServices(ctx, cfg, *enrich)
	if err != nil {
		return err
	}
	defer services.Cleanup()

	c := crawler.New(services.Fetcher, crawler.Options{
		BaseURL:   cfg.SiteBaseURL,
		OutputDir: cfg.RawDir,
		MaxPages:  cfg.MaxPages,
		Delay:     cfg.CrawlDelay,
		ErrorLog:  services.ErrorLog,
	})

	w := worker.NewWorker(
		c,
		parser.New(listing.NewSite(cfg.SiteBaseURL)).WithErrorLog(services.ErrorLog),
		services.Enricher,
		services.Publisher,
		services.ErrorLog,
		worker.Paths{
			RawDir:     cfg.RawDir,
			Listings:   cfg.ListingsPath(),
			Enriched:   cfg.EnrichedListingsPath(),
			ReportsDir: cfg.ReportsDir,
			MinReport:  cfg.MinReportCount,
			MapsAPIKey: cfg.GoogleMapsAPIKey,
		},
	)

	summary, err := w.Run(ctx, params)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%d listings\nreport: %s\nmap: %s\n", summary.Listings, summary.Workbook, summary.Map)
	return nil
}

// Services holds all the initialized services
type Services struct {
	Fetcher   crawler.Fetcher
	Cache     cache.CacheService
	Enricher  worker.Enricher
	Publisher publisher.Publisher
	ErrorLog  helpers.LoggerInterface
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	closeFetcher(s.Fetcher)
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config, enrich bool) (*Services, error) {
	services := &Services{ErrorLog: helpers.NewLogger(cfg.ErrorLog)}

	fetcher, err := crawler.NewFetcher(cfg)
	if err != nil {
		return nil, err
	}
	services.Fetcher = fetcher

	if enrich {
		services.Cache = cache.New(cfg.MemcacheAddr)
		chain := geo.NewDefaultChain(cfg.GoogleMapsAPIKey, cfg.NominatimURL)
		geocoder := geo.NewCachedGeocoder(chain, services.Cache, cfg.GeocodeCacheTTL)
		services.Enricher = geo.NewEnricher(fetcher, geocoder, cfg.GeocodeDelay, services.ErrorLog)
	}

	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(ctx); err != nil {
			redisPublisher.Close()
			logger.Warn("Redis at %s unavailable, listings will not be published: %v", cfg.RedisAddr, err)
		} else {
			services.Publisher = redisPublisher
			logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
				cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
		}
	}

	return services, nil
}

func newEnricher(cfg *config.Config) (*geo.Enricher, func(), error) {
	fetcher, err := crawler.NewFetcher(cfg)
	if err != nil {
		return nil, nil, err
	}

	c := cache.New(cfg.MemcacheAddr)
	chain := geo.NewDefaultChain(cfg.GoogleMapsAPIKey, cfg.NominatimURL)
	geocoder := geo.NewCachedGeocoder(chain, c, cfg.GeocodeCacheTTL)
	enricher := geo.NewEnricher(fetcher, geocoder, cfg.GeocodeDelay, helpers.NewLogger(cfg.ErrorLog))

	return enricher, func() { closeFetcher(fetcher) }, nil
}

func closeFetcher(f crawler.Fetcher) {
	if closer, ok := f.(io.Closer); ok {
		closer.Close()
	}
}
