package crawler

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nery-alan/vivareal-market-research/helpers"
	"github.com/nery-alan/vivareal-market-research/logger"
	"github.com/nery-alan/vivareal-market-research/pkg/errors"
)

// MetadataFile is written into the output directory after every run
const MetadataFile = "crawl_metadata.json"

// Options configures a Crawler
type Options struct {
	BaseURL   string
	OutputDir string
	MaxPages  int
	// Delay is the fixed pause between two page fetches
	Delay time.Duration
	// ErrorLog receives page failures; may be nil
	ErrorLog helpers.LoggerInterface
}

// Crawler fetches search result pages one at a time and stores them as
// page_NNN files.
type Crawler struct {
	fetcher Fetcher
	opts    Options
	limiter *rate.Limiter
	log     *logger.Logger
	now     func() time.Time
}

// New creates a crawler around fetcher
func New(fetcher Fetcher, opts Options) *Crawler {
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}

	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}

	return &Crawler{
		fetcher: fetcher,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		log:     logger.ForCrawler(fetcher.Name()),
		now:     time.Now,
	}
}

// Run crawls pages 1..MaxPages of the search. The first failing page ends
// the crawl; pages already saved are kept. Metadata is written in every case
// except invalid parameters or an unwritable output directory.
func (c *Crawler) Run(ctx context.Context, params SearchParams) (*Metadata, error) {
	params, err := params.Normalized()
	if err != nil {
		return nil, err
	}
	searchURL, err := BuildSearchURL(c.opts.BaseURL, params)
	if err != nil {
		return nil, err
	}

	if err := c.prepareOutput(); err != nil {
		return nil, err
	}

	meta := &Metadata{
		RunID:     uuid.NewString(),
		Engine:    c.fetcher.Name(),
		Region:    params.Region,
		Zone:      params.Zone,
		MinArea:   params.Area.Min,
		MaxArea:   params.Area.Max,
		BaseURL:   searchURL,
		Files:     []string{},
		StartedAt: c.now().UTC(),
	}

	log := c.log.WithFields(logger.Fields{"run_id": meta.RunID, "region": params.Region})
	log.Info().
		Str("url", searchURL).
		Int("max_pages", c.opts.MaxPages).
		Msg("Starting crawl")

	for page := 1; page <= c.opts.MaxPages; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			c.stop(meta, page, err)
			break
		}

		pageURL := PageURL(searchURL, page)
		log.Debug().Int("page", page).Str("url", pageURL).Msg("Fetching page")

		result, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			log.Warn().Err(err).Int("page", page).Msg("Stopping crawl")
			c.stop(meta, page, err)
			break
		}

		files, err := c.savePage(page, result)
		if err != nil {
			c.stop(meta, page, err)
			break
		}

		meta.PagesCrawled++
		meta.Files = append(meta.Files, files...)
	}

	meta.FinishedAt = c.now().UTC()
	if err := c.writeMetadata(meta); err != nil {
		return meta, err
	}

	log.Info().
		Int("pages", meta.PagesCrawled).
		Int("files", len(meta.Files)).
		Msg("Crawl finished")

	return meta, nil
}

func (c *Crawler) stop(meta *Metadata, page int, err error) {
	meta.StoppedAt = page
	meta.StopReason = err.Error()
	if c.opts.ErrorLog != nil {
		c.opts.ErrorLog.LogError("crawler/"+helpers.PageFileName(page, "*"), err)
	}
}

// prepareOutput creates the output directory and removes pages left by an
// earlier run so that they are not parsed with this one.
func (c *Crawler) prepareOutput() error {
	if err := os.MkdirAll(c.opts.OutputDir, 0o755); err != nil {
		return errors.New(errors.ErrorTypeConfiguration, c.opts.OutputDir, "failed to create output directory", err)
	}

	for _, pattern := range []string{"page_*.html", "page_*.md"} {
		stale, err := filepath.Glob(filepath.Join(c.opts.OutputDir, pattern))
		if err != nil {
			return errors.New(errors.ErrorTypeConfiguration, c.opts.OutputDir, "invalid page pattern", err)
		}
		for _, path := range stale {
			if err := os.Remove(path); err != nil {
				return errors.New(errors.ErrorTypeConfiguration, path, "failed to remove stale page", err)
			}
		}
		if len(stale) > 0 {
			c.log.Debug().Int("files", len(stale)).Str("pattern", pattern).Msg("Removed stale pages")
		}
	}
	return nil
}

func (c *Crawler) savePage(page int, result *Page) ([]string, error) {
	var files []string

	contents := []struct {
		ext  string
		body string
	}{
		{"html", result.HTML},
		{"md", result.Markdown},
	}

	for _, content := range contents {
		if content.body == "" {
			continue
		}
		path := filepath.Join(c.opts.OutputDir, helpers.PageFileName(page, content.ext))
		if err := helpers.WriteFile(path, []byte(content.body)); err != nil {
			return files, errors.New(errors.ErrorTypeConfiguration, path, "failed to save page", err)
		}
		files = append(files, path)
	}

	if len(files) == 0 {
		return nil, errors.NewNetwork(c.fetcher.Name(), "page has no content", nil)
	}
	return files, nil
}

func (c *Crawler) writeMetadata(meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.NewParsing(MetadataFile, "failed to encode metadata", err)
	}
	path := filepath.Join(c.opts.OutputDir, MetadataFile)
	if err := helpers.WriteFile(path, data); err != nil {
		return errors.New(errors.ErrorTypeConfiguration, path, "failed to write metadata", err)
	}
	return nil
}

// ReadMetadata loads the metadata of the last crawl in dir
func ReadMetadata(dir string) (*Metadata, error) {
	path := filepath.Join(dir, MetadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewMissingInput(path, err)
		}
		return nil, errors.NewParsing(path, "failed to read metadata", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.NewParsing(path, "invalid metadata", err)
	}
	return &meta, nil
}
