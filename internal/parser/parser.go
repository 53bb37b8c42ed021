package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nery-alan/vivareal-market-research/helpers"
	"github.com/nery-alan/vivareal-market-research/internal/listing"
	"github.com/nery-alan/vivareal-market-research/logger"
	"github.com/nery-alan/vivareal-market-research/pkg/errors"
)

// Input formats
const (
	FormatAuto     = "auto"
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// Options configures one parser run
type Options struct {
	// Input is a directory of page_NNN files or a single document
	Input string
	// Output is the listings file to write
	Output string
	// Format forces the input format; empty or FormatAuto detects it
	Format string
	// Range is the inclusive area window
	Range listing.AreaRange
}

// Result summarizes a parser run
type Result struct {
	Listings   []listing.Listing
	Sources    []string
	// Skipped lists the sources that failed to parse
	Skipped    []string
	Candidates int
	Output     string
}

// Parser turns fetched pages into listings for one site
type Parser struct {
	site       listing.Site
	extractor  *listing.Extractor
	strategies []CardStrategy
	errLog     helpers.LoggerInterface
	log        *logger.Logger
}

// New creates a parser for site with the default card strategies
func New(site listing.Site) *Parser {
	return &Parser{
		site:       site,
		extractor:  listing.NewExtractor(site),
		strategies: DefaultStrategies(),
		log:        logger.ForParser(),
	}
}

// WithStrategies replaces the ordered card strategy list
func (p *Parser) WithStrategies(strategies ...CardStrategy) *Parser {
	p.strategies = strategies
	return p
}

// WithErrorLog sends skipped sources to errLog as well as to the log
func (p *Parser) WithErrorLog(errLog helpers.LoggerInterface) *Parser {
	p.errLog = errLog
	return p
}

// Run extracts listings from every source, filters them by area, removes
// duplicates and writes the result. A missing input or an unknown format is
// fatal and leaves no output file. A source that cannot be parsed is logged
// and skipped; sources without listings are not errors either.
func (p *Parser) Run(opts Options) (*Result, error) {
	sources, format, err := resolveSources(opts.Input, opts.Format)
	if err != nil {
		return nil, err
	}

	var (
		candidates []listing.Listing
		skipped    []string
	)
	for _, source := range sources {
		found, err := p.ParseFile(source, format)
		if err != nil {
			if errors.IsType(err, errors.ErrorTypeMissingInput) || errors.IsType(err, errors.ErrorTypeValidation) {
				return nil, err
			}
			p.log.Warn().Err(err).Str("source", source).Msg("Skipping unparsable source")
			if p.errLog != nil {
				p.errLog.LogError("parser/"+filepath.Base(source), err)
			}
			skipped = append(skipped, source)
			continue
		}
		if len(found) == 0 {
			p.log.Warn().Str("source", source).Msg("No listings found in source")
		} else {
			p.log.Debug().Str("source", source).Int("listings", len(found)).Msg("Parsed source")
		}
		candidates = append(candidates, found...)
	}

	listings := listing.Refine(candidates, opts.Range)

	output := opts.Output
	if output == "" {
		output = "listings.json"
	}
	if err := listing.Save(output, listings); err != nil {
		return nil, err
	}

	if len(listings) == 0 {
		p.log.Warn().
			Str("input", opts.Input).
			Str("range", opts.Range.String()).
			Msg("No listings matched; wrote empty result")
	} else {
		p.log.Info().
			Int("candidates", len(candidates)).
			Int("listings", len(listings)).
			Str("output", output).
			Msg("Listings saved")
	}

	return &Result{
		Listings:   listings,
		Sources:    sources,
		Skipped:    skipped,
		Candidates: len(candidates),
		Output:     output,
	}, nil
}

// ParseFile extracts the listings of one source file in the given format
func (p *Parser) ParseFile(path, format string) ([]listing.Listing, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewMissingInput(path, err)
		}
		return nil, errors.NewParsing(path, "failed to open source", err)
	}
	defer f.Close()

	if format == "" || format == FormatAuto {
		format = formatOf(path)
	}

	var found []listing.Listing
	switch format {
	case FormatHTML:
		found, err = p.ParseHTML(f)
	case FormatMarkdown:
		found, err = p.ParseMarkdown(f)
	default:
		return nil, errors.NewValidation(path, fmt.Sprintf("unknown input format %q", format))
	}
	if err != nil {
		return nil, errors.NewParsing(path, "failed to parse source", err)
	}
	return found, nil
}

// resolveSources expands the input into an ordered list of files. A
// directory yields its page_*.md files, or its page_*.html files when there
// are no Markdown pages.
func resolveSources(input, format string) ([]string, string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, "", errors.NewMissingInput(input, err)
	}

	if !info.IsDir() {
		return []string{input}, format, nil
	}

	markdown, err := pages(input, "md")
	if err != nil {
		return nil, "", err
	}
	htmlPages, err := pages(input, "html")
	if err != nil {
		return nil, "", err
	}

	switch format {
	case FormatMarkdown:
		return markdown, FormatMarkdown, nil
	case FormatHTML:
		return htmlPages, FormatHTML, nil
	case "", FormatAuto:
		if len(markdown) > 0 {
			return markdown, FormatMarkdown, nil
		}
		return htmlPages, FormatHTML, nil
	default:
		return nil, "", errors.NewValidation(input, fmt.Sprintf("unknown input format %q", format))
	}
}

func pages(dir, ext string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page_*."+ext))
	if err != nil {
		return nil, errors.NewParsing(dir, "invalid page pattern", err)
	}
	sort.Strings(matches)
	return matches, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return FormatHTML
	default:
		return FormatMarkdown
	}
}
