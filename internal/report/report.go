package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nery-alan/vivareal-market-research/internal/listing"
	"github.com/nery-alan/vivareal-market-research/logger"
	"github.com/nery-alan/vivareal-market-research/pkg/errors"
)

// File names inside a report folder
const (
	WorkbookFile = "relatorio.xlsx"
	MapFile      = "mapa.html"
)

const (
	listingsSheet = "Anúncios"
	summarySheet  = "Resumo"
	currencyFmt   = `"R$ "#,##0.00`
)

// Options places and validates a report
type Options struct {
	ReportsDir string
	// Region is the neighbourhood slug; empty writes straight into ReportsDir
	Region string
	// Range is optional and becomes part of the folder name
	Range *listing.AreaRange
	// Date stamps the folder; zero means today
	Date time.Time
	// MinCount is the fewest listings a report may be built from
	MinCount int
}

// Result is a written report
type Result struct {
	Dir      string
	Workbook string
	Stats    Stats
}

// FolderName returns "{region}-{min}-{max}-{YYYYMMDD}", "{region}-{YYYYMMDD}"
// without a range, or "" without a region.
func FolderName(region string, r *listing.AreaRange, date time.Time) string {
	if region == "" {
		return ""
	}
	stamp := date.Format("20060102")
	if r != nil && (r.Min > 0 || r.Max > 0) {
		return fmt.Sprintf("%s-%s-%s", region, r.String(), stamp)
	}
	return fmt.Sprintf("%s-%s", region, stamp)
}

// OutputDir returns the folder a report with opts is written to
func OutputDir(opts Options) string {
	date := opts.Date
	if date.IsZero() {
		date = time.Now()
	}
	return filepath.Join(opts.ReportsDir, FolderName(opts.Region, opts.Range, date))
}

// Validate checks that listings can make a report
func Validate(listings []listing.Listing, minCount int) error {
	if len(listings) == 0 {
		return errors.NewValidation("report", "no listings to report on")
	}
	if len(listings) < minCount {
		return errors.NewValidation("report", fmt.Sprintf("%d listings, at least %d required", len(listings), minCount))
	}
	for _, l := range listings {
		if l.Link == "" || l.Price <= 0 || l.Area <= 0 || l.PricePerSqm == nil {
			return errors.NewValidation("report", fmt.Sprintf("incomplete listing %q", l.Link))
		}
	}
	return nil
}

// Generate validates listings, computes their statistics and writes the
// workbook.
func Generate(listings []listing.Listing, opts Options) (*Result, error) {
	log := logger.ForComponent("report")

	if err := Validate(listings, opts.MinCount); err != nil {
		return nil, err
	}

	stats := Calculate(listings)
	dir := OutputDir(opts)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(errors.ErrorTypeConfiguration, dir, "failed to create report folder", err)
	}

	path := filepath.Join(dir, WorkbookFile)
	if err := WriteWorkbook(path, listings, stats); err != nil {
		return nil, errors.New(errors.ErrorTypeValidation, path, "failed to write workbook", err)
	}

	log.Info().
		Int("listings", stats.Count).
		Float64("mean_price", stats.Price.Mean).
		Float64("median_price_per_sqm", stats.PricePerSqm.Median).
		Str("path", path).
		Msg("Report written")

	return &Result{Dir: dir, Workbook: path, Stats: stats}, nil
}

// SortByPrice returns listings ordered by ascending price; ties keep their
// input order.
func SortByPrice(listings []listing.Listing) []listing.Listing {
	sorted := append([]listing.Listing(nil), listings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price < sorted[j].Price
	})
	return sorted
}

// WriteWorkbook writes the listings sheet and the summary sheet to path
func WriteWorkbook(path string, listings []listing.Listing, stats Stats) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", listingsSheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	fmtCurrency := currencyFmt
	currencyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &fmtCurrency})
	if err != nil {
		return err
	}

	if err := writeListings(f, listings, headerStyle, currencyStyle); err != nil {
		return err
	}
	if err := writeSummary(f, stats, headerStyle, currencyStyle); err != nil {
		return err
	}

	return f.SaveAs(path)
}

func writeListings(f *excelize.File, listings []listing.Listing, headerStyle, currencyStyle int) error {
	header := []interface{}{"Link", "Valor (R$)", "Tamanho (m²)", "Valor/m²"}
	if err := f.SetSheetRow(listingsSheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(listingsSheet, "A1", "D1", headerStyle); err != nil {
		return err
	}

	widths := map[string]float64{"A": 60, "B": 15, "C": 15, "D": 15}
	for col, width := range widths {
		if err := f.SetColWidth(listingsSheet, col, col, width); err != nil {
			return err
		}
	}

	for i, l := range SortByPrice(listings) {
		row := i + 2
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}

		var perSqm interface{}
		if l.PricePerSqm != nil {
			perSqm = *l.PricePerSqm
		}
		values := []interface{}{l.Link, l.Price, l.Area, perSqm}
		if err := f.SetSheetRow(listingsSheet, cell, &values); err != nil {
			return err
		}
		if err := f.SetCellHyperLink(listingsSheet, cell, l.Link, "External"); err != nil {
			return err
		}
		for _, col := range []string{"B", "D"} {
			ref := fmt.Sprintf("%s%d", col, row)
			if err := f.SetCellStyle(listingsSheet, ref, ref, currencyStyle); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeSummary(f *excelize.File, stats Stats, headerStyle, currencyStyle int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	rows := [][]interface{}{
		{"Métrica", "Valor (R$)", "Tamanho (m²)", "Valor/m²"},
		{"Anúncios", stats.Count, stats.Count, stats.Count},
		{"Média", stats.Price.Mean, stats.Area.Mean, stats.PricePerSqm.Mean},
		{"Mediana", stats.Price.Median, stats.Area.Median, stats.PricePerSqm.Median},
		{"Mínimo", stats.Price.Min, stats.Area.Min, stats.PricePerSqm.Min},
		{"Máximo", stats.Price.Max, stats.Area.Max, stats.PricePerSqm.Max},
		{"Desvio padrão", stats.Price.Std, stats.Area.Std, stats.PricePerSqm.Std},
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}

	if err := f.SetCellStyle(summarySheet, "A1", "D1", headerStyle); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "B3", "B7", currencyStyle); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "D3", "D7", currencyStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 18); err != nil {
		return err
	}
	return f.SetColWidth(summarySheet, "B", "D", 16)
}

// FromFile loads a listings file and generates its report
func FromFile(path string, opts Options) (*Result, error) {
	listings, err := listing.Load(path)
	if err != nil {
		return nil, err
	}
	return Generate(listings, opts)
}
