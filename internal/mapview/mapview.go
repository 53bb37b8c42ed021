package mapview

import (
	"bytes"
	_ "embed"
	"html/template"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/mmcloughlin/geohash"

	"github.com/nery-alan/vivareal-market-research/internal/geo"
	"github.com/nery-alan/vivareal-market-research/internal/listing"
	"github.com/nery-alan/vivareal-market-research/internal/region"
	"github.com/nery-alan/vivareal-market-research/logger"
	"github.com/nery-alan/vivareal-market-research/pkg/errors"
)

// FileName is the map page written next to the report
const FileName = "mapa.html"

const (
	// cellPrecision groups markers closer than roughly 40 metres
	cellPrecision = 8
	// spreadStep is the radius, in degrees, of the first ring of spread markers
	spreadStep = 0.0008
	// golden angle in radians
	goldenAngle = 2.399963229728653

	unknownAddress = "Endereço não disponível"
	unknownRegion  = "Desconhecido"
	defaultTitle   = "Região"
)

//go:embed mapa.html.tmpl
var pageSource string

var page = template.Must(template.New(FileName).Parse(pageSource))

// Marker is one pin on the map
type Marker struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Price       int64   `json:"price"`
	Area        float64 `json:"area"`
	PricePerSqm float64 `json:"price_per_sqm"`
	Link        string  `json:"link"`
	Region      string  `json:"region"`
	Address     string  `json:"address"`
	Color       string  `json:"color"`
	// Approximate is set when the position is the neighbourhood centre
	Approximate bool `json:"approximate"`
}

// Page is the data the map template renders
type Page struct {
	Title           string
	Center          region.Point
	Markers         []Marker
	WithCoordinates int
	APIKey          string
}

// Options controls where the map goes and which key it loads Google Maps with
type Options struct {
	OutputDir string
	APIKey    string
}

// Result is a written map
type Result struct {
	Path       string
	MainRegion string
	Markers    int
}

// ColorFor returns the pin colour for a price per square metre
func ColorFor(pricePerSqm float64) string {
	switch {
	case pricePerSqm < 7000:
		return "#4CAF50"
	case pricePerSqm < 9000:
		return "#FFC107"
	case pricePerSqm < 11000:
		return "#FF9800"
	default:
		return "#F44336"
	}
}

// RegionOf returns the neighbourhood slug of a listing, from the parsed
// region or else from its URL.
func RegionOf(l listing.Listing) string {
	if l.Region != "" {
		return l.Region
	}
	if slug, ok := geo.NeighborhoodFromURL(l.Link); ok {
		return slug
	}
	return ""
}

// BuildMarkers places one marker per listing. Listings without coordinates
// fall back to their neighbourhood centre; markers sharing a geohash cell are
// then spread on a spiral around the first one.
func BuildMarkers(listings []listing.Listing) []Marker {
	markers := make([]Marker, 0, len(listings))
	for _, l := range listings {
		m := Marker{
			Price:   l.Price,
			Area:    l.Area,
			Link:    l.Link,
			Address: unknownAddress,
		}
		if l.PricePerSqm != nil {
			m.PricePerSqm = *l.PricePerSqm
		}
		m.Color = ColorFor(m.PricePerSqm)

		slug := RegionOf(l)
		m.Region = unknownRegion
		if slug != "" {
			m.Region = region.DisplayName(slug)
		}

		if l.Address != nil {
			if l.Address.FullAddress != "" {
				m.Address = l.Address.FullAddress
			}
			if l.Address.Neighborhood != "" {
				m.Region = l.Address.Neighborhood
			}
		}

		if l.Coordinates != nil {
			m.Lat, m.Lng = l.Coordinates.Lat, l.Coordinates.Lng
		} else {
			p := region.Coordinates(slug)
			m.Lat, m.Lng = p.Lat, p.Lng
			m.Approximate = true
		}
		markers = append(markers, m)
	}

	spread(markers)
	return markers
}

func spread(markers []Marker) {
	seen := make(map[string]int)
	for i := range markers {
		cell := geohash.EncodeWithPrecision(markers[i].Lat, markers[i].Lng, cellPrecision)
		k := seen[cell]
		seen[cell] = k + 1
		if k == 0 {
			continue
		}
		angle := float64(k) * goldenAngle
		radius := spreadStep * math.Sqrt(float64(k))
		markers[i].Lat += radius * math.Sin(angle)
		markers[i].Lng += radius * math.Cos(angle)
	}
}

// Center returns the mean position of markers, or the city centre when empty
func Center(markers []Marker) region.Point {
	if len(markers) == 0 {
		return region.DefaultCenter()
	}
	var lat, lng float64
	for _, m := range markers {
		lat += m.Lat
		lng += m.Lng
	}
	n := float64(len(markers))
	return region.Point{Lat: lat / n, Lng: lng / n}
}

// MainRegion returns the most frequent neighbourhood slug; ties go to the
// alphabetically first.
func MainRegion(listings []listing.Listing) string {
	counts := make(map[string]int)
	for _, l := range listings {
		if slug := RegionOf(l); slug != "" {
			counts[slug]++
		}
	}

	slugs := make([]string, 0, len(counts))
	for slug := range counts {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	main := ""
	for _, slug := range slugs {
		if main == "" || counts[slug] > counts[main] {
			main = slug
		}
	}
	return main
}

// Build assembles the page data for listings
func Build(listings []listing.Listing, apiKey string) Page {
	markers := BuildMarkers(listings)

	withCoords := 0
	for _, m := range markers {
		if !m.Approximate {
			withCoords++
		}
	}

	title := defaultTitle
	if main := MainRegion(listings); main != "" {
		title = region.DisplayName(main)
	}

	return Page{
		Title:           title,
		Center:          Center(markers),
		Markers:         markers,
		WithCoordinates: withCoords,
		APIKey:          apiKey,
	}
}

// Render writes the page as HTML
func Render(p Page) ([]byte, error) {
	var buf bytes.Buffer
	if err := page.Execute(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Generate renders the map for listings into opts.OutputDir
func Generate(listings []listing.Listing, opts Options) (*Result, error) {
	log := logger.ForComponent("mapview")

	p := Build(listings, opts.APIKey)
	if opts.APIKey == "" {
		log.Warn().Msg("GOOGLE_MAPS_API_KEY not set, the map will load in development mode")
	}

	html, err := Render(p)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeValidation, FileName, "failed to render map", err)
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, errors.New(errors.ErrorTypeConfiguration, opts.OutputDir, "failed to create map folder", err)
	}
	path := filepath.Join(opts.OutputDir, FileName)
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return nil, errors.New(errors.ErrorTypeConfiguration, path, "failed to write map", err)
	}

	log.Info().
		Int("markers", len(p.Markers)).
		Int("geocoded", p.WithCoordinates).
		Str("region", p.Title).
		Str("path", path).
		Msg("Map written")

	return &Result{Path: path, MainRegion: MainRegion(listings), Markers: len(p.Markers)}, nil
}

// FromFile loads a listings file and renders its map
func FromFile(path string, opts Options) (*Result, error) {
	listings, err := listing.Load(path)
	if err != nil {
		return nil, err
	}
	return Generate(listings, opts)
}
