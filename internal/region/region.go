package region

import (
	_ "embed"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v2"
)

// Zones of São Paulo as they appear in search URLs
const (
	ZoneSouth   = "zona-sul"
	ZoneNorth   = "zona-norte"
	ZoneWest    = "zona-oeste"
	ZoneEast    = "zona-leste"
	ZoneCentral = "centro"
)

//go:embed neighborhoods.yaml
var neighborhoodsYAML []byte

// Point is an approximate location
type Point struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

// Neighborhood is one entry of the embedded table
type Neighborhood struct {
	Zone string   `yaml:"zone"`
	Lat  *float64 `yaml:"lat"`
	Lng  *float64 `yaml:"lng"`
}

type table struct {
	DefaultCenter Point                   `yaml:"default_center"`
	Neighborhoods map[string]Neighborhood `yaml:"neighborhoods"`
}

var (
	known = mustLoad(neighborhoodsYAML)

	slugInvalid = regexp.MustCompile(`[^a-z0-9-]+`)
	slugDashes  = regexp.MustCompile(`-{2,}`)
)

func mustLoad(data []byte) table {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		panic("region: invalid neighborhoods table: " + err.Error())
	}
	return t
}

// Normalize turns a free-text neighbourhood name into a URL slug:
// "Freguesia do Ó" becomes "freguesia-do-o".
func Normalize(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}

	slug := strings.ToLower(strings.TrimSpace(stripped))
	slug = strings.Join(strings.Fields(slug), "-")
	slug = slugInvalid.ReplaceAllString(slug, "")
	slug = slugDashes.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// DisplayName turns a slug back into a title-cased name: "vila-mariana"
// becomes "Vila Mariana".
func DisplayName(slug string) string {
	words := strings.ReplaceAll(strings.TrimSpace(slug), "-", " ")
	return cases.Title(language.BrazilianPortuguese).String(words)
}

// Zone returns the zone of a known neighbourhood slug
func Zone(slug string) (string, bool) {
	n, ok := known.Neighborhoods[slug]
	if !ok || n.Zone == "" {
		return "", false
	}
	return n.Zone, true
}

// Lookup returns the approximate centre of a neighbourhood, if the table has one
func Lookup(slug string) (Point, bool) {
	n, ok := known.Neighborhoods[slug]
	if !ok || n.Lat == nil || n.Lng == nil {
		return Point{}, false
	}
	return Point{Lat: *n.Lat, Lng: *n.Lng}, true
}

// Coordinates returns the neighbourhood centre or the city centre
func Coordinates(slug string) Point {
	if p, ok := Lookup(slug); ok {
		return p
	}
	return DefaultCenter()
}

// DefaultCenter is the centre of São Paulo
func DefaultCenter() Point {
	return known.DefaultCenter
}

// Known returns every neighbourhood slug in the table, sorted
func Known() []string {
	slugs := make([]string, 0, len(known.Neighborhoods))
	for slug := range known.Neighborhoods {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// ValidZone reports whether zone is one the portal understands
func ValidZone(zone string) bool {
	switch zone {
	case ZoneSouth, ZoneNorth, ZoneWest, ZoneEast, ZoneCentral:
		return true
	}
	return false
}
