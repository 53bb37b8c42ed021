package listing

import (
	"math"
	"net/url"
	"strings"
)

// Listing is one apartment advert scraped from the portal
type Listing struct {
	Link        string       `json:"link"`
	Price       int64        `json:"price"`
	Area        float64      `json:"area"`
	PricePerSqm *float64     `json:"price_per_sqm"`
	Region      string       `json:"region,omitempty"`
	Address     *Address     `json:"address,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Address is attached by the enrichment pass
type Address struct {
	FullAddress  string `json:"full_address"`
	Street       string `json:"street,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
}

// Coordinates is a WGS84 point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// New materializes a Listing, or reports false when any required field is
// missing or the area is not positive.
func New(link string, price int64, area float64, region string) (Listing, bool) {
	if link == "" || price <= 0 || area <= 0 || math.IsNaN(area) || math.IsInf(area, 0) {
		return Listing{}, false
	}
	return Listing{
		Link:        link,
		Price:       price,
		Area:        area,
		PricePerSqm: PricePerSqm(price, area),
		Region:      region,
	}, true
}

// PricePerSqm returns price/area rounded to two decimals, or nil when the
// area is zero or negative.
func PricePerSqm(price int64, area float64) *float64 {
	if area <= 0 {
		return nil
	}
	v := math.Round(float64(price)/area*100) / 100
	return &v
}

// Recompute refreshes the derived price per square metre
func (l *Listing) Recompute() {
	l.PricePerSqm = PricePerSqm(l.Price, l.Area)
}

// Site describes the portal the listings come from
type Site struct {
	// Origin is scheme and host, e.g. https://www.vivareal.com.br
	Origin string
	// ListingPath is the path prefix of listing detail pages
	ListingPath string
	// City is the slug suffix used to pull the neighbourhood out of a URL
	City string
}

// DefaultSite returns the VivaReal São Paulo configuration
func DefaultSite() Site {
	return NewSite("https://www.vivareal.com.br")
}

// NewSite returns a Site for the given origin with the VivaReal path layout
func NewSite(origin string) Site {
	return Site{
		Origin:      strings.TrimRight(origin, "/"),
		ListingPath: "/imovel/",
		City:        "sao-paulo",
	}
}

// Host returns the host part of the origin
func (s Site) Host() string {
	u, err := url.Parse(s.Origin)
	if err != nil || u.Host == "" {
		return strings.TrimPrefix(strings.TrimPrefix(s.Origin, "https://"), "http://")
	}
	return u.Host
}

// Marker is the lowercase substring that identifies a listing link in raw text
func (s Site) Marker() string {
	host := strings.TrimPrefix(strings.ToLower(s.Host()), "www.")
	return host + strings.TrimSuffix(s.ListingPath, "/")
}

// ResolveURL turns a relative or protocol-relative href into an absolute URL
func (s Site) ResolveURL(href string) string {
	href = strings.TrimSpace(href)
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	case strings.HasPrefix(href, "/"):
		return s.Origin + href
	default:
		return href
	}
}
