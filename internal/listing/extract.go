package listing

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// R$ followed by digits and thousand separators, e.g. "R$ 699.000"
	priceRegex = regexp.MustCompile(`R\$[\s\x{00a0}]*([\d.]+)`)
	// number followed by m² or m2, comma or period decimals
	areaRegex = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)[\s\x{00a0}]*m[²2]`)
	// price token embedded in a listing path, e.g. "venda-RS295000-id-2869100154"
	urlPriceRegex = regexp.MustCompile(`(?:^|[/-])[Rr][Ss](\d+)(?:[-/?#]|$)`)
	nonDigitRegex = regexp.MustCompile(`\D`)
)

// Card is the raw material of one HTML listing card
type Card struct {
	// Href is the first anchor target found in the card
	Href string
	// PriceText is the text of the element that looks like a price, if any
	PriceText string
	// Text is the full visible text of the card
	Text string
}

// Extractor pulls listing fields out of raw text for one Site
type Extractor struct {
	site         Site
	linkRegex    *regexp.Regexp
	mdLinkRegex  *regexp.Regexp
	relLinkRegex *regexp.Regexp
	regionRegex  *regexp.Regexp
}

// NewExtractor compiles the site-specific patterns
func NewExtractor(site Site) *Extractor {
	origin := regexp.QuoteMeta(site.Origin)
	path := regexp.QuoteMeta(site.ListingPath)

	return &Extractor{
		site:         site,
		linkRegex:    regexp.MustCompile(origin + path + `[^\s)\]"'<>]+`),
		mdLinkRegex:  regexp.MustCompile(`\]\((` + origin + `/[^)\s]*)\)`),
		relLinkRegex: regexp.MustCompile(`\]\((` + path + `[^)\s]*)\)`),
		regionRegex:  regexp.MustCompile(`/([a-z-]+)-` + regexp.QuoteMeta(site.City) + `/`),
	}
}

// Site returns the site the extractor was built for
func (e *Extractor) Site() Site {
	return e.site
}

// ExtractPrice returns the first R$ amount in text as whole reais
func ExtractPrice(text string) (int64, bool) {
	match := priceRegex.FindStringSubmatch(text)
	if len(match) < 2 {
		return 0, false
	}
	return parseDigits(match[1])
}

// ExtractPriceFromURL returns the price encoded in a listing URL path
func ExtractPriceFromURL(link string) (int64, bool) {
	if link == "" {
		return 0, false
	}
	match := urlPriceRegex.FindStringSubmatch(link)
	if len(match) < 2 {
		return 0, false
	}
	return parseDigits(match[1])
}

// ExtractArea returns the first floor area in square metres found in text
func ExtractArea(text string) (float64, bool) {
	match := areaRegex.FindStringSubmatch(text)
	if len(match) < 2 {
		return 0, false
	}
	area, err := strconv.ParseFloat(strings.Replace(match[1], ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return area, true
}

// ExtractLink returns the listing URL in text. Bare listing URLs win over
// Markdown links; relative Markdown targets are resolved against the origin.
func (e *Extractor) ExtractLink(text string) (string, bool) {
	if link := e.linkRegex.FindString(text); link != "" {
		return link, true
	}
	if match := e.mdLinkRegex.FindStringSubmatch(text); len(match) > 1 {
		return match[1], true
	}
	if match := e.relLinkRegex.FindStringSubmatch(text); len(match) > 1 {
		return e.site.ResolveURL(match[1]), true
	}
	return "", false
}

// ExtractRegion returns the neighbourhood slug from a /{slug}-{city}/ segment
func (e *Extractor) ExtractRegion(link string) (string, bool) {
	match := e.regionRegex.FindStringSubmatch(link)
	if len(match) < 2 {
		return "", false
	}
	return match[1], true
}

// ExtractBlock turns one Markdown or plain-text block into a Listing.
// The price encoded in the URL takes precedence over any price in the text.
func (e *Extractor) ExtractBlock(block string) (Listing, bool) {
	link, ok := e.ExtractLink(block)
	if !ok {
		return Listing{}, false
	}

	price, ok := ExtractPriceFromURL(link)
	if !ok {
		price, ok = ExtractPrice(block)
	}
	if !ok {
		return Listing{}, false
	}

	area, ok := ExtractArea(block)
	if !ok {
		return Listing{}, false
	}

	region, _ := e.ExtractRegion(link)
	return New(link, price, area, region)
}

// ExtractCard turns one HTML card into a Listing. Price sources are tried in
// order: URL, price element, whole card text.
func (e *Extractor) ExtractCard(card Card) (Listing, bool) {
	link := e.site.ResolveURL(card.Href)
	if link == "" {
		return Listing{}, false
	}

	price, ok := ExtractPriceFromURL(link)
	if !ok && card.PriceText != "" {
		price, ok = ExtractPrice(card.PriceText)
	}
	if !ok {
		price, ok = ExtractPrice(card.Text)
	}
	if !ok {
		return Listing{}, false
	}

	area, ok := ExtractArea(card.Text)
	if !ok {
		return Listing{}, false
	}

	region, _ := e.ExtractRegion(link)
	return New(link, price, area, region)
}

func parseDigits(s string) (int64, bool) {
	digits := nonDigitRegex.ReplaceAllString(s, "")
	if digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
