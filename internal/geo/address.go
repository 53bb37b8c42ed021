package geo

import (
	"regexp"
	"strings"

	"github.com/nery-alan/vivareal-market-research/internal/listing"
	"github.com/nery-alan/vivareal-market-research/internal/region"
)

const citySuffix = ", São Paulo - SP"

var (
	// "Rua X - Bairro, São Paulo - SP"
	streetNeighborhoodCity = regexp.MustCompile(`(?i)((?:Rua|Avenida|Alameda|Travessa|Praça)\s+[^,\n\]]+?)\s*-\s*([^,\n\]]+),\s*São Paulo\s*-\s*SP`)
	// "Rua X - Bairro"
	streetNeighborhood = regexp.MustCompile(`(?i)((?:Rua|Avenida|Alameda|Travessa|Praça)\s+[^-\n\]]+?)\s*-\s*([^,\n\]]+)`)
	// "Endereço: Rua X"
	labeledStreet = regexp.MustCompile(`(?i)Endereço[:\s]+((?:Rua|Avenida|Alameda)\s+[^,\n\]]+)`)

	markdownTarget = regexp.MustCompile(`\]\(https?://[^)]+\)`)
	zoneSegment    = regexp.MustCompile(`/([a-z0-9-]+?)-zona-(?:sul|norte|leste|oeste|centro|central)\b`)
	hasDigit       = regexp.MustCompile(`\d`)
)

// words that describe the unit rather than the place in listing slugs
var unitWords = map[string]bool{
	"apartamento": true, "apartamentos": true, "casa": true, "casas": true,
	"kitnet": true, "studio": true, "cobertura": true, "flat": true, "condominio": true,
	"quarto": true, "quartos": true, "suite": true, "suites": true,
	"banheiro": true, "banheiros": true, "vaga": true, "vagas": true,
	"com": true, "para": true, "venda": true, "aluguel": true, "de": true, "em": true,
}

func cleanText(text string) string {
	text = markdownTarget.ReplaceAllString(text, "")
	text = strings.NewReplacer("[", "", "]", "", `")`, "").Replace(text)
	return strings.Join(strings.Fields(text), " ")
}

// ExtractAddress finds a street address in a listing page. Patterns are
// tried from most to least specific; when none matches, the neighbourhood
// is taken from the listing URL.
func ExtractAddress(text, link string) (*listing.Address, bool) {
	for _, re := range []*regexp.Regexp{streetNeighborhoodCity, streetNeighborhood} {
		match := re.FindStringSubmatch(text)
		if len(match) < 3 {
			continue
		}
		street := cleanText(match[1])
		neighborhood := cleanText(match[2])
		if street == "" || neighborhood == "" {
			continue
		}
		return &listing.Address{
			FullAddress:  street + " - " + neighborhood + citySuffix,
			Street:       street,
			Neighborhood: neighborhood,
		}, true
	}

	if match := labeledStreet.FindStringSubmatch(text); len(match) > 1 {
		if street := cleanText(match[1]); street != "" {
			return &listing.Address{
				FullAddress: street + citySuffix,
				Street:      street,
			}, true
		}
	}

	if slug, ok := NeighborhoodFromURL(link); ok {
		name := region.DisplayName(slug)
		return &listing.Address{
			FullAddress:  name + citySuffix,
			Neighborhood: name,
		}, true
	}

	return nil, false
}

// NeighborhoodFromURL returns the neighbourhood slug that precedes the
// "-zona-x" part of a listing URL. Known neighbourhoods are matched first;
// otherwise words describing the unit are dropped from the front.
func NeighborhoodFromURL(link string) (string, bool) {
	match := zoneSegment.FindStringSubmatch(strings.ToLower(link))
	if len(match) < 2 {
		return "", false
	}

	words := strings.Split(match[1], "-")

	// longest known suffix wins, e.g. "alto-de-pinheiros" over "pinheiros"
	for i := 0; i < len(words); i++ {
		candidate := strings.Join(words[i:], "-")
		if _, ok := region.Zone(candidate); ok {
			return candidate, true
		}
	}

	start := 0
	for i, w := range words {
		if hasDigit.MatchString(w) || unitWords[w] {
			start = i + 1
		}
	}
	rest := words[start:]
	if len(rest) == 0 {
		return "", false
	}
	return strings.Join(rest, "-"), true
}
