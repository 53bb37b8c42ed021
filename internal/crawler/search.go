package crawler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/nery-alan/vivareal-market-research/internal/listing"
	"github.com/nery-alan/vivareal-market-research/internal/region"
	"github.com/nery-alan/vivareal-market-research/pkg/errors"
)

// SearchParams selects one search results listing on the portal
type SearchParams struct {
	Transaction  string // venda or aluguel
	Business     string // residencial or comercial
	PropertyType string // apartamento, casa, casa-de-condominio, kitnet
	State        string
	City         string
	Zone         string
	Region       string
	Area         listing.AreaRange
}

// DefaultSearchParams returns a residential apartment sale search in São Paulo
func DefaultSearchParams(regionName string, area listing.AreaRange) SearchParams {
	return SearchParams{
		Transaction:  "venda",
		Business:     "residencial",
		PropertyType: "apartamento",
		State:        "sp",
		City:         "sao-paulo",
		Region:       regionName,
		Area:         area,
	}
}

// Normalized fills defaults, slugs the region and resolves its zone from
// the neighbourhood table when none was given.
func (p SearchParams) Normalized() (SearchParams, error) {
	if p.Transaction == "" {
		p.Transaction = "venda"
	}
	if p.Business == "" {
		p.Business = "residencial"
	}
	if p.PropertyType == "" {
		p.PropertyType = "apartamento"
	}
	if p.State == "" {
		p.State = "sp"
	}
	if p.City == "" {
		p.City = "sao-paulo"
	}

	p.Region = region.Normalize(p.Region)
	if p.Region == "" {
		return p, errors.NewValidation("search", "region is required")
	}

	p.Zone = region.Normalize(p.Zone)
	if p.Zone == "" {
		zone, ok := region.Zone(p.Region)
		if !ok {
			return p, errors.NewValidation("search", fmt.Sprintf("unknown zone for region %q; pass it explicitly", p.Region))
		}
		p.Zone = zone
	}
	if !region.ValidZone(p.Zone) {
		return p, errors.NewValidation("search", fmt.Sprintf("invalid zone %q", p.Zone))
	}

	if p.Area.Min < 0 || p.Area.Max < p.Area.Min {
		return p, errors.NewValidation("search", fmt.Sprintf("invalid area range %s", p.Area))
	}
	return p, nil
}

// BuildSearchURL returns the first results page URL, e.g.
// https://www.vivareal.com.br/venda/sp/sao-paulo/zona-norte/freguesia-do-o/apartamento_residencial/?tipos=apartamento&areaUtil=40-45
func BuildSearchURL(baseURL string, params SearchParams) (string, error) {
	p, err := params.Normalized()
	if err != nil {
		return "", err
	}

	path := "/" + strings.Join([]string{
		p.Transaction,
		p.State,
		p.City,
		p.Zone,
		p.Region,
		p.PropertyType + "_" + p.Business,
	}, "/") + "/"

	query := "tipos=" + url.QueryEscape(p.PropertyType) + "&areaUtil=" + p.Area.String()

	return strings.TrimRight(baseURL, "/") + path + "?" + query, nil
}

// PageURL returns the URL of results page n of a search URL
func PageURL(searchURL string, page int) string {
	if page <= 1 {
		return searchURL
	}
	separator := "?"
	if strings.Contains(searchURL, "?") {
		separator = "&"
	}
	return searchURL + separator + "pagina=" + strconv.Itoa(page)
}
