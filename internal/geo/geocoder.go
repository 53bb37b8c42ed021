package geo

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nery-alan/vivareal-market-research/internal/listing"
	"github.com/nery-alan/vivareal-market-research/pkg/errors"
)

// ErrNoResults is returned when a provider knows no location for an address
var ErrNoResults = stderrors.New("no results")

// UserAgent identifies the pipeline to public geocoding services
const UserAgent = "VivaRealMarketResearch/1.0"

// Geocoder resolves a free-form address to coordinates
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*listing.Coordinates, error)
	Name() string
}

// getJSON decodes the body of a GET on endpoint into v. Transport failures
// and non-200 answers are network errors, undecodable bodies parsing errors.
func getJSON(ctx context.Context, client *http.Client, provider, endpoint string, headers map[string]string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.NewNetwork(provider, "invalid request", err)
	}
	for k, val := range headers {
		req.Header.Set(k, val)
	}

	resp, err := client.Do(req)
	if err != nil {
		return errors.NewNetwork(provider, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.NewNetwork(provider, "unexpected status code: "+strconv.Itoa(resp.StatusCode), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.NewParsing(provider, "invalid response body", err)
	}
	return nil
}

// GoogleGeocoder uses the Google Geocoding API biased to Brazil
type GoogleGeocoder struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewGoogleGeocoder creates a Google geocoder; endpoint may be empty
func NewGoogleGeocoder(endpoint, apiKey string) *GoogleGeocoder {
	if endpoint == "" {
		endpoint = "https://maps.googleapis.com/maps/api/geocode/json"
	}
	return &GoogleGeocoder{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the provider name
func (g *GoogleGeocoder) Name() string {
	return "google"
}

// Geocode returns the location of the first result
func (g *GoogleGeocoder) Geocode(ctx context.Context, address string) (*listing.Coordinates, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("key", g.apiKey)
	params.Set("region", "br")

	var body struct {
		Status  string `json:"status"`
		Results []struct {
			Geometry struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
		ErrorMessage string `json:"error_message"`
	}

	if err := getJSON(ctx, g.client, g.Name(), g.endpoint+"?"+params.Encode(), nil, &body); err != nil {
		return nil, errors.NewGeocoding(g.Name(), address, err)
	}

	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, errors.NewGeocoding(g.Name(), address, ErrNoResults)
	default:
		msg := body.Status
		if body.ErrorMessage != "" {
			msg += ": " + body.ErrorMessage
		}
		return nil, errors.NewGeocoding(g.Name(), msg, nil)
	}
	if len(body.Results) == 0 {
		return nil, errors.NewGeocoding(g.Name(), address, ErrNoResults)
	}

	loc := body.Results[0].Geometry.Location
	return &listing.Coordinates{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// NominatimGeocoder uses an OpenStreetMap Nominatim server restricted to Brazil
type NominatimGeocoder struct {
	baseURL string
	client  *http.Client
}

// NewNominatimGeocoder creates a Nominatim geocoder for baseURL
func NewNominatimGeocoder(baseURL string) *NominatimGeocoder {
	return &NominatimGeocoder{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the provider name
func (n *NominatimGeocoder) Name() string {
	return "nominatim"
}

// Geocode returns the location of the best match
func (n *NominatimGeocoder) Geocode(ctx context.Context, address string) (*listing.Coordinates, error) {
	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("countrycodes", "br")

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}

	headers := map[string]string{"User-Agent": UserAgent}
	if err := getJSON(ctx, n.client, n.Name(), n.baseURL+"/search?"+params.Encode(), headers, &results); err != nil {
		return nil, errors.NewGeocoding(n.Name(), address, err)
	}
	if len(results) == 0 {
		return nil, errors.NewGeocoding(n.Name(), address, ErrNoResults)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, errors.NewGeocoding(n.Name(), "invalid latitude", err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, errors.NewGeocoding(n.Name(), "invalid longitude", err)
	}
	return &listing.Coordinates{Lat: lat, Lng: lng}, nil
}

// Chain asks each geocoder in turn and returns the first answer
type Chain []Geocoder

// Name returns the provider names joined by "+"
func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, g := range c {
		names[i] = g.Name()
	}
	return strings.Join(names, "+")
}

// Geocode tries every geocoder; the joined errors are returned when all fail
func (c Chain) Geocode(ctx context.Context, address string) (*listing.Coordinates, error) {
	var errs []error
	for _, g := range c {
		coords, err := g.Geocode(ctx, address)
		if err == nil {
			return coords, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.NewGeocoding("chain", "no geocoder configured", nil)
	}
	return nil, stderrors.Join(errs...)
}

// NewDefaultChain returns Google (when keyed) followed by Nominatim
func NewDefaultChain(googleKey, nominatimURL string) Chain {
	var chain Chain
	if googleKey != "" {
		chain = append(chain, NewGoogleGeocoder("", googleKey))
	}
	if nominatimURL != "" {
		chain = append(chain, NewNominatimGeocoder(nominatimURL))
	}
	return chain
}
