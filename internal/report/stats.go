package report

import (
	"math"
	"sort"

	"github.com/nery-alan/vivareal-market-research/internal/listing"
)

// Summary describes one numeric column
type Summary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	// Std is the sample standard deviation; zero for fewer than two values
	Std float64 `json:"std"`
}

// Stats is the market summary of a listing set
type Stats struct {
	Count       int     `json:"total_listings"`
	Price       Summary `json:"price"`
	Area        Summary `json:"area"`
	PricePerSqm Summary `json:"price_per_sqm"`
}

// Calculate computes the statistics of listings. Listings without a price
// per square metre are left out of that column only.
func Calculate(listings []listing.Listing) Stats {
	prices := make([]float64, 0, len(listings))
	areas := make([]float64, 0, len(listings))
	perSqm := make([]float64, 0, len(listings))

	for _, l := range listings {
		prices = append(prices, float64(l.Price))
		areas = append(areas, l.Area)
		if l.PricePerSqm != nil {
			perSqm = append(perSqm, *l.PricePerSqm)
		}
	}

	return Stats{
		Count:       len(listings),
		Price:       summarize(prices),
		Area:        summarize(areas),
		PricePerSqm: summarize(perSqm),
	}
}

func summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	var std float64
	if n > 1 {
		var sq float64
		for _, v := range sorted {
			sq += (v - mean) * (v - mean)
		}
		std = math.Sqrt(sq / float64(n-1))
	}

	return Summary{
		Mean:   mean,
		Median: median,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Std:    std,
	}
}
