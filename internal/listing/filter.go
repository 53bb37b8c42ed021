package listing

import "fmt"

// AreaRange is an inclusive floor-area window in square metres
type AreaRange struct {
	Min float64
	Max float64
}

// DefaultAreaRange is the window used when the caller supplies none
var DefaultAreaRange = AreaRange{Min: 40, Max: 45}

// Contains reports whether area lies within the range, bounds included
func (r AreaRange) Contains(area float64) bool {
	return r.Min <= area && area <= r.Max
}

// String renders the range as it appears in folder names, e.g. "40-45"
func (r AreaRange) String() string {
	return fmt.Sprintf("%s-%s", formatBound(r.Min), formatBound(r.Max))
}

// FilterByArea returns the listings whose area falls within r
func FilterByArea(listings []Listing, r AreaRange) []Listing {
	result := make([]Listing, 0, len(listings))
	for _, l := range listings {
		if r.Contains(l.Area) {
			result = append(result, l)
		}
	}
	return result
}

// Refine applies the area filter and then deduplicates, so that an
// out-of-range listing never claims a dedup slot.
func Refine(listings []Listing, r AreaRange) []Listing {
	return Deduplicate(FilterByArea(listings, r))
}

func formatBound(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
