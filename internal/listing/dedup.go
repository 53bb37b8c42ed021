package listing

// Key identifies a physical unit across re-crawls. When the region slug is
// known the same unit repeats price, area and region under rotating URLs;
// otherwise only the link can be trusted.
type Key struct {
	Price  int64
	Area   float64
	Region string
	Link   string
}

// DedupKey returns the deduplication key of a listing
func DedupKey(l Listing) Key {
	if l.Region != "" {
		return Key{Price: l.Price, Area: l.Area, Region: l.Region}
	}
	return Key{Link: l.Link}
}

// Deduplicate keeps the first listing seen per key, preserving input order
func Deduplicate(listings []Listing) []Listing {
	seen := make(map[Key]struct{}, len(listings))
	result := make([]Listing, 0, len(listings))

	for _, l := range listings {
		key := DedupKey(l)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, l)
	}

	return result
}
