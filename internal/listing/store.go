package listing

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nery-alan/vivareal-market-research/pkg/errors"
)

//go:embed schema.json
var schemaJSON string

var listingsSchema = jsonschema.MustCompileString("listings.schema.json", schemaJSON)

// Marshal renders listings as the canonical JSON array: two-space indent,
// non-ASCII and HTML characters kept literal, never "null".
func Marshal(listings []Listing) ([]byte, error) {
	if listings == nil {
		listings = []Listing{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(listings); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes listings to path, creating parent directories as needed
func Save(path string, listings []Listing) error {
	data, err := Marshal(listings)
	if err != nil {
		return errors.New(errors.ErrorTypeValidation, path, "failed to encode listings", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(errors.ErrorTypeValidation, path, "failed to create output directory", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New(errors.ErrorTypeValidation, path, "failed to write listings", err)
	}
	return nil
}

// Load reads and validates a listings file written by Save
func Load(path string) ([]Listing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewMissingInput(path, err)
		}
		return nil, errors.NewParsing(path, "failed to read listings", err)
	}

	return Decode(path, data)
}

// Decode validates data against the listings schema and unmarshals it.
// Derived fields are recomputed rather than trusted.
func Decode(source string, data []byte) ([]Listing, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewParsing(source, "listings file is not valid JSON", err)
	}
	if err := listingsSchema.Validate(raw); err != nil {
		return nil, errors.New(errors.ErrorTypeValidation, source, "listings file does not match schema", err)
	}

	var listings []Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, errors.NewParsing(source, "failed to decode listings", err)
	}
	for i := range listings {
		listings[i].Recompute()
	}
	return listings, nil
}
