package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func mustListing(t *testing.T, link string, price int64, area float64, region string) Listing {
	t.Helper()
	l, ok := New(link, price, area, region)
	if !ok {
		t.Fatalf("invalid listing %s", link)
	}
	return l
}

func TestDeduplicate(t *testing.T) {
	a := mustListing(t, "https://www.vivareal.com.br/imovel/a/", 300000, 42, "moema")
	aRotated := mustListing(t, "https://www.vivareal.com.br/imovel/a/?utm_source=x", 300000, 42, "moema")
	b := mustListing(t, "https://www.vivareal.com.br/imovel/b/", 300000, 42, "")
	bAgain := mustListing(t, "https://www.vivareal.com.br/imovel/b/", 310000, 43, "")
	c := mustListing(t, "https://www.vivareal.com.br/imovel/c/", 300000, 42, "")
	d := mustListing(t, "https://www.vivareal.com.br/imovel/d/", 300000, 42, "santana")

	result := Deduplicate([]Listing{a, b, aRotated, bAgain, c, d})

	assert.Equal(t, []Listing{a, b, c, d}, result)
}

func TestDeduplicateKeepsFirstOccurrence(t *testing.T) {
	first := mustListing(t, "https://www.vivareal.com.br/imovel/first/", 300000, 42, "moema")
	second := mustListing(t, "https://www.vivareal.com.br/imovel/second/", 300000, 42, "moema")

	result := Deduplicate([]Listing{first, second})
	assert.Len(t, result, 1)
	assert.Equal(t, first.Link, result[0].Link)
}

func TestDeduplicateEmpty(t *testing.T) {
	assert.NotNil(t, Deduplicate(nil))
	assert.Empty(t, Deduplicate(nil))
}

func TestDedupKey(t *testing.T) {
	assert.Equal(t, Key{Price: 1, Area: 2, Region: "lapa"}, DedupKey(Listing{Link: "x", Price: 1, Area: 2, Region: "lapa"}))
	assert.Equal(t, Key{Link: "x"}, DedupKey(Listing{Link: "x", Price: 1, Area: 2}))
}
