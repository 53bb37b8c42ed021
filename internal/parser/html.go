package parser

import (
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nery-alan/vivareal-market-research/internal/listing"
)

const cardElements = "div, article, li"

// CardStrategy locates listing cards in a document. An empty selection
// means the strategy does not apply to this markup.
type CardStrategy struct {
	Name string
	Find func(doc *goquery.Document) *goquery.Selection
}

var priceClassRegex = regexp.MustCompile(`(?i)price`)

// DefaultStrategies are tried in order; the first non-empty result wins
func DefaultStrategies() []CardStrategy {
	return []CardStrategy{
		classPattern("property-card", `(?i)property.*card`),
		classPattern("result-card", `(?i)result.*card`),
		classPattern("listing-card", `(?i)listing.*card`),
		{
			Name: "data-type",
			Find: func(doc *goquery.Document) *goquery.Selection {
				return cardsOf(doc.Find(`[data-type="property"]`))
			},
		},
	}
}

// classPattern matches each class name of an element on its own, so
// "grid property-card" matches property.*card and "property grid-card" does not.
func classPattern(name, pattern string) CardStrategy {
	re := regexp.MustCompile(pattern)
	return CardStrategy{
		Name: name,
		Find: func(doc *goquery.Document) *goquery.Selection {
			return cardsOf(doc.Find(cardElements).FilterFunction(func(_ int, s *goquery.Selection) bool {
				class, _ := s.Attr("class")
				for _, token := range strings.Fields(class) {
					if re.MatchString(token) {
						return true
					}
				}
				return false
			}))
		},
	}
}

// cardsOf narrows strategy matches to listing cards. A match without an
// anchor is a part of a card, such as its price block. A match holding two
// cards side by side is a list wrapper and gives way to them. Of what is
// left only the outermost matches are kept, so a card's inner blocks never
// stand alone.
func cardsOf(sel *goquery.Selection) *goquery.Selection {
	linked := sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Is("a[href]") || s.Find("a[href]").Length() > 0
	})

	nodes := linked.Nodes
	kept := make([]*html.Node, 0, len(nodes))
	for _, n := range nodes {
		if !isWrapper(n, nodes) {
			kept = append(kept, n)
		}
	}

	cards := make([]*html.Node, 0, len(kept))
	for _, n := range kept {
		nested := false
		for _, outer := range kept {
			if outer != n && contains(outer, n) {
				nested = true
				break
			}
		}
		if !nested {
			cards = append(cards, n)
		}
	}
	return linked.FilterNodes(cards...)
}

// isWrapper reports whether n holds two matches neither of which is inside
// the other.
func isWrapper(n *html.Node, matches []*html.Node) bool {
	var inner []*html.Node
	for _, m := range matches {
		if m != n && contains(n, m) {
			inner = append(inner, m)
		}
	}
	for i, a := range inner {
		for _, b := range inner[i+1:] {
			if !contains(a, b) && !contains(b, a) {
				return true
			}
		}
	}
	return false
}

// contains reports whether b is a descendant of a
func contains(a, b *html.Node) bool {
	for p := b.Parent; p != nil; p = p.Parent {
		if p == a {
			return true
		}
	}
	return false
}

// anchorCards finds anchors pointing at listing pages and climbs to the
// nearest block element around each one.
func (p *Parser) anchorCards(doc *goquery.Document) *goquery.Selection {
	anchors := doc.Find("a[href]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		return strings.Contains(href, p.site.ListingPath)
	})
	return anchors.Closest(cardElements)
}

// findCards runs the strategy list and falls back to anchor ascent
func (p *Parser) findCards(doc *goquery.Document) (string, *goquery.Selection) {
	for _, strategy := range p.strategies {
		if cards := strategy.Find(doc); cards.Length() > 0 {
			return strategy.Name, cards
		}
	}
	return "anchor", p.anchorCards(doc)
}

// ParseHTML extracts every valid listing card from an HTML page in
// document order.
func (p *Parser) ParseHTML(r io.Reader) ([]listing.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	strategy, cards := p.findCards(doc)
	p.log.Debug().Str("strategy", strategy).Int("cards", cards.Length()).Msg("Located listing cards")

	listings := make([]listing.Listing, 0, cards.Length())
	cards.Each(func(_ int, s *goquery.Selection) {
		l, ok := p.extractor.ExtractCard(p.readCard(s))
		if ok {
			listings = append(listings, l)
		}
	})
	return listings, nil
}

func (p *Parser) readCard(s *goquery.Selection) listing.Card {
	return listing.Card{
		Href:      p.cardHref(s),
		PriceText: cardPrice(s),
		Text:      visibleText(s),
	}
}

// cardHref prefers an anchor that targets a listing page, else the first
// anchor in the card, else the card itself when it is an anchor.
func (p *Parser) cardHref(s *goquery.Selection) string {
	anchors := s.Find("a[href]").AddSelection(s.Filter("a[href]"))

	href := ""
	anchors.EachWithBreak(func(i int, a *goquery.Selection) bool {
		h, _ := a.Attr("href")
		if i == 0 {
			href = h
		}
		if strings.Contains(h, p.site.ListingPath) {
			href = h
			return false
		}
		return true
	})
	return href
}

func cardPrice(s *goquery.Selection) string {
	priced := s.Find("*").FilterFunction(func(_ int, e *goquery.Selection) bool {
		class, _ := e.Attr("class")
		return priceClassRegex.MatchString(class)
	})
	if priced.Length() == 0 {
		priced = s.Find(`[data-type="price"]`)
	}
	if priced.Length() > 0 {
		return visibleText(priced.First())
	}

	for _, text := range textNodes(s) {
		if strings.Contains(text, "R$") {
			return text
		}
	}
	return ""
}

// visibleText joins the text nodes of s with single spaces so that adjacent
// elements such as a price and an area never run together.
func visibleText(s *goquery.Selection) string {
	return strings.Join(textNodes(s), " ")
}

func textNodes(s *goquery.Selection) []string {
	var texts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				texts = append(texts, t)
			}
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" || n.Data == "noscript" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return texts
}
