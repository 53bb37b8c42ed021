package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/nery-alan/vivareal-market-research/internal/listing"
)

// maxLineBytes bounds the lines kept for extraction. Longer lines are
// inline data: images and similar payloads, never listing text.
const maxLineBytes = 64 * 1024

// SplitBlocks segments a Markdown document into candidate listing blocks.
// A line containing marker (compared lowercase) opens a new block; every
// following line belongs to it until the next marker line. Lines before the
// first marker form a leading block of their own when they are not blank.
// Lines longer than maxLineBytes are skipped.
func SplitBlocks(r io.Reader, marker string) ([]string, error) {
	marker = strings.ToLower(marker)

	var (
		blocks  []string
		current []string
	)
	flush := func() {
		block := strings.Join(current, "\n")
		if strings.TrimSpace(block) != "" {
			blocks = append(blocks, block)
		}
		current = nil
	}

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" && len(line) <= maxLineBytes {
			line = strings.TrimRight(line, "\r\n")
			if strings.Contains(strings.ToLower(line), marker) {
				flush()
			}
			current = append(current, line)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	flush()
	return blocks, nil
}

// ParseMarkdown extracts every valid listing from a Markdown document in
// source order. Blocks without a complete listing are skipped.
func (p *Parser) ParseMarkdown(r io.Reader) ([]listing.Listing, error) {
	blocks, err := SplitBlocks(r, p.site.Marker())
	if err != nil {
		return nil, err
	}

	listings := make([]listing.Listing, 0, len(blocks))
	for _, block := range blocks {
		l, ok := p.extractor.ExtractBlock(block)
		if !ok {
			continue
		}
		listings = append(listings, l)
	}
	return listings, nil
}
