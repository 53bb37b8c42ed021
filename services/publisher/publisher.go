package publisher

import (
	"context"
	"encoding/json"

	"github.com/nery-alan/vivareal-market-research/internal/listing"
	"github.com/nery-alan/vivareal-market-research/logger"
	"github.com/nery-alan/vivareal-market-research/pkg/errors"
)

// ListingField is the stream entry field a listing is published under
const ListingField = "b64_listing"

// Publisher represents a service for publishing messages
type Publisher interface {
	// Publish publishes a message; key picks the stream partition
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

// PublishListings publishes every listing as JSON, partitioned by link, and
// trims the streams afterwards. It stops at the first failure and returns
// how many listings went out before it.
func PublishListings(ctx context.Context, p Publisher, listings []listing.Listing) (int, error) {
	log := logger.ForPublisher()

	published := 0
	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			return published, err
		}

		body, err := json.Marshal(l)
		if err != nil {
			return published, errors.NewPublisher(l.Link, "failed to encode listing", err)
		}
		if err := p.Publish(ctx, l.Link, body); err != nil {
			return published, errors.NewPublisher(l.Link, "failed to publish listing", err)
		}
		published++
	}

	if err := p.TrimStreams(ctx); err != nil {
		return published, errors.NewPublisher("*", "failed to trim streams", err)
	}

	log.Info().Int("published", published).Msg("Listings published")
	return published, nil
}
