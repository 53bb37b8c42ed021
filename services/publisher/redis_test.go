package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nery-alan/vivareal-market-research/internal/listing"
)

func TestStreamFor(t *testing.T) {
	p := NewRedisPublisher("localhost:6379", 0, "listings", 4, 100)
	defer p.Close()

	link := "https://www.vivareal.com.br/imovel/a"
	stream := p.StreamFor(link)
	assert.True(t, strings.HasPrefix(stream, "listings:"))
	assert.Equal(t, stream, p.StreamFor(link))

	single := NewRedisPublisher("localhost:6379", 0, "listings", 0, 100)
	defer single.Close()
	assert.Equal(t, "listings:0", single.StreamFor(link))
}

func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	publisher := NewRedisPublisher("localhost:6379", 0, "test_stream_r", 1, 10)
	defer publisher.Close()

	if err := publisher.Ping(ctx); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   0,
	})
	defer client.Close()
	require.NoError(t, client.Del(ctx, "test_stream_r:0").Err())

	l, ok := listing.New("https://www.vivareal.com.br/imovel/a", 400000, 42, "moema")
	require.True(t, ok)

	n, err := PublishListings(ctx, publisher, []listing.Listing{l})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := client.XRange(ctx, "test_stream_r:0", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	raw, err := base64.StdEncoding.DecodeString(entries[0].Values[ListingField].(string))
	require.NoError(t, err)

	var got listing.Listing
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, l.Link, got.Link)
	assert.Equal(t, l.Price, got.Price)
}
