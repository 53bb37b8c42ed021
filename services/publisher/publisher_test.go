package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nery-alan/vivareal-market-research/internal/listing"
	perrors "github.com/nery-alan/vivareal-market-research/pkg/errors"
)

// MockPublisher records published messages
type MockPublisher struct {
	Keys     []string
	Messages [][]byte
	Trimmed  int
	FailOn   int
}

func (m *MockPublisher) Publish(ctx context.Context, key string, message []byte) error {
	if m.FailOn > 0 && len(m.Keys)+1 == m.FailOn {
		return errors.New("connection refused")
	}
	m.Keys = append(m.Keys, key)
	m.Messages = append(m.Messages, message)
	return nil
}

func (m *MockPublisher) TrimStreams(ctx context.Context) error {
	m.Trimmed++
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

func listings(t *testing.T) []listing.Listing {
	t.Helper()
	a, ok := listing.New("https://x/imovel/a", 400000, 42, "moema")
	require.True(t, ok)
	b, ok := listing.New("https://x/imovel/b", 450000, 44, "moema")
	require.True(t, ok)
	return []listing.Listing{a, b}
}

func TestPublishListings(t *testing.T) {
	mock := &MockPublisher{}

	n, err := PublishListings(context.Background(), mock, listings(t))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"https://x/imovel/a", "https://x/imovel/b"}, mock.Keys)
	assert.Equal(t, 1, mock.Trimmed)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(mock.Messages[0], &decoded))
	assert.Equal(t, "https://x/imovel/a", decoded["link"])
	assert.Equal(t, 9523.81, decoded["price_per_sqm"])
}

func TestPublishListingsStopsOnFailure(t *testing.T) {
	mock := &MockPublisher{FailOn: 2}

	n, err := PublishListings(context.Background(), mock, listings(t))
	assert.Equal(t, 1, n)
	assert.True(t, perrors.IsType(err, perrors.ErrorTypePublisher))
	assert.Equal(t, 0, mock.Trimmed)
}

func TestPublishListingsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := PublishListings(ctx, &MockPublisher{}, listings(t))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, context.Canceled)
}
