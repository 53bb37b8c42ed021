package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nery-alan/vivareal-market-research/pkg/errors"
)

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("https://api.firecrawl.dev", "")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
}

func TestScrape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/scrape", r.URL.Path)
		assert.Equal(t, "Bearer fc-test", r.Header.Get("Authorization"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://www.vivareal.com.br/venda/", req["url"])
		assert.Equal(t, []interface{}{"markdown", "html"}, req["formats"])
		assert.Equal(t, false, req["onlyMainContent"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "data": {"markdown": "# Imóveis", "html": "<h1>Imóveis</h1>", "metadata": {"statusCode": 200}}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL+"/", "fc-test")
	require.NoError(t, err)

	doc, err := client.Scrape(context.Background(), "https://www.vivareal.com.br/venda/")
	require.NoError(t, err)
	assert.Equal(t, "# Imóveis", doc.Markdown)
	assert.Equal(t, "<h1>Imóveis</h1>", doc.HTML)
	assert.EqualValues(t, 200, doc.Metadata["statusCode"])
}

func TestScrapeFailures(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		body     string
		contains string
	}{
		{"unsuccessful", http.StatusOK, `{"success": false, "error": "blocked"}`, "blocked"},
		{"unsuccessful without message", http.StatusOK, `{"success": false}`, "unknown error"},
		{"http error", http.StatusPaymentRequired, `{"success": false, "error": "insufficient credits"}`, "status 402: insufficient credits"},
		{"bad gateway", http.StatusBadGateway, `<html>oops</html>`, "status 502"},
		{"invalid json", http.StatusOK, `not json`, "invalid scrape response"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client, err := NewClient(server.URL, "fc-test")
			require.NoError(t, err)

			_, err = client.Scrape(context.Background(), "https://www.vivareal.com.br/", FormatMarkdown)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}
