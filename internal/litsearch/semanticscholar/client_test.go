package semanticscholar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribenet/thesis-service/internal/domain"
)

func newTestClient(t *testing.T, apiKey string, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:   srv.URL,
		APIKey:    apiKey,
		RateLimit: 1000,
	}, zerolog.Nop())
}

func TestSearch_MapsAndSortsPapers(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "secret-key", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/graph/v1/paper/search", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "secret-key", r.Header.Get("x-api-key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"total": 3,
			"data": [
				{"title": "No PDF, many citations", "citationCount": 900,
				 "externalIds": {"DOI": "10.1/a"}},
				{"title": "PDF, few citations", "citationCount": 3,
				 "externalIds": {"DOI": "10.1/b"},
				 "openAccessPdf": {"url": "https://pdf.example.org/b.pdf"}},
				{"title": "PDF, more citations", "citationCount": 40,
				 "externalIds": {"DOI": "10.1/c"},
				 "openAccessPdf": {"url": "https://pdf.example.org/c.pdf"},
				 "authors": [{"name": "C. Writer"}]}
			]
		}`))
	})

	sources, err := client.Search(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, sources, 3)

	// PDF-bearing papers first, citation count descending within each group.
	assert.Equal(t, "PDF, more citations", sources[0].Title)
	assert.Equal(t, "PDF, few citations", sources[1].Title)
	assert.Equal(t, "No PDF, many citations", sources[2].Title)

	assert.Equal(t, []string{"C. Writer"}, sources[0].Authors)
	assert.Equal(t, "10.1/c", sources[0].DOI)
	assert.Equal(t, domain.ProviderSemanticScholar, sources[0].Origin)
}

func TestSearch_NoAPIKeyHeaderWhenUnset(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("x-api-key"))
		_, _ = w.Write([]byte(`{"total": 0, "data": []}`))
	})

	sources, err := client.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestSearch_NonSuccessReturnsEmpty(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	sources, err := client.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, sources)
}
