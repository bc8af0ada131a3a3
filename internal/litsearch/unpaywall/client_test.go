package unpaywall

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:   srv.URL,
		Email:     "test@example.org",
		RateLimit: 1000,
	}, zerolog.Nop())
}

func TestResolvePDFURL_Found(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/10.1234/abc", r.URL.Path)
		assert.Equal(t, "test@example.org", r.URL.Query().Get("email"))
		_, _ = w.Write([]byte(`{"best_oa_location": {"url_for_pdf": "https://oa.example.org/abc.pdf"}}`))
	})

	url, err := client.ResolvePDFURL(context.Background(), "10.1234/abc")
	require.NoError(t, err)
	assert.Equal(t, "https://oa.example.org/abc.pdf", url)
}

func TestResolvePDFURL_FallsBackToLocationURL(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"best_oa_location": {"url": "https://oa.example.org/landing"}}`))
	})

	url, err := client.ResolvePDFURL(context.Background(), "10.1234/abc")
	require.NoError(t, err)
	assert.Equal(t, "https://oa.example.org/landing", url)
}

func TestResolvePDFURL_Misses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "404 not found",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			name: "no location",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"best_oa_location": null}`))
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, tt.handler)
			url, err := client.ResolvePDFURL(context.Background(), "10.1234/abc")
			require.NoError(t, err)
			assert.Empty(t, url)
		})
	}
}

func TestResolvePDFURL_EmptyDOI(t *testing.T) {
	t.Parallel()

	client := New(Config{BaseURL: "http://unused.invalid"}, zerolog.Nop())
	url, err := client.ResolvePDFURL(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, url)
}
