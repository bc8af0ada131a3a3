package pdf

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// samplePDF builds minimal PDF-like bytes above the minimum size threshold.
func samplePDF() []byte {
	content := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 2048)...)
	return content
}

func testDownloader(cfg Config) *Downloader {
	cfg.AllowPrivateNetworks = true // httptest servers listen on loopback
	return NewDownloader(cfg)
}

func TestNewDownloaderDefaults(t *testing.T) {
	t.Parallel()

	d := NewDownloader(Config{})
	require.NotNil(t, d)
	assert.Equal(t, int64(MaxFileSize), d.maxSize)
	assert.Equal(t, 60*time.Second, d.client.Timeout)
	assert.NotEmpty(t, d.userAgent)
}

func TestDownloadSuccess(t *testing.T) {
	t.Parallel()

	content := samplePDF()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept"), "application/pdf")
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(content)
	}))
	defer server.Close()

	d := testDownloader(Config{})

	result, err := d.Download(context.Background(), server.URL)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, content, result.Content)
	assert.Equal(t, int64(len(content)), result.SizeBytes)
	assert.Equal(t, "application/pdf", result.ContentType)

	hash := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(hash[:]), result.ContentHash)
}

func TestDownloadOctetStreamPDFAccepted(t *testing.T) {
	t.Parallel()

	// Open-access mirrors often serve PDFs without a PDF content type; the
	// byte signature is what counts.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(samplePDF())
	}))
	defer server.Close()

	d := testDownloader(Config{})

	result, err := d.Download(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", result.ContentType)
}

func TestDownloadRejectsHTMLErrorPage(t *testing.T) {
	t.Parallel()

	page := append([]byte("<html><body>Access denied</body></html>"), bytes.Repeat([]byte(" "), 2048)...)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(page)
	}))
	defer server.Close()

	d := testDownloader(Config{})

	result, err := d.Download(context.Background(), server.URL)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestDownloadSizeBounds(t *testing.T) {
	t.Parallel()

	t.Run("too large", func(t *testing.T) {
		t.Parallel()
		big := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 4096)...)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(big)
		}))
		defer server.Close()

		d := testDownloader(Config{MaxSize: 2048})
		_, err := d.Download(context.Background(), server.URL)
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("too small", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("%PDF-1.4 tiny"))
		}))
		defer server.Close()

		d := testDownloader(Config{})
		_, err := d.Download(context.Background(), server.URL)
		assert.ErrorIs(t, err, ErrTooSmall)
	})
}

func TestDownloadHTTPErrors(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		d := testDownloader(Config{})
		_, err := d.Download(context.Background(), server.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDownloadFailed)
		server.Close()
	}
}

func TestDownloadFollowsRedirects(t *testing.T) {
	t.Parallel()

	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(samplePDF())
	}))
	defer final.Close()

	redirect := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusMovedPermanently)
	}))
	defer redirect.Close()

	d := testDownloader(Config{})

	result, err := d.Download(context.Background(), redirect.URL)
	require.NoError(t, err)
	assert.Equal(t, samplePDF(), result.Content)
}

func TestDownloadSSRFGuard(t *testing.T) {
	t.Parallel()

	d := NewDownloader(Config{})

	t.Run("loopback denied", func(t *testing.T) {
		t.Parallel()
		_, err := d.Download(context.Background(), "http://127.0.0.1:8080/paper.pdf")
		assert.ErrorIs(t, err, ErrSSRF)
	})

	t.Run("non-http scheme denied", func(t *testing.T) {
		t.Parallel()
		_, err := d.Download(context.Background(), "file:///etc/passwd")
		assert.ErrorIs(t, err, ErrSSRF)
	})
}

func TestDownloadContextCancellation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write(samplePDF())
	}))
	defer server.Close()

	d := testDownloader(Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := d.Download(ctx, server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDownloadFailed)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content []byte
		maxSize int64
		wantErr error
	}{
		{
			name:    "valid pdf",
			content: samplePDF(),
		},
		{
			name:    "missing signature",
			content: bytes.Repeat([]byte("a"), 2048),
			wantErr: ErrNotPDF,
		},
		{
			name:    "below minimum size",
			content: []byte("%PDF-1.4"),
			wantErr: ErrTooSmall,
		},
		{
			name:    "above maximum size",
			content: samplePDF(),
			maxSize: 100,
			wantErr: ErrTooLarge,
		},
		{
			name:    "empty",
			content: nil,
			wantErr: ErrTooSmall,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tt.content, tt.maxSize)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
