// Package pdf provides utilities for downloading and validating PDF files
// before they are uploaded to the retrieval store.
package pdf

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sentinel errors for PDF download and validation.
var (
	// ErrNotPDF is returned when the content does not carry the PDF byte signature.
	ErrNotPDF = errors.New("pdf: content is not a PDF")
	// ErrTooLarge is returned when the file exceeds the maximum allowed size.
	ErrTooLarge = errors.New("pdf: file exceeds maximum size")
	// ErrTooSmall is returned when the file is below the minimum plausible size.
	ErrTooSmall = errors.New("pdf: file below minimum size")
	// ErrDownloadFailed is returned when the download fails due to network or HTTP errors.
	ErrDownloadFailed = errors.New("pdf: download failed")
	// ErrSSRF is returned when the URL resolves to a private/internal network address.
	ErrSSRF = errors.New("pdf: request to private network denied")
)

// Size limits enforced before upload. MaxFileSize is the retrieval store's
// documented ceiling and must be checked client-side.
const (
	MaxFileSize = 20 * 1024 * 1024
	MinFileSize = 1024
)

// pdfSignature is the magic byte prefix of a PDF document.
var pdfSignature = []byte("%PDF-")

// DownloadResult holds the result of downloading a PDF.
type DownloadResult struct {
	// Content is the PDF bytes.
	Content []byte
	// ContentHash is the SHA-256 hex digest of the content.
	ContentHash string
	// SizeBytes is the size of the content in bytes.
	SizeBytes int64
	// ContentType is the Content-Type header from the response.
	ContentType string
}

// Config holds downloader configuration.
type Config struct {
	// Timeout is the HTTP request timeout. Default: 60 seconds.
	Timeout time.Duration
	// MaxSize is the maximum file size in bytes. Default: MaxFileSize.
	MaxSize int64
	// UserAgent is the User-Agent header.
	UserAgent string
	// AllowPrivateNetworks disables SSRF private-IP checks. This MUST only be
	// set to true in test environments. Production code must never set this.
	AllowPrivateNetworks bool
}

// Downloader downloads PDFs from URLs.
type Downloader struct {
	client               *http.Client
	maxSize              int64
	userAgent            string
	allowPrivateNetworks bool // For testing only; never enable in production.
}

// NewDownloader creates a new Downloader with the given configuration.
func NewDownloader(cfg Config) *Downloader {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = MaxFileSize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; Scribenet-ThesisService/1.0)"
	}

	d := &Downloader{
		maxSize:              cfg.MaxSize,
		userAgent:            cfg.UserAgent,
		allowPrivateNetworks: cfg.AllowPrivateNetworks,
	}

	d.client = &http.Client{
		Timeout: cfg.Timeout,
		// Validate each redirect URL against private IP checks to prevent
		// SSRF via open redirects that land on internal network addresses.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("%w: too many redirects", ErrSSRF)
			}
			if !d.allowPrivateNetworks {
				if err := validateURLNotPrivate(req.URL.String()); err != nil {
					return err
				}
			}
			return nil
		},
	}

	return d
}

// Download fetches a PDF from the given URL and validates its content.
// Returns ErrNotPDF if the bytes lack the PDF signature.
// Returns ErrTooLarge / ErrTooSmall when outside the size bounds.
// Returns ErrSSRF if the URL resolves to a private network address.
// Returns ErrDownloadFailed wrapped with HTTP status for non-2xx responses.
func (d *Downloader) Download(ctx context.Context, url string) (*DownloadResult, error) {
	if !d.allowPrivateNetworks {
		if err := validateURLNotPrivate(url); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL: %w", ErrDownloadFailed, err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "application/pdf, */*;q=0.8")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrDownloadFailed, resp.StatusCode)
	}

	// Read one extra byte to detect oversize without buffering the rest.
	limitReader := io.LimitReader(resp.Body, d.maxSize+1)
	content, err := io.ReadAll(limitReader)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrDownloadFailed, err)
	}

	if err := Validate(content, d.maxSize); err != nil {
		return nil, err
	}

	hash := sha256.Sum256(content)

	return &DownloadResult{
		Content:     content,
		ContentHash: hex.EncodeToString(hash[:]),
		SizeBytes:   int64(len(content)),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// Validate checks the byte signature and size bounds of a candidate PDF.
// Content-Type headers are deliberately not trusted: open-access mirrors
// routinely serve PDFs as octet-stream and HTML error pages as PDFs.
func Validate(content []byte, maxSize int64) error {
	if maxSize <= 0 {
		maxSize = MaxFileSize
	}
	if int64(len(content)) > maxSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(content), maxSize)
	}
	if len(content) < MinFileSize {
		return fmt.Errorf("%w: %d bytes", ErrTooSmall, len(content))
	}
	if !bytes.HasPrefix(content, pdfSignature) {
		return fmt.Errorf("%w: missing %%PDF- signature", ErrNotPDF)
	}
	return nil
}

// isPrivateIP returns true if the IP address is in a private, loopback, or
// otherwise non-routable range. Covers both IPv4 and IPv6 private ranges.
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	return ip.IsPrivate()
}

// validateURLNotPrivate resolves the hostname and rejects private IPs.
func validateURLNotPrivate(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSSRF, err)
	}

	// Reject non-HTTP(S) schemes to prevent file://, gopher://, etc.
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		// allowed
	default:
		return fmt.Errorf("%w: scheme %q is not allowed", ErrSSRF, parsed.Scheme)
	}

	host := parsed.Hostname()
	ips, err := net.LookupHost(host)
	if err != nil {
		return fmt.Errorf("%w: DNS lookup failed for %s: %w", ErrDownloadFailed, host, err)
	}
	for _, ipStr := range ips {
		ip := net.ParseIP(ipStr)
		if ip != nil && isPrivateIP(ip) {
			return fmt.Errorf("%w: %s resolves to private address %s", ErrSSRF, host, ipStr)
		}
	}
	return nil
}
