// Package retrieval provides an HTTP client for the retrieval store, the RAG
// backend that chunks and indexes uploaded documents for the generation phase.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribenet/thesis-service/internal/domain"
)

// Document processing states reported by the store.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Timing and size limits for uploads.
const (
	// DefaultPollInterval is the pause between status polls.
	DefaultPollInterval = 5 * time.Second

	// DefaultPollTimeout is the wall-clock ceiling for one document's
	// asynchronous processing.
	DefaultPollTimeout = 5 * time.Minute

	// maxUploadSize is the store's documented file-size ceiling, enforced
	// client-side before the request is built.
	maxUploadSize = 20 * 1024 * 1024
)

// Sentinel errors.
var (
	// ErrProcessingFailed is returned when the store reports a failed document.
	ErrProcessingFailed = errors.New("retrieval: document processing failed")
	// ErrProcessingTimeout is returned when polling exceeds the wall-clock ceiling.
	ErrProcessingTimeout = errors.New("retrieval: document processing timed out")
)

// Handle identifies an uploaded document whose processing is asynchronous.
type Handle struct {
	// DocumentID is the store's identifier for the uploaded document.
	DocumentID string
	// StoreID is the retrieval store the document was uploaded to.
	StoreID string
}

// Status is one poll result for a Handle.
type Status struct {
	// State is one of the Status* constants.
	State string
	// Error holds the store's failure detail when State is failed.
	Error string
}

// Done reports whether the document reached a terminal state.
func (s Status) Done() bool {
	return s.State == StatusCompleted || s.State == StatusFailed
}

// Config holds retrieval store client configuration.
type Config struct {
	// BaseURL is the store's API root (e.g. "https://retrieval.internal").
	BaseURL string
	// APIKey authenticates requests (sent as a bearer token).
	APIKey string
	// Timeout is the per-request HTTP timeout. Defaults to 60 seconds.
	Timeout time.Duration
	// PollInterval is the pause between status polls.
	PollInterval time.Duration
	// PollTimeout is the processing wall-clock ceiling.
	PollTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
}

// Client talks to the retrieval store over HTTP.
type Client struct {
	httpClient *http.Client
	cfg        Config
	logger     zerolog.Logger
}

// NewClient creates a retrieval store client.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("retrieval store base URL is required")
	}
	cfg.applyDefaults()

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger.With().Str("component", "retrieval_client").Logger(),
	}, nil
}

// uploadResponse is the store's reply to a document upload.
type uploadResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// statusResponse is the store's reply to a status poll.
type statusResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// Upload sends PDF bytes with bibliographic metadata to the given store and
// returns a Handle for polling. The store indexes asynchronously; a returned
// Handle says nothing about eventual processing success.
func (c *Client) Upload(ctx context.Context, storeID, fileName string, content []byte, meta domain.IngestionMetadata) (*Handle, error) {
	if len(content) > maxUploadSize {
		return nil, fmt.Errorf("retrieval: content %d bytes exceeds upload limit %d", len(content), maxUploadSize)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("retrieval: create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("retrieval: write form file: %w", err)
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("retrieval: marshal metadata: %w", err)
	}
	if err := writer.WriteField("metadata", string(metaJSON)); err != nil {
		return nil, fmt.Errorf("retrieval: write metadata field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("retrieval: close multipart writer: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/stores/%s/documents", c.cfg.BaseURL, storeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("retrieval: create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieval: upload request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("retrieval: read upload response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.NewExternalAPIError("retrieval_store", resp.StatusCode,
			fmt.Sprintf("upload failed: %s", respBody), nil)
	}

	var upResp uploadResponse
	if err := json.Unmarshal(respBody, &upResp); err != nil {
		return nil, fmt.Errorf("retrieval: decode upload response: %w", err)
	}
	if upResp.DocumentID == "" {
		return nil, fmt.Errorf("retrieval: upload response missing document id")
	}

	c.logger.Debug().
		Str("store_id", storeID).
		Str("document_id", upResp.DocumentID).
		Int("size_bytes", len(content)).
		Msg("document uploaded")

	return &Handle{DocumentID: upResp.DocumentID, StoreID: storeID}, nil
}

// PollStatus fetches the current processing state of an uploaded document.
func (c *Client) PollStatus(ctx context.Context, handle *Handle) (Status, error) {
	endpoint := fmt.Sprintf("%s/v1/stores/%s/documents/%s", c.cfg.BaseURL, handle.StoreID, handle.DocumentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Status{}, fmt.Errorf("retrieval: create status request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("retrieval: status request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Status{}, fmt.Errorf("retrieval: read status response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Status{}, domain.NewExternalAPIError("retrieval_store", resp.StatusCode,
			fmt.Sprintf("status poll failed: %s", respBody), nil)
	}

	var stResp statusResponse
	if err := json.Unmarshal(respBody, &stResp); err != nil {
		return Status{}, fmt.Errorf("retrieval: decode status response: %w", err)
	}

	return Status{State: stResp.Status, Error: stResp.Error}, nil
}

// WaitForCompletion polls until the document reaches a terminal state or the
// wall-clock ceiling elapses. A failed document returns ErrProcessingFailed;
// an elapsed ceiling returns ErrProcessingTimeout.
func (c *Client) WaitForCompletion(ctx context.Context, handle *Handle) error {
	deadline := time.Now().Add(c.cfg.PollTimeout)

	for {
		status, err := c.PollStatus(ctx, handle)
		if err != nil {
			return err
		}

		switch status.State {
		case StatusCompleted:
			return nil
		case StatusFailed:
			return fmt.Errorf("%w: %s", ErrProcessingFailed, status.Error)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: after %s", ErrProcessingTimeout, c.cfg.PollTimeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}
}
