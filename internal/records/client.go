package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	dErrors "pharmatrace/pkg/domain-errors"
)

const uploadPath = "/api/upload-record"

// User-facing outcome messages.
const (
	MsgUploaded      = "Medical record uploaded successfully!"
	MsgUploadFailed  = "Failed to upload record. Please try again."
	MsgNetworkFailed = "Network error. Please check your connection and try again."
)

// ErrNetwork marks failures to reach the records API or read its reply.
var ErrNetwork = errors.New(MsgNetworkFailed)

// RejectedError is a non-2xx reply. Message is the API's error text, or
// MsgUploadFailed when it sent none.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string { return e.Message }

// Client talks to the records API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

// NewClient returns a client for the API at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload validates rec and posts it. Validation failures return before any
// request is made. The decoded success body is returned as-is.
func (c *Client) Upload(ctx context.Context, rec UploadRecord) (map[string]any, error) {
	if err := Validate(rec); err != nil {
		return nil, err
	}
	if c.baseURL == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "records API URL is not configured")
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "records upload failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	var result map[string]any
	decodeErr := json.Unmarshal(raw, &result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := MsgUploadFailed
		if decodeErr == nil {
			if s, ok := result["error"].(string); ok && s != "" {
				msg = s
			}
		}
		c.logger.WarnContext(ctx, "records upload rejected",
			"status", resp.StatusCode,
			"error", msg,
		)
		return nil, &RejectedError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrNetwork, decodeErr)
	}
	return result, nil
}
