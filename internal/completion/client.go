// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents a failure to open a stream.
type ClientError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Cause      error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel errors below by type, so
// errors.Is(err, ErrTimeout) holds for any timeout.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	return ok && isSentinel(t) && t.Type == e.Type
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeStatus
	ErrTypeNoBody
	ErrTypeCancelled
	ErrTypeInvalidRequest
)

// String returns the error type name used in logs.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeConnection:
		return "connection"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeStatus:
		return "status"
	case ErrTypeNoBody:
		return "no_body"
	case ErrTypeCancelled:
		return "cancelled"
	case ErrTypeInvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// Sentinel errors for easy checking.
var (
	ErrConnection = &ClientError{Type: ErrTypeConnection, Message: "completion service unreachable"}
	ErrTimeout    = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrNoBody     = &ClientError{Type: ErrTypeNoBody, Message: "response has no body"}
	ErrCancelled  = &ClientError{Type: ErrTypeCancelled, Message: "request cancelled"}
)

func isSentinel(e *ClientError) bool {
	return e == ErrConnection || e == ErrTimeout || e == ErrNoBody || e == ErrCancelled
}

// IsTimeout reports whether err is a timeout opening the stream.
func IsTimeout(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrTypeTimeout
}

// IsCancelled reports whether err comes from a cancelled context.
func IsCancelled(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrTypeCancelled
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Config holds configuration options for the completion client.
type Config struct {
	// Endpoint is the full URL requests are POSTed to
	// (default: http://localhost:8000/chat)
	Endpoint string

	// HeaderTimeout bounds the wait for response headers (default: 30s)
	HeaderTimeout time.Duration

	// DialTimeout bounds connection setup (default: 10s)
	DialTimeout time.Duration

	// UserAgent sent with every request (default: "compllama")
	UserAgent string

	// HTTPClient overrides the client built from the timeouts above.
	HTTPClient *http.Client
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:      "http://localhost:8000/chat",
		HeaderTimeout: 30 * time.Second,
		DialTimeout:   10 * time.Second,
		UserAgent:     "compllama",
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client opens streaming requests against one endpoint. It is safe for
// concurrent use.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a client. A nil config selects DefaultConfig.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	defaults := DefaultConfig()
	if config.Endpoint == "" {
		config.Endpoint = defaults.Endpoint
	}
	if config.HeaderTimeout <= 0 {
		config.HeaderTimeout = defaults.HeaderTimeout
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = defaults.DialTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		// No overall Timeout: a stream may legitimately run for minutes.
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: config.DialTimeout}).DialContext,
				ResponseHeaderTimeout: config.HeaderTimeout,
				MaxIdleConnsPerHost:   4,
				IdleConnTimeout:       90 * time.Second,
			},
		}
	}

	return &Client{config: config, httpClient: httpClient}
}

// Endpoint returns the URL requests are sent to.
func (c *Client) Endpoint() string {
	return c.config.Endpoint
}

// Open POSTs the request and returns the response body once headers arrive
// with a 2xx status. The caller must close the body. Cancelling ctx aborts
// both the request and any in-progress body read.
func (c *Client) Open(ctx context.Context, r Request) (io.ReadCloser, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson, application/json, text/plain")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &ClientError{
			Type:       ErrTypeStatus,
			Message:    "stream request failed: " + resp.Status + statusDetail(resp.Body),
			StatusCode: resp.StatusCode,
		}
	}

	if resp.Body == nil || resp.Body == http.NoBody || resp.StatusCode == http.StatusNoContent {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, ErrNoBody
	}

	return resp.Body, nil
}

// classify maps a transport error from Do onto a ClientError.
func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return &ClientError{Type: ErrTypeCancelled, Message: ErrCancelled.Message, Cause: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &ClientError{Type: ErrTypeTimeout, Message: ErrTimeout.Message, Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: ErrTimeout.Message, Cause: err}
	}
	return &ClientError{Type: ErrTypeConnection, Message: ErrConnection.Message, Cause: err}
}

// statusDetail reads a short error description from a failed response.
func statusDetail(body io.Reader) string {
	if body == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(body, 512))
	if err != nil || len(data) == 0 {
		return ""
	}

	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Error != "" {
			return fmt.Sprintf(" (%s)", payload.Error)
		}
		if payload.Detail != "" {
			return fmt.Sprintf(" (%s)", payload.Detail)
		}
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return ""
	}
	return fmt.Sprintf(" (%s)", text)
}
