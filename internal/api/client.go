// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Configuration constants for the backend client.
const (
	// DefaultTimeout is the default timeout for non-streaming requests.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for
	// transient errors.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 10 * time.Second

	// MaxResponseSize caps non-streaming response bodies.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB

	// defaultRequestsPerSecond throttles outgoing requests so a fast typist
	// (or a runaway loop) cannot hammer the backend.
	defaultRequestsPerSecond = 5
)

var (
	// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
	// Shared HTTP client for all non-streaming backend requests.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient is used for streaming requests. No timeout:
	// stream lifetime is controlled via context.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
)

// =============================================================================
// SESSION TYPES
// =============================================================================

// SessionInfo is the lightweight session record returned by GET /sessions.
type SessionInfo struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SessionMessage is one stored message inside a session.
type SessionMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	WebSearch bool      `json:"web_search,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// UnmarshalJSON accepts both spellings the backend has used for the
// timestamp ("time", "timestamp") and the web-search flag ("is_web_search",
// "web_search").
func (m *SessionMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role        string    `json:"role"`
		Content     string    `json:"content"`
		WebSearch   bool      `json:"web_search"`
		IsWebSearch bool      `json:"is_web_search"`
		Timestamp   time.Time `json:"timestamp"`
		Time        time.Time `json:"time"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Role = raw.Role
	m.Content = raw.Content
	m.WebSearch = raw.WebSearch || raw.IsWebSearch
	m.Timestamp = raw.Timestamp
	if m.Timestamp.IsZero() {
		m.Timestamp = raw.Time
	}
	return nil
}

// SessionData is the full session record returned by GET /sessions/{id}.
type SessionData struct {
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Messages []SessionMessage `json:"messages"`
}

// apiErrorResponse is the backend's error envelope.
type apiErrorResponse struct {
	Error string `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a client for the mathchat backend.
type Client struct {
	baseURL    string
	maxRetries int
	limiter    *rate.Limiter
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		maxRetries: DefaultMaxRetries,
		limiter:    rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultRequestsPerSecond),
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func (c *Client) WithMaxRetries(maxRetries int) *Client {
	c.maxRetries = maxRetries
	return c
}

// WithRateLimit replaces the request throttle. Zero or negative rps disables
// throttling.
func (c *Client) WithRateLimit(rps float64) *Client {
	if rps <= 0 {
		c.limiter = nil
		return c
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// wait blocks until the rate limiter admits another request.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// =============================================================================
// SESSION OPERATIONS
// =============================================================================

// ListSessions retrieves the stored sessions, most recently updated first.
func (c *Client) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	body, err := c.getJSON(ctx, c.baseURL+"/sessions")
	if err != nil {
		return nil, err
	}

	sessions, err := parseSessionList(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sessions response: %w", err)
	}
	return sessions, nil
}

// parseSessionList decodes the GET /sessions response. The backend wraps the
// list in a {"sessions": ...} envelope and its canonical element is a bare
// session ID; richer record objects and a bare top-level array are accepted
// too.
func parseSessionList(body []byte) ([]SessionInfo, error) {
	trimmed := bytes.TrimSpace(body)

	var entries []json.RawMessage
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
	} else {
		var envelope struct {
			Sessions []json.RawMessage `json:"sessions"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, err
		}
		entries = envelope.Sessions
	}

	sessions := make([]SessionInfo, 0, len(entries))
	for _, entry := range entries {
		var id string
		if err := json.Unmarshal(entry, &id); err == nil {
			sessions = append(sessions, SessionInfo{ID: id})
			continue
		}
		var info SessionInfo
		if err := json.Unmarshal(entry, &info); err != nil {
			return nil, err
		}
		sessions = append(sessions, info)
	}
	return sessions, nil
}

// GetSession loads one session with its messages. A missing session yields
// ErrSessionNotFound; treat it as a notice, the session may have been
// deleted from another client.
func (c *Client) GetSession(ctx context.Context, id string) (*SessionData, error) {
	body, err := c.getJSON(ctx, c.baseURL+"/sessions/"+id)
	if err != nil {
		return nil, err
	}

	var session SessionData
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}
	return &session, nil
}

// DeleteSession removes a session from the backend.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/sessions/"+id, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := readResponse(resp)
		return c.handleErrorResponse(resp.StatusCode, body)
	}
	return nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// getJSON performs a GET request and returns the response body.
func (c *Client) getJSON(ctx context.Context, url string) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp.StatusCode, body)
	}
	return body, nil
}

// doWithRetry performs an HTTP request with retry and exponential backoff.
// Retries on connection errors, 5xx responses and rate limiting; never on
// other 4xx responses or context cancellation.
// PERFORMANCE: Uses the shared pooled HTTP client.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(calculateBackoff(attempt)):
			}
		}

		resp, err := sharedHTTPClient.Do(req.Clone(ctx))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			lastErr = c.retryableStatusError(resp)
			resp.Body.Close()
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// retryableStatusError converts a retryable response into its error form,
// preserving the Retry-After hint on 429.
func (c *Client) retryableStatusError(resp *http.Response) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		if after := resp.Header.Get("Retry-After"); after != "" {
			if seconds, err := strconv.Atoi(after); err == nil {
				return &RateLimitError{RetryAfter: time.Duration(seconds) * time.Second}
			}
			if t, err := http.ParseTime(after); err == nil {
				return &RateLimitError{RetryAfter: time.Until(t)}
			}
		}
		return ErrRateLimited
	}
	return &BackendError{Status: resp.StatusCode}
}

// handleErrorResponse converts an HTTP error response into a Go error.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return &BackendError{Status: statusCode, Message: apiErr.Error}
	}
	return &BackendError{Status: statusCode, Message: strings.TrimSpace(string(body))}
}

// readResponse reads a response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// calculateBackoff returns the delay before the next retry attempt.
func calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}
