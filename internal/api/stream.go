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
	"strings"
	"time"

	"github.com/mathchat/mathchat-tui/internal/sse"
)

// STREAMING: Robust frame delivery with error handling

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamRequest describes one streaming exchange with the backend.
type StreamRequest struct {
	// SessionID selects the backend session. Required for chat; for web
	// search it is carried in the request body.
	SessionID string

	// Message is the user's message text, sent verbatim.
	Message string

	// WebSearch routes the request through the web-search endpoint.
	WebSearch bool
}

// FrameFunc is called once per decoded frame payload, in arrival order.
type FrameFunc func(payload string)

// chatRequest is the JSON body of a streaming request.
type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// =============================================================================
// STREAMING
// =============================================================================

// Stream performs a streaming exchange, invoking onFrame for every payload.
//
// Connection setup is retried with exponential backoff. Once the stream has
// started there are no retries: replaying frames would duplicate content.
// An error mid-stream is returned as a StreamError preserving the partial
// text; context cancellation is returned as ctx.Err() unwrapped, it is the
// caller's own decision, not a failure.
func (c *Client) Stream(ctx context.Context, req StreamRequest, onFrame FrameFunc) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	url := c.baseURL + "/chat/" + req.SessionID
	body := chatRequest{Message: req.Message}
	if req.WebSearch {
		url = c.baseURL + "/web_search"
		body.SessionID = req.SessionID
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.openStream(ctx, url, bodyBytes)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.consumeStream(ctx, resp.Body, onFrame)
}

// StreamChan performs a streaming exchange and delivers payloads over a
// channel. Both channels are closed when the stream ends; a non-nil error is
// delivered on the error channel first.
func (c *Client) StreamChan(ctx context.Context, req StreamRequest) (<-chan string, <-chan error) {
	frames := make(chan string, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(frames)
		defer close(errc)

		err := c.Stream(ctx, req, func(payload string) {
			select {
			case frames <- payload:
			case <-ctx.Done():
			}
		})
		// errc is buffered; the send never blocks and must not be skipped,
		// or a cancellation would be indistinguishable from completion.
		if err != nil {
			errc <- err
		}
	}()

	return frames, errc
}

// openStream establishes the streaming connection, retrying setup failures
// with exponential backoff.
// PERFORMANCE: Uses the shared streaming client with connection pooling.
func (c *Client) openStream(ctx context.Context, url string, bodyBytes []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(calculateBackoff(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")

		resp, err := sharedStreamingClient.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		respBody, _ := readResponse(resp)
		resp.Body.Close()
		statusErr := c.handleErrorResponse(resp.StatusCode, respBody)

		// Don't retry on 4xx apart from rate limiting.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, statusErr
		}
		lastErr = statusErr
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// consumeStream reads the response body until EOF, feeding each chunk to
// the frame decoder and delivering completed payloads. The termination
// sentinel is consumed by the decoder; EOF is the authoritative end of
// stream, and any unterminated residual is discarded on Flush.
func (c *Client) consumeStream(ctx context.Context, body io.Reader, onFrame FrameFunc) error {
	dec := sse.NewDecoder()
	var accumulated strings.Builder
	buf := make([]byte, 4096)

	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, payload := range dec.Feed(buf[:n]) {
				accumulated.WriteString(payload)
				onFrame(payload)
			}
		}
		if err == io.EOF {
			dec.Flush()
			return nil
		}
		if err != nil {
			// A cancelled context surfaces as a read error on the body.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &StreamError{Partial: accumulated.String(), Err: err}
		}
	}
}
