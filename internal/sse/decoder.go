// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse implements an incremental decoder for the Server-Sent-Events
// style stream produced by the mathchat backend.
//
// The decoder is push-based: the transport loop feeds it raw body chunks as
// they arrive and receives complete event payloads back. All parsing state
// (the undecoded residual since the last frame boundary) lives inside the
// Decoder, so the package has no dependency on any transport or UI code and
// is testable with plain byte slices.
//
// STREAMING: Robust frame reassembly across arbitrary chunk boundaries.
package sse

import (
	"bytes"
	"strings"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// dataPrefix marks a frame that carries an event payload. Frames without
	// it (comments, ids, retry hints) are silently dropped.
	dataPrefix = "data:"

	// DoneSentinel is the payload the backend may send to announce the end of
	// a stream. It is consumed by the decoder and never yielded. Stream
	// termination is driven by transport EOF; a stream that never sends the
	// sentinel is not an error.
	DoneSentinel = "[DONE]"
)

// =============================================================================
// DECODER
// =============================================================================

// Decoder splits a chunked byte stream into event payloads.
//
// Frames are separated by a blank line (two consecutive line terminators,
// with optional carriage returns). A chunk may end mid-frame, mid-line, or
// mid-rune: the residual is kept as raw bytes and frames are only decoded to
// strings once a complete boundary has been seen, so a multi-byte UTF-8
// sequence split across Feed calls can never produce replacement characters.
//
// The zero value is ready to use.
type Decoder struct {
	rest []byte // bytes received since the last frame boundary
}

// NewDecoder creates a decoder with an empty residual.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends chunk to the residual and returns the payloads of all frames
// completed by it, in arrival order. Frames that do not start with the
// "data:" marker, and the termination sentinel, yield nothing.
func (d *Decoder) Feed(chunk []byte) []string {
	d.rest = append(d.rest, chunk...)

	var payloads []string
	for {
		frame, rest, ok := splitFrame(d.rest)
		if !ok {
			break
		}
		d.rest = rest
		if payload, ok := framePayload(frame); ok {
			payloads = append(payloads, payload)
		}
	}
	return payloads
}

// Flush discards any non-terminated residual and returns it for diagnostics.
// Call it once the transport reports no more data. Most streams end on a
// frame boundary, so the residual is normally empty; a non-empty residual is
// not an error.
func (d *Decoder) Flush() string {
	rest := string(d.rest)
	d.rest = nil
	return rest
}

// Pending returns the number of residual bytes awaiting a frame boundary.
func (d *Decoder) Pending() int {
	return len(d.rest)
}

// =============================================================================
// FRAME PARSING
// =============================================================================

// splitFrame finds the first frame boundary (\n\n, \n\r\n, \r\n\n or
// \r\n\r\n) in b and splits around it. ok is false when no complete
// boundary exists yet; a trailing partial boundary stays in the residual
// until the bytes completing it arrive.
func splitFrame(b []byte) (frame, rest []byte, ok bool) {
	for i := 0; i < len(b); i++ {
		if b[i] != '\n' {
			continue
		}
		j := i + 1
		if j < len(b) && b[j] == '\r' {
			j++
		}
		if j < len(b) && b[j] == '\n' {
			return b[:i], b[j+1:], true
		}
	}
	return nil, b, false
}

// framePayload extracts the payload from a complete frame. A frame carries a
// payload only if its text begins with the "data:" marker; the marker and a
// single following separator are stripped. Anything else, and the
// termination sentinel, is dropped.
func framePayload(frame []byte) (string, bool) {
	text := string(bytes.TrimSuffix(frame, []byte("\r")))
	text = strings.ReplaceAll(text, "\r\n", "\n")

	rest, found := strings.CutPrefix(text, dataPrefix)
	if !found {
		return "", false
	}
	if len(rest) > 0 && (rest[0] == ' ' || rest[0] == '\t') {
		rest = rest[1:]
	}
	if rest == DoneSentinel {
		return "", false
	}
	return rest, true
}
