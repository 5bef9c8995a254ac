// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"strings"
	"testing"
)

// =============================================================================
// FRAME REASSEMBLY TESTS
// =============================================================================

func TestFeedSingleFrame(t *testing.T) {
	d := NewDecoder()

	payloads := d.Feed([]byte("data: hello\n\n"))
	if len(payloads) != 1 {
		t.Fatalf("Expected 1 payload, got %d", len(payloads))
	}
	if payloads[0] != "hello" {
		t.Errorf("Expected payload 'hello', got '%s'", payloads[0])
	}
	if d.Pending() != 0 {
		t.Errorf("Expected empty residual, got %d bytes", d.Pending())
	}
}

func TestFeedSplitAcrossChunks(t *testing.T) {
	// Feeding "data: ab" then "c\n\n" must yield the same payload as
	// feeding "data: abc\n\n" at once.
	d := NewDecoder()

	if payloads := d.Feed([]byte("data: ab")); len(payloads) != 0 {
		t.Fatalf("Expected no payloads from partial frame, got %v", payloads)
	}
	payloads := d.Feed([]byte("c\n\n"))
	if len(payloads) != 1 || payloads[0] != "abc" {
		t.Errorf("Expected ['abc'], got %v", payloads)
	}

	single := NewDecoder().Feed([]byte("data: abc\n\n"))
	if len(single) != 1 || single[0] != payloads[0] {
		t.Errorf("Split-chunk decode %v != single-chunk decode %v", payloads, single)
	}
}

func TestFeedByteAtATime(t *testing.T) {
	stream := "data: first\n\ndata: second\n\ndata: [DONE]\n\n"
	d := NewDecoder()

	var payloads []string
	for i := 0; i < len(stream); i++ {
		payloads = append(payloads, d.Feed([]byte{stream[i]})...)
	}

	if len(payloads) != 2 {
		t.Fatalf("Expected 2 payloads, got %d: %v", len(payloads), payloads)
	}
	if payloads[0] != "first" || payloads[1] != "second" {
		t.Errorf("Expected [first second], got %v", payloads)
	}
}

func TestFeedMultiByteRuneSplit(t *testing.T) {
	// "∫" is three bytes in UTF-8; split it across two chunks.
	frame := []byte("data: ∫x dx\n\n")
	split := 8 // inside the multi-byte sequence
	d := NewDecoder()

	d.Feed(frame[:split])
	payloads := d.Feed(frame[split:])

	if len(payloads) != 1 {
		t.Fatalf("Expected 1 payload, got %d", len(payloads))
	}
	if payloads[0] != "∫x dx" {
		t.Errorf("Expected '∫x dx', got '%s'", payloads[0])
	}
	if strings.ContainsRune(payloads[0], '�') {
		t.Error("Payload contains a replacement character; rune was split during decode")
	}
}

func TestFeedCRLFBoundaries(t *testing.T) {
	d := NewDecoder()

	payloads := d.Feed([]byte("data: one\r\n\r\ndata: two\r\n\r\n"))
	if len(payloads) != 2 {
		t.Fatalf("Expected 2 payloads, got %d: %v", len(payloads), payloads)
	}
	if payloads[0] != "one" || payloads[1] != "two" {
		t.Errorf("Expected [one two], got %v", payloads)
	}
}

func TestFeedMultiplFramesInOneChunk(t *testing.T) {
	d := NewDecoder()

	payloads := d.Feed([]byte("data: a\n\ndata: b\n\ndata: c\n\n"))
	if len(payloads) != 3 {
		t.Fatalf("Expected 3 payloads, got %d", len(payloads))
	}
	for i, want := range []string{"a", "b", "c"} {
		if payloads[i] != want {
			t.Errorf("Payload %d: expected '%s', got '%s'", i, want, payloads[i])
		}
	}
}

// =============================================================================
// FRAME FILTERING TESTS
// =============================================================================

func TestFeedDropsUnmarkedFrames(t *testing.T) {
	d := NewDecoder()

	payloads := d.Feed([]byte(": keepalive comment\n\nevent: ping\n\ndata: real\n\n"))
	if len(payloads) != 1 {
		t.Fatalf("Expected 1 payload, got %d: %v", len(payloads), payloads)
	}
	if payloads[0] != "real" {
		t.Errorf("Expected 'real', got '%s'", payloads[0])
	}
}

func TestFeedDropsSentinel(t *testing.T) {
	d := NewDecoder()

	payloads := d.Feed([]byte("data: answer\n\ndata: [DONE]\n\n"))
	if len(payloads) != 1 || payloads[0] != "answer" {
		t.Errorf("Sentinel must not be yielded; got %v", payloads)
	}
}

func TestFeedPreservesLeadingSpaceBeyondSeparator(t *testing.T) {
	// Only one separator character after the marker is stripped.
	d := NewDecoder()

	payloads := d.Feed([]byte("data:  world\n\n"))
	if len(payloads) != 1 {
		t.Fatalf("Expected 1 payload, got %d", len(payloads))
	}
	if payloads[0] != " world" {
		t.Errorf("Expected ' world', got '%s'", payloads[0])
	}
}

func TestFeedEmptyPayload(t *testing.T) {
	d := NewDecoder()

	payloads := d.Feed([]byte("data:\n\n"))
	if len(payloads) != 1 || payloads[0] != "" {
		t.Errorf("Expected one empty payload, got %v", payloads)
	}
}

// =============================================================================
// FLUSH TESTS
// =============================================================================

func TestFlushDiscardsResidual(t *testing.T) {
	d := NewDecoder()

	d.Feed([]byte("data: incomplete"))
	rest := d.Flush()
	if rest != "data: incomplete" {
		t.Errorf("Expected residual 'data: incomplete', got '%s'", rest)
	}
	if d.Pending() != 0 {
		t.Error("Residual should be empty after Flush")
	}

	// A second flush returns nothing.
	if rest := d.Flush(); rest != "" {
		t.Errorf("Expected empty residual on second flush, got '%s'", rest)
	}
}

func TestFlushEmptyOnBoundaryTerminatedStream(t *testing.T) {
	d := NewDecoder()

	d.Feed([]byte("data: done\n\n"))
	if rest := d.Flush(); rest != "" {
		t.Errorf("Expected empty residual, got '%s'", rest)
	}
}
