// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// sseHandler writes each frame followed by a flush, simulating the
// backend's event stream.
func sseHandler(t *testing.T, wantPath string, frames []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wantPath {
			t.Errorf("Unexpected path: %s (want %s)", r.URL.Path, wantPath)
		}
		if accept := r.Header.Get("Accept"); accept != "text/event-stream" {
			t.Errorf("Expected event-stream accept header, got '%s'", accept)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			w.Write([]byte(frame))
			flusher.Flush()
		}
	}
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestStreamDeliversFrames(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, "/chat/s1", []string{
		"data: Hello\n\n",
		"data:  world\n\n",
		"data: [DONE]\n\n",
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	var got []string
	err := client.Stream(context.Background(), StreamRequest{SessionID: "s1", Message: "hi"}, func(p string) {
		got = append(got, p)
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	if len(got) != 2 || got[0] != "Hello" || got[1] != " world" {
		t.Errorf("Expected [Hello,  world], got %v", got)
	}
	if strings.Join(got, "") != "Hello world" {
		t.Errorf("Concatenation mismatch: '%s'", strings.Join(got, ""))
	}
}

func TestStreamReassemblesSplitFrames(t *testing.T) {
	// The frame boundary arrives in a separate chunk; the payload must
	// still come out whole.
	srv := httptest.NewServer(sseHandler(t, "/chat/s1", []string{
		"data: ab",
		"c\n\ndata: [DONE]\n\n",
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	var got []string
	err := client.Stream(context.Background(), StreamRequest{SessionID: "s1", Message: "hi"}, func(p string) {
		got = append(got, p)
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if len(got) != 1 || got[0] != "abc" {
		t.Errorf("Expected ['abc'], got %v", got)
	}
}

func TestStreamWebSearchEndpoint(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, "/web_search", []string{
		"data: result\n\n",
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	var got []string
	err := client.Stream(context.Background(), StreamRequest{SessionID: "s1", Message: "hi", WebSearch: true}, func(p string) {
		got = append(got, p)
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if len(got) != 1 || got[0] != "result" {
		t.Errorf("Expected ['result'], got %v", got)
	}
}

func TestStreamCancelMidStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: partial\n\n"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewClient(srv.URL)
	err := client.Stream(ctx, StreamRequest{SessionID: "s1", Message: "hi"}, func(p string) {
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestStreamErrorPreservesPartial(t *testing.T) {
	// Declare a body longer than what is sent, then drop the connection:
	// the client sees an abrupt transport error after the first frame.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, bufrw, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Fatalf("Hijack failed: %v", err)
		}
		bufrw.WriteString("HTTP/1.1 200 OK\r\nContent-Type: text/event-stream\r\nContent-Length: 4096\r\n\r\n")
		bufrw.WriteString("data: partial\n\n")
		bufrw.Flush()
		conn.Close()
	}))
	defer srv.Close()

	client := NewClient(srv.URL).WithMaxRetries(1)
	err := client.Stream(context.Background(), StreamRequest{SessionID: "s1", Message: "hi"}, func(p string) {})

	var streamErr *StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("Expected StreamError, got %v", err)
	}
	if streamErr.Partial != "partial" {
		t.Errorf("Expected partial 'partial', got '%s'", streamErr.Partial)
	}
}

func TestStreamNoRetryOn404(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "session not found"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	err := client.Stream(context.Background(), StreamRequest{SessionID: "gone", Message: "hi"}, func(p string) {})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("404 must not be retried; saw %d attempts", attempts)
	}
}

func TestStreamChan(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, "/chat/s1", []string{
		"data: a\n\ndata: b\n\n",
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	frames, errc := client.StreamChan(context.Background(), StreamRequest{SessionID: "s1", Message: "hi"})

	var got []string
	timeout := time.After(5 * time.Second)
	for frames != nil || errc != nil {
		select {
		case p, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			got = append(got, p)
		case err, ok := <-errc:
			if !ok {
				errc = nil
				continue
			}
			if err != nil {
				t.Fatalf("Stream failed: %v", err)
			}
		case <-timeout:
			t.Fatal("Stream never completed")
		}
	}

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Expected [a b], got %v", got)
	}
}
