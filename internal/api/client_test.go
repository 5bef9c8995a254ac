// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// =============================================================================
// SESSION OPERATION TESTS
// =============================================================================

func TestListSessions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions" || r.Method != http.MethodGet {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sessions": [
			{"id": "s1", "title": "Derivatives", "message_count": 4},
			{"id": "s2", "title": "Integrals", "message_count": 2}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	sessions, err := client.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "s1" || sessions[0].Title != "Derivatives" {
		t.Errorf("Unexpected first session: %+v", sessions[0])
	}
}

func TestListSessionsBareIDs(t *testing.T) {
	// The backend's canonical list form is just the IDs.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sessions": ["s1", "s2"]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	sessions, err := client.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != "s1" || sessions[1].ID != "s2" {
		t.Errorf("Unexpected sessions: %+v", sessions)
	}
}

func TestGetSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions/s1" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "s1",
			"title": "Derivatives",
			"messages": [
				{"role": "user", "content": "What is d/dx of x^2?", "time": "2025-08-01T10:00:00Z", "is_web_search": true},
				{"role": "assistant", "content": "The derivative is $2x$.", "timestamp": "2025-08-01T10:00:05Z"}
			]
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	session, err := client.GetSession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if len(session.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(session.Messages))
	}
	if session.Messages[1].Role != "assistant" {
		t.Errorf("Unexpected second message role: %s", session.Messages[1].Role)
	}

	// Stored messages spell the fields both ways; neither form loses data.
	if !session.Messages[0].WebSearch {
		t.Error("is_web_search flag was dropped")
	}
	if session.Messages[0].Timestamp.IsZero() {
		t.Error("time field was dropped")
	}
	if session.Messages[1].Timestamp.IsZero() {
		t.Error("timestamp field was dropped")
	}
}

func TestGetSessionNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "session not found"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.GetSession(context.Background(), "gone")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestDeleteSession(t *testing.T) {
	deleted := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/sessions/s1" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	if err := client.DeleteSession(context.Background(), "s1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if !deleted {
		t.Error("Delete request never reached the server")
	}
}

func TestBackendErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "malformed session id"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.GetSession(context.Background(), "bad id")

	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("Expected BackendError, got %v", err)
	}
	if backendErr.Status != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", backendErr.Status)
	}
	if backendErr.Message != "malformed session id" {
		t.Errorf("Expected parsed error message, got '%s'", backendErr.Message)
	}
}
