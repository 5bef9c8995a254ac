// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/mathchat/mathchat-tui/internal/api"
	"github.com/mathchat/mathchat-tui/internal/config"
	"github.com/mathchat/mathchat-tui/internal/model"
	"github.com/mathchat/mathchat-tui/internal/session"
	"github.com/mathchat/mathchat-tui/internal/ui/styles"
)

// newTestModel builds a chat model that never touches the network: tests
// drive the exchange by injecting stream messages directly.
func newTestModel() *Model {
	cfg := config.Default()
	client := api.NewClient("http://127.0.0.1:1")
	return New(cfg, client, session.NewManager(client), styles.NewTheme("dark"))
}

// startExchange submits text and returns the assistant message ID the
// stream would fill.
func startExchange(t *testing.T, m *Model, text string) string {
	t.Helper()
	m.input.SetValue(text)
	if _, cmd := m.submit(text); cmd == nil {
		t.Fatal("submit should produce a command")
	}
	if m.Phase() != PhaseSending {
		t.Fatalf("Expected sending phase after submit, got %s", m.Phase())
	}
	if m.streamID == "" {
		t.Fatal("No stream ID after submit")
	}
	return m.streamID
}

// =============================================================================
// COMPLETED EXCHANGE
// =============================================================================

func TestExchangeCompletes(t *testing.T) {
	m := newTestModel()
	id := startExchange(t, m, "Say hello")

	m.Update(StreamFrameMsg{MessageID: id, Frame: "Hello"})
	if m.Phase() != PhaseStreaming {
		t.Fatalf("Expected streaming after first frame, got %s", m.Phase())
	}
	m.Update(StreamFrameMsg{MessageID: id, Frame: " world"})
	m.Update(StreamCompleteMsg{MessageID: id})

	if m.Phase() != PhaseCompleted {
		t.Fatalf("Expected completed, got %s", m.Phase())
	}
	last := m.Conversation().GetLastAssistantMessage()
	if last == nil {
		t.Fatal("No assistant message")
	}
	if last.Content != "Hello world" {
		t.Errorf("Expected 'Hello world', got %q", last.Content)
	}
	if last.IsStreaming {
		t.Error("Message still marked streaming after completion")
	}
	if last.FrameCount != 2 {
		t.Errorf("Expected 2 frames recorded, got %d", last.FrameCount)
	}
}

func TestFramesRenormalizeAccumulatedReply(t *testing.T) {
	m := newTestModel()
	id := startExchange(t, m, "fragments")

	// A fragmented run split across frames heals once enough arrives.
	m.Update(StreamFrameMsg{MessageID: id, Frame: "W h e"})
	m.Update(StreamFrameMsg{MessageID: id, Frame: " n x = 1 , then y = 2"})
	m.Update(StreamCompleteMsg{MessageID: id})

	last := m.Conversation().GetLastAssistantMessage()
	if last.Content != "When x = 1 then y = 2" {
		t.Errorf("Expected normalized reply, got %q", last.Content)
	}
}

// =============================================================================
// CANCELLED EXCHANGE
// =============================================================================

func TestCancelWithPartialKeepsMarkedText(t *testing.T) {
	m := newTestModel()
	id := startExchange(t, m, "long question")

	m.Update(StreamFrameMsg{MessageID: id, Frame: "Partial answer"})
	m.Update(StreamErrorMsg{MessageID: id, Err: context.Canceled})

	if m.Phase() != PhaseCancelled {
		t.Fatalf("Expected cancelled, got %s", m.Phase())
	}
	last := m.Conversation().GetLastAssistantMessage()
	if last == nil {
		t.Fatal("Partial assistant message should survive cancellation")
	}
	want := "Partial answer\n\n" + CancelledMarker
	if last.Content != want {
		t.Errorf("Expected %q, got %q", want, last.Content)
	}
}

func TestCancelBeforeFirstFrameRemovesPlaceholder(t *testing.T) {
	m := newTestModel()
	id := startExchange(t, m, "never answered")
	before := m.Conversation().MessageCount()

	m.Update(StreamErrorMsg{MessageID: id, Err: context.Canceled})

	if m.Phase() != PhaseCancelled {
		t.Fatalf("Expected cancelled, got %s", m.Phase())
	}
	if got := m.Conversation().MessageCount(); got != before-1 {
		t.Errorf("Empty placeholder should be removed: %d messages, want %d", got, before-1)
	}
	if last := m.Conversation().GetLastMessage(); last == nil || last.Role != model.RoleUser {
		t.Error("The user message should remain as the last entry")
	}
}

// =============================================================================
// FAILED EXCHANGE
// =============================================================================

func TestStreamErrorAddsErrorMessage(t *testing.T) {
	m := newTestModel()
	id := startExchange(t, m, "doomed")

	m.Update(StreamFrameMsg{MessageID: id, Frame: "The answer is"})
	m.Update(StreamErrorMsg{MessageID: id, Err: &api.StreamError{
		Partial: "The answer is",
		Err:     io.ErrUnexpectedEOF,
	}})

	if m.Phase() != PhaseFailed {
		t.Fatalf("Expected failed, got %s", m.Phase())
	}
	last := m.Conversation().GetLastMessage()
	if last == nil || last.Role != model.RoleError {
		t.Fatal("Expected a trailing error message")
	}
	// Partial text is preserved above the error notice.
	asst := m.Conversation().GetLastAssistantMessage()
	if asst == nil || asst.Content != "The answer is" {
		t.Error("Partial reply should be preserved on failure")
	}
}

func TestFailureBeforeFirstFrameDropsPlaceholder(t *testing.T) {
	m := newTestModel()
	id := startExchange(t, m, "unreachable")

	m.Update(StreamErrorMsg{MessageID: id, Err: io.ErrUnexpectedEOF})

	if m.Phase() != PhaseFailed {
		t.Fatalf("Expected failed, got %s", m.Phase())
	}
	if asst := m.Conversation().GetLastAssistantMessage(); asst != nil {
		t.Error("Empty placeholder should not survive a failed exchange")
	}
	if last := m.Conversation().GetLastMessage(); last == nil || last.Role != model.RoleError {
		t.Error("Expected a trailing error message")
	}
}

// =============================================================================
// CONCURRENT SUBMISSION
// =============================================================================

func TestSecondSubmitCancelsFirst(t *testing.T) {
	m := newTestModel()
	first := startExchange(t, m, "first question")
	m.Update(StreamFrameMsg{MessageID: first, Frame: "first reply"})

	second := startExchange(t, m, "second question")
	if second == first {
		t.Fatal("Second submit should start a new stream")
	}

	// The first reply was settled as cancelled before the second started.
	found := false
	for _, msg := range m.Conversation().Messages {
		if msg.Role == model.RoleAssistant && strings.Contains(msg.Content, CancelledMarker) {
			found = true
		}
	}
	if !found {
		t.Error("First reply should carry the cancellation marker")
	}

	// Late events from the first stream are stale and ignored.
	m.Update(StreamFrameMsg{MessageID: first, Frame: " ghost"})
	m.Update(StreamCompleteMsg{MessageID: first})
	if m.Phase() != PhaseSending {
		t.Errorf("Stale events must not disturb the new exchange, got %s", m.Phase())
	}
}

func TestStaleFrameIgnored(t *testing.T) {
	m := newTestModel()
	id := startExchange(t, m, "question")

	m.Update(StreamFrameMsg{MessageID: "someone-else", Frame: "noise"})
	if m.Phase() != PhaseSending {
		t.Errorf("Stale frame changed the phase to %s", m.Phase())
	}
	asst := m.Conversation().GetLastAssistantMessage()
	if asst == nil || !asst.IsEmpty() {
		t.Error("Stale frame should not reach the assistant message")
	}
	_ = id
}

// =============================================================================
// PHASE SEMANTICS
// =============================================================================

func TestPhaseBusy(t *testing.T) {
	busy := map[Phase]bool{
		PhaseIdle:      false,
		PhaseSending:   true,
		PhaseStreaming: true,
		PhaseCompleted: false,
		PhaseCancelled: false,
		PhaseFailed:    false,
	}
	for phase, want := range busy {
		if phase.Busy() != want {
			t.Errorf("%s.Busy() = %v, want %v", phase, phase.Busy(), want)
		}
	}
}

func TestSubmitIgnoresEmptyInput(t *testing.T) {
	m := newTestModel()
	if _, cmd := m.submit(""); cmd != nil {
		t.Error("Empty input should not start an exchange")
	}
	if m.Phase() != PhaseIdle {
		t.Errorf("Expected idle, got %s", m.Phase())
	}
}
