// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewAssistantMessageStartsStreaming(t *testing.T) {
	msg := NewAssistantMessage()

	if !msg.IsStreaming {
		t.Error("New assistant message should be streaming")
	}
	if !msg.IsEmpty() {
		t.Error("New assistant message should be empty")
	}
	if msg.ID == "" {
		t.Error("Message should have a generated ID")
	}
}

func TestAppendFrameConcatenatesVerbatim(t *testing.T) {
	msg := NewAssistantMessage()

	msg.AppendFrame("Hello")
	msg.AppendFrame(" world")

	if got := msg.Raw(); got != "Hello world" {
		t.Errorf("Expected raw 'Hello world', got '%s'", got)
	}
}

func TestAppendFrameIgnoredAfterFinalize(t *testing.T) {
	msg := NewAssistantMessage()
	msg.AppendFrame("done")
	msg.SetRendered("done")
	msg.FinalizeStream(nil)

	msg.AppendFrame("late frame")
	if msg.Raw() != "" {
		t.Error("Frames after finalize should be dropped")
	}
	if msg.Content != "done" {
		t.Errorf("Content changed after finalize: '%s'", msg.Content)
	}
}

func TestFinalizeStreamAdoptsStatistics(t *testing.T) {
	msg := NewAssistantMessage()
	msg.AppendFrame("x")

	stats := NewStatistics()
	stats.RecordFrame()
	stats.RecordFrame()
	stats.Finalize()

	msg.FinalizeStream(stats)
	if msg.IsStreaming {
		t.Error("Message should no longer be streaming")
	}
	if msg.FrameCount != 2 {
		t.Errorf("Expected 2 frames, got %d", msg.FrameCount)
	}
}

func TestPreviewTruncatesRunes(t *testing.T) {
	msg := NewMessage(RoleUser, "∫∫∫∫∫∫∫∫∫∫")

	got := msg.Preview(8)
	if got != "∫∫∫∫∫..." {
		t.Errorf("Expected rune-safe truncation, got '%s'", got)
	}
}

func TestRoleDisplayName(t *testing.T) {
	if RoleUser.DisplayName() != "You" {
		t.Error("User role should display as You")
	}
	if RoleError.DisplayName() != "Error" {
		t.Error("Error role should display as Error")
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversationTitleFromFirstUserMessage(t *testing.T) {
	conv := NewConversation("sess-1")
	conv.AddUserMessage("What is the derivative of x^2?", false)

	if conv.GetTitle() != "What is the derivative of x^2?" {
		t.Errorf("Unexpected title: '%s'", conv.GetTitle())
	}
}

func TestRemoveLastIfEmptyAssistant(t *testing.T) {
	conv := NewConversation("sess-1")
	conv.AddUserMessage("hi", false)
	conv.AddAssistantMessage()

	if !conv.RemoveLastIfEmptyAssistant() {
		t.Fatal("Empty assistant placeholder should be removed")
	}
	if conv.MessageCount() != 1 {
		t.Errorf("Expected 1 message, got %d", conv.MessageCount())
	}
}

func TestRemoveLastIfEmptyAssistantKeepsContent(t *testing.T) {
	conv := NewConversation("sess-1")
	conv.AddUserMessage("hi", false)
	msg := conv.AddAssistantMessage()
	msg.AppendFrame("partial")

	if conv.RemoveLastIfEmptyAssistant() {
		t.Error("Assistant message with buffered frames must not be removed")
	}
	if conv.MessageCount() != 2 {
		t.Errorf("Expected 2 messages, got %d", conv.MessageCount())
	}
}

func TestRemoveMessageByID(t *testing.T) {
	conv := NewConversation("sess-1")
	msg := conv.AddUserMessage("hi", false)

	if !conv.RemoveMessage(msg.ID) {
		t.Fatal("Expected message to be removed")
	}
	if conv.RemoveMessage(msg.ID) {
		t.Error("Second removal should report false")
	}
}

func TestPruneOldMessages(t *testing.T) {
	conv := NewConversation("sess-1")
	for i := 0; i < MaxMessages+25; i++ {
		conv.AddMessage(NewMessage(RoleUser, "m"))
	}

	if conv.MessageCount() != MaxMessages {
		t.Errorf("Expected history capped at %d, got %d", MaxMessages, conv.MessageCount())
	}
}
