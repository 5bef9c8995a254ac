// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the TUI.
//
// This file defines the Bubble Tea message types used by the chat view.
// All message types follow Bubble Tea conventions and are immutable.
package chat

import (
	"github.com/mathchat/mathchat-tui/internal/api"
	"github.com/mathchat/mathchat-tui/internal/config"
	"github.com/mathchat/mathchat-tui/internal/model"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// StreamOpenedMsg carries the channels of a freshly opened stream.
// MessageID identifies the assistant message the stream fills; stale IDs
// (from a stream the user already cancelled) are dropped.
type StreamOpenedMsg struct {
	MessageID string
	Frames    <-chan string
	Errs      <-chan error
}

// StreamFrameMsg delivers one decoded frame payload.
type StreamFrameMsg struct {
	MessageID string
	Frame     string
}

// StreamCompleteMsg signals that the stream ended cleanly.
type StreamCompleteMsg struct {
	MessageID string
}

// StreamErrorMsg signals that the stream ended with an error. A cancelled
// context arrives here too, as context.Canceled.
type StreamErrorMsg struct {
	MessageID string
	Err       error
}

// =============================================================================
// SESSION BROWSER MESSAGES
// =============================================================================

// SessionsLoadedMsg delivers the refreshed session list.
type SessionsLoadedMsg struct {
	Sessions []api.SessionInfo
	Err      error
}

// SessionOpenedMsg delivers a loaded conversation.
type SessionOpenedMsg struct {
	Conversation *model.Conversation
	Err          error
}

// SessionDeletedMsg confirms a session deletion.
type SessionDeletedMsg struct {
	ID  string
	Err error
}

// =============================================================================
// EXPORT / CONFIG MESSAGES
// =============================================================================

// ExportDoneMsg reports the outcome of a transcript export.
type ExportDoneMsg struct {
	Path string
	Err  error
}

// ConfigReloadedMsg delivers a hot-reloaded configuration.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// noticeExpiredMsg clears the transient status bar notice.
type noticeExpiredMsg struct{}
