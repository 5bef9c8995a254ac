// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mathchat/mathchat-tui/internal/api"
)

// =============================================================================
// STREAM COMMANDS
// =============================================================================

// openStreamCmd opens the streaming exchange and hands the channels back to
// the Update loop.
func openStreamCmd(ctx context.Context, client *api.Client, req api.StreamRequest, messageID string) tea.Cmd {
	return func() tea.Msg {
		frames, errs := client.StreamChan(ctx, req)
		return StreamOpenedMsg{
			MessageID: messageID,
			Frames:    frames,
			Errs:      errs,
		}
	}
}

// waitForStreamCmd blocks on the stream channels and converts the next event
// into a message. The Update loop re-issues it after every frame, giving
// Bubble Tea one message per frame without a busy loop.
func waitForStreamCmd(messageID string, frames <-chan string, errs <-chan error) tea.Cmd {
	return func() tea.Msg {
		// Frames drain first: buffered frames that arrived before a failure
		// are still part of the reply.
		frame, ok := <-frames
		if ok {
			return StreamFrameMsg{MessageID: messageID, Frame: frame}
		}
		if err, ok := <-errs; ok && err != nil {
			return StreamErrorMsg{MessageID: messageID, Err: err}
		}
		return StreamCompleteMsg{MessageID: messageID}
	}
}
