// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mathchat/mathchat-tui/internal/api"
	"github.com/mathchat/mathchat-tui/internal/config"
	"github.com/mathchat/mathchat-tui/internal/model"
	"github.com/mathchat/mathchat-tui/internal/session"
)

// newTestRepl builds a repl without a line editor. Dispatch does not
// touch the editor, so slash commands can be exercised directly.
func newTestRepl() *repl {
	cfg := config.Default()
	client := api.NewClient("http://127.0.0.1:1")
	sessions := session.NewManager(client)
	return &repl{
		cfg:      cfg,
		client:   client,
		sessions: sessions,
		conv:     model.NewConversation(sessions.Current()),
	}
}

func TestDispatchQuit(t *testing.T) {
	r := newTestRepl()
	for _, cmd := range []string{"/quit", "/q", "/exit"} {
		quit, err := r.dispatch(cmd)
		require.NoError(t, err, cmd)
		require.True(t, quit, "%s should signal exit", cmd)
	}
}

func TestDispatchWebToggle(t *testing.T) {
	r := newTestRepl()
	require.False(t, r.web, "web search should start off")

	r.dispatch("/web")
	require.True(t, r.web, "first /web should enable web search")

	r.dispatch("/web")
	require.False(t, r.web, "second /web should disable web search")
}

func TestDispatchNewRotatesSession(t *testing.T) {
	r := newTestRepl()
	before := r.sessions.Current()
	r.conv.AddUserMessage("hello", false)

	_, err := r.dispatch("/new")
	require.NoError(t, err)
	require.NotEqual(t, before, r.sessions.Current(), "/new should rotate the session ID")
	require.Equal(t, r.sessions.Current(), r.conv.SessionID, "conversation should follow the new session")
	require.True(t, r.conv.IsEmpty(), "new session should start with an empty transcript")
}

func TestDispatchUnknownCommand(t *testing.T) {
	r := newTestRepl()
	quit, err := r.dispatch("/bogus")
	require.False(t, quit, "unknown command must not exit")
	require.ErrorContains(t, err, "/bogus")
}

func TestDispatchArgumentValidation(t *testing.T) {
	r := newTestRepl()
	for _, cmd := range []string{"/open", "/delete", "/open a b"} {
		_, err := r.dispatch(cmd)
		require.Error(t, err, "%q should fail argument validation", cmd)
	}
}
