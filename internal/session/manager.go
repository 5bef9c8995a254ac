// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mathchat/mathchat-tui/internal/api"
	"github.com/mathchat/mathchat-tui/internal/model"
	"github.com/mathchat/mathchat-tui/internal/normalize"
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager is the client-side view of the backend's session store. It caches
// the session list for the browser overlay and converts stored sessions
// into display-ready conversations.
//
// The backend owns persistence; the manager never writes session state
// locally.
type Manager struct {
	client *api.Client

	mu       sync.Mutex
	sessions []api.SessionInfo
	current  string
}

// NewManager creates a manager backed by the given API client.
func NewManager(client *api.Client) *Manager {
	return &Manager{
		client:  client,
		current: NewSessionID(),
	}
}

// NewSessionID generates a fresh session identifier. The backend creates
// the session lazily on the first chat request that names it.
func NewSessionID() string {
	return uuid.NewString()
}

// =============================================================================
// CURRENT SESSION
// =============================================================================

// Current returns the active session ID.
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SetCurrent switches the active session.
func (m *Manager) SetCurrent(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = id
}

// StartNew switches to a brand-new session and returns its ID.
func (m *Manager) StartNew() string {
	id := NewSessionID()
	m.SetCurrent(id)
	return id
}

// =============================================================================
// SESSION LIST
// =============================================================================

// Refresh fetches the session list from the backend, most recently updated
// first.
func (m *Manager) Refresh(ctx context.Context) error {
	sessions, err := m.client.ListSessions(ctx)
	if err != nil {
		return err
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})

	m.mu.Lock()
	m.sessions = sessions
	m.mu.Unlock()
	return nil
}

// Sessions returns a copy of the cached session list.
func (m *Manager) Sessions() []api.SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]api.SessionInfo, len(m.sessions))
	copy(out, m.sessions)
	return out
}

// Count returns the number of cached sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// =============================================================================
// LOAD / DELETE
// =============================================================================

// Load fetches a stored session and converts it into a conversation.
// Message contents pass through the normalizer so old transcripts render
// with the same cleanup as live streams; normalization is idempotent, so
// already-clean content is untouched.
//
// A missing session surfaces as api.ErrSessionNotFound; callers show a
// notice and refresh the list rather than treating it as a failure.
func (m *Manager) Load(ctx context.Context, id string) (*model.Conversation, error) {
	data, err := m.client.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	conv := model.NewConversation(data.ID)
	conv.SetTitle(data.Title)
	for _, sm := range data.Messages {
		msg := model.NewMessage(mapRole(sm.Role), normalize.Normalize(sm.Content))
		msg.WebSearch = sm.WebSearch
		if !sm.Timestamp.IsZero() {
			msg.Timestamp = sm.Timestamp
		}
		conv.AddMessage(msg)
	}

	m.SetCurrent(data.ID)
	return conv, nil
}

// Delete removes a session from the backend and the cached list.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.client.DeleteSession(ctx, id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.sessions {
		if s.ID == id {
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			break
		}
	}
	if m.current == id {
		m.current = NewSessionID()
	}
	return nil
}

// mapRole converts a stored role string into the domain role. Unknown
// roles render as errors rather than being dropped: a transcript should
// never silently lose messages.
func mapRole(role string) model.Role {
	switch role {
	case "user":
		return model.RoleUser
	case "assistant":
		return model.RoleAssistant
	default:
		return model.RoleError
	}
}
