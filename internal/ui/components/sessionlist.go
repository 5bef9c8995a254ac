// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/mathchat/mathchat-tui/internal/api"
	"github.com/mathchat/mathchat-tui/internal/ui/styles"
	"github.com/mathchat/mathchat-tui/internal/util"
)

// =============================================================================
// SESSION LIST OVERLAY
// =============================================================================

// maxVisibleSessions caps the overlay height; longer lists scroll.
const maxVisibleSessions = 12

// SessionList is the session browser overlay.
type SessionList struct {
	sessions []api.SessionInfo
	cursor   int
	offset   int
	width    int
	theme    *styles.Theme
}

// NewSessionList creates an empty session list.
func NewSessionList(theme *styles.Theme) *SessionList {
	return &SessionList{
		width: 60,
		theme: theme,
	}
}

// SetSessions replaces the listed sessions and clamps the cursor.
func (l *SessionList) SetSessions(sessions []api.SessionInfo) {
	l.sessions = sessions
	if l.cursor >= len(sessions) {
		l.cursor = len(sessions) - 1
	}
	if l.cursor < 0 {
		l.cursor = 0
	}
	l.scrollToCursor()
}

// SetWidth updates the overlay width.
func (l *SessionList) SetWidth(width int) {
	l.width = width
}

// Len returns the number of listed sessions.
func (l *SessionList) Len() int {
	return len(l.sessions)
}

// Selected returns the session under the cursor, or nil when empty.
func (l *SessionList) Selected() *api.SessionInfo {
	if len(l.sessions) == 0 {
		return nil
	}
	return &l.sessions[l.cursor]
}

// MoveUp moves the cursor up one entry.
func (l *SessionList) MoveUp() {
	if l.cursor > 0 {
		l.cursor--
		l.scrollToCursor()
	}
}

// MoveDown moves the cursor down one entry.
func (l *SessionList) MoveDown() {
	if l.cursor < len(l.sessions)-1 {
		l.cursor++
		l.scrollToCursor()
	}
}

// scrollToCursor keeps the cursor inside the visible window.
func (l *SessionList) scrollToCursor() {
	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+maxVisibleSessions {
		l.offset = l.cursor - maxVisibleSessions + 1
	}
}

// View renders the overlay.
func (l *SessionList) View() string {
	var sb strings.Builder
	sb.WriteString(l.theme.SessionTitle.Render("Sessions"))
	sb.WriteString("\n\n")

	if len(l.sessions) == 0 {
		sb.WriteString(l.theme.SessionMeta.Render("No stored sessions."))
	} else {
		end := l.offset + maxVisibleSessions
		if end > len(l.sessions) {
			end = len(l.sessions)
		}
		for i := l.offset; i < end; i++ {
			s := l.sessions[i]
			line := l.renderItem(s)
			if i == l.cursor {
				sb.WriteString(l.theme.SessionItemSelected.Render("> " + line))
			} else {
				sb.WriteString(l.theme.SessionItem.Render("  " + line))
			}
			sb.WriteString("\n")
		}
		if end < len(l.sessions) {
			sb.WriteString(l.theme.SessionMeta.Render(fmt.Sprintf("  ... %d more", len(l.sessions)-end)))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(l.theme.ShortcutKey.Render("enter"))
	sb.WriteString(l.theme.ShortcutDesc.Render(" open  "))
	sb.WriteString(l.theme.ShortcutKey.Render("d"))
	sb.WriteString(l.theme.ShortcutDesc.Render(" delete  "))
	sb.WriteString(l.theme.ShortcutKey.Render("r"))
	sb.WriteString(l.theme.ShortcutDesc.Render(" refresh  "))
	sb.WriteString(l.theme.ShortcutKey.Render("esc"))
	sb.WriteString(l.theme.ShortcutDesc.Render(" close"))

	return l.theme.SessionList.Render(sb.String())
}

// renderItem formats one session row.
func (l *SessionList) renderItem(s api.SessionInfo) string {
	title := s.Title
	if title == "" {
		title = s.ID
	}
	titleWidth := l.width - 24
	if titleWidth < 20 {
		titleWidth = 20
	}
	return fmt.Sprintf("%s %s",
		util.PadWidth(util.TruncateWidth(title, titleWidth), titleWidth),
		l.theme.SessionMeta.Render(fmt.Sprintf("%d msgs", s.MessageCount)))
}
