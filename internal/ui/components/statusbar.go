// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mathchat/mathchat-tui/internal/ui/styles"
	"github.com/mathchat/mathchat-tui/internal/util"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// Status represents the phase shown in the status bar.
type Status int

const (
	StatusReady Status = iota
	StatusSending
	StatusStreaming
	StatusCancelled
	StatusError
)

// String returns the display string for the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusSending:
		return "Sending..."
	case StatusStreaming:
		return "Streaming..."
	case StatusCancelled:
		return "Cancelled"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Icon returns a shape indicator for the status.
// ACCESSIBILITY: shapes alongside colors for colorblind users.
func (s Status) Icon() string {
	switch s {
	case StatusReady:
		return styles.StatusIndicators.Success
	case StatusSending:
		return styles.StatusIndicators.Active
	case StatusStreaming:
		return "~"
	case StatusCancelled:
		return styles.StatusIndicators.Warning
	case StatusError:
		return styles.StatusIndicators.Error
	default:
		return "?"
	}
}

// StatusBar is the bottom status bar.
type StatusBar struct {
	Status        Status
	SessionID     string // Active backend session
	WebSearch     bool   // Next message goes through web search
	StatsLine     string // Last reply's generation metrics
	Notice        string // Transient notice (export path, reload, etc.)
	Width         int
	ShowShortcuts bool

	theme *styles.Theme
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		Status:        StatusReady,
		Width:         80,
		ShowShortcuts: true,
		theme:         theme,
	}
}

// SetWidth updates the status bar width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// SetStatus updates the current status.
func (s *StatusBar) SetStatus(status Status) {
	s.Status = status
}

// SetNotice sets a transient notice shown instead of the shortcuts.
func (s *StatusBar) SetNotice(notice string) {
	s.Notice = notice
}

// ClearNotice removes the transient notice.
func (s *StatusBar) ClearNotice() {
	s.Notice = ""
}

// View renders the status bar.
func (s *StatusBar) View() string {
	statusStyle := s.theme.StatusReady
	switch s.Status {
	case StatusSending, StatusStreaming:
		statusStyle = s.theme.StatusBusy
	case StatusCancelled:
		statusStyle = s.theme.StatusWarning
	case StatusError:
		statusStyle = s.theme.StatusError
	}

	var left strings.Builder
	left.WriteString(statusStyle.Render(s.Status.Icon() + " " + s.Status.String()))

	if s.SessionID != "" {
		left.WriteString("  ")
		left.WriteString(s.theme.SessionMeta.Render("session " + util.TruncateRunes(s.SessionID, 11)))
	}
	if s.WebSearch {
		left.WriteString("  ")
		left.WriteString(s.theme.StatusWarning.Render("[web]"))
	}
	if s.StatsLine != "" {
		left.WriteString("  ")
		left.WriteString(s.theme.StatsLine.Render(s.StatsLine))
	}

	right := ""
	switch {
	case s.Notice != "":
		right = s.theme.SessionMeta.Render(s.Notice)
	case s.ShowShortcuts:
		right = s.renderShortcuts()
	}

	leftStr := left.String()
	gap := s.Width - lipgloss.Width(leftStr) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}

	return s.theme.StatusBar.Width(s.Width).Render(
		leftStr + strings.Repeat(" ", gap) + right)
}

// renderShortcuts renders the keyboard hint segment.
func (s *StatusBar) renderShortcuts() string {
	shortcuts := []struct{ key, desc string }{
		{"esc", "cancel"},
		{"ctrl+s", "sessions"},
		{"ctrl+w", "web"},
		{"ctrl+e", "export"},
		{"ctrl+c", "quit"},
	}

	parts := make([]string, 0, len(shortcuts))
	for _, sc := range shortcuts {
		parts = append(parts,
			s.theme.ShortcutKey.Render(sc.key)+" "+s.theme.ShortcutDesc.Render(sc.desc))
	}
	return strings.Join(parts, "  ")
}
