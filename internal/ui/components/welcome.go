// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mathchat/mathchat-tui/internal/ui/styles"
)

// =============================================================================
// WELCOME SCREEN
// =============================================================================

// Welcome is the screen shown before the first message of a session.
type Welcome struct {
	version   string
	serverURL string
	width     int
	height    int
	theme     *styles.Theme
}

// NewWelcome creates a new welcome screen.
func NewWelcome(theme *styles.Theme) Welcome {
	return Welcome{
		version: "dev",
		theme:   theme,
	}
}

// SetVersion sets the version string.
func (w *Welcome) SetVersion(version string) {
	w.version = version
}

// SetServerURL sets the backend URL shown in the info block.
func (w *Welcome) SetServerURL(url string) {
	w.serverURL = url
}

// SetSize updates the dimensions.
func (w *Welcome) SetSize(width, height int) {
	w.width = width
	w.height = height
}

// View renders the welcome screen centered in the available area.
func (w Welcome) View() string {
	width := w.width
	if width == 0 {
		width = 80
	}
	height := w.height
	if height == 0 {
		height = 24
	}

	var sb strings.Builder
	sb.WriteString(w.theme.WelcomeLogo.Render("Mathchat"))
	sb.WriteString("\n")
	sb.WriteString(w.theme.WelcomeInfo.Render("math tutoring in your terminal"))
	sb.WriteString("\n\n")
	sb.WriteString(w.theme.WelcomeInfo.Render("version  " + w.version))
	if w.serverURL != "" {
		sb.WriteString("\n")
		sb.WriteString(w.theme.WelcomeInfo.Render("server   " + w.serverURL))
	}
	sb.WriteString("\n\n")
	sb.WriteString(w.theme.WelcomeInfo.Render("Type a question and press "))
	sb.WriteString(w.theme.WelcomeKey.Render("enter"))
	sb.WriteString(w.theme.WelcomeInfo.Render(" to start."))

	box := w.theme.WelcomeBox.Render(sb.String())
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
