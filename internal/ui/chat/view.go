// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mathchat/mathchat-tui/internal/model"
	"github.com/mathchat/mathchat-tui/internal/ui/components"
)

// chromeHeight is the vertical space the header, input line, and status bar
// occupy around the viewport.
const chromeHeight = 7

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "Starting..."
	}

	var sb strings.Builder

	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")

	if m.showSessions {
		sb.WriteString(lipgloss.Place(m.width, m.viewport.Height,
			lipgloss.Center, lipgloss.Center, m.sessionList.View()))
	} else if m.conversation.IsEmpty() {
		sb.WriteString(m.welcome.View())
	} else {
		sb.WriteString(m.viewport.View())
	}
	sb.WriteString("\n")

	if spin := m.spinner.View(); spin != "" {
		sb.WriteString(spin)
	}
	sb.WriteString("\n")

	sb.WriteString(m.theme.InputContainer.Width(m.width - 2).Render(m.input.View()))
	sb.WriteString("\n")
	sb.WriteString(m.statusBar.View())

	return sb.String()
}

// renderHeader renders the title line.
func (m *Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("Mathchat")
	subtitle := m.theme.HeaderSubtitle.Render(m.conversation.GetTitle())
	return m.theme.Container.Render(title + "  " + subtitle)
}

// refreshViewport rebuilds the viewport content from the conversation and
// keeps the view pinned to the bottom while a reply streams.
func (m *Model) refreshViewport() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderConversation())
	if atBottom || m.phase.Busy() {
		m.viewport.GotoBottom()
	}
}

// renderConversation renders every message as a bubble.
func (m *Model) renderConversation() string {
	var sb strings.Builder
	for i, msg := range m.conversation.Messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.renderMessage(msg))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderMessage renders one message with its role label.
func (m *Model) renderMessage(msg *model.Message) string {
	label := msg.Role.DisplayName()
	if msg.Role == model.RoleUser && msg.WebSearch {
		label += " (web)"
	}

	header := m.theme.RoleLabel.Render(label) + " " +
		m.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))

	content := msg.Content
	if content == "" && msg.IsStreaming {
		content = "..."
	}

	bubbleWidth := m.width - 10
	if bubbleWidth < 20 {
		bubbleWidth = 20
	}

	var bubble string
	switch msg.Role {
	case model.RoleUser:
		bubble = m.theme.UserBubble.MaxWidth(bubbleWidth).Render(content)
	case model.RoleError:
		bubble = m.theme.ErrorBubble.MaxWidth(bubbleWidth).Render(content)
	default:
		content = components.HighlightCodeFences(content, bubbleWidth-4)
		bubble = m.theme.AssistantBubble.MaxWidth(bubbleWidth).Render(content)
	}

	out := header + "\n" + bubble
	if m.cfg.UI.ShowStats {
		if stats := msg.FormatStats(); stats != "" {
			out += "\n" + m.theme.StatsLine.Render(stats)
		}
	}
	return out
}
