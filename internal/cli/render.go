// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// newMarkdownRenderer builds a glamour renderer for the terminal. A named
// style overrides auto-detection; wrap width follows the terminal.
func newMarkdownRenderer(style string) *glamour.TermRenderer {
	wrap := TerminalWidth()
	if wrap > 100 {
		wrap = 100
	}

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(wrap)}
	if style != "" {
		opts = append(opts, glamour.WithStylePath(style))
	} else {
		opts = append(opts, glamour.WithAutoStyle())
	}

	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil
	}
	return renderer
}

// renderMarkdown renders markdown for terminal display, falling back to the
// plain text when the renderer is unavailable or fails.
func renderMarkdown(renderer *glamour.TermRenderer, content string) string {
	if renderer == nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}
