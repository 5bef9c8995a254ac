// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/mathchat/mathchat-tui/internal/ui/styles"
)

// =============================================================================
// CODE BLOCK RENDERER
// =============================================================================

// CodeBlock renders one fenced code block from an assistant reply. Math
// answers often carry worked SymPy or NumPy snippets; highlighting them
// keeps the code legible inside the chat transcript.
type CodeBlock struct {
	Language string
	Code     string
	MaxWidth int
}

// NewCodeBlock creates a code block with the default width.
func NewCodeBlock(language, code string) CodeBlock {
	return CodeBlock{
		Language: language,
		Code:     code,
		MaxWidth: 80,
	}
}

// Render returns the block styled with a language badge, line numbers, and
// syntax highlighting.
func (c CodeBlock) Render() string {
	code := strings.TrimRight(c.Code, "\n")

	language := c.Language
	if language == "" {
		language = guessLanguage(code)
	}

	lineNumStyle := lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Width(4).
		Align(lipgloss.Right).
		MarginRight(1)

	var numbered []string
	for i, line := range strings.Split(highlight(code, language), "\n") {
		numbered = append(numbered, lineNumStyle.Render(fmt.Sprintf("%d", i+1))+line)
	}

	var header string
	if language != "" {
		header = lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Bold(true).
			Render(language) + "\n"
	}

	width := c.MaxWidth - 4
	if width < 20 {
		width = 20
	}

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.Overlay).
		Padding(0, 1).
		MaxWidth(width).
		Render(header + strings.Join(numbered, "\n"))
}

// HighlightCodeFences replaces ```fenced``` blocks in text with rendered
// code blocks, leaving the surrounding prose untouched. An unclosed fence
// is treated as running to the end of the text, which happens routinely
// while a reply is still streaming.
func HighlightCodeFences(text string, maxWidth int) string {
	if !strings.Contains(text, "```") {
		return text
	}

	var (
		out       []string
		codeLines []string
		language  string
		inFence   bool
	)
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(strings.TrimSpace(line), "```"):
			if inFence {
				cb := NewCodeBlock(language, strings.Join(codeLines, "\n"))
				cb.MaxWidth = maxWidth
				out = append(out, cb.Render())
				codeLines = nil
				language = ""
				inFence = false
			} else {
				language = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "```"))
				inFence = true
			}
		case inFence:
			codeLines = append(codeLines, line)
		default:
			out = append(out, line)
		}
	}
	if inFence && len(codeLines) > 0 {
		cb := NewCodeBlock(language, strings.Join(codeLines, "\n"))
		cb.MaxWidth = maxWidth
		out = append(out, cb.Render())
	}
	return strings.Join(out, "\n")
}

// =============================================================================
// SYNTAX HIGHLIGHTING
// =============================================================================

// highlight runs code through chroma with a terminal-safe formatter. The
// input is returned unchanged when highlighting fails; plain code beats a
// missing answer.
func highlight(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return code
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var sb strings.Builder
	if err := formatter.Format(&sb, style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(sb.String(), "\n")
}

// guessLanguage covers the snippets the backend actually produces: the
// solver explains its work in Python, and occasionally emits raw LaTeX.
func guessLanguage(code string) string {
	switch {
	case strings.Contains(code, "import sympy") ||
		strings.Contains(code, "import numpy") ||
		strings.Contains(code, "def ") ||
		strings.Contains(code, "print("):
		return "python"
	case strings.Contains(code, "\\begin{") || strings.Contains(code, "\\frac"):
		return "latex"
	default:
		return ""
	}
}
