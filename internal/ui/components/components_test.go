// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"regexp"
	"strings"
	"testing"

	"github.com/mathchat/mathchat-tui/internal/api"
	"github.com/mathchat/mathchat-tui/internal/ui/styles"
)

// reANSI matches terminal escape sequences. Syntax highlighting interleaves
// them between tokens, so content assertions run on the stripped text.
var reANSI = regexp.MustCompile("\x1b\\[[0-9;]*m")

func stripANSI(s string) string {
	return reANSI.ReplaceAllString(s, "")
}

func testTheme() *styles.Theme {
	return styles.NewTheme("dark")
}

// =============================================================================
// STATUS BAR TESTS
// =============================================================================

func TestStatusBarShowsStatus(t *testing.T) {
	bar := NewStatusBar(testTheme())
	bar.SetWidth(120)

	bar.SetStatus(StatusStreaming)
	if !strings.Contains(bar.View(), "Streaming...") {
		t.Error("Status bar missing streaming label")
	}

	bar.SetStatus(StatusError)
	if !strings.Contains(bar.View(), "Error") {
		t.Error("Status bar missing error label")
	}
}

func TestStatusBarNoticeReplacesShortcuts(t *testing.T) {
	bar := NewStatusBar(testTheme())
	bar.SetWidth(120)
	bar.SetNotice("exported to /tmp/out.md")

	view := bar.View()
	if !strings.Contains(view, "exported to /tmp/out.md") {
		t.Error("Notice not rendered")
	}
	if strings.Contains(view, "sessions") {
		t.Error("Shortcuts should be hidden while a notice is shown")
	}

	bar.ClearNotice()
	if !strings.Contains(bar.View(), "sessions") {
		t.Error("Shortcuts should return after the notice clears")
	}
}

func TestStatusBarWebSearchIndicator(t *testing.T) {
	bar := NewStatusBar(testTheme())
	bar.SetWidth(120)
	bar.WebSearch = true
	if !strings.Contains(bar.View(), "[web]") {
		t.Error("Web-search indicator missing")
	}
}

// =============================================================================
// SESSION LIST TESTS
// =============================================================================

func sampleSessions(n int) []api.SessionInfo {
	out := make([]api.SessionInfo, n)
	for i := range out {
		out[i] = api.SessionInfo{ID: string(rune('a' + i)), Title: "Session " + string(rune('A'+i)), MessageCount: i}
	}
	return out
}

func TestSessionListNavigation(t *testing.T) {
	l := NewSessionList(testTheme())
	l.SetSessions(sampleSessions(3))

	if l.Selected().ID != "a" {
		t.Errorf("Initial selection should be first entry, got %s", l.Selected().ID)
	}
	l.MoveDown()
	l.MoveDown()
	if l.Selected().ID != "c" {
		t.Errorf("Expected selection c, got %s", l.Selected().ID)
	}
	// Cursor clamps at the end.
	l.MoveDown()
	if l.Selected().ID != "c" {
		t.Error("Cursor moved past the last entry")
	}
	l.MoveUp()
	if l.Selected().ID != "b" {
		t.Errorf("Expected selection b, got %s", l.Selected().ID)
	}
}

func TestSessionListClampsCursorOnShrink(t *testing.T) {
	l := NewSessionList(testTheme())
	l.SetSessions(sampleSessions(5))
	for i := 0; i < 4; i++ {
		l.MoveDown()
	}
	l.SetSessions(sampleSessions(2))
	if l.Selected() == nil || l.Selected().ID != "b" {
		t.Error("Cursor not clamped after the list shrank")
	}
}

func TestSessionListEmpty(t *testing.T) {
	l := NewSessionList(testTheme())
	if l.Selected() != nil {
		t.Error("Selected should be nil for an empty list")
	}
	if !strings.Contains(l.View(), "No stored sessions") {
		t.Error("Empty state message missing")
	}
}

func TestSessionListScrollsLongLists(t *testing.T) {
	l := NewSessionList(testTheme())
	l.SetSessions(sampleSessions(20))
	view := l.View()
	if !strings.Contains(view, "more") {
		t.Error("Long list should indicate hidden entries")
	}
}

// =============================================================================
// CODE BLOCKS
// =============================================================================

func TestHighlightCodeFencesLeavesProseAlone(t *testing.T) {
	text := "The derivative is 2x.\nNo code here."
	if got := HighlightCodeFences(text, 80); got != text {
		t.Errorf("Prose without fences should pass through unchanged, got %q", got)
	}
}

func TestHighlightCodeFencesReplacesFence(t *testing.T) {
	text := "Compute it in Python:\n```python\nprint(2 * x)\n```\nDone."
	got := HighlightCodeFences(text, 80)
	if strings.Contains(got, "```") {
		t.Error("Fence markers should not survive rendering")
	}
	if !strings.Contains(stripANSI(got), "print") {
		t.Error("Code content lost during rendering")
	}
	if !strings.Contains(got, "Compute it in Python:") || !strings.Contains(got, "Done.") {
		t.Error("Surrounding prose must be preserved")
	}
}

func TestHighlightCodeFencesUnclosedFence(t *testing.T) {
	// A reply that is still streaming often ends mid-fence. Highlighting
	// colors each token separately, so the assertion strips the escapes.
	text := "Working:\n```python\nx = 1"
	got := stripANSI(HighlightCodeFences(text, 80))
	if !strings.Contains(got, "x = 1") {
		t.Error("Unclosed fence content should still render")
	}
}

func TestGuessLanguage(t *testing.T) {
	if got := guessLanguage("import sympy\nx = sympy.Symbol('x')"); got != "python" {
		t.Errorf("Expected python, got %q", got)
	}
	if got := guessLanguage("\\begin{align}x\\end{align}"); got != "latex" {
		t.Errorf("Expected latex, got %q", got)
	}
	if got := guessLanguage("some plain text"); got != "" {
		t.Errorf("Expected no guess, got %q", got)
	}
}
