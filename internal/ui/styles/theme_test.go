// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
)

func TestNewThemeInitializesStyles(t *testing.T) {
	theme := NewTheme("dark")
	if theme == nil {
		t.Fatal("NewTheme returned nil")
	}
	// A few spot checks that styles render without panicking.
	for _, out := range []string{
		theme.UserBubble.Render("hi"),
		theme.StatusBar.Render("ready"),
		theme.SessionItemSelected.Render("item"),
	} {
		if out == "" {
			t.Error("Style rendered empty output")
		}
	}
}

func TestRenderStatusHelpers(t *testing.T) {
	if !strings.Contains(RenderSuccess("done"), "[OK]") {
		t.Error("RenderSuccess missing shape indicator")
	}
	if !strings.Contains(RenderError("boom"), "[X]") {
		t.Error("RenderError missing shape indicator")
	}
	if !strings.Contains(RenderWarning("careful"), "[!]") {
		t.Error("RenderWarning missing shape indicator")
	}
}
