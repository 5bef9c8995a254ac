// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the reusable UI components for the Mathchat
// TUI: the status bar, loading spinner, welcome screen, and the session
// browser overlay.
package components
