// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the non-TUI front ends: the one-shot "ask"
// command and the line-oriented REPL. Both share the same client,
// normalizer, and session plumbing as the TUI; they differ only in how
// output reaches the terminal.
package cli
