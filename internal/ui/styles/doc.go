// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles defines the color palette and Lip Gloss styles used across
// the TUI. Colors are adaptive pairs that follow the terminal background;
// the Theme bundles the concrete styles each view renders with.
package styles
