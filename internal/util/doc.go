// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for the mathchat client.
//
// It contains width-aware string truncation for terminal rendering and an
// atomic file writer used by config saving and transcript export.
package util
