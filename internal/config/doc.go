// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for mathchat.
//
// Configuration is read from a TOML file with sensible defaults, environment
// variable overrides, and validation.
//
// Sources (in order of precedence):
//   - MATHCHAT_* environment variables
//   - ~/.mathchat/config.toml
//   - Built-in defaults
//
// A running TUI can subscribe to config changes through Watcher, which
// monitors the config file with fsnotify and delivers re-validated Config
// values after edits settle.
package config
