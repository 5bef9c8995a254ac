// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types shared by the TUI, the plain
// CLI modes, and the export code: a chat transcript and the messages in it.
//
// # Key Types
//
//   - Conversation: a transcript bound to a backend session
//   - Message: a single message with role, content and streaming state
//   - Statistics: timing metrics collected while a reply streams
//   - Role: message role enumeration (user, assistant, error)
//
// A streaming assistant message carries two views of its text: the raw
// concatenation of every frame received so far, and the display-ready
// content the UI rewrote from it. The raw buffer is the source of truth
// until the stream finishes.
package model
