// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session tracks the active backend session and provides the
// session browser: listing stored sessions, loading one into a
// conversation, and deleting them.
//
// Sessions live on the backend. This package holds only a cached listing
// and the ID of the session the UI is currently talking to.
package session
