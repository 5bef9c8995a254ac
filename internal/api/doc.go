// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the HTTP client for the mathchat backend.
//
// The backend exposes a small REST surface for session management and two
// streaming endpoints that reply with Server-Sent Events:
//
//	GET    /sessions          list stored sessions
//	GET    /sessions/{id}     load one session with its messages
//	DELETE /sessions/{id}     delete a session
//	POST   /chat/{id}         stream a reply to a chat message
//	POST   /web_search        stream a reply grounded in web search
//
// Streaming responses are decoded incrementally with internal/sse; payloads
// are delivered to the caller one frame at a time, either through a callback
// or a channel. Connection setup is retried with exponential backoff; an
// error after the stream has started is surfaced as a StreamError carrying
// the partial content received so far.
package api
