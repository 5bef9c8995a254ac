// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the main TUI view: the conversation viewport,
// the input line, and the streaming orchestration that drives an exchange
// from sending through streaming to its terminal state.
//
// One exchange at a time: submitting while a stream is active cancels the
// active stream first. Every frame that arrives re-normalizes the full
// accumulated reply, so the rendered text is always the normalizer's fixed
// point regardless of how the stream was chunked.
package chat
