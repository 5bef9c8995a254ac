// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	// RoleError marks a locally generated failure notice. Error messages are
	// part of the transcript the user sees but are never sent to the backend.
	RoleError Role = "error"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Mathchat"
	case RoleError:
		return "Error"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content is the display-ready text. While an assistant message streams,
	// the UI rewrites it from the raw buffer after every frame.
	Content string `json:"content"`

	// WebSearch marks a user message dispatched through the web-search
	// endpoint rather than the plain chat endpoint.
	WebSearch bool `json:"web_search,omitempty"`

	// Streaming state (not persisted)
	// PERFORMANCE: strings.Builder avoids quadratic allocations as frames accumulate
	IsStreaming bool `json:"-"`
	raw         strings.Builder

	// Generation metrics (assistant messages)
	TTFT          time.Duration `json:"ttft_ns,omitempty"`           // Time to first frame
	TotalDuration time.Duration `json:"total_duration_ns,omitempty"` // Total generation time
	FrameCount    int           `json:"frame_count,omitempty"`       // Frames received
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string, webSearch bool) *Message {
	msg := NewMessage(RoleUser, content)
	msg.WebSearch = webSearch
	return msg
}

// NewAssistantMessage creates a new assistant message in streaming state.
// It starts empty: the placeholder the UI shows until the first frame lands.
func NewAssistantMessage() *Message {
	return &Message{
		ID:          uuid.NewString(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// NewErrorMessage creates a new error notice message.
func NewErrorMessage(content string) *Message {
	return NewMessage(RoleError, content)
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendFrame appends a frame payload to the raw buffer of a streaming
// message. Payloads are concatenated exactly as received; any leading
// whitespace a frame carries is part of the text.
func (m *Message) AppendFrame(payload string) {
	if m.IsStreaming {
		m.raw.WriteString(payload)
	}
}

// Raw returns the full raw buffer accumulated so far.
func (m *Message) Raw() string {
	return m.raw.String()
}

// SetRendered replaces the display content. The raw buffer is untouched:
// rendering is a projection, never a rewrite of what arrived.
func (m *Message) SetRendered(content string) {
	m.Content = content
}

// FinalizeStream takes the message out of streaming state and records the
// generation metrics. The display content keeps whatever the last
// SetRendered call produced.
func (m *Message) FinalizeStream(stats *Statistics) {
	if !m.IsStreaming {
		return
	}
	m.raw.Reset()
	m.IsStreaming = false

	if stats != nil {
		m.TTFT = stats.TTFT
		m.TotalDuration = stats.TotalDuration
		m.FrameCount = stats.FrameCount
	}
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty returns true if the message has no content and no buffered frames.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0 && m.raw.Len() == 0
}

// FormatStats returns a formatted metrics line for an assistant message,
// or "" when no metrics were recorded.
func (m *Message) FormatStats() string {
	if m.Role != RoleAssistant || m.TotalDuration == 0 {
		return ""
	}
	return fmt.Sprintf("%s | %d frames | TTFT %dms",
		formatDuration(m.TotalDuration), m.FrameCount, m.TTFT.Milliseconds())
}

// =============================================================================
// STATISTICS TYPE
// =============================================================================

// Statistics holds timing information collected while a reply streams.
type Statistics struct {
	StartTime      time.Time
	FirstFrameTime time.Time
	EndTime        time.Time

	FrameCount int

	// Derived metrics (computed on Finalize)
	TTFT          time.Duration
	TotalDuration time.Duration
}

// NewStatistics creates a new Statistics with the start time set.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime: time.Now(),
	}
}

// RecordFrame records the arrival of one frame.
func (s *Statistics) RecordFrame() {
	if s.FirstFrameTime.IsZero() {
		s.FirstFrameTime = time.Now()
		s.TTFT = s.FirstFrameTime.Sub(s.StartTime)
	}
	s.FrameCount++
}

// Finalize computes the final statistics.
func (s *Statistics) Finalize() {
	s.EndTime = time.Now()
	s.TotalDuration = s.EndTime.Sub(s.StartTime)
}

// Format returns a formatted string of the statistics.
func (s *Statistics) Format() string {
	return fmt.Sprintf("%s | %d frames | TTFT %dms",
		formatDuration(s.TotalDuration), s.FrameCount, s.TTFT.Milliseconds())
}

// formatDuration renders sub-second durations in milliseconds and longer
// ones in seconds with one decimal.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
