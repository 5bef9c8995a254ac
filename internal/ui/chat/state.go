// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

// =============================================================================
// EXCHANGE PHASES
// =============================================================================

// Phase is the state of the current exchange.
//
// The flow is idle -> sending -> streaming -> one of the terminal phases.
// Sending covers the window between dispatching the request and the first
// frame; streaming begins when the first frame arrives. The terminal phases
// describe how the last exchange ended and allow a new submission.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSending
	PhaseStreaming
	PhaseCompleted
	PhaseCancelled
	PhaseFailed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSending:
		return "sending"
	case PhaseStreaming:
		return "streaming"
	case PhaseCompleted:
		return "completed"
	case PhaseCancelled:
		return "cancelled"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Busy reports whether an exchange is in flight.
func (p Phase) Busy() bool {
	return p == PhaseSending || p == PhaseStreaming
}
