// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "errors"

// State is the lifecycle state of a session.
type State int

const (
	// StateIdle accepts a new submission.
	StateIdle State = iota

	// StateSubmitting has appended the user message and is waiting for the
	// stream to open.
	StateSubmitting

	// StateGenerating is applying records to the assistant placeholder.
	StateGenerating
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateGenerating:
		return "generating"
	default:
		return "unknown"
	}
}

// Busy reports whether a submission is in flight.
func (s State) Busy() bool {
	return s == StateSubmitting || s == StateGenerating
}

var (
	// ErrEmptyInput rejects empty or whitespace-only prompts.
	ErrEmptyInput = errors.New("session: empty input")

	// ErrBusy rejects a submission while another one is in flight.
	ErrBusy = errors.New("session: submission already in progress")

	// ErrClosed rejects a submission after Close.
	ErrClosed = errors.New("session: closed")
)
