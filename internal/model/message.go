// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
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
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Source is a citation attached to an assistant message.
type Source struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Message is one turn in a conversation. Values handed out by a Transcript
// are copies; mutating them has no effect on the transcript.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Sources   []Source  `json:"sources,omitempty"`

	// Streaming is set while the message is the live placeholder of an
	// open stream.
	Streaming bool `json:"-"`
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty returns true if the message has no content.
func (m Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// Handle references a message inside a Transcript. It stays valid for the
// lifetime of the transcript because messages are never removed.
type Handle string

// =============================================================================
// INTERNAL ENTRY
// =============================================================================

// entry is the mutable record behind a Message.
// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
type entry struct {
	id        string
	role      Role
	content   strings.Builder
	timestamp time.Time
	sources   []Source
	streaming bool

	// received is true once any content fragment has been applied.
	received bool
}

func (e *entry) message() Message {
	msg := Message{
		ID:        e.id,
		Role:      e.role,
		Content:   e.content.String(),
		Timestamp: e.timestamp,
		Streaming: e.streaming,
	}
	if len(e.sources) > 0 {
		msg.Sources = append([]Source(nil), e.sources...)
	}
	return msg
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates a unique, time-ordered message ID.
func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "msg_" + uuid.NewString()
	}
	return "msg_" + id.String()
}
