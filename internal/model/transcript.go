// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sync"
	"time"
)

// =============================================================================
// SNAPSHOT TYPE
// =============================================================================

// Snapshot is an immutable view of a transcript at one version.
type Snapshot struct {
	Version  uint64
	Messages []Message
}

// Len returns the number of messages in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Messages)
}

// LastAssistant returns the most recent assistant message, scanning from
// the end so that out-of-cadence assistant messages are handled.
func (s Snapshot) LastAssistant() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// Reply returns the reply to the latest user message: the first assistant
// message after it. Error messages appended later in the same turn are
// skipped, so the streamed reply wins over them.
func (s Snapshot) Reply() (Message, bool) {
	start := 0
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			start = i + 1
			break
		}
	}
	for _, m := range s.Messages[start:] {
		if m.Role == RoleAssistant {
			return m, true
		}
	}
	return Message{}, false
}

// Streaming reports whether any message is still a live placeholder.
func (s Snapshot) Streaming() bool {
	for _, m := range s.Messages {
		if m.Streaming {
			return true
		}
	}
	return false
}

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is the ordered message list of one session. All methods are
// safe for concurrent use. Every mutation bumps the version and publishes a
// fresh Snapshot to subscribers.
type Transcript struct {
	mu      sync.Mutex
	entries []*entry
	byID    map[string]*entry
	version uint64

	subs    map[int]chan Snapshot
	nextSub int

	now   func() time.Time
	newID func() string
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{
		byID:  make(map[string]*entry),
		subs:  make(map[int]chan Snapshot),
		now:   time.Now,
		newID: generateID,
	}
}

// =============================================================================
// MESSAGE CREATION
// =============================================================================

// AppendUser appends a user message with fixed content.
func (t *Transcript) AppendUser(content string) Message {
	t.mu.Lock()
	e := t.addLocked(RoleUser, false)
	e.content.WriteString(content)
	msg := e.message()
	t.publishLocked()
	t.mu.Unlock()
	return msg
}

// OpenPlaceholder appends an empty, streaming assistant message and returns
// its handle.
func (t *Transcript) OpenPlaceholder() Handle {
	t.mu.Lock()
	e := t.addLocked(RoleAssistant, true)
	t.publishLocked()
	t.mu.Unlock()
	return Handle(e.id)
}

// AppendAssistant appends a complete assistant message. Used on error paths
// that report outside the normal placeholder cadence.
func (t *Transcript) AppendAssistant(content string) Handle {
	t.mu.Lock()
	e := t.addLocked(RoleAssistant, false)
	e.content.WriteString(content)
	t.publishLocked()
	t.mu.Unlock()
	return Handle(e.id)
}

func (t *Transcript) addLocked(role Role, streaming bool) *entry {
	e := &entry{
		id:        t.newID(),
		role:      role,
		timestamp: t.now(),
		streaming: streaming,
	}
	t.entries = append(t.entries, e)
	t.byID[e.id] = e
	return e
}

// =============================================================================
// MESSAGE MUTATION
// =============================================================================

// Append adds text to the end of the referenced message. Returns false if
// the handle does not resolve.
func (t *Transcript) Append(h Handle, text string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[string(h)]
	if !ok {
		return false
	}
	e.content.WriteString(text)
	e.received = true
	t.publishLocked()
	return true
}

// Replace overwrites the content of the referenced message.
func (t *Transcript) Replace(h Handle, text string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[string(h)]
	if !ok {
		return false
	}
	e.content.Reset()
	e.content.WriteString(text)
	e.received = true
	t.publishLocked()
	return true
}

// AttachSources sets the sources of the referenced message. Sources are
// accepted only once and only before the first content fragment.
func (t *Transcript) AttachSources(h Handle, sources []Source) bool {
	if len(sources) == 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[string(h)]
	if !ok || e.received || len(e.sources) > 0 {
		return false
	}
	e.sources = append([]Source(nil), sources...)
	t.publishLocked()
	return true
}

// Finalize marks the referenced message as no longer streaming.
func (t *Transcript) Finalize(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[string(h)]
	if !ok || !e.streaming {
		return
	}
	e.streaming = false
	t.publishLocked()
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns a copy of the referenced message.
func (t *Transcript) Get(h Handle) (Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[string(h)]
	if !ok {
		return Message{}, false
	}
	return e.message(), true
}

// LastAssistant returns the handle of the most recent assistant message.
func (t *Transcript) LastAssistant() (Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].role == RoleAssistant {
			return Handle(t.entries[i].id), true
		}
	}
	return "", false
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Snapshot returns an immutable copy of the current transcript.
func (t *Transcript) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Transcript) snapshotLocked() Snapshot {
	msgs := make([]Message, len(t.entries))
	for i, e := range t.entries {
		msgs[i] = e.message()
	}
	return Snapshot{Version: t.version, Messages: msgs}
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe returns a channel that receives a snapshot after every mutation,
// starting with the current state. The channel keeps only the latest
// snapshot, so a slow reader skips intermediate versions but never blocks
// the writer. Call the returned function to unsubscribe; it closes the
// channel.
func (t *Transcript) Subscribe() (<-chan Snapshot, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextSub
	t.nextSub++
	ch := make(chan Snapshot, 1)
	ch <- t.snapshotLocked()
	t.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if c, ok := t.subs[id]; ok {
				delete(t.subs, id)
				close(c)
			}
		})
	}
}

// publishLocked bumps the version and hands the new snapshot to every
// subscriber, replacing any unread older one.
func (t *Transcript) publishLocked() {
	t.version++
	if len(t.subs) == 0 {
		return
	}
	snap := t.snapshotLocked()
	for _, ch := range t.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
