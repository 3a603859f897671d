// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the conversation data structures and the reducer
// that folds streamed fragments into them.
//
// # Key Types
//
//   - Message: One turn with role, content, timestamp and optional sources
//   - Transcript: Ordered, concurrency-safe message list owned by one session
//   - Handle: Explicit reference to a message, returned at creation time
//   - Snapshot: Immutable copy of a transcript published on every mutation
//   - Reducer: Applies decoded stream records to one assistant placeholder
//
// # Usage
//
// Open a placeholder and fold fragments into it:
//
//	t := model.NewTranscript()
//	t.AppendUser("Hi")
//	h := t.OpenPlaceholder()
//	r := model.NewReducer(t, h, model.PolicyOverwrite)
//	r.Apply("Assistant> ", true, nil) // sentinel, discarded
//	r.Apply("Hello", true, nil)
//	t.Finalize(h)
//
// Observe changes:
//
//	snaps, stop := t.Subscribe()
//	defer stop()
//	for snap := range snaps {
//	    render(snap.Messages)
//	}
package model
