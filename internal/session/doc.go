// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session drives one conversation against one streaming endpoint.
//
// A Session owns a transcript and moves through idle, submitting and
// generating as a submission opens a stream, applies its records and ends.
// A Dispatcher fans one prompt out to several sessions for compare mode.
//
// # Key Types
//
//   - Session: Single conversation bound to an endpoint and location
//   - Dispatcher: Concurrent submission across independent sessions
//   - Location: State and city context sent with each request
//   - State: Lifecycle state of a session
//
// # Usage
//
//	s := session.New(session.Config{
//	    Endpoint: "http://localhost:8000/chat-stream",
//	    Logger:   log,
//	})
//	defer s.Close()
//
//	if err := s.Submit(ctx, "Is a bike lane required here?"); err != nil {
//	    return err
//	}
//	s.Wait()
//
// Compare two locations side by side:
//
//	d := session.NewDispatcher(left, right)
//	errs := d.Submit(ctx, prompt)
//	d.Wait()
package session
