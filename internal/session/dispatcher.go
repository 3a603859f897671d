// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Dispatcher submits one prompt to several independent sessions. Sessions
// share nothing but the prompt; one failing or busy session never blocks
// the others.
type Dispatcher struct {
	sessions []*Session
}

// NewDispatcher creates a dispatcher over sessions, in panel order.
func NewDispatcher(sessions ...*Session) *Dispatcher {
	return &Dispatcher{sessions: sessions}
}

// Sessions returns the dispatched sessions in panel order.
func (d *Dispatcher) Sessions() []*Session {
	out := make([]*Session, len(d.sessions))
	copy(out, d.sessions)
	return out
}

// Len returns the number of sessions.
func (d *Dispatcher) Len() int { return len(d.sessions) }

// Submit sends text to every session. The returned slice holds each
// session's Submit error in panel order. Empty input is rejected for all
// sessions without touching any transcript.
func (d *Dispatcher) Submit(ctx context.Context, text string) []error {
	errs := make([]error, len(d.sessions))
	if strings.TrimSpace(text) == "" {
		for i := range errs {
			errs[i] = ErrEmptyInput
		}
		return errs
	}

	var g errgroup.Group
	for i, s := range d.sessions {
		g.Go(func() error {
			errs[i] = s.Submit(ctx, text)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// Busy reports whether any session has a submission in flight.
func (d *Dispatcher) Busy() bool {
	for _, s := range d.sessions {
		if s.Busy() {
			return true
		}
	}
	return false
}

// Cancel aborts every in-flight stream.
func (d *Dispatcher) Cancel() {
	for _, s := range d.sessions {
		s.Cancel()
	}
}

// Wait blocks until every session is idle.
func (d *Dispatcher) Wait() {
	var g errgroup.Group
	for _, s := range d.sessions {
		g.Go(func() error {
			s.Wait()
			return nil
		})
	}
	_ = g.Wait()
}

// WaitContext is Wait bounded by ctx.
func (d *Dispatcher) WaitContext(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range d.sessions {
		g.Go(func() error {
			return s.WaitContext(ctx)
		})
	}
	return g.Wait()
}

// Close closes every session concurrently.
func (d *Dispatcher) Close() {
	var g errgroup.Group
	for _, s := range d.sessions {
		g.Go(func() error {
			s.Close()
			return nil
		})
	}
	_ = g.Wait()
}

// JoinErrors collapses per-session errors into one, prefixing each with the
// session name. It returns nil when every entry is nil.
func (d *Dispatcher) JoinErrors(errs []error) error {
	var joined []error
	for i, err := range errs {
		if err == nil {
			continue
		}
		name := "session"
		if i < len(d.sessions) {
			name = d.sessions[i].Name()
		}
		joined = append(joined, &PanelError{Panel: name, Err: err})
	}
	return errors.Join(joined...)
}

// PanelError attributes an error to one compare panel.
type PanelError struct {
	Panel string
	Err   error
}

func (e *PanelError) Error() string { return e.Panel + ": " + e.Err.Error() }

func (e *PanelError) Unwrap() error { return e.Err }
