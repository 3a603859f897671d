// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPair(t *testing.T, left, right serverOpts) (*Dispatcher, *streamServer, *streamServer) {
	t.Helper()
	ls := newStreamServer(t, left)
	rs := newStreamServer(t, right)
	d := NewDispatcher(
		newTestSession(t, ls, Config{Name: "left", Location: Location{State: "California", City: "San Jose"}}),
		newTestSession(t, rs, Config{Name: "right", Location: Location{State: "Texas", City: "Dallas"}}),
	)
	return d, ls, rs
}

func TestDispatcher_NoCrossContamination(t *testing.T) {
	d, ls, rs := newPair(t,
		serverOpts{lines: []string{content("Assistant> "), content("Left "), content("answer")}},
		serverOpts{lines: []string{content("Right"), content(" answer"), content(" here")}},
	)

	errs := d.Submit(context.Background(), "Do I need a permit?")
	require.NoError(t, d.JoinErrors(errs))
	d.Wait()

	sessions := d.Sessions()
	assert.Equal(t, []string{"user:Do I need a permit?", "assistant:Left answer"}, contents(t, sessions[0]))
	assert.Equal(t, []string{"user:Do I need a permit?", "assistant:Right answer here"}, contents(t, sessions[1]))

	assert.Equal(t, "San Jose", recv(t, ls.requests).City)
	assert.Equal(t, "Dallas", recv(t, rs.requests).City)
}

func TestDispatcher_EmptyInputRejectedForAll(t *testing.T) {
	d, ls, rs := newPair(t, serverOpts{}, serverOpts{})

	errs := d.Submit(context.Background(), "  ")
	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrEmptyInput)
	}
	for _, s := range d.Sessions() {
		assert.Equal(t, 0, s.Transcript().Len())
	}
	assert.Empty(t, ls.requests)
	assert.Empty(t, rs.requests)
}

func TestDispatcher_BusyPanelDoesNotBlockOthers(t *testing.T) {
	gate := make(chan struct{})
	d, _, _ := newPair(t,
		serverOpts{lines: []string{content("slow")}, gate: gate, gateAfter: 0},
		serverOpts{lines: []string{content("fast")}},
	)
	left, right := d.Sessions()[0], d.Sessions()[1]

	require.NoError(t, left.Submit(context.Background(), "warmup"))
	require.True(t, left.Busy())

	errs := d.Submit(context.Background(), "Hi")
	assert.ErrorIs(t, errs[0], ErrBusy)
	assert.NoError(t, errs[1])

	right.Wait()
	assert.Equal(t, []string{"user:Hi", "assistant:fast"}, contents(t, right))
	assert.True(t, d.Busy())

	err := d.JoinErrors(errs)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Contains(t, err.Error(), "left:")

	close(gate)
	d.Wait()
	assert.Equal(t, []string{"user:warmup", "assistant:slow"}, contents(t, left))
	assert.False(t, d.Busy())
}

func TestDispatcher_FailedPanelIsolated(t *testing.T) {
	d, _, _ := newPair(t,
		serverOpts{status: http.StatusInternalServerError},
		serverOpts{lines: []string{content("fine")}},
	)

	require.NoError(t, d.JoinErrors(d.Submit(context.Background(), "Hi")))
	d.Wait()

	assert.Equal(t, []string{"user:Hi"}, contents(t, d.Sessions()[0]))
	assert.Equal(t, []string{"user:Hi", "assistant:fine"}, contents(t, d.Sessions()[1]))
}

func TestDispatcher_CancelFansOut(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	d, _, _ := newPair(t,
		serverOpts{lines: []string{content("l")}, gate: gate, gateAfter: 1},
		serverOpts{lines: []string{content("r")}, gate: gate, gateAfter: 1},
	)

	require.NoError(t, d.JoinErrors(d.Submit(context.Background(), "Hi")))
	require.Eventually(t, func() bool {
		for _, s := range d.Sessions() {
			if !s.Generating() {
				return false
			}
		}
		return true
	}, waitFor, 5*time.Millisecond)

	d.Cancel()
	require.NoError(t, d.WaitContext(context.Background()))
	assert.False(t, d.Busy())
}

func TestDispatcher_WaitContextTimeout(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	d, _, _ := newPair(t,
		serverOpts{lines: []string{content("l")}, gate: gate},
		serverOpts{lines: []string{content("r")}},
	)

	d.Submit(context.Background(), "Hi")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.WaitContext(ctx), context.DeadlineExceeded)
}

func TestDispatcher_Close(t *testing.T) {
	d, _, _ := newPair(t, serverOpts{}, serverOpts{})
	d.Close()
	for _, err := range d.Submit(context.Background(), "Hi") {
		assert.ErrorIs(t, err, ErrClosed)
	}
	assert.Equal(t, 2, d.Len())
}
