// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jeranaias/compllama/internal/completion"
	"github.com/jeranaias/compllama/internal/model"
	"github.com/jeranaias/compllama/internal/telemetry"
)

const waitFor = 5 * time.Second

// fakeOpener serves bodies from a function instead of the network.
type fakeOpener struct {
	open func(ctx context.Context, r completion.Request) (io.ReadCloser, error)
}

func (f fakeOpener) Open(ctx context.Context, r completion.Request) (io.ReadCloser, error) {
	return f.open(ctx, r)
}

// failingBody returns data, then err.
type failingBody struct {
	data io.Reader
	err  error
}

func (b *failingBody) Read(p []byte) (int, error) {
	n, err := b.data.Read(p)
	if errors.Is(err, io.EOF) {
		return n, b.err
	}
	return n, err
}

func (b *failingBody) Close() error { return nil }

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmit_SentinelIsSkipped(t *testing.T) {
	srv := newStreamServer(t, serverOpts{lines: []string{
		content("Assistant> "), content("Hello"), content(" there"),
	}})
	s := newTestSession(t, srv, Config{})

	require.NoError(t, s.Submit(context.Background(), "Hi"))
	s.Wait()

	assert.Equal(t, []string{"user:Hi", "assistant:Hello there"}, contents(t, s))
	assert.Equal(t, StateIdle, s.State())

	last, ok := s.Transcript().Snapshot().LastAssistant()
	require.True(t, ok)
	assert.False(t, last.Streaming)
}

func TestSubmit_RequestCarriesLocation(t *testing.T) {
	srv := newStreamServer(t, serverOpts{lines: []string{content("ok")}})
	s := newTestSession(t, srv, Config{})
	s.SetLocation(DefaultLocation().WithState("Texas").WithCity("Austin"))

	require.NoError(t, s.Submit(context.Background(), "Is there a plastic bag ban?"))
	s.Wait()

	req := recv(t, srv.requests)
	assert.Equal(t, completion.Request{
		Message: "Is there a plastic bag ban?",
		State:   "Texas",
		City:    "Austin",
	}, req)
}

func TestSubmit_MalformedOverwritesOnceThenAppends(t *testing.T) {
	log, logs := observed()
	srv := newStreamServer(t, serverOpts{lines: []string{"not-json", content("ok"), "{broken"}})
	s := newTestSession(t, srv, Config{Logger: log})

	require.NoError(t, s.Submit(context.Background(), "Hi"))
	s.Wait()

	assert.Equal(t, []string{"user:Hi", "assistant:" + model.DefaultParseErrorText + "ok"}, contents(t, s))

	complete := logs.FilterMessage("stream complete").All()
	require.Len(t, complete, 1)
	fields := complete[0].ContextMap()
	assert.EqualValues(t, 1, fields["records"], "ok must still be parsed")
	assert.EqualValues(t, 1, fields["tokens"])
	assert.EqualValues(t, 2, fields["malformed"])
	assert.Equal(t, 2, logs.FilterMessage("malformed stream line").Len())
}

func TestSubmit_MalformedAppendPolicy(t *testing.T) {
	srv := newStreamServer(t, serverOpts{lines: []string{"not-json", content("ok")}})
	s := newTestSession(t, srv, Config{Policy: model.PolicyAppend})

	require.NoError(t, s.Submit(context.Background(), "Hi"))
	s.Wait()

	assert.Equal(t, []string{
		"user:Hi",
		"assistant:ok",
		"assistant:" + model.DefaultParseErrorText,
	}, contents(t, s))
}

func TestSubmit_CustomErrorText(t *testing.T) {
	srv := newStreamServer(t, serverOpts{lines: []string{"<html>"}})
	s := newTestSession(t, srv, Config{ParseErrorText: "Bad data from server."})

	require.NoError(t, s.Submit(context.Background(), "Hi"))
	s.Wait()

	assert.Equal(t, []string{"user:Hi", "assistant:Bad data from server."}, contents(t, s))
}

func TestSubmit_EmptyInput(t *testing.T) {
	srv := newStreamServer(t, serverOpts{lines: []string{content("ok")}})
	s := newTestSession(t, srv, Config{})

	for _, in := range []string{"", "   ", "\n\t"} {
		assert.ErrorIs(t, s.Submit(context.Background(), in), ErrEmptyInput)
	}
	assert.Equal(t, 0, s.Transcript().Len())
	assert.Empty(t, srv.requests)
	assert.Equal(t, StateIdle, s.State())
}

func TestSubmit_UserMessageBeforeNetwork(t *testing.T) {
	var s *Session
	var seen model.Snapshot
	opener := fakeOpener{open: func(ctx context.Context, r completion.Request) (io.ReadCloser, error) {
		seen = s.Transcript().Snapshot()
		return io.NopCloser(strings.NewReader(content("fine") + "\n")), nil
	}}
	s = New(Config{Client: opener})
	t.Cleanup(s.Close)

	require.NoError(t, s.Submit(context.Background(), "Hi"))
	s.Wait()

	require.Len(t, seen.Messages, 1)
	assert.Equal(t, model.RoleUser, seen.Messages[0].Role)
	assert.Equal(t, "Hi", seen.Messages[0].Content)
	assert.Equal(t, 2, s.Transcript().Len())
}

func TestSubmit_BusyRejected(t *testing.T) {
	gate := make(chan struct{})
	srv := newStreamServer(t, serverOpts{
		lines:     []string{content("Hel"), content("lo")},
		gate:      gate,
		gateAfter: 1,
	})
	log, logs := observed()
	s := newTestSession(t, srv, Config{Logger: log})

	require.NoError(t, s.Submit(context.Background(), "first"))
	require.Eventually(t, s.Generating, waitFor, 5*time.Millisecond)
	before := s.Transcript().Len()

	assert.ErrorIs(t, s.Submit(context.Background(), "second"), ErrBusy)
	assert.Equal(t, before, s.Transcript().Len())

	close(gate)
	s.Wait()
	assert.Equal(t, []string{"user:first", "assistant:Hello"}, contents(t, s))

	rejected := logs.FilterMessage("submission rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, "generating", rejected[0].ContextMap()["state"])
}

func TestSubmit_BusyRejectedWhileStreamFinishes(t *testing.T) {
	srv := newStreamServer(t, serverOpts{lines: []string{content("a"), content("b"), content("c")}})
	log, _ := observed()
	s := newTestSession(t, srv, Config{Logger: log})

	require.NoError(t, s.Submit(context.Background(), "first"))
	for s.Busy() {
		if err := s.Submit(context.Background(), "again"); err != nil {
			assert.ErrorIs(t, err, ErrBusy)
		}
	}
	s.Wait()
}

func TestSubmit_SentinelCountsAsFirstToken(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tel, err := telemetry.New(tp, metricnoop.NewMeterProvider())
	require.NoError(t, err)

	srv := newStreamServer(t, serverOpts{lines: []string{content("Assistant> ")}})
	s := newTestSession(t, srv, Config{Telemetry: tel})

	require.NoError(t, s.Submit(context.Background(), "Hi"))
	s.Wait()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	var names []string
	for _, ev := range spans[0].Events() {
		names = append(names, ev.Name)
	}
	assert.Contains(t, names, "first_token")
}

// =============================================================================
// FAILURES
// =============================================================================

func TestSubmit_OpenFailureLeavesNoPlaceholder(t *testing.T) {
	log, logs := observed()
	srv := newStreamServer(t, serverOpts{status: http.StatusServiceUnavailable})
	s := newTestSession(t, srv, Config{Logger: log})

	require.NoError(t, s.Submit(context.Background(), "Hi"))
	s.Wait()

	assert.Equal(t, []string{"user:Hi"}, contents(t, s))
	assert.Equal(t, StateIdle, s.State())

	failures := logs.FilterMessage("stream open failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, zapcore.ErrorLevel, failures[0].Level)
}

func TestSubmit_ReadFailureReplacesContent(t *testing.T) {
	opener := fakeOpener{open: func(ctx context.Context, r completion.Request) (io.ReadCloser, error) {
		return &failingBody{
			data: strings.NewReader(content("partial") + "\n"),
			err:  errors.New("connection reset by peer"),
		}, nil
	}}
	s := New(Config{Client: opener, TransportErrorText: "Stream lost."})
	t.Cleanup(s.Close)

	require.NoError(t, s.Submit(context.Background(), "Hi"))
	s.Wait()

	assert.Equal(t, []string{"user:Hi", "assistant:Stream lost."}, contents(t, s))
	assert.False(t, s.Busy())
}

func TestSubmit_RecoversAfterFailure(t *testing.T) {
	calls := 0
	opener := fakeOpener{open: func(ctx context.Context, r completion.Request) (io.ReadCloser, error) {
		calls++
		if calls == 1 {
			return nil, &completion.ClientError{Type: completion.ErrTypeConnection, Message: "refused"}
		}
		return io.NopCloser(strings.NewReader(content("back") + "\n")), nil
	}}
	s := New(Config{Client: opener})
	t.Cleanup(s.Close)

	require.NoError(t, s.Submit(context.Background(), "one"))
	s.Wait()
	require.NoError(t, s.Submit(context.Background(), "two"))
	s.Wait()

	assert.Equal(t, []string{"user:one", "user:two", "assistant:back"}, contents(t, s))
}

// =============================================================================
// CANCELLATION
// =============================================================================

func TestCancel_KeepsPartialContent(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	srv := newStreamServer(t, serverOpts{
		lines:     []string{content("partial"), content(" never")},
		gate:      gate,
		gateAfter: 1,
	})
	s := newTestSession(t, srv, Config{})

	require.NoError(t, s.Submit(context.Background(), "Hi"))
	require.Eventually(t, func() bool {
		m, ok := s.Transcript().Snapshot().LastAssistant()
		return ok && m.Content == "partial"
	}, waitFor, 5*time.Millisecond)

	s.Cancel()
	s.Wait()

	assert.Equal(t, []string{"user:Hi", "assistant:partial"}, contents(t, s))
	assert.False(t, s.Transcript().Snapshot().Streaming())
	assert.Equal(t, StateIdle, s.State())
}

func TestCancel_ParentContext(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	srv := newStreamServer(t, serverOpts{lines: []string{content("x")}, gate: gate, gateAfter: 1})
	s := newTestSession(t, srv, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Submit(ctx, "Hi"))
	require.Eventually(t, s.Generating, waitFor, 5*time.Millisecond)
	cancel()

	require.NoError(t, s.WaitContext(context.Background()))
	assert.Equal(t, StateIdle, s.State())
}

func TestSupersede(t *testing.T) {
	gate := make(chan struct{})
	srv := newStreamServer(t, serverOpts{
		lines:     []string{content("partial"), content(" done")},
		gate:      gate,
		gateAfter: 1,
	})
	s := newTestSession(t, srv, Config{})

	require.NoError(t, s.Submit(context.Background(), "first"))
	require.Eventually(t, func() bool {
		m, ok := s.Transcript().Snapshot().LastAssistant()
		return ok && m.Content == "partial"
	}, waitFor, 5*time.Millisecond)

	require.NoError(t, s.Supersede(context.Background(), "second"))
	close(gate)
	s.Wait()

	assert.Equal(t, []string{
		"user:first",
		"assistant:partial",
		"user:second",
		"assistant:partial done",
	}, contents(t, s))
}

func TestClose_RejectsSubmit(t *testing.T) {
	srv := newStreamServer(t, serverOpts{lines: []string{content("ok")}})
	s := newTestSession(t, srv, Config{})

	s.Close()
	s.Close()
	assert.ErrorIs(t, s.Submit(context.Background(), "Hi"), ErrClosed)
	assert.Equal(t, 0, s.Transcript().Len())
}

func TestWaitContext_Timeout(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	srv := newStreamServer(t, serverOpts{lines: []string{content("x")}, gate: gate, gateAfter: 0})
	s := newTestSession(t, srv, Config{})

	require.NoError(t, s.Submit(context.Background(), "Hi"))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.WaitContext(ctx), context.DeadlineExceeded)
}

// =============================================================================
// SUBSCRIPTION
// =============================================================================

func TestTranscriptSubscription_SeesFinalSnapshot(t *testing.T) {
	srv := newStreamServer(t, serverOpts{lines: []string{content("a"), content("b")}})
	s := newTestSession(t, srv, Config{})

	updates, stop := s.Transcript().Subscribe()
	defer stop()

	require.NoError(t, s.Submit(context.Background(), "Hi"))
	s.Wait()

	var last model.Snapshot
	require.Eventually(t, func() bool {
		select {
		case last = <-updates:
		default:
		}
		m, ok := last.LastAssistant()
		return ok && m.Content == "ab" && !m.Streaming
	}, waitFor, time.Millisecond)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "submitting", StateSubmitting.String())
	assert.Equal(t, "generating", StateGenerating.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.False(t, StateIdle.Busy())
	assert.True(t, StateSubmitting.Busy())
}
