// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/compllama/internal/completion"
	"github.com/jeranaias/compllama/internal/logging"
	"github.com/jeranaias/compllama/internal/model"
	"github.com/jeranaias/compllama/internal/stream"
	"github.com/jeranaias/compllama/internal/telemetry"
	"github.com/jeranaias/compllama/internal/util"
)

// excerptRunes bounds how much of a malformed line reaches the log.
const excerptRunes = 120

// Opener opens a streaming response for one request.
type Opener interface {
	Open(ctx context.Context, r completion.Request) (io.ReadCloser, error)
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config describes one session.
type Config struct {
	// Name labels the session in logs and telemetry (default: "chat")
	Name string

	// Endpoint is the streaming URL. Ignored when Client is set.
	Endpoint string

	// Client overrides the HTTP client built from Endpoint.
	Client Opener

	// Location is sent with every request (default: DefaultLocation)
	Location Location

	// Policy selects how malformed lines surface (default: overwrite)
	Policy model.MalformedPolicy

	// ParseErrorText and TransportErrorText override the surfaced strings.
	ParseErrorText     string
	TransportErrorText string

	// BufferSize is the raw read size (default: stream.DefaultBufferSize)
	BufferSize int

	// HeaderTimeout bounds the wait for response headers (default: 30s)
	HeaderTimeout time.Duration

	Logger    *zap.Logger
	Telemetry *telemetry.Provider
}

// =============================================================================
// SESSION
// =============================================================================

// Session is one conversation against one endpoint. Its methods are safe for
// concurrent use; at most one submission is in flight at a time.
type Session struct {
	id       string
	name     string
	endpoint string
	client   Opener
	policy   model.MalformedPolicy
	opts     []model.ReducerOption
	bufSize  int
	log      *zap.Logger
	tel      *telemetry.Provider

	transcript *model.Transcript
	cancelMgr  *cancelManager

	mu       sync.Mutex
	state    State
	location Location
	closed   bool
	done     chan struct{}
}

// New creates an idle session.
func New(cfg Config) *Session {
	if cfg.Name == "" {
		cfg.Name = "chat"
	}
	if cfg.Location == (Location{}) {
		cfg.Location = DefaultLocation()
	}
	if cfg.Policy == "" {
		cfg.Policy = model.PolicyOverwrite
	}

	client := cfg.Client
	endpoint := cfg.Endpoint
	if client == nil {
		c := completion.NewClient(&completion.Config{
			Endpoint:      cfg.Endpoint,
			HeaderTimeout: cfg.HeaderTimeout,
		})
		client = c
		endpoint = c.Endpoint()
	}

	var opts []model.ReducerOption
	if cfg.ParseErrorText != "" {
		opts = append(opts, model.WithParseErrorText(cfg.ParseErrorText))
	}
	if cfg.TransportErrorText != "" {
		opts = append(opts, model.WithTransportErrorText(cfg.TransportErrorText))
	}

	id := uuid.NewString()
	done := make(chan struct{})
	close(done)

	return &Session{
		id:         id,
		name:       cfg.Name,
		endpoint:   endpoint,
		client:     client,
		policy:     cfg.Policy,
		opts:       opts,
		bufSize:    cfg.BufferSize,
		log:        logging.OrNop(cfg.Logger).With(zap.String("session", cfg.Name), zap.String("session_id", id)),
		tel:        cfg.Telemetry,
		transcript: model.NewTranscript(),
		cancelMgr:  newCancelManager(),
		location:   cfg.Location,
		done:       done,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Name returns the session label.
func (s *Session) Name() string { return s.name }

// Endpoint returns the URL this session streams from.
func (s *Session) Endpoint() string { return s.endpoint }

// Transcript returns the session's transcript.
func (s *Session) Transcript() *model.Transcript { return s.transcript }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Generating reports whether records are being applied.
func (s *Session) Generating() bool { return s.State() == StateGenerating }

// Submitting reports whether a request is waiting for its stream to open.
func (s *Session) Submitting() bool { return s.State() == StateSubmitting }

// Busy reports whether a submission is in flight.
func (s *Session) Busy() bool { return s.State().Busy() }

// Location returns the location sent with the next request.
func (s *Session) Location() Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

// SetLocation changes the location for subsequent requests. An in-flight
// request keeps the location it was sent with.
func (s *Session) SetLocation(l Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = l
}

// Submit appends text as a user message and starts streaming the reply in
// the background. It returns once the request is launched; use Wait to block
// until the session is idle again.
func (s *Session) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if st := s.state; st.Busy() {
		s.mu.Unlock()
		s.log.Debug("submission rejected", zap.Stringer("state", st))
		return ErrBusy
	}
	s.state = StateSubmitting
	s.done = make(chan struct{})
	loc := s.location
	done := s.done
	streamCtx, cancel := context.WithCancel(ctx)
	s.cancelMgr.set(cancel)
	s.mu.Unlock()

	s.transcript.AppendUser(text)

	req := completion.Request{Message: text, State: loc.State, City: loc.City}
	go s.run(streamCtx, req, done)
	return nil
}

// Supersede cancels any in-flight stream, waits for it to settle and submits
// text.
func (s *Session) Supersede(ctx context.Context, text string) error {
	s.Cancel()
	s.Wait()
	return s.Submit(ctx, text)
}

// Cancel aborts the in-flight stream. Content applied so far is kept.
func (s *Session) Cancel() {
	s.cancelMgr.cancel()
}

// Wait blocks until no submission is in flight.
func (s *Session) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	<-done
}

// WaitContext is Wait bounded by ctx.
func (s *Session) WaitContext(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any in-flight stream and rejects further submissions.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.Cancel()
	s.Wait()
	s.log.Debug("session closed")
}

// =============================================================================
// STREAMING
// =============================================================================

func (s *Session) run(ctx context.Context, req completion.Request, done chan struct{}) {
	defer s.finish(done)
	defer s.cancelMgr.cancel()

	ctx, span := s.tel.StartStream(ctx, s.name, s.endpoint)
	log := s.log.With(zap.String("state", req.State), zap.String("city", req.City))
	start := time.Now()

	body, err := s.client.Open(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || completion.IsCancelled(err) {
			log.Info("stream cancelled before open")
		} else {
			log.Error("stream open failed", zap.Error(err))
		}
		span.End(err)
		return
	}
	defer body.Close()
	span.Opened()

	h := s.transcript.OpenPlaceholder()
	s.setState(StateGenerating)
	log.Debug("stream opened", zap.String("message_id", string(h)), zap.Duration("open", time.Since(start)))

	reducer := model.NewReducer(s.transcript, h, s.policy, s.opts...)
	reader := stream.NewReader(body, stream.WithBufferSize(s.bufSize), stream.WithChunkHook(span.Chunk))

	err = reader.Process(ctx, func(ev stream.Event) {
		switch ev.Kind {
		case stream.EventRecord:
			span.Record()
			switch reducer.Apply(ev.Record.Content, ev.Record.HasContent, ev.Record.Sources) {
			case model.OutcomeSentinel, model.OutcomeAppended, model.OutcomeSuppressed:
				span.FirstToken()
			}
		case stream.EventMalformed:
			span.Malformed()
			reducer.Malformed()
			log.Warn("malformed stream line",
				zap.String("line", util.Excerpt(ev.Line, excerptRunes)),
				zap.Error(ev.Err))
		}
	})

	stats := reader.Stats()
	fields := []zap.Field{
		zap.Int64("bytes", stats.Bytes),
		zap.Int("records", stats.Records),
		zap.Int("malformed", stats.Malformed),
		zap.Int("tokens", reducer.Tokens()),
		zap.Duration("elapsed", time.Since(start)),
	}

	switch {
	case err == nil:
		log.Info("stream complete", fields...)
	case errors.Is(err, context.Canceled):
		log.Info("stream cancelled", fields...)
	default:
		reducer.Fail()
		log.Error("stream failed", append(fields, zap.Error(err))...)
	}

	s.transcript.Finalize(h)
	span.End(err)
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) finish(done chan struct{}) {
	s.setState(StateIdle)
	close(done)
}
