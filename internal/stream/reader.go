// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultBufferSize is the raw read size used when none is configured.
const DefaultBufferSize = 4096

// =============================================================================
// ERRORS
// =============================================================================

// TransportError wraps a failure reading the response body.
type TransportError struct {
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("stream read failed: %v", e.Err)
}

// Unwrap returns the underlying read error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// =============================================================================
// EVENTS
// =============================================================================

// EventKind distinguishes the events a Reader emits.
type EventKind int

const (
	// EventRecord carries one successfully parsed line.
	EventRecord EventKind = iota
	// EventMalformed carries one line that failed to parse.
	EventMalformed
)

// Event is emitted once per non-blank line, in receipt order.
type Event struct {
	Kind   EventKind
	Record Record
	Line   string
	Err    error
}

// Stats holds counters collected while reading.
type Stats struct {
	Chunks    int
	Bytes     int64
	Records   int
	Malformed int
}

// =============================================================================
// READER
// =============================================================================

// Reader drives a Decoder and a Reassembler over one response body.
type Reader struct {
	body    io.Reader
	bufSize int
	dec     *Decoder
	lines   *Reassembler
	stats   Stats
	onChunk func(n int)
}

// Option configures a Reader.
type Option func(*Reader)

// WithBufferSize sets the raw read size. Non-positive values are ignored.
func WithBufferSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.bufSize = n
		}
	}
}

// WithChunkHook registers a function called with the size of every raw
// chunk read from the body.
func WithChunkHook(fn func(n int)) Option {
	return func(r *Reader) {
		r.onChunk = fn
	}
}

// NewReader creates a reader over body.
func NewReader(body io.Reader, opts ...Option) *Reader {
	r := &Reader{
		body:    body,
		bufSize: DefaultBufferSize,
		dec:     NewDecoder(),
		lines:   NewReassembler(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Process reads the body until EOF, cancellation or a read failure, calling
// fn for every line. Malformed lines are reported and skipped; they never
// stop the loop.
func (r *Reader) Process(ctx context.Context, fn func(Event)) error {
	buf := make([]byte, r.bufSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.body.Read(buf)
		if n > 0 {
			r.stats.Chunks++
			r.stats.Bytes += int64(n)
			if r.onChunk != nil {
				r.onChunk(n)
			}
			r.emit(r.lines.Feed(r.dec.Decode(buf[:n])), fn)
		}

		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			r.emit(r.lines.Feed(r.dec.Flush()), fn)
			r.emit(r.lines.Flush(), fn)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &TransportError{Err: err}
	}
}

func (r *Reader) emit(lines []string, fn func(Event)) {
	for _, line := range lines {
		rec, err := ParseRecord(line)
		if err != nil {
			r.stats.Malformed++
			fn(Event{Kind: EventMalformed, Line: line, Err: err})
			continue
		}
		r.stats.Records++
		fn(Event{Kind: EventRecord, Record: rec, Line: line})
	}
}

// Stats returns the counters collected so far.
func (r *Reader) Stats() Stats {
	return r.stats
}
