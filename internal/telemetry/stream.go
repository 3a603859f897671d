// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Instrument names.
const (
	MetricRecords   = "compllama.stream.records"
	MetricMalformed = "compllama.stream.malformed"
	MetricBytes     = "compllama.stream.bytes"
	MetricDuration  = "compllama.stream.duration"
	MetricTTFT      = "compllama.stream.ttft"

	SpanStream = "session.stream"
)

// Attribute keys.
const (
	AttrSession  = attribute.Key("compllama.session")
	AttrEndpoint = attribute.Key("compllama.endpoint")
	AttrOutcome  = attribute.Key("compllama.outcome")
)

// =============================================================================
// STREAM METRICS
// =============================================================================

// StreamMetrics holds the instruments shared by every stream.
type StreamMetrics struct {
	records   metric.Int64Counter
	malformed metric.Int64Counter
	bytes     metric.Int64Counter
	duration  metric.Float64Histogram
	ttft      metric.Float64Histogram
}

// NewStreamMetrics registers the stream instruments on meter.
func NewStreamMetrics(meter metric.Meter) (*StreamMetrics, error) {
	var (
		m   StreamMetrics
		err error
	)
	if m.records, err = meter.Int64Counter(MetricRecords,
		metric.WithDescription("Parsed stream records"),
		metric.WithUnit("{record}")); err != nil {
		return nil, err
	}
	if m.malformed, err = meter.Int64Counter(MetricMalformed,
		metric.WithDescription("Stream lines that failed to parse"),
		metric.WithUnit("{line}")); err != nil {
		return nil, err
	}
	if m.bytes, err = meter.Int64Counter(MetricBytes,
		metric.WithDescription("Raw response bytes read"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram(MetricDuration,
		metric.WithDescription("Submission duration from request to end of stream"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.ttft, err = meter.Float64Histogram(MetricTTFT,
		metric.WithDescription("Time from request to first received token"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return &m, nil
}

// =============================================================================
// STREAM SPAN
// =============================================================================

// StreamSpan collects measurements for one submission. It is used by the
// goroutine that reads the stream and is not safe for concurrent use.
type StreamSpan struct {
	ctx     context.Context
	span    trace.Span
	metrics *StreamMetrics
	attrs   metric.MeasurementOption
	start   time.Time

	firstToken bool
	records    int64
	malformed  int64
	bytes      int64
	ended      bool
}

// StartStream opens a span for one submission.
func (p *Provider) StartStream(ctx context.Context, session, endpoint string) (context.Context, *StreamSpan) {
	if p == nil {
		p = noopProvider
	}
	kv := []attribute.KeyValue{AttrSession.String(session), AttrEndpoint.String(endpoint)}
	ctx, span := p.tracer.Start(ctx, SpanStream, trace.WithAttributes(kv...))
	return ctx, &StreamSpan{
		ctx:     ctx,
		span:    span,
		metrics: p.metrics,
		attrs:   metric.WithAttributes(kv...),
		start:   time.Now(),
	}
}

// Chunk records n raw bytes read from the body.
func (s *StreamSpan) Chunk(n int) {
	s.bytes += int64(n)
	s.metrics.bytes.Add(s.ctx, int64(n), s.attrs)
}

// Record counts one parsed record.
func (s *StreamSpan) Record() {
	s.records++
	s.metrics.records.Add(s.ctx, 1, s.attrs)
}

// Malformed counts one line that failed to parse.
func (s *StreamSpan) Malformed() {
	s.malformed++
	s.metrics.malformed.Add(s.ctx, 1, s.attrs)
}

// FirstToken records time to first token. Later calls are ignored.
func (s *StreamSpan) FirstToken() {
	if s.firstToken {
		return
	}
	s.firstToken = true
	ms := float64(time.Since(s.start).Microseconds()) / 1000
	s.metrics.ttft.Record(s.ctx, ms, s.attrs)
	s.span.AddEvent("first_token")
}

// Opened marks the moment response headers arrived.
func (s *StreamSpan) Opened() {
	s.span.AddEvent("stream_open")
}

// End closes the span. err is the stream's terminal error, nil on a clean
// end; cancellation is recorded as an outcome, not an error.
func (s *StreamSpan) End(err error) {
	if s.ended {
		return
	}
	s.ended = true

	outcome := "complete"
	switch {
	case err == nil:
		s.span.SetStatus(codes.Ok, "")
	case errors.Is(err, context.Canceled):
		outcome = "cancelled"
	default:
		outcome = "error"
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}

	ms := float64(time.Since(s.start).Microseconds()) / 1000
	s.metrics.duration.Record(context.WithoutCancel(s.ctx), ms, s.attrs, metric.WithAttributes(AttrOutcome.String(outcome)))
	s.span.SetAttributes(
		AttrOutcome.String(outcome),
		attribute.Int64("compllama.records", s.records),
		attribute.Int64("compllama.malformed", s.malformed),
		attribute.Int64("compllama.bytes", s.bytes),
	)
	s.span.End()
}
