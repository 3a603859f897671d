// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry records traces and metrics for response streams.
//
// Traces and metrics are exported with the OpenTelemetry stdout exporters
// into size-rotated files, never to the terminal, which belongs to the TUI.
//
// # Key Types
//
//   - Provider: Owns the tracer and meter providers and their files
//   - StreamMetrics: Counters and histograms shared by all streams
//   - StreamSpan: Measurements for one submission, closed with End
//
// # Usage
//
//	p, err := telemetry.Init(ctx, telemetry.Config{Enabled: true, Dir: logDir})
//	defer p.Shutdown(context.Background())
//
//	ctx, span := p.StartStream(ctx, "left", endpoint)
//	span.Chunk(n)
//	span.Record()
//	span.End(err)
//
// A nil or disabled Provider records nothing.
//
// # Privacy
//
// Message content is never recorded, only counts, sizes and timings.
package telemetry
