// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes chunked, newline-delimited JSON response bodies.
//
// Chunk boundaries on the wire respect neither UTF-8 sequences nor line
// boundaries. The package layers three small stages so that every complete
// line is parsed exactly once, in receipt order, regardless of how the bytes
// were split:
//
//	bytes -> Decoder -> text -> Reassembler -> lines -> ParseRecord -> Record
//
// # Key Types
//
//   - Decoder: Incremental UTF-8 decoder that carries partial sequences
//   - Reassembler: Line splitter with a carry buffer for partial lines
//   - Record: One parsed line ({"content": "...", "sources": [...]})
//   - Reader: Drives the stages over an io.Reader and emits Events
//
// # Usage
//
//	r := stream.NewReader(resp.Body, stream.WithBufferSize(4096))
//	err := r.Process(ctx, func(ev stream.Event) {
//	    switch ev.Kind {
//	    case stream.EventRecord:
//	        reducer.Apply(ev.Record.Content, ev.Record.HasContent, ev.Record.Sources)
//	    case stream.EventMalformed:
//	        reducer.Malformed()
//	    }
//	})
//
// A malformed line never stops the loop. Process returns nil at EOF,
// ctx.Err() when cancelled, and a *TransportError when the body fails.
package stream
