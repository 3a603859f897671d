// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides a local stub of the streaming chat service.
//
// The stub answers POST /chat and POST /chat-stream with a scripted NDJSON
// body, one flush per line, so the client can be exercised without the real
// backend. Without a script it echoes the question back word by word after
// the "Assistant> " preamble.
//
// # Endpoints
//
//   - POST /chat, POST /chat-stream - Scripted NDJSON reply
//   - GET  /health                  - Status and request counters
//   - GET  /                        - Banner
//
// # Script Placeholders
//
// Script lines may contain {message}, {state} and {city}; they are replaced
// with the JSON-escaped request fields.
//
// # Usage
//
//	srv := server.New(server.Config{Addr: "127.0.0.1:8000"})
//	ln, err := srv.Listen()
//	if err != nil {
//		return err
//	}
//	return srv.Serve(ctx, ln)
package server
