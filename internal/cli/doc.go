// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the compllama command tree.
//
// Commands are built with cobra. Commands that talk to an endpoint load
// configuration, open the rotated log and the telemetry provider through an
// App, and tear them down on return.
//
// # Key Types
//
//   - App: Loaded configuration plus logger and telemetry for one command
//   - Globals: Persistent flags shared by every command
//   - CommandError, ValidationError, StreamError: Typed command failures
//   - JSONResponse: Envelope for --json output
//
// # Usage
//
//	os.Exit(cli.Execute(ctx, cli.VersionInfo{Version: "1.0.0"}))
//
// # Commands Overview
//
//   - chat: Single-panel TUI (default)
//   - compare: Side-by-side TUI, one panel per compare endpoint
//   - ask: One-shot question printed to stdout
//   - locations: State and city catalog
//   - stub: Local scripted chat service for testing
//   - version: Build information
//
// Exit codes follow the constants in errors.go.
package cli
