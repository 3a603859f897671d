// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across compllama.
//
// # Key Functions
//
//   - AtomicWriteFile: Crash-safe file writing with fsync and rename
//   - TruncateWidth: Display-width aware truncation for terminal cells
//   - Excerpt: Single-line, rune-safe excerpt for log fields
//
// # Usage
//
//	err := util.AtomicWriteFile(path, data, 0o600)
//	header := util.TruncateWidth("Texas / San Antonio", 12)
package util
