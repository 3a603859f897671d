// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes transcripts to Markdown or JSON files.
//
// A Conversation holds one or more panels, each with the messages of one
// session. Compare mode exports every panel into a single document.
//
// # Key Types
//
//   - Conversation: Panels plus title and export time
//   - Exporter: Format interface implemented by Markdown and JSON
//   - Options: Metadata and timestamp toggles
//
// # Usage
//
//	conv := export.FromSessions("CompLlama", d.Sessions())
//	path, err := export.ToDir(conv, export.NewMarkdownExporter(nil), dir)
//
// Export to a specific file, format chosen by extension:
//
//	err := export.ToFile(conv, "reply.json", nil)
package export
