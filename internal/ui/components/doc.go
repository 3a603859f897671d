// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the stateless pieces the chat view is built
// from.
//
// # Key Types
//
//   - Welcome: Card shown while a transcript is empty
//   - Markdown: Width-aware glamour renderer with a per-message cache
//   - StatusBar: Footer with shortcut hints and a transient message
//
// PanelHeader renders the one-line title of a compare panel.
package components
