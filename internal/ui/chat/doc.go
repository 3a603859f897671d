// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the interactive chat view for the compllama TUI.

One Model drives one or more panels. Each panel shows the transcript of one
session.Session; a single input box submits to every panel through a
session.Dispatcher, so chat mode is simply compare mode with one panel.

# Key Components

## Model (model.go)

Holds the panels, the input textarea, the spinner and the status bar. Each
panel subscribes to its transcript and receives snapshots as Bubble Tea
messages, so the view re-renders on every pushed change.

## Update (update.go)

Keyboard handling and snapshot delivery:
  - Enter submits to all panels, Esc cancels in-flight streams
  - Tab moves focus; Ctrl+S and Ctrl+T cycle the focused panel's state and city
  - Ctrl+Y copies the focused panel's last reply to the clipboard
  - PgUp and PgDn scroll the focused panel

## View (view.go)

Side-by-side lipgloss layout. Finished assistant replies are rendered as
markdown with glamour; streaming replies are shown raw with a cursor.

# Usage

	d := session.NewDispatcher(left, right)
	err := chat.Run(ctx, d, chat.Options{Title: "CompLlama", Subtitle: "compare"})
*/
package chat
