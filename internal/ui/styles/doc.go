// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the color palette and theme for the compllama TUI.

All colors use Lip Gloss AdaptiveColor so the same palette works on light and
dark terminals.

# Color System (colors.go)

  - Purple - Assistant labels and the focused panel border
  - Cyan - Brand color, user labels, location badges
  - Emerald - Idle status
  - Amber - Busy status and warnings
  - Rose - Errors and surfaced failure text

# Theme (theme.go)

Theme bundles every lipgloss.Style the chat view renders with, plus the
detected terminal profile:

	theme := styles.NewTheme()
	title := theme.Title.Render("CompLlama")

The glamour style name for markdown rendering follows Theme.IsDark.
*/
package styles
