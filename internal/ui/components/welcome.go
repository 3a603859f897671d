// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/compllama/internal/ui/styles"
)

const (
	// WelcomeTitle heads the empty-transcript card.
	WelcomeTitle = "Welcome to the CompLlama"

	// WelcomeBody describes what the assistant is for.
	WelcomeBody = "A compliance assistant for construction companies expanding across " +
		"states and cities. Ask whether a project meets local building codes and " +
		"compare how regulations differ from one city to the next."
)

// Welcome is the card shown in a panel with no messages yet.
type Welcome struct {
	theme *styles.Theme
	width int
}

// NewWelcome creates a welcome card.
func NewWelcome(theme *styles.Theme) Welcome {
	return Welcome{theme: theme, width: 60}
}

// SetWidth sets the outer width of the card.
func (w *Welcome) SetWidth(width int) {
	w.width = width
}

// View renders the card.
func (w Welcome) View() string {
	inner := w.width - w.theme.WelcomeBox.GetHorizontalFrameSize()
	if inner < 10 {
		inner = 10
	}
	title := w.theme.WelcomeTitle.Render(WelcomeTitle)
	body := w.theme.WelcomeBody.Width(inner).Render(WelcomeBody)
	return w.theme.WelcomeBox.Width(inner).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body))
}
