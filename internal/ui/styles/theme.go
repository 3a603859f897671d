// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Glamour standard style names.
const (
	GlamourDark  = "dark"
	GlamourLight = "light"
)

// Theme holds the styles used by the chat view.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// Header
	Header   lipgloss.Style
	Title    lipgloss.Style
	Subtitle lipgloss.Style

	// Panels
	Panel        lipgloss.Style
	PanelFocused lipgloss.Style
	PanelName    lipgloss.Style
	Location     lipgloss.Style
	StatusIdle   lipgloss.Style
	StatusBusy   lipgloss.Style

	// Messages
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	MessageBody    lipgloss.Style
	Cursor         lipgloss.Style

	// Welcome card
	WelcomeBox   lipgloss.Style
	WelcomeTitle lipgloss.Style
	WelcomeBody  lipgloss.Style

	// Input and footer
	Input        lipgloss.Style
	StatusBar    lipgloss.Style
	StatusError  lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
}

// NewTheme detects the terminal and builds a theme for it.
func NewTheme() *Theme {
	return NewThemeFor(termenv.HasDarkBackground(), termenv.ColorProfile())
}

// NewThemeFor builds a theme for a known background and profile.
func NewThemeFor(isDark bool, profile termenv.Profile) *Theme {
	t := &Theme{IsDark: isDark, ColorProfile: profile}
	t.initStyles()
	return t
}

// GlamourStyle returns the glamour standard style matching the background.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return GlamourDark
	}
	return GlamourLight
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.Subtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.Panel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.PanelFocused = t.Panel.Copy().
		BorderForeground(Purple)
	t.PanelName = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary)
	t.Location = lipgloss.NewStyle().
		Foreground(Cyan)
	t.StatusIdle = lipgloss.NewStyle().
		Foreground(Emerald)
	t.StatusBusy = lipgloss.NewStyle().
		Foreground(Amber)

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)
	t.MessageBody = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.Cursor = lipgloss.NewStyle().
		Foreground(Purple)

	t.WelcomeBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(1, 2)
	t.WelcomeTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary)
	t.WelcomeBody = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Input = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary)
	t.StatusError = lipgloss.NewStyle().
		Foreground(Rose)
	t.ShortcutKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextSecondary)
	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)
}
