// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/jeranaias/compllama/internal/ui/components"
)

// KeyMap defines the chat view key bindings.
type KeyMap struct {
	Submit    key.Binding
	Newline   key.Binding
	Cancel    key.Binding
	Copy      key.Binding
	Export    key.Binding
	Focus     key.Binding
	NextState key.Binding
	NextCity  key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	Quit      key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		Newline: key.NewBinding(
			key.WithKeys("ctrl+j", "alt+enter"),
			key.WithHelp("C-j", "newline"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "cancel"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("C-y", "copy"),
		),
		Export: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("C-e", "export"),
		),
		Focus: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "focus"),
		),
		NextState: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "state"),
		),
		NextCity: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "city"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// Shortcuts returns the hints shown in the status bar. Focus is only listed
// when there is more than one panel.
func (k KeyMap) Shortcuts(panels int) []components.Shortcut {
	bindings := []key.Binding{k.Submit, k.Cancel}
	if panels > 1 {
		bindings = append(bindings, k.Focus)
	}
	bindings = append(bindings, k.NextState, k.NextCity, k.Copy, k.Export, k.Quit)

	out := make([]components.Shortcut, len(bindings))
	for i, b := range bindings {
		h := b.Help()
		out[i] = components.Shortcut{Key: h.Key, Desc: h.Desc}
	}
	return out
}
