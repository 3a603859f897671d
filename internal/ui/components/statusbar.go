// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/compllama/internal/ui/styles"
	"github.com/jeranaias/compllama/internal/util"
)

// Shortcut is one key hint in the status bar.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar is the footer line: a transient message when set, shortcut
// hints otherwise.
type StatusBar struct {
	theme     *styles.Theme
	width     int
	shortcuts []Shortcut
	message   string
	isError   bool
}

// NewStatusBar creates a status bar showing shortcuts.
func NewStatusBar(theme *styles.Theme, shortcuts []Shortcut) StatusBar {
	return StatusBar{theme: theme, width: 80, shortcuts: shortcuts}
}

// SetWidth sets the rendered width.
func (s *StatusBar) SetWidth(width int) { s.width = width }

// SetMessage shows an informational message.
func (s *StatusBar) SetMessage(msg string) {
	s.message = msg
	s.isError = false
}

// SetError shows an error message.
func (s *StatusBar) SetError(msg string) {
	s.message = msg
	s.isError = true
}

// Clear returns to shortcut hints.
func (s *StatusBar) Clear() {
	s.message = ""
	s.isError = false
}

// Message returns the current message, if any.
func (s StatusBar) Message() string { return s.message }

// View renders the bar.
func (s StatusBar) View() string {
	if s.message != "" {
		style := s.theme.StatusBar
		if s.isError {
			style = s.theme.StatusError
		}
		return style.Render(util.TruncateWidth(s.message, s.width))
	}

	var parts []string
	used := 0
	for _, sc := range s.shortcuts {
		plain := sc.Key + " " + sc.Desc
		w := runewidth.StringWidth(plain)
		if used > 0 {
			w += 3
		}
		if used+w > s.width {
			break
		}
		used += w
		parts = append(parts, s.theme.ShortcutKey.Render(sc.Key)+" "+s.theme.ShortcutDesc.Render(sc.Desc))
	}
	return strings.Join(parts, s.theme.ShortcutDesc.Render(" · "))
}
