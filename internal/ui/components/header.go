// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/compllama/internal/ui/styles"
	"github.com/jeranaias/compllama/internal/util"
)

// PanelHeader renders "name  location ... status" on one line of exactly
// width cells. The location is truncated first when space runs out.
func PanelHeader(theme *styles.Theme, name, location, status string, busy bool, width int) string {
	if width <= 0 {
		return ""
	}

	statusStyle := theme.StatusIdle
	if busy {
		statusStyle = theme.StatusBusy
	}

	nameW := runewidth.StringWidth(name)
	statusW := runewidth.StringWidth(status)

	// name + 2 spaces + location + 1 space gap + status
	locW := width - nameW - statusW - 3
	if locW < 0 {
		return util.PadWidth(util.TruncateWidth(name, width), width)
	}
	loc := util.TruncateWidth(location, locW)
	gap := width - nameW - 2 - runewidth.StringWidth(loc) - statusW

	return theme.PanelName.Render(name) + "  " +
		theme.Location.Render(loc) +
		util.PadWidth("", gap) +
		statusStyle.Render(status)
}
