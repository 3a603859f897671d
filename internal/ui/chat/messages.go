// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/compllama/internal/model"
)

// snapshotMsg delivers a transcript snapshot for one panel. ok is false once
// the subscription is closed.
type snapshotMsg struct {
	panel int
	snap  model.Snapshot
	ok    bool
}

// waitForSnapshot blocks on the panel's subscription.
func waitForSnapshot(panel int, updates <-chan model.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		return snapshotMsg{panel: panel, snap: snap, ok: ok}
	}
}

// copyResultMsg reports the outcome of a clipboard write.
type copyResultMsg struct {
	panel string
	err   error
}

// exportResultMsg reports the outcome of a transcript export.
type exportResultMsg struct {
	path string
	err  error
}
