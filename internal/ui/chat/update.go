// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/compllama/internal/export"
	"github.com/jeranaias/compllama/internal/session"
)

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case snapshotMsg:
		if !msg.ok || msg.panel >= len(m.panels) {
			return m, nil
		}
		p := m.panels[msg.panel]
		p.snap = msg.snap
		m.refresh(p)
		return m, waitForSnapshot(msg.panel, p.updates)

	case spinner.TickMsg:
		if !m.spinning {
			return m, nil
		}
		if !m.dispatcher.Busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case copyResultMsg:
		if msg.err != nil {
			m.status.SetError("Copy failed: " + msg.err.Error())
		} else {
			m.status.SetMessage("Copied " + msg.panel + " reply to clipboard")
		}
		return m, nil

	case exportResultMsg:
		if msg.err != nil {
			m.log.Warn("export failed", zap.Error(msg.err))
			m.status.SetError("Export failed: " + msg.err.Error())
		} else {
			m.log.Info("transcript exported", zap.String("path", msg.path))
			m.status.SetMessage("Exported to " + msg.path)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.dispatcher.Cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.Cancel):
		if m.dispatcher.Busy() {
			m.dispatcher.Cancel()
			m.status.SetMessage("Cancelled")
		}
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		return m, m.copyLastReply()

	case key.Matches(msg, m.keys.Export):
		return m, m.exportTranscript()

	case key.Matches(msg, m.keys.Focus):
		m.focus = (m.focus + 1) % len(m.panels)
		m.status.Clear()
		return m, nil

	case key.Matches(msg, m.keys.NextState):
		s := m.Focused()
		s.SetLocation(s.Location().NextState())
		m.status.SetMessage(s.Name() + ": " + s.Location().String())
		return m, nil

	case key.Matches(msg, m.keys.NextCity):
		s := m.Focused()
		s.SetLocation(s.Location().NextCity())
		m.status.SetMessage(s.Name() + ": " + s.Location().String())
		return m, nil

	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		p := m.panels[m.focus]
		var cmd tea.Cmd
		p.viewport, cmd = p.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input to every panel. Input stays in the box while any
// panel is busy.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.dispatcher.Busy() {
		m.status.SetMessage("Waiting for the current reply; " + keyHelp(m.keys.Cancel))
		return m, nil
	}

	text := m.input.Value()
	errs := m.dispatcher.Submit(m.ctx, text)
	if allEmpty(errs) {
		return m, nil
	}

	m.input.Reset()
	if err := m.dispatcher.JoinErrors(errs); err != nil {
		m.log.Warn("submission rejected", zap.Error(err))
		m.status.SetError(err.Error())
	} else {
		m.status.Clear()
	}

	if m.spinning {
		return m, nil
	}
	m.spinning = true
	return m, m.spinner.Tick
}

// copyLastReply copies the focused panel's reply to the latest question.
func (m Model) copyLastReply() tea.Cmd {
	s := m.Focused()
	last, ok := s.Transcript().Snapshot().Reply()
	if !ok || last.Content == "" {
		name := s.Name()
		return func() tea.Msg {
			return copyResultMsg{panel: name, err: fmt.Errorf("no reply in %s", name)}
		}
	}
	name, content := s.Name(), last.Content
	return func() tea.Msg {
		return copyResultMsg{panel: name, err: copyToClipboard(content)}
	}
}

// exportTranscript writes every panel to a Markdown file in the export
// directory. Snapshots are taken now; the write runs off the update loop.
func (m Model) exportTranscript() tea.Cmd {
	title := m.title
	if title == "" {
		title = "conversation"
	}
	conv := export.FromSessions(title, m.dispatcher.Sessions())
	dir := m.exportDir
	return func() tea.Msg {
		path, err := export.ToDir(conv, export.NewMarkdownExporter(nil), dir)
		return exportResultMsg{path: path, err: err}
	}
}

func allEmpty(errs []error) bool {
	for _, err := range errs {
		if !errors.Is(err, session.ErrEmptyInput) {
			return false
		}
	}
	return len(errs) > 0
}
