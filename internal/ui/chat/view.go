// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/compllama/internal/model"
	"github.com/jeranaias/compllama/internal/ui/components"
)

// streamCursor trails a reply that is still streaming.
const streamCursor = "▌"

// =============================================================================
// LAYOUT
// =============================================================================

// panelOuterWidth returns the full width of panel i, borders included. The
// last panel absorbs the remainder.
func (m Model) panelOuterWidth(i int) int {
	n := len(m.panels)
	w := m.width / n
	if i == n-1 {
		w = m.width - w*(n-1)
	}
	return w
}

// panelsHeight is what remains after the header, input and status bar.
func (m Model) panelsHeight() int {
	h := m.height - 1 - (inputHeight + m.theme.Input.GetVerticalFrameSize()) - 1
	if h < 5 {
		h = 5
	}
	return h
}

// contentWidth is the usable text width inside panel i.
func (m Model) contentWidth(i int) int {
	w := m.panelOuterWidth(i) - m.theme.Panel.GetHorizontalFrameSize()
	if w < 10 {
		w = 10
	}
	return w
}

// layout resizes every child after a window size change.
func (m *Model) layout() {
	m.input.SetWidth(m.width)
	m.status.SetWidth(m.width)

	vpHeight := m.panelsHeight() - m.theme.Panel.GetVerticalFrameSize() - 1
	if vpHeight < 1 {
		vpHeight = 1
	}
	for i, p := range m.panels {
		p.viewport.Width = m.contentWidth(i)
		p.viewport.Height = vpHeight
		m.refresh(p)
	}
}

// refresh re-renders a panel's transcript into its viewport, following the
// bottom while the user has not scrolled away.
func (m *Model) refresh(p *panel) {
	follow := p.viewport.AtBottom() || p.snap.Streaming()
	p.viewport.SetContent(m.renderTranscript(p.snap, p.viewport.Width))
	if follow {
		p.viewport.GotoBottom()
	}
}

// =============================================================================
// RENDERING
// =============================================================================

// View renders the whole screen.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	cols := make([]string, len(m.panels))
	for i, p := range m.panels {
		style := m.theme.Panel
		if i == m.focus && len(m.panels) > 1 {
			style = m.theme.PanelFocused
		}
		inner := m.contentWidth(i)
		body := lipgloss.JoinVertical(lipgloss.Left,
			m.panelHeader(p, inner),
			p.viewport.View(),
		)
		cols[i] = style.
			Width(m.panelOuterWidth(i) - style.GetHorizontalBorderSize()).
			Height(m.panelsHeight() - style.GetVerticalBorderSize()).
			Render(body)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.header(),
		lipgloss.JoinHorizontal(lipgloss.Top, cols...),
		m.theme.Input.Render(m.input.View()),
		m.status.View(),
	)
}

func (m Model) header() string {
	title := m.theme.Title.Render(m.title)
	if m.subtitle != "" {
		title += " " + m.theme.Subtitle.Render(m.subtitle)
	}
	return m.theme.Header.Width(m.width).Render(title)
}

func (m Model) panelHeader(p *panel, width int) string {
	s := p.session
	state := s.State()
	status := state.String()
	if state.Busy() {
		status = m.spinner.View() + " " + status
	}
	return components.PanelHeader(m.theme, s.Name(), s.Location().String(), status, state.Busy(), width)
}

// renderTranscript renders every message of snap at width, or the welcome
// card when there are none.
func (m *Model) renderTranscript(snap model.Snapshot, width int) string {
	if snap.Len() == 0 {
		m.welcome.SetWidth(width)
		return m.welcome.View()
	}

	blocks := make([]string, 0, snap.Len())
	for _, msg := range snap.Messages {
		blocks = append(blocks, m.renderMessage(msg, width))
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) renderMessage(msg model.Message, width int) string {
	body := m.theme.MessageBody.Width(width)

	if msg.Role == model.RoleUser {
		return m.theme.UserLabel.Render(msg.Role.DisplayName()) + "\n" + body.Render(msg.Content)
	}

	label := m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	var text string
	switch {
	case msg.Streaming:
		text = body.Render(msg.Content + m.theme.Cursor.Render(streamCursor))
	case msg.Content == "":
		text = m.theme.WelcomeBody.Render("(no reply)")
	default:
		text = m.markdown.Render(msg.ID, msg.Content, width)
	}

	out := label + "\n" + text
	if len(msg.Sources) > 0 {
		out += "\n" + m.renderSources(msg.Sources, width)
	}
	return out
}

func (m *Model) renderSources(sources []model.Source, width int) string {
	lines := make([]string, 0, len(sources)+1)
	lines = append(lines, m.theme.ShortcutKey.Render("Sources"))
	for _, src := range sources {
		line := "• " + src.Label
		if src.URL != "" {
			line += " (" + src.URL + ")"
		}
		lines = append(lines, m.theme.ShortcutDesc.Width(width).Render(line))
	}
	return strings.Join(lines, "\n")
}
