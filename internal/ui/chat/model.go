// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/compllama/internal/logging"
	"github.com/jeranaias/compllama/internal/model"
	"github.com/jeranaias/compllama/internal/session"
	"github.com/jeranaias/compllama/internal/ui/components"
	"github.com/jeranaias/compllama/internal/ui/styles"
)

// copyToClipboard is replaced in tests.
var copyToClipboard = clipboard.WriteAll

// inputHeight is the textarea height in rows.
const inputHeight = 3

// Options configures the chat view.
type Options struct {
	// Title and Subtitle fill the header line.
	Title    string
	Subtitle string

	// Theme defaults to styles.NewTheme().
	Theme *styles.Theme

	// ExportDir receives Ctrl+E exports (default: current directory).
	ExportDir string

	Logger *zap.Logger
}

// =============================================================================
// PANEL
// =============================================================================

// panel is one session's column. Panels are held by pointer so the
// subscription survives Bubble Tea's model copies.
type panel struct {
	session  *session.Session
	updates  <-chan model.Snapshot
	stop     func()
	snap     model.Snapshot
	viewport viewport.Model
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	ctx        context.Context
	dispatcher *session.Dispatcher
	panels     []*panel
	focus      int

	theme     *styles.Theme
	keys      KeyMap
	log       *zap.Logger
	title     string
	subtitle  string
	exportDir string

	input    textarea.Model
	spinner  spinner.Model
	status   components.StatusBar
	welcome  components.Welcome
	markdown *components.Markdown

	spinning bool
	width    int
	height   int
	ready    bool
}

// New creates the chat view over every session of d. Submissions run under
// ctx.
func New(ctx context.Context, d *session.Dispatcher, opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}
	keys := DefaultKeyMap()
	exportDir := opts.ExportDir
	if exportDir == "" {
		exportDir = "."
	}

	ta := textarea.New()
	ta.Placeholder = "Ask about a building code..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 4096
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline = keys.Newline
	ta.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    spinner.Line.FPS,
	}))

	sessions := d.Sessions()
	panels := make([]*panel, len(sessions))
	for i, s := range sessions {
		updates, stop := s.Transcript().Subscribe()
		panels[i] = &panel{
			session:  s,
			updates:  updates,
			stop:     stop,
			viewport: viewport.New(40, 10),
		}
	}

	return Model{
		ctx:        ctx,
		dispatcher: d,
		panels:     panels,
		theme:      theme,
		keys:       keys,
		log:        logging.OrNop(opts.Logger),
		title:      opts.Title,
		subtitle:   opts.Subtitle,
		exportDir:  exportDir,
		input:      ta,
		spinner:    sp,
		status:     components.NewStatusBar(theme, keys.Shortcuts(len(panels))),
		welcome:    components.NewWelcome(theme),
		markdown:   components.NewMarkdown(theme.GlamourStyle()),
	}
}

// Init starts the snapshot subscriptions and the cursor blink.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink}
	for i, p := range m.panels {
		cmds = append(cmds, waitForSnapshot(i, p.updates))
	}
	return tea.Batch(cmds...)
}

// Close ends every snapshot subscription. Sessions are left to their owner.
func (m Model) Close() {
	for _, p := range m.panels {
		p.stop()
	}
}

// Focused returns the session of the focused panel.
func (m Model) Focused() *session.Session {
	return m.panels[m.focus].session
}

// =============================================================================
// PROGRAM
// =============================================================================

// Run shows the chat view until the user quits. In-flight streams are
// cancelled on exit.
func Run(ctx context.Context, d *session.Dispatcher, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := New(ctx, d, opts)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, err := p.Run()
	return err
}

// keyHelp renders a binding as "key desc" for status messages.
func keyHelp(b key.Binding) string {
	h := b.Help()
	return h.Key + " " + h.Desc
}
