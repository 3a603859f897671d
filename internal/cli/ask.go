// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/compllama/internal/export"
	"github.com/jeranaias/compllama/internal/model"
	"github.com/jeranaias/compllama/internal/session"
)

type askOptions struct {
	chatOptions
	Compare bool
	JSON    bool
	Save    string
}

func newAskCommand(s *rootState) *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question and print the reply",
		Long: `Sends one question and prints the reply as it streams.

With --compare the question goes to every compare endpoint and each panel's
reply is printed once complete.`,
		Example: `  compllama ask "What is the minimum egress window size?"
  compllama ask --state Texas --city Austin "Do decks need a permit?"
  compllama ask --compare --json "Required front setback for a duplex?"
  compllama ask --save reply.md "Fire separation between units?"`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return &ValidationError{Field: "question", Reason: "missing", Example: `compllama ask "hello"`}
			}
			return nil
		},
		Annotations: map[string]string{annotationNeedsApp: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runAsk(cmd.Context(), strings.Join(args, " "), opts)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&opts.Compare, "compare", false, "ask every compare endpoint")
	flags.BoolVar(&opts.JSON, "json", false, "print a JSON document instead of text")
	flags.StringVar(&opts.Save, "save", "", "also write the transcript to a .md or .json file")
	flags.StringVar(&opts.State, "state", "", "state sent with the question")
	flags.StringVar(&opts.City, "city", "", "city sent with the question")
	flags.StringVar(&opts.Endpoint, "endpoint", "", "streaming endpoint (overrides [chat] endpoint)")
	cmd.MarkFlagsMutuallyExclusive("compare", "endpoint")
	cmd.MarkFlagsMutuallyExclusive("compare", "state")
	cmd.MarkFlagsMutuallyExclusive("compare", "city")
	return cmd
}

func (s *rootState) runAsk(ctx context.Context, question string, opts askOptions) error {
	if strings.TrimSpace(question) == "" {
		return &ValidationError{Field: "question", Reason: "empty", Example: `compllama ask "hello"`}
	}

	var d *session.Dispatcher
	if opts.Compare {
		locs, err := s.app.CompareLocations()
		if err != nil {
			return err
		}
		d = s.app.CompareDispatcher(locs)
	} else {
		loc, err := s.chatLocation(opts.chatOptions)
		if err != nil {
			return err
		}
		d = s.app.ChatDispatcher(opts.Endpoint, loc)
	}
	defer d.Close()

	log := s.app.Log.With(zap.String("command", "ask"), zap.Int("panels", d.Len()))
	log.Info("question submitted", zap.Int("chars", len(question)))

	live := !opts.Compare && !opts.JSON
	var sink *deltaWriter
	if live {
		updates, stop := d.Sessions()[0].Transcript().Subscribe()
		defer stop()
		sink = &deltaWriter{w: s.out, updates: updates}
	}

	if err := d.JoinErrors(d.Submit(ctx, question)); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		d.Wait()
		close(done)
	}()
	interrupted := s.await(ctx, d, done, sink)

	panels := s.collect(d)
	if live {
		sink.finish(d.Sessions()[0].Transcript().Snapshot())
	}
	if interrupted {
		log.Info("ask interrupted")
		return errInterrupted
	}

	if opts.Save != "" {
		if err := export.ToFile(export.FromSessions(appTitle, d.Sessions()), opts.Save, nil); err != nil {
			return &CommandError{Command: "ask", Action: "save transcript", Reason: opts.Save, Err: err}
		}
		log.Info("transcript saved", zap.String("path", opts.Save))
		fmt.Fprintln(s.errOut, DimStyle.Render("Saved to "+opts.Save))
	}

	switch {
	case opts.JSON:
		data := AskData{Question: question, Panels: panels}
		if err := NewJSONResponse("ask", data).Write(s.out); err != nil {
			return err
		}
	case opts.Compare:
		s.printPanels(panels)
	}
	return s.replyErrors(d, panels)
}

// await blocks until every panel finishes, forwarding live deltas to sink.
// Cancelling ctx cancels the streams and reports true once they settle.
func (s *rootState) await(ctx context.Context, d *session.Dispatcher, done <-chan struct{}, sink *deltaWriter) bool {
	var updates <-chan model.Snapshot
	if sink != nil {
		updates = sink.updates
	}
	cancelled := false
	ctxDone := ctx.Done()
	for {
		select {
		case <-done:
			return cancelled
		case <-ctxDone:
			cancelled = true
			ctxDone = nil
			d.Cancel()
		case snap, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			sink.write(snap)
		}
	}
}

// collect gathers each panel's reply to the question.
func (s *rootState) collect(d *session.Dispatcher) []PanelData {
	sessions := d.Sessions()
	panels := make([]PanelData, len(sessions))
	for i, sess := range sessions {
		loc := sess.Location()
		p := PanelData{
			Name:     sess.Name(),
			Endpoint: sess.Endpoint(),
			State:    loc.State,
			City:     loc.City,
		}
		if msg, ok := sess.Transcript().Snapshot().Reply(); ok {
			p.Reply = msg.Content
			p.Sources = msg.Sources
		}
		panels[i] = p
	}
	return panels
}

// replyErrors reports panels without a usable reply. Open failures leave no
// assistant message; read failures leave the transport error text.
func (s *rootState) replyErrors(d *session.Dispatcher, panels []PanelData) error {
	var errs []error
	for i, sess := range d.Sessions() {
		_, ok := sess.Transcript().Snapshot().Reply()
		switch {
		case !ok:
			errs = append(errs, &StreamError{Panel: panels[i].Name, Endpoint: panels[i].Endpoint, Reason: "no reply; see log"})
		case panels[i].Reply == s.app.Config.Stream.TransportErrorText:
			errs = append(errs, &StreamError{Panel: panels[i].Name, Endpoint: panels[i].Endpoint, Reason: "stream failed"})
		}
	}
	return errors.Join(errs...)
}

// printPanels writes each panel's reply under a header, rendering markdown
// when stdout is a terminal.
func (s *rootState) printPanels(panels []PanelData) {
	render := plainText
	if isTerminalWriter(s.out) {
		render = newMarkdownRenderer(GetTerminalWidth())
	}
	for i, p := range panels {
		if i > 0 {
			fmt.Fprintln(s.out)
		}
		header := PanelStyle.Render(p.Name)
		if loc := (session.Location{State: p.State, City: p.City}).String(); loc != "" {
			header += " " + DimStyle.Render("("+loc+")")
		}
		fmt.Fprintln(s.out, header)
		fmt.Fprintln(s.out, DimStyle.Render(p.Endpoint))
		fmt.Fprintln(s.out, strings.TrimRight(render(p.Reply), "\n"))
		for _, src := range p.Sources {
			fmt.Fprintf(s.out, "  %s %s\n", LabelStyle.Render(src.Label), DimStyle.Render(src.URL))
		}
	}
}

func plainText(s string) string { return s }

// newMarkdownRenderer returns a glamour renderer, or plain text when glamour
// cannot be initialised.
func newMarkdownRenderer(width int) func(string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return plainText
	}
	return func(content string) string {
		out, err := r.Render(content)
		if err != nil {
			return content
		}
		return out
	}
}

// =============================================================================
// LIVE OUTPUT
// =============================================================================

// deltaWriter prints a streaming reply incrementally. Snapshots are latest
// value, so each write prints whatever grew since the last one. When the
// reply is replaced rather than extended (an error text), the new content is
// printed on a fresh line.
type deltaWriter struct {
	w       io.Writer
	updates <-chan model.Snapshot
	printed string
}

func (d *deltaWriter) write(snap model.Snapshot) {
	msg, ok := snap.Reply()
	if !ok || msg.Content == d.printed {
		return
	}
	if strings.HasPrefix(msg.Content, d.printed) {
		io.WriteString(d.w, msg.Content[len(d.printed):])
	} else {
		if d.printed != "" {
			io.WriteString(d.w, "\n")
		}
		io.WriteString(d.w, msg.Content)
	}
	d.printed = msg.Content
}

// finish prints anything the last snapshot added and ends the line.
func (d *deltaWriter) finish(snap model.Snapshot) {
	d.write(snap)
	if d.printed != "" {
		io.WriteString(d.w, "\n")
	}
}
