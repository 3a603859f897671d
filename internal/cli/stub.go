// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/compllama/internal/server"
)

type stubOptions struct {
	Addr   string
	Script string
	Delay  time.Duration
	Rate   float64
	Burst  int
	Watch  bool
}

func newStubCommand(s *rootState) *cobra.Command {
	var opts stubOptions
	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Serve scripted streaming replies for local testing",
		Long: `Starts a local stand-in for the chat service on POST /chat and
POST /chat-stream. Without --script it echoes each question back word by
word. A script file holds one NDJSON line per line; {message}, {state} and
{city} are replaced with the request fields. The script is reloaded when the
file changes unless --watch=false.`,
		Example: `  compllama stub
  compllama stub --addr 127.0.0.1:9000 --script replies.ndjson --delay 80ms`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNeedsApp: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runStub(cmd.Context(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.Addr, "addr", server.DefaultAddr, "listen address")
	flags.StringVar(&opts.Script, "script", "", "NDJSON reply script")
	flags.DurationVar(&opts.Delay, "delay", 50*time.Millisecond, "pause between lines")
	flags.Float64Var(&opts.Rate, "rate", 0, "requests per second per client (0: unlimited)")
	flags.IntVar(&opts.Burst, "burst", 5, "rate limit burst")
	flags.BoolVar(&opts.Watch, "watch", true, "reload --script when the file changes")
	return cmd
}

func (s *rootState) runStub(ctx context.Context, opts stubOptions) error {
	if opts.Delay < 0 {
		return &ValidationError{Field: "--delay", Value: opts.Delay.String(), Reason: "must not be negative"}
	}
	if opts.Rate < 0 {
		return &ValidationError{Field: "--rate", Value: fmt.Sprint(opts.Rate), Reason: "must not be negative"}
	}

	var script []string
	if opts.Script != "" {
		lines, err := server.LoadScript(opts.Script)
		if err != nil {
			return &CommandError{Command: "stub", Action: "load script", Reason: opts.Script, Err: err}
		}
		script = lines
	}

	srv := server.New(server.Config{
		Addr:          opts.Addr,
		Script:        script,
		ChunkDelay:    opts.Delay,
		RatePerSecond: opts.Rate,
		Burst:         opts.Burst,
		Logger:        s.app.Log,
	})
	ln, err := srv.Listen()
	if err != nil {
		return &CommandError{Command: "stub", Action: "listen", Reason: opts.Addr, Err: err}
	}

	if opts.Script != "" && opts.Watch {
		if err := srv.WatchScript(ctx, opts.Script, server.DefaultReloadDebounce, nil); err != nil {
			ln.Close()
			return &CommandError{Command: "stub", Action: "watch script", Reason: opts.Script, Err: err}
		}
	}

	base := "http://" + ln.Addr().String()
	fmt.Fprintln(s.out, TitleStyle.Render(server.Banner))
	fmt.Fprintln(s.out, LabelStyle.Render("Chat:")+ValueStyle.Render(base+"/chat-stream"))
	fmt.Fprintln(s.out, LabelStyle.Render("Compare:")+ValueStyle.Render(base+"/chat"))
	if opts.Script != "" {
		script := opts.Script
		if opts.Watch {
			script += " (reloads on change)"
		}
		fmt.Fprintln(s.out, LabelStyle.Render("Script:")+ValueStyle.Render(script))
	}
	fmt.Fprintln(s.out, DimStyle.Render("Ctrl+C to stop"))

	return srv.Serve(ctx, ln)
}
