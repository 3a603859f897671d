// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// annotationNeedsApp marks commands that load configuration.
const annotationNeedsApp = "compllama/needs-app"

// VersionInfo is stamped into the binary at build time.
type VersionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// rootState is shared by every command of one invocation.
type rootState struct {
	globals  Globals
	info     VersionInfo
	out      io.Writer
	errOut   io.Writer
	app      *App
	jsonMode bool
}

// NewRootCommand builds the command tree writing to out and errOut.
func NewRootCommand(info VersionInfo, out, errOut io.Writer) *cobra.Command {
	return newRootCommand(&rootState{info: info, out: out, errOut: errOut})
}

func newRootCommand(s *rootState) *cobra.Command {
	root := &cobra.Command{
		Use:   "compllama",
		Short: "Streaming chat client with side-by-side compare mode",
		Long: `compllama talks to NDJSON streaming chat endpoints.

Run without arguments to start the single-panel chat. Use "compare" to send
every question to several endpoints at once and read the replies side by side.`,
		Version:       s.versionString(),
		Args:          cobra.NoArgs,
		Annotations:   map[string]string{annotationNeedsApp: "true"},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if f := cmd.Flags().Lookup("json"); f != nil {
				s.jsonMode = f.Value.String() == "true"
			}
			if cmd.Annotations[annotationNeedsApp] == "" {
				return nil
			}
			app, err := NewApp(cmd.Context(), s.globals, s.info, s.out, s.errOut)
			if err != nil {
				return err
			}
			s.app = app
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			s.closeApp()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runChat(cmd.Context(), chatOptions{})
		},
	}
	root.SetOut(s.out)
	root.SetErr(s.errOut)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &ValidationError{Field: "flags", Reason: err.Error(), Example: cmd.CommandPath() + " --help"}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&s.globals.ConfigPath, "config", "", "config file (default: ~/.compllama/config.toml)")
	flags.StringVar(&s.globals.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&s.globals.NoTelemetry, "no-telemetry", false, "disable trace and metric export")

	root.AddCommand(
		newChatCommand(s),
		newCompareCommand(s),
		newAskCommand(s),
		newLocationsCommand(s),
		newStubCommand(s),
		newVersionCommand(s),
	)
	return root
}

func (s *rootState) versionString() string {
	if s.info.Version == "" {
		return "dev"
	}
	return s.info.Version
}

// closeApp releases the app. Safe to call more than once.
func (s *rootState) closeApp() {
	if s.app != nil {
		s.app.Close()
		s.app = nil
	}
}

// Run executes the command tree with args and returns the exit code.
func Run(ctx context.Context, info VersionInfo, args []string, out, errOut io.Writer) int {
	s := &rootState{info: info, out: out, errOut: errOut}
	cmd := newRootCommand(s)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	// PersistentPostRun is skipped when RunE fails.
	s.closeApp()

	if err != nil && ctx.Err() != nil && !errors.Is(err, errInterrupted) {
		err = fmt.Errorf("%w: %w", errInterrupted, err)
	}
	if err != nil {
		PrintError(errOut, err, s.jsonMode)
	}
	return ExitCode(err)
}

// Execute runs the command tree against os.Args.
func Execute(ctx context.Context, info VersionInfo) int {
	return Run(ctx, info, os.Args[1:], os.Stdout, os.Stderr)
}
