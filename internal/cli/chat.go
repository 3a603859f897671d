// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/compllama/internal/config"
	"github.com/jeranaias/compllama/internal/session"
	"github.com/jeranaias/compllama/internal/ui/chat"
)

const (
	// appTitle heads the TUI and exported transcripts.
	appTitle = "CompLlama"

	// exportDirName is the TUI export directory, under the config directory.
	exportDirName = "exports"
)

type chatOptions struct {
	State    string
	City     string
	Endpoint string
}

func newChatCommand(s *rootState) *cobra.Command {
	var opts chatOptions
	cmd := &cobra.Command{
		Use:         "chat",
		Short:       "Start the single-panel chat (default)",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNeedsApp: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runChat(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.State, "state", "", "state sent with each question")
	cmd.Flags().StringVar(&opts.City, "city", "", "city sent with each question")
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "streaming endpoint (overrides [chat] endpoint)")
	return cmd
}

// chatLocation applies --state/--city over the configured location.
func (s *rootState) chatLocation(opts chatOptions) (session.Location, error) {
	if opts.State == "" && opts.City == "" {
		return s.app.ChatLocation()
	}
	state := opts.State
	if state == "" {
		base, err := s.app.ChatLocation()
		if err != nil {
			return session.Location{}, err
		}
		state = base.State
	}
	return resolveLocation("--state/--city", state, opts.City)
}

func (s *rootState) runChat(ctx context.Context, opts chatOptions) error {
	loc, err := s.chatLocation(opts)
	if err != nil {
		return err
	}
	d := s.app.ChatDispatcher(opts.Endpoint, loc)
	defer d.Close()

	return chat.Run(ctx, d, chat.Options{
		Title:     appTitle,
		Subtitle:  d.Sessions()[0].Endpoint(),
		ExportDir: config.ResolvePath(exportDirName),
		Logger:    s.app.Log,
	})
}

func newCompareCommand(s *rootState) *cobra.Command {
	var overrides [2]panelOverride
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Ask every compare endpoint at once and read the replies side by side",
		Long: `Opens one panel per [compare] endpoint. Each question is sent to every
panel; each panel keeps its own transcript and location.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNeedsApp: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			locs, err := compareLocations(s.app, overrides[:])
			if err != nil {
				return err
			}
			d := s.app.CompareDispatcher(locs)
			defer d.Close()

			return chat.Run(cmd.Context(), d, chat.Options{
				Title:     appTitle,
				Subtitle:  fmt.Sprintf("compare · %d endpoints", d.Len()),
				ExportDir: config.ResolvePath(exportDirName),
				Logger:    s.app.Log,
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&overrides[0].State, "left-state", "", "state for the left panel")
	flags.StringVar(&overrides[0].City, "left-city", "", "city for the left panel")
	flags.StringVar(&overrides[1].State, "right-state", "", "state for the right panel")
	flags.StringVar(&overrides[1].City, "right-city", "", "city for the right panel")
	return cmd
}

// panelOverride is a --left-*/--right-* flag pair.
type panelOverride struct {
	State string
	City  string
}

// compareLocations resolves the per-panel locations: configured values
// first, then the flag overrides by index. A state override without a city
// selects the state's first city.
func compareLocations(app *App, overrides []panelOverride) ([]session.Location, error) {
	locs, err := app.CompareLocations()
	if err != nil {
		return nil, err
	}
	for i, o := range overrides {
		if o.State == "" && o.City == "" {
			continue
		}
		if i >= len(locs) {
			return nil, &ValidationError{
				Field:  PanelName(i) + " location",
				Value:  session.Location{State: o.State, City: o.City}.String(),
				Reason: fmt.Sprintf("only %d compare endpoint(s) configured", len(locs)),
			}
		}
		state := o.State
		if state == "" {
			state = locs[i].State
		}
		loc, err := resolveLocation(PanelName(i), state, o.City)
		if err != nil {
			return nil, err
		}
		locs[i] = loc
	}
	return locs, nil
}
