// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/compllama/internal/session"
)

func newLocationsCommand(s *rootState) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "locations",
		Short: "List the states and cities a question can be scoped to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := session.Catalog()
			if jsonOut {
				data := make([]LocationData, len(catalog))
				for i, r := range catalog {
					data[i] = LocationData{State: r.State, Cities: r.Cities}
				}
				return NewJSONResponse("locations", data).Write(s.out)
			}

			fmt.Fprintln(s.out, TitleStyle.Render("Locations"))
			def := session.DefaultLocation()
			for _, r := range catalog {
				line := LabelStyle.Render(r.State) + ValueStyle.Render(strings.Join(r.Cities, ", "))
				if r.State == def.State {
					line += DimStyle.Render("  (default: " + def.City + ")")
				}
				fmt.Fprintln(s.out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	return cmd
}
