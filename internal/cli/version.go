// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCommand(s *rootState) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data := VersionData{
				Version:   s.versionString(),
				GitCommit: orUnknown(s.info.Commit),
				BuildDate: orUnknown(s.info.BuildDate),
				GoVersion: runtime.Version(),
			}
			if jsonOut {
				return NewJSONResponse("version", data).Write(s.out)
			}
			fmt.Fprintln(s.out, TitleStyle.Render("compllama "+data.Version))
			fmt.Fprintln(s.out, LabelStyle.Render("Commit:")+ValueStyle.Render(data.GitCommit))
			fmt.Fprintln(s.out, LabelStyle.Render("Built:")+ValueStyle.Render(data.BuildDate))
			fmt.Fprintln(s.out, LabelStyle.Render("Go:")+ValueStyle.Render(data.GoVersion))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	return cmd
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
