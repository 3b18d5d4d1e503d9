package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"escrowetl/internal/storage"
)

func newValidateCmd(g *globals) *cobra.Command {
	var connect bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Lint the configuration and optionally check the target database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := g.loadApp()
			if err != nil {
				return err
			}
			backend, err := app.Backend()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "configuration is valid; target %s\n", backend.Describe())
			if !connect {
				return nil
			}

			statuses, err := storage.NewLoader(app).Check(cmd.Context(), backend)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "connection ok")
			var incompatible []string
			for _, st := range statuses {
				switch {
				case !st.Exists:
					fmt.Fprintf(out, "  %-24s absent (will be created)\n", st.Table)
				case st.Compatible():
					fmt.Fprintf(out, "  %-24s ok (%d columns)\n", st.Table, len(st.Columns))
				default:
					fmt.Fprintf(out, "  %-24s incompatible, missing %s\n", st.Table, strings.Join(st.Missing, ", "))
					incompatible = append(incompatible, st.Table)
				}
			}
			if len(incompatible) > 0 {
				return fmt.Errorf("incompatible tables: %s", strings.Join(incompatible, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&connect, "connect", false, "connect to the database and check the target tables")
	return cmd
}
