package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"escrowetl/internal/extract"
	"escrowetl/internal/pipeline"
	"escrowetl/internal/schema"
)

func newInspectCmd(g *globals) *cobra.Command {
	var (
		role    string
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "inspect <file|url>",
		Short: "Show how an input file would be read without loading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := schema.Role(strings.ToLower(role))
			if r != schema.RoleBalances && r != schema.RoleRedemptions {
				return fmt.Errorf("--role must be %q or %q, got %q", schema.RoleBalances, schema.RoleRedemptions, role)
			}
			app, err := g.loadApp()
			if err != nil {
				return err
			}
			src, err := openSource(args[0])
			if err != nil {
				return err
			}
			info, err := extract.New(pipeline.ExtractOptions(app)).Inspect(cmd.Context(), src, r)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			if !info.Supported {
				fmt.Fprintf(out, "%s: unsupported file type %q\n", info.Name, info.Extension)
				return nil
			}
			fmt.Fprintf(out, "%s (%s, %d bytes, %d rows)\n", info.Name, info.Format, info.Size, info.Rows)
			if info.Sheet != "" {
				fmt.Fprintf(out, "  sheet:   %s\n", info.Sheet)
			}
			fields := make([]string, 0, len(info.Fields))
			for f := range info.Fields {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			for _, f := range fields {
				fmt.Fprintf(out, "  %-16s <- %q\n", f, info.Fields[f])
			}
			if len(info.PeriodColumns) > 0 {
				fmt.Fprintf(out, "  periods: %s\n", strings.Join(info.PeriodColumns, ", "))
			}
			if len(info.MissingFields) > 0 {
				fmt.Fprintf(out, "  missing: %s\n", strings.Join(info.MissingFields, ", "))
			}
			for _, w := range info.Warnings {
				fmt.Fprintf(out, "  warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(schema.RoleBalances), "file role: balances or redemptions")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the file info as JSON")
	return cmd
}
