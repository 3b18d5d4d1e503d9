package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"escrowetl/internal/config"
)

const defaultConfigPath = "escrowetl.yaml"

func newConfigCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}
	cmd.AddCommand(newConfigInitCmd(g))
	return cmd
}

func newConfigInitCmd(g *globals) *cobra.Command {
	var (
		dbType string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file with default settings (YAML or JSON by extension)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			}

			app := config.Default()
			if dbType != "" {
				engine, err := config.ParseEngine(dbType)
				if err != nil {
					return err
				}
				if engine != config.EngineSQLite {
					app.Database = config.BackendSpec{Type: string(engine), Host: config.DefaultHost, Database: config.DefaultDatabase}
				}
			}
			if err := config.Save(path, app); err != nil {
				return err
			}
			g.logger.Info("wrote config", "path", path, "database", app.Database.Type)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbType, "type", "", "database type: sqlite, postgres, mysql or sqlserver")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
