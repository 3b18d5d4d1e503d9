package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"escrowetl/internal/config"
)

// globals are the persistent flags shared by every subcommand.
type globals struct {
	cfgFile string
	verbose bool

	logger *log.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "escrowetl",
		Short:         "Load judicial escrow balances and redemptions into a star schema",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			g.logger = newLogger(cmd.ErrOrStderr(), g.verbose)
			log.SetDefault(g.logger)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&g.cfgFile, "config", "c", "", "config file, JSON or YAML (defaults apply when empty)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logs")

	root.AddCommand(
		newRunCmd(g),
		newValidateCmd(g),
		newInspectCmd(g),
		newConfigCmd(g),
	)
	return root
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          "escrowetl",
		ReportTimestamp: true,
		ReportCaller:    verbose,
	})
}

// loadApp reads the config file (or defaults), applies environment
// overrides, and lints the result. Issues are logged; errors among them fail.
func (g *globals) loadApp() (config.App, error) {
	app := config.Default()
	if g.cfgFile != "" {
		var err error
		if app, err = config.Load(g.cfgFile); err != nil {
			return config.App{}, err
		}
	}
	app, err := config.ApplyEnv(app, nil)
	if err != nil {
		return config.App{}, err
	}

	issues := config.ValidateApp(app)
	for _, iss := range issues {
		if iss.Severity == config.SeverityError {
			g.logger.Error(iss.Message, "path", iss.Path)
		} else {
			g.logger.Warn(iss.Message, "path", iss.Path)
		}
	}
	if config.HasErrors(issues) {
		return config.App{}, fmt.Errorf("configuration is invalid (%d issues)", len(issues))
	}
	return app, nil
}
