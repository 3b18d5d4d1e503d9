package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"escrowetl/internal/config"
	"escrowetl/internal/datasource"
	"escrowetl/internal/datasource/file"
	"escrowetl/internal/datasource/httpds"
	"escrowetl/internal/events"
	"escrowetl/internal/metrics"
	"escrowetl/internal/metrics/datadog"
	"escrowetl/internal/metrics/prompush"
	"escrowetl/internal/pipeline"
)

func newRunCmd(g *globals) *cobra.Command {
	var (
		balances    string
		redemptions string
		jsonOut     bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract, transform and load one pair of input files",
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
			flush, err := installMetrics(app)
			if err != nil {
				return err
			}
			defer flush()

			bsrc, err := openSource(balances)
			if err != nil {
				return err
			}
			rsrc, err := openSource(redemptions)
			if err != nil {
				return err
			}

			run, err := pipeline.New(app).Start(cmd.Context(), pipeline.Request{
				Balances:    bsrc,
				Redemptions: rsrc,
				Backend:     backend,
			})
			if err != nil {
				return err
			}
			g.logger.Debug("run started", "run_id", run.ID(), "target", backend.Describe())
			for ev := range run.Events() {
				renderEvent(g.logger, ev)
			}
			res, runErr := run.Result()

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				printSummary(out, res)
			}
			return runErr
		},
	}
	cmd.Flags().StringVarP(&balances, "balances", "b", "", "balances file or http(s) URL (.csv, .txt, .tsv, .xlsx, .xls)")
	cmd.Flags().StringVarP(&redemptions, "redemptions", "r", "", "redemptions file or http(s) URL (.csv, .txt, .tsv, .xlsx, .xls)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the run result as JSON")
	_ = cmd.MarkFlagRequired("balances")
	_ = cmd.MarkFlagRequired("redemptions")
	return cmd
}

// openSource maps a command-line input onto a local file or, for http and
// https URLs, a remote download.
func openSource(arg string) (datasource.Source, error) {
	if httpds.IsURL(arg) {
		return httpds.NewSource(httpds.NewClient(httpds.Config{MaxRetries: 3}), arg)
	}
	return file.NewLocal(arg), nil
}

// renderEvent writes a pipeline event through the process logger.
func renderEvent(l *log.Logger, ev events.Event) {
	switch {
	case ev.Log != nil:
		var kv []any
		if ev.Log.Details != "" {
			kv = append(kv, "details", ev.Log.Details)
		}
		switch ev.Log.Level {
		case events.LevelDebug:
			l.Debug(ev.Log.Message, kv...)
		case events.LevelInfo:
			l.Info(ev.Log.Message, kv...)
		case events.LevelSuccess:
			l.Info("✓ "+ev.Log.Message, kv...)
		case events.LevelWarning:
			l.Warn(ev.Log.Message, kv...)
		case events.LevelError:
			l.Error(ev.Log.Message, kv...)
		case events.LevelCritical:
			l.Error(ev.Log.Message, append(kv, "critical", true)...)
		}
	case ev.Progress != nil:
		l.Debug("progress", "step", ev.Progress.Label, "percent", ev.Progress.Percent)
	}
}

func printSummary(w io.Writer, res pipeline.Result) {
	if !res.Success {
		fmt.Fprintf(w, "run %s failed (%s): %s\n", res.RunID, res.ErrorKind, res.ErrorSummary)
		return
	}
	c := res.Counts
	fmt.Fprintf(w, "run %s loaded into %s in %s\n", res.RunID, res.Target, res.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  extracted:   %d balance rows, %d redemption rows\n", c.Extraction.BalancesRows, c.Extraction.RedemptionsRows)
	fmt.Fprintf(w, "  transformed: %d accounts, %d balance facts, %d redemption facts\n",
		c.Transformation.Accounts, c.Transformation.BalanceFacts, c.Transformation.RedemptionFacts)
	fmt.Fprintf(w, "  loaded:      %d rows (%d accounts, %d balances, %d redemptions)\n",
		c.Load.TotalRows, c.Load.Accounts, c.Load.Balances, c.Load.Redemptions)
	if res.Warnings > 0 {
		fmt.Fprintf(w, "  warnings:    %d\n", res.Warnings)
	}
}

// installMetrics sets the configured metrics backend. The returned func
// flushes it and restores the previous backend.
func installMetrics(app config.App) (func(), error) {
	var (
		b   metrics.Backend
		err error
	)
	switch strings.ToLower(strings.TrimSpace(app.Metrics.Backend)) {
	case config.MetricsNone:
		return func() {}, nil
	case config.MetricsPrometheus:
		b, err = prompush.NewBackend(app.Job, app.Metrics.PushgatewayURL)
	case config.MetricsDatadog:
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       app.Metrics.DatadogAddr,
			Namespace:  app.Metrics.Namespace,
			GlobalTags: app.Metrics.Tags,
		})
	default:
		return nil, fmt.Errorf("metrics: unknown backend %q", app.Metrics.Backend)
	}
	if err != nil {
		return nil, err
	}
	log.Debug("metrics: enabled", "backend", app.Metrics.Backend, "job", app.Job)
	prev := metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics: flush failed", "err", err)
		}
		metrics.SetBackend(prev)
	}, nil
}
