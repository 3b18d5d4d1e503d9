// Command escrowetl loads judicial escrow balances and redemptions files into
// a star schema (dim_account, fact_balance, fact_redemption) on SQLite,
// PostgreSQL, MySQL or SQL Server.
//
// Usage:
//
//	escrowetl run -b saldos.xlsx -r resgates.csv [-c config.yaml] [--json]
//	escrowetl validate [-c config.yaml] [--connect]
//	escrowetl inspect --role balances saldos.xlsx
//	escrowetl config init [path]
//
// A .env file in the working directory is loaded first; ETL_* variables
// override values from the config file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	// register every storage backend with the storage factory.
	_ "escrowetl/internal/storage/all"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("dotenv: load failed", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
