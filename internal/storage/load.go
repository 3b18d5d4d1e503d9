package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"escrowetl/internal/config"
	"escrowetl/internal/ddl"
	"escrowetl/internal/etlerr"
	"escrowetl/internal/schema"
)

// DefaultBatchSize applies when a Loader has no batch size.
const DefaultBatchSize = 500

// LoadResult counts the rows committed per table.
type LoadResult struct {
	Accounts    int64 `json:"accounts"`
	Balances    int64 `json:"balances"`
	Redemptions int64 `json:"redemptions"`
	// Batches is the number of bulk insert calls across all tables.
	Batches int64 `json:"batches"`
}

// Total is the number of rows committed across the three tables.
func (r LoadResult) Total() int64 { return r.Accounts + r.Balances + r.Redemptions }

// Loader writes a transformed run into the star schema of one backend.
type Loader struct {
	Tables        config.Tables
	BatchSize     int
	ChannelBuffer int

	// open defaults to Open; tests swap it for an in-memory DB.
	open func(ctx context.Context, b config.Backend) (DB, error)
}

// NewLoader builds a Loader from the table names and batching knobs of app.
func NewLoader(app config.App) *Loader {
	app = app.WithDefaults()
	return &Loader{
		Tables:        app.Tables,
		BatchSize:     app.Runtime.BatchSize,
		ChannelBuffer: app.Runtime.ChannelBuffer,
	}
}

// Load creates or reuses the target tables and writes out inside a single
// transaction tagged with runID. On any failure the transaction is rolled
// back and nothing from this run is visible.
//
// Errors are ConnectionError (backend unreachable or session lost),
// SchemaError (an existing table lacks required columns), or IntegrityError
// (the backend rejected a row).
func (l *Loader) Load(ctx context.Context, b config.Backend, runID string, out *schema.Output) (res LoadResult, err error) {
	if b == nil {
		return res, etlerr.New(etlerr.KindValidation, "load", "no backend configured")
	}
	if strings.TrimSpace(runID) == "" {
		return res, etlerr.New(etlerr.KindValidation, "load", "run id is empty")
	}
	if out == nil {
		return res, etlerr.New(etlerr.KindValidation, "load", "nothing to load")
	}

	open := l.open
	if open == nil {
		open = Open
	}
	db, err := open(ctx, b)
	if err != nil {
		return res, etlerr.Wrap(etlerr.KindConnection, "load", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Warn("storage: close", "target", b.Describe(), "err", cerr)
		}
	}()

	defs := StarSchema(l.Tables)
	if err := EnsureSchema(ctx, db, defs); err != nil {
		return res, err
	}

	tx, err := db.BeginTx(ctx)
	if err != nil {
		return res, etlerr.Wrap(etlerr.KindConnection, "load: begin", err)
	}
	defer func() {
		if err == nil {
			return
		}
		// ctx may already be done; the rollback must still reach the server.
		if rerr := tx.Rollback(context.Background()); rerr != nil {
			log.Warn("storage: rollback", "target", b.Describe(), "err", rerr)
		}
		res = LoadResult{}
	}()

	start := time.Now()
	batch, buf := l.BatchSize, l.ChannelBuffer
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	if buf < 0 {
		buf = 0
	}

	if res.Accounts, err = loadTable(ctx, tx, defs[0], out.Accounts, accountRow(runID), batch, buf, &res.Batches); err != nil {
		return res, err
	}
	if res.Balances, err = loadTable(ctx, tx, defs[1], out.Balances, balanceRow(runID), batch, buf, &res.Batches); err != nil {
		return res, err
	}
	if res.Redemptions, err = loadTable(ctx, tx, defs[2], out.Redemptions, redemptionRow(runID), batch, buf, &res.Batches); err != nil {
		return res, err
	}

	if err = tx.Commit(ctx); err != nil {
		err = etlerr.Wrap(etlerr.KindConnection, "load: commit", err)
		return res, err
	}
	log.Debug("loaded run",
		"run_id", runID,
		"target", b.Describe(),
		"accounts", res.Accounts,
		"balances", res.Balances,
		"redemptions", res.Redemptions,
		"batches", res.Batches,
		"elapsed", time.Since(start).Truncate(time.Millisecond),
	)
	return res, nil
}

// loadTable streams items through a channel into CopyBatches, copying each
// batch into def.FQN within tx.
func loadTable[T any](
	ctx context.Context,
	tx Tx,
	def ddl.TableDef,
	items []T,
	toRow func(int, T) []any,
	batchSize, buffer int,
	batches *int64,
) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan []any, buffer)
	go func() {
		defer close(in)
		for i, it := range items {
			select {
			case in <- toRow(i, it):
			case <-ctx.Done():
				return
			}
		}
	}()

	st, err := CopyBatches(ctx, def.FQN, def.ColumnNames(), in, batchSize, func(ctx context.Context, cols []string, rows [][]any) (int64, error) {
		return tx.CopyInto(ctx, def.FQN, cols, rows)
	})
	*batches += st.Batches
	n := st.Rows
	if err != nil {
		return n, etlerr.Wrap(etlerr.KindConnection, "load "+def.FQN, err)
	}
	if n != int64(len(items)) {
		return n, etlerr.New(etlerr.KindIntegrity, "load "+def.FQN, "wrote %d of %d rows", n, len(items))
	}
	return n, nil
}

// EnsureSchema creates every absent table in defs, in order, and checks that
// existing ones carry each required column (case-insensitive). It runs
// outside the load transaction.
func EnsureSchema(ctx context.Context, db DB, defs []ddl.TableDef) error {
	for _, def := range defs {
		have, err := db.TableColumns(ctx, def.FQN)
		if err != nil {
			return etlerr.Wrap(etlerr.KindConnection, "inspect table "+def.FQN, err)
		}
		if have == nil {
			stmt, err := db.CreateTableSQL(def)
			if err != nil {
				return etlerr.Wrap(etlerr.KindSchema, "create table "+def.FQN, err)
			}
			if err := db.Exec(ctx, stmt); err != nil {
				return etlerr.Wrap(etlerr.KindSchema, "create table "+def.FQN, err)
			}
			log.Debug("created table", "table", def.FQN, "engine", db.Engine())
			continue
		}
		if missing := missingColumns(def.ColumnNames(), have); len(missing) > 0 {
			return etlerr.New(etlerr.KindSchema, "check table "+def.FQN,
				"existing table is incompatible; missing columns: %s", strings.Join(missing, ", "))
		}
	}
	return nil
}

// TableStatus describes one star schema table as found in a backend.
type TableStatus struct {
	Table   string   `json:"table"`
	Exists  bool     `json:"exists"`
	Columns []string `json:"columns,omitempty"`
	// Missing lists required columns an existing table lacks.
	Missing []string `json:"missing,omitempty"`
}

// Compatible reports whether a load can reuse or create the table.
func (s TableStatus) Compatible() bool { return len(s.Missing) == 0 }

// Check connects to b and reports the state of each star schema table
// without creating or writing anything. A failure to connect is a
// ConnectionError.
func (l *Loader) Check(ctx context.Context, b config.Backend) ([]TableStatus, error) {
	if b == nil {
		return nil, etlerr.New(etlerr.KindValidation, "check", "no backend configured")
	}
	open := l.open
	if open == nil {
		open = Open
	}
	db, err := open(ctx, b)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindConnection, "check", err)
	}
	defer db.Close()

	defs := StarSchema(l.Tables)
	out := make([]TableStatus, 0, len(defs))
	for _, def := range defs {
		have, err := db.TableColumns(ctx, def.FQN)
		if err != nil {
			return nil, etlerr.Wrap(etlerr.KindConnection, "inspect table "+def.FQN, err)
		}
		st := TableStatus{Table: def.FQN, Exists: have != nil, Columns: have}
		if st.Exists {
			st.Missing = missingColumns(def.ColumnNames(), have)
		}
		out = append(out, st)
	}
	return out, nil
}

// IsContextErr reports whether err stems from a canceled or expired context.
func IsContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
