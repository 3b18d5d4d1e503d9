// Package sqlite implements the embedded-file backend with the pure-Go
// modernc.org/sqlite driver. SQLite has no bulk-load API like Postgres COPY,
// so rows go in as multi-row INSERTs inside the run transaction.
//
// Decimals and dates are stored as TEXT ("1234.50", "2023-01-31") so amounts
// round-trip exactly.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"escrowetl/internal/coerce"
	"escrowetl/internal/config"
	"escrowetl/internal/etlerr"
	"escrowetl/internal/schema"
	"escrowetl/internal/storage"
	"escrowetl/internal/storage/sqldb"
	sqliteddl "escrowetl/internal/storage/sqlite/ddl"
)

// maxParams is SQLITE_MAX_VARIABLE_NUMBER of the bundled SQLite.
const maxParams = 32766

func init() {
	storage.Register(config.EngineSQLite, func(ctx context.Context, b config.Backend) (storage.DB, error) {
		f, ok := b.(config.EmbeddedFile)
		if !ok {
			return nil, etlerr.New(etlerr.KindValidation, "sqlite: open", "backend %T is not an embedded file", b)
		}
		return Open(ctx, f.Path)
	})
}

var dialect = sqldb.Dialect{
	Engine:   config.EngineSQLite,
	Render:   sqliteddl.BuildCreateTableSQL,
	Columns:  tableColumns,
	Copy:     copyRows,
	Classify: classify,
}

// Open opens (creating if needed) the database file at path. Parent
// directories are created. The handle uses a single connection with foreign
// keys enforced.
//
// path may also be ":memory:" or a "file:" URI understood by the driver.
func Open(ctx context.Context, path string) (*sqldb.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, etlerr.New(etlerr.KindValidation, "sqlite: open", "path must not be empty")
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, etlerr.Wrap(etlerr.KindConnection, "sqlite: mkdir", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindConnection, "sqlite: open", err)
	}
	// One connection keeps the pragmas and the run transaction on the same
	// session, and makes ":memory:" a single database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, etlerr.Wrap(etlerr.KindConnection, "sqlite: ping "+path, err)
	}
	for _, pragma := range []string{"PRAGMA foreign_keys = ON;", "PRAGMA busy_timeout = 5000;"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, etlerr.Wrap(etlerr.KindConnection, "sqlite: "+pragma, err)
		}
	}
	return sqldb.New(db, dialect), nil
}

// tableColumns reads pragma_table_info; "schema.table" names are looked up
// in that attached schema.
func tableColumns(ctx context.Context, q sqldb.Queryer, fqn string) ([]string, error) {
	schemaName, table := "main", fqn
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		schemaName, table = fqn[:i], fqn[i+1:]
	}
	cols, err := sqldb.Strings(ctx, q, "SELECT name FROM pragma_table_info(?, ?)", table, schemaName)
	if err != nil || len(cols) == 0 {
		return nil, err
	}
	return cols, nil
}

func copyRows(ctx context.Context, tx *sql.Tx, fqn string, columns []string, rows [][]any) (int64, error) {
	return sqldb.Insert(ctx, tx, sqldb.InsertOptions{
		Table:     sqliteddl.QuoteFQN(fqn),
		Quote:     sqliteddl.QuoteIdent,
		MaxParams: maxParams,
		Encode:    encode,
	}, columns, rows)
}

// encode renders decimals with a fixed scale and dates as YYYY-MM-DD.
func encode(v any) any {
	switch t := v.(type) {
	case decimal.Decimal:
		return t.StringFixed(coerce.AmountScale)
	case time.Time:
		return t.Format(schema.DateLayout)
	}
	return v
}

func classify(err error) (etlerr.Kind, bool) {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return 0, false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_CONSTRAINT:
		return etlerr.KindIntegrity, true
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_IOERR,
		sqlite3.SQLITE_READONLY, sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return etlerr.KindConnection, true
	}
	return 0, false
}
