// Package sqldb adapts a database/sql handle to storage.DB and storage.Tx.
//
// The sqlite, mysql and mssql backends share it and supply only what differs
// per engine: DDL rendering, column introspection, the bulk copy primitive,
// and driver error classification.
package sqldb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"

	"escrowetl/internal/config"
	"escrowetl/internal/ddl"
	"escrowetl/internal/etlerr"
	"escrowetl/internal/storage"
)

// Queryer is satisfied by *sql.DB and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CopyFunc writes rows into fqn within tx.
type CopyFunc func(ctx context.Context, tx *sql.Tx, fqn string, columns []string, rows [][]any) (int64, error)

// Classifier maps an engine error to a kind. ok is false when the engine does
// not recognize the error.
type Classifier func(err error) (kind etlerr.Kind, ok bool)

// Dialect is the engine-specific part of a DB.
type Dialect struct {
	Engine   config.Engine
	Render   func(t ddl.TableDef) (string, error)
	Columns  func(ctx context.Context, q Queryer, fqn string) ([]string, error)
	Copy     CopyFunc
	Classify Classifier
}

// DB implements storage.DB over *sql.DB.
type DB struct {
	db *sql.DB
	d  Dialect
}

var _ storage.DB = (*DB)(nil)

// New wraps an open handle. The DB owns db and closes it on Close.
func New(db *sql.DB, d Dialect) *DB { return &DB{db: db, d: d} }

// SQL exposes the underlying handle.
func (d *DB) SQL() *sql.DB { return d.db }

func (d *DB) Engine() config.Engine { return d.d.Engine }

func (d *DB) CreateTableSQL(t ddl.TableDef) (string, error) { return d.d.Render(t) }

func (d *DB) TableColumns(ctx context.Context, fqn string) ([]string, error) {
	cols, err := d.d.Columns(ctx, d.db, fqn)
	if err != nil {
		return nil, Tag(d.d.Classify, etlerr.KindConnection, fmt.Sprintf("%s: columns of %s", d.d.Engine, fqn), err)
	}
	return cols, nil
}

func (d *DB) Exec(ctx context.Context, stmt string) error {
	_, err := d.db.ExecContext(ctx, stmt)
	return Tag(d.d.Classify, etlerr.KindSchema, fmt.Sprintf("%s: exec", d.d.Engine), err)
}

func (d *DB) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, Tag(d.d.Classify, etlerr.KindConnection, fmt.Sprintf("%s: begin tx", d.d.Engine), err)
	}
	return &Tx{tx: tx, d: &d.d}, nil
}

func (d *DB) Close() error { return d.db.Close() }

// Tx implements storage.Tx over *sql.Tx.
type Tx struct {
	tx *sql.Tx
	d  *Dialect
}

func (t *Tx) CopyInto(ctx context.Context, fqn string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := t.d.Copy(ctx, t.tx, fqn, columns, rows)
	if err != nil {
		return n, Tag(t.d.Classify, etlerr.KindIntegrity, fmt.Sprintf("%s: insert into %s", t.d.Engine, fqn), err)
	}
	return n, nil
}

func (t *Tx) Commit(context.Context) error {
	return Tag(t.d.Classify, etlerr.KindConnection, fmt.Sprintf("%s: commit", t.d.Engine), t.tx.Commit())
}

// Rollback is a no-op on a finished transaction.
func (t *Tx) Rollback(context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return Tag(t.d.Classify, etlerr.KindConnection, fmt.Sprintf("%s: rollback", t.d.Engine), err)
}

// Tag classifies err: the engine classifier first, then broken connections,
// then fallback. Context errors are returned unchanged.
func Tag(c Classifier, fallback etlerr.Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	if storage.IsContextErr(err) {
		return err
	}
	if c != nil {
		if kind, ok := c(err); ok {
			return etlerr.Wrap(kind, op, err)
		}
	}
	if IsConnError(err) {
		return etlerr.Wrap(etlerr.KindConnection, op, err)
	}
	return etlerr.Wrap(fallback, op, err)
}

// IsConnError reports errors that mean the session is gone.
func IsConnError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// Strings runs query and collects the first column of every row.
func Strings(ctx context.Context, q Queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
