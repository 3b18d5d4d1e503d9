// Package storage contains the storage-agnostic contracts of the loader.
//
// Each engine package (sqlite, postgres, mysql, mssql) implements DB and Tx
// and registers a Factory for its config.Engine at init time. Callers import
// internal/storage/all for the side effect and then stay backend-agnostic:
//
//	ld := storage.NewLoader(app)
//	res, err := ld.Load(ctx, backend, runID, out)
package storage

import (
	"context"
	"fmt"
	"sync"

	"escrowetl/internal/config"
	"escrowetl/internal/ddl"
	"escrowetl/internal/etlerr"
)

// DB is an open connection to one backend.
type DB interface {
	Engine() config.Engine
	// CreateTableSQL renders an idempotent CREATE TABLE in the engine dialect.
	CreateTableSQL(t ddl.TableDef) (string, error)
	// TableColumns lists the columns of fqn, or nil when the table is absent.
	TableColumns(ctx context.Context, fqn string) ([]string, error)
	Exec(ctx context.Context, stmt string) error
	BeginTx(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is a transaction spanning every table of one run.
type Tx interface {
	// CopyInto bulk-inserts rows aligned to columns and returns the number
	// of rows written.
	CopyInto(ctx context.Context, fqn string, columns []string, rows [][]any) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Factory opens a DB for a backend of the engine it was registered under.
type Factory func(ctx context.Context, b config.Backend) (DB, error)

var (
	factoryMu sync.RWMutex
	factories = map[config.Engine]Factory{}
)

// Register registers (or replaces) the Factory for engine. It is typically
// called from backend packages' init() functions.
func Register(engine config.Engine, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[engine] = f
}

// Registered reports whether a factory exists for engine.
func Registered(engine config.Engine) bool {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	_, ok := factories[engine]
	return ok
}

// Open connects to b through the factory of its engine. Failures are
// reported as ConnectionError unless the backend tagged them already.
func Open(ctx context.Context, b config.Backend) (DB, error) {
	if b == nil {
		return nil, etlerr.New(etlerr.KindValidation, "storage: open", "no backend configured")
	}
	factoryMu.RLock()
	f, ok := factories[b.Engine()]
	factoryMu.RUnlock()
	if !ok {
		return nil, etlerr.New(etlerr.KindConnection, "storage: open",
			"no storage backend registered for %q", b.Engine())
	}
	db, err := f(ctx, b)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindConnection, fmt.Sprintf("storage: open %s", b.Describe()), err)
	}
	return db, nil
}
