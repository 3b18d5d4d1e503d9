// Package postgres implements the PostgreSQL backend with pgx v5. A run uses
// one connection; each table is written with COPY FROM inside the run
// transaction.
package postgres

import (
	"context"
	"errors"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"escrowetl/internal/config"
	"escrowetl/internal/ddl"
	"escrowetl/internal/etlerr"
	"escrowetl/internal/storage"
	pgddl "escrowetl/internal/storage/postgres/ddl"
	"escrowetl/internal/storage/sqldb"
)

// connect is a test hook that points to pgx.ConnectConfig by default.
var connect = pgx.ConnectConfig

func init() {
	storage.Register(config.EnginePostgres, func(ctx context.Context, b config.Backend) (storage.DB, error) {
		n, ok := b.(config.Networked)
		if !ok {
			return nil, etlerr.New(etlerr.KindValidation, "postgres: open", "backend %T is not networked", b)
		}
		return Open(ctx, n)
	})
}

// DSN renders n as a postgres:// URL. Params become query parameters in
// sorted order.
func DSN(n config.Networked) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(n.Username, n.Password),
		Host:   net.JoinHostPort(n.Host, strconv.Itoa(n.Port)),
		Path:   "/" + n.Database,
	}
	if len(n.Params) > 0 {
		keys := make([]string, 0, len(n.Params))
		for k := range n.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		q := url.Values{}
		for _, k := range keys {
			q.Set(k, n.Params[k])
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// DB implements storage.DB on a single pgx connection.
type DB struct {
	conn *pgx.Conn
}

var _ storage.DB = (*DB)(nil)

// Open connects to n.
func Open(ctx context.Context, n config.Networked) (*DB, error) {
	cfg, err := pgx.ParseConfig(DSN(n))
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindConnection, "postgres: parse dsn", err)
	}
	conn, err := connect(ctx, cfg)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindConnection, "postgres: connect "+n.Describe(), err)
	}
	return &DB{conn: conn}, nil
}

func (d *DB) Engine() config.Engine { return config.EnginePostgres }

func (d *DB) CreateTableSQL(t ddl.TableDef) (string, error) { return pgddl.BuildCreateTableSQL(t) }

func (d *DB) TableColumns(ctx context.Context, fqn string) ([]string, error) {
	schemaName, table := pgddl.SplitFQN(fqn)
	rows, err := d.conn.Query(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schemaName, table)
	if err != nil {
		return nil, tag(etlerr.KindConnection, "postgres: columns of "+fqn, err)
	}
	cols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, tag(etlerr.KindConnection, "postgres: columns of "+fqn, err)
	}
	if len(cols) == 0 {
		return nil, nil
	}
	return cols, nil
}

func (d *DB) Exec(ctx context.Context, stmt string) error {
	_, err := d.conn.Exec(ctx, stmt)
	return tag(etlerr.KindSchema, "postgres: exec", err)
}

func (d *DB) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := d.conn.Begin(ctx)
	if err != nil {
		return nil, tag(etlerr.KindConnection, "postgres: begin", err)
	}
	return &Tx{tx: tx}, nil
}

func (d *DB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.conn.Close(ctx)
}

// Tx implements storage.Tx with COPY FROM.
type Tx struct {
	tx pgx.Tx
}

func (t *Tx) CopyInto(ctx context.Context, fqn string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	schemaName, table := pgddl.SplitFQN(fqn)
	enc := make([][]any, len(rows))
	for i, r := range rows {
		enc[i] = make([]any, len(r))
		for j, v := range r {
			enc[i][j] = encode(v)
		}
	}
	n, err := t.tx.CopyFrom(ctx, pgx.Identifier{schemaName, table}, columns, pgx.CopyFromRows(enc))
	if err != nil {
		return n, tag(etlerr.KindIntegrity, "postgres: copy into "+fqn, err)
	}
	return n, nil
}

func (t *Tx) Commit(ctx context.Context) error {
	return tag(etlerr.KindConnection, "postgres: commit", t.tx.Commit(ctx))
}

// Rollback is a no-op on a finished transaction.
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return tag(etlerr.KindConnection, "postgres: rollback", err)
}

// encode maps decimals to NUMERIC and dates to DATE values pgx can send in
// binary COPY format.
func encode(v any) any {
	switch t := v.(type) {
	case decimal.Decimal:
		return pgtype.Numeric{Int: t.Coefficient(), Exp: t.Exponent(), Valid: true}
	case time.Time:
		return pgtype.Date{Time: t, Valid: true}
	}
	return v
}

func tag(fallback etlerr.Kind, op string, err error) error {
	return sqldb.Tag(classify, fallback, op, err)
}

// classify maps SQLSTATE classes: 23 integrity, 08 connection, 42 and 3F
// schema.
func classify(err error) (etlerr.Kind, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"):
			return etlerr.KindIntegrity, true
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"):
			return etlerr.KindConnection, true
		case strings.HasPrefix(pgErr.Code, "42"), strings.HasPrefix(pgErr.Code, "3F"):
			return etlerr.KindSchema, true
		}
		return 0, false
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return etlerr.KindConnection, true
	}
	return 0, false
}
