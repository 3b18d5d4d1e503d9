// Package mssql implements the Microsoft SQL Server backend using the
// go-mssqldb bulk copy API. Each batch is bulk-copied inside the run
// transaction with constraint checking enabled, so foreign keys and unique
// keys are enforced just as for regular INSERTs.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
	"github.com/shopspring/decimal"

	"escrowetl/internal/coerce"
	"escrowetl/internal/config"
	"escrowetl/internal/etlerr"
	"escrowetl/internal/storage"
	mssqlddl "escrowetl/internal/storage/mssql/ddl"
	"escrowetl/internal/storage/sqldb"
)

// Error numbers reported for constraint violations and missing objects.
const (
	errPKViolation     = 2627
	errDupKeyRow       = 2601
	errConstraint      = 547
	errNullInsert      = 515
	errInvalidObject   = 208
	errInvalidColumn   = 207
	errLoginFailed     = 18456
	errCannotOpenDBase = 4060
)

func init() {
	storage.Register(config.EngineSQLServer, func(ctx context.Context, b config.Backend) (storage.DB, error) {
		n, ok := b.(config.Networked)
		if !ok {
			return nil, etlerr.New(etlerr.KindValidation, "mssql: open", "backend %T is not networked", b)
		}
		return Open(ctx, n)
	})
}

var dialect = sqldb.Dialect{
	Engine:   config.EngineSQLServer,
	Render:   mssqlddl.BuildCreateTableSQL,
	Columns:  tableColumns,
	Copy:     copyRows,
	Classify: classify,
}

// DSN renders n as a sqlserver:// URL. Params become query parameters
// (encrypt, TrustServerCertificate, ...) next to database.
func DSN(n config.Networked) string {
	q := url.Values{}
	q.Set("database", n.Database)
	keys := make([]string, 0, len(n.Params))
	for k := range n.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, n.Params[k])
	}
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(n.Username, n.Password),
		Host:     net.JoinHostPort(n.Host, strconv.Itoa(n.Port)),
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Open connects to n and pings it.
func Open(ctx context.Context, n config.Networked) (*sqldb.DB, error) {
	dsn := DSN(n)
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, etlerr.Wrap(etlerr.KindConnection, "mssql: dsn", err)
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindConnection, "mssql: open", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, sqldb.Tag(classify, etlerr.KindConnection, "mssql: ping "+n.Describe(), err)
	}
	return sqldb.New(db, dialect), nil
}

func tableColumns(ctx context.Context, q sqldb.Queryer, fqn string) ([]string, error) {
	schemaName, table := mssqlddl.SplitFQN(fqn)
	cols, err := sqldb.Strings(ctx, q, `
		SELECT COLUMN_NAME
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION`, schemaName, table)
	if err != nil || len(cols) == 0 {
		return nil, err
	}
	return cols, nil
}

// copyRows bulk-copies rows into fqn within tx.
func copyRows(ctx context.Context, tx *sql.Tx, fqn string, columns []string, rows [][]any) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(mssqlddl.QuoteFQN(fqn), mssql.BulkOptions{CheckConstraints: true}, columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		vals := make([]any, len(rows[i]))
		for j, v := range rows[i] {
			vals[j] = encode(v)
		}
		if _, err := stmt.ExecContext(ctx, vals...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// encode sends decimals as fixed-scale strings, which the bulk copy parses
// into the column's precision and scale.
func encode(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return d.StringFixed(coerce.AmountScale)
	}
	return v
}

func classify(err error) (etlerr.Kind, bool) {
	var me mssql.Error
	if !errors.As(err, &me) {
		var pme *mssql.Error
		if !errors.As(err, &pme) {
			return 0, false
		}
		me = *pme
	}
	switch me.Number {
	case errPKViolation, errDupKeyRow, errConstraint, errNullInsert:
		return etlerr.KindIntegrity, true
	case errInvalidObject, errInvalidColumn:
		return etlerr.KindSchema, true
	case errLoginFailed, errCannotOpenDBase:
		return etlerr.KindConnection, true
	}
	return 0, false
}
