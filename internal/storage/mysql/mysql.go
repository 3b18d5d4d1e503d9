// Package mysql implements the MySQL backend with go-sql-driver/mysql. Rows
// are written as multi-row INSERTs inside the run transaction on InnoDB
// tables.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"escrowetl/internal/coerce"
	"escrowetl/internal/config"
	"escrowetl/internal/etlerr"
	"escrowetl/internal/schema"
	"escrowetl/internal/storage"
	mysqlddl "escrowetl/internal/storage/mysql/ddl"
	"escrowetl/internal/storage/sqldb"
)

// maxParams is the prepared statement placeholder limit of the server.
const maxParams = 65535

// Error numbers reported for constraint violations.
const (
	errDupEntry           = 1062
	errRowIsReferenced    = 1451
	errNoReferencedRow    = 1452
	errBadNull            = 1048
	errNoReferencedRowOld = 1216
	errRowIsReferencedOld = 1217
	errNoSuchTable        = 1146
	errBadField           = 1054
	errAccessDenied       = 1045
	errBadDB              = 1049
)

func init() {
	storage.Register(config.EngineMySQL, func(ctx context.Context, b config.Backend) (storage.DB, error) {
		n, ok := b.(config.Networked)
		if !ok {
			return nil, etlerr.New(etlerr.KindValidation, "mysql: open", "backend %T is not networked", b)
		}
		return Open(ctx, n)
	})
}

var dialect = sqldb.Dialect{
	Engine:   config.EngineMySQL,
	Render:   mysqlddl.BuildCreateTableSQL,
	Columns:  tableColumns,
	Copy:     copyRows,
	Classify: classify,
}

// DriverConfig maps n onto the driver configuration. Params are passed
// through as session variables or driver options.
func DriverConfig(n config.Networked) *mysql.Config {
	c := mysql.NewConfig()
	c.User = n.Username
	c.Passwd = n.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
	c.DBName = n.Database
	c.ParseTime = true
	c.Loc = time.UTC
	if len(n.Params) > 0 {
		c.Params = make(map[string]string, len(n.Params))
		for k, v := range n.Params {
			c.Params[k] = v
		}
	}
	return c
}

// Open connects to n and pings it.
func Open(ctx context.Context, n config.Networked) (*sqldb.DB, error) {
	connector, err := mysql.NewConnector(DriverConfig(n))
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindValidation, "mysql: config", err)
	}
	db := sql.OpenDB(connector)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, sqldb.Tag(classify, etlerr.KindConnection, "mysql: ping "+n.Describe(), err)
	}
	return sqldb.New(db, dialect), nil
}

func tableColumns(ctx context.Context, q sqldb.Queryer, fqn string) ([]string, error) {
	database, table := mysqlddl.SplitFQN(fqn)
	cols, err := sqldb.Strings(ctx, q, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE()) AND table_name = ?
		ORDER BY ordinal_position`, database, table)
	if err != nil || len(cols) == 0 {
		return nil, err
	}
	return cols, nil
}

func copyRows(ctx context.Context, tx *sql.Tx, fqn string, columns []string, rows [][]any) (int64, error) {
	return sqldb.Insert(ctx, tx, sqldb.InsertOptions{
		Table:     mysqlddl.QuoteFQN(fqn),
		Quote:     mysqlddl.QuoteIdent,
		MaxParams: maxParams,
		Encode:    encode,
	}, columns, rows)
}

// encode sends decimals as fixed-scale strings and dates as YYYY-MM-DD so
// the server never truncates a time part.
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
	if errors.Is(err, mysql.ErrInvalidConn) {
		return etlerr.KindConnection, true
	}
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return 0, false
	}
	switch me.Number {
	case errDupEntry, errRowIsReferenced, errNoReferencedRow, errBadNull,
		errNoReferencedRowOld, errRowIsReferencedOld:
		return etlerr.KindIntegrity, true
	case errNoSuchTable, errBadField:
		return etlerr.KindSchema, true
	case errAccessDenied, errBadDB:
		return etlerr.KindConnection, true
	}
	return 0, false
}
