// Package ddl renders MySQL DDL from the generic ddl.TableDef model:
// backtick identifiers, CREATE TABLE IF NOT EXISTS, InnoDB with utf8mb4 so
// foreign keys are enforced.
package ddl

import (
	"fmt"
	"strings"

	gddl "escrowetl/internal/ddl"
)

var style = gddl.Style{
	Name:  "mysql ddl",
	Quote: QuoteIdent,
	Statement: func(table, _, body string) string {
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;", table, body)
	},
}

// BuildCreateTableSQL returns a MySQL CREATE TABLE statement for t.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	return gddl.Render(t.WithTypes(MapType), style)
}

// QuoteIdent wraps one identifier in backticks.
func QuoteIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

// QuoteFQN quotes every dot-separated part of fqn.
func QuoteFQN(fqn string) string { return gddl.QuoteFQN(fqn, QuoteIdent) }

// SplitFQN returns the database and table of fqn; database is empty when fqn
// is unqualified, meaning the connection's current database.
func SplitFQN(fqn string) (database, table string) {
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		return fqn[:i], fqn[i+1:]
	}
	return "", fqn
}
