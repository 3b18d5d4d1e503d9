// Package ddl renders PostgreSQL DDL from the generic ddl.TableDef model.
package ddl

import (
	"fmt"
	"strings"

	gddl "escrowetl/internal/ddl"
)

var style = gddl.Style{
	Name:  "postgres ddl",
	Quote: QuoteIdent,
	Statement: func(table, _, body string) string {
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", table, body)
	},
}

// BuildCreateTableSQL returns a PostgreSQL CREATE TABLE IF NOT EXISTS
// statement for t, typing columns without SQLType through MapType.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	return gddl.Render(t.WithTypes(MapType), style)
}

// QuoteIdent double-quotes one identifier.
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// SplitFQN returns the schema and table of fqn; schema is "public" when fqn
// is unqualified.
func SplitFQN(fqn string) (schema, table string) {
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		return fqn[:i], fqn[i+1:]
	}
	return "public", fqn
}
