// Package ddl renders SQLite DDL from the generic ddl.TableDef model:
// double-quoted identifiers and CREATE TABLE IF NOT EXISTS.
package ddl

import (
	"fmt"
	"strings"

	gddl "escrowetl/internal/ddl"
)

var style = gddl.Style{
	Name:  "sqlite ddl",
	Quote: QuoteIdent,
	Statement: func(table, _, body string) string {
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", table, body)
	},
}

// BuildCreateTableSQL returns a SQLite CREATE TABLE statement for t. Columns
// without SQLType are typed with MapType. If the FQN contains dots (e.g.,
// "main.events"), each segment is quoted individually.
//
//	CREATE TABLE IF NOT EXISTS "table" (
//	  "col1" TYPE [NOT NULL] [DEFAULT expr],
//	  PRIMARY KEY ("pk1", "pk2"),
//	  FOREIGN KEY ("a") REFERENCES "parent" ("a")
//	);
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	return gddl.Render(t.WithTypes(MapType), style)
}

// QuoteIdent double-quotes one identifier.
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QuoteFQN quotes every dot-separated part of fqn.
func QuoteFQN(fqn string) string { return gddl.QuoteFQN(fqn, QuoteIdent) }
