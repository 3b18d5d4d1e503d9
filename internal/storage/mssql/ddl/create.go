// Package ddl renders SQL Server DDL from the generic ddl.TableDef model.
//
// T-SQL has no CREATE TABLE IF NOT EXISTS, so the statement is wrapped in an
// IF OBJECT_ID(...) IS NULL guard. Identifiers use bracket quoting.
package ddl

import (
	"fmt"
	"strings"

	gddl "escrowetl/internal/ddl"
)

var style = gddl.Style{
	Name:  "mssql ddl",
	Quote: QuoteIdent,
	Statement: func(table, _, body string) string {
		return fmt.Sprintf(
			"IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n  CREATE TABLE %s (\n    %s\n  );\nEND;",
			strings.ReplaceAll(table, "'", "''"),
			table,
			strings.ReplaceAll(body, "\n  ", "\n    "),
		)
	},
}

// BuildCreateTableSQL returns a T-SQL script that creates t unless it
// already exists:
//
//	IF OBJECT_ID(N'[schema].[table]', N'U') IS NULL
//	BEGIN
//	  CREATE TABLE [schema].[table] (
//	    [col1] TYPE [NOT NULL],
//	    PRIMARY KEY ([pk1], [pk2])
//	  );
//	END;
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	return gddl.Render(t.WithTypes(MapType), style)
}

// QuoteIdent brackets one identifier, escaping closing brackets.
//
//	name      -> [name]
//	weird]id  -> [weird]]id]
func QuoteIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

// QuoteFQN brackets every dot-separated part: "dbo.Users" -> [dbo].[Users].
func QuoteFQN(fqn string) string { return gddl.QuoteFQN(fqn, QuoteIdent) }

// SplitFQN returns the schema and table of fqn; schema is "dbo" when fqn is
// unqualified.
func SplitFQN(fqn string) (schema, table string) {
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		return fqn[:i], fqn[i+1:]
	}
	return "dbo", fqn
}
