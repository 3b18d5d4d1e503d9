// Package ddl defines a small, backend-agnostic model for SQL DDL and the
// renderer the backend packages share.
//
// BuildCreateTableSQL emits a plain statement with unquoted identifiers.
// Backends (internal/storage/<engine>/ddl) call Render with a Style that
// supplies their identifier quoting and the statement wrapper (IF NOT EXISTS,
// OBJECT_ID guards, table options).
package ddl

import (
	"fmt"
	"strings"
)

// Style adapts Render to one SQL dialect.
type Style struct {
	// Name prefixes error messages, e.g. "sqlite ddl".
	Name string
	// Quote quotes a single identifier part. Nil leaves identifiers as-is.
	Quote func(ident string) string
	// Statement wraps the rendered table body. table is the quoted FQN, raw
	// the unquoted one. Nil renders "CREATE TABLE <table> (...);".
	Statement func(table, raw, body string) string
}

// Plain is the dialect-neutral style used by BuildCreateTableSQL.
var Plain = Style{Name: "ddl"}

// BuildCreateTableSQL renders a generic CREATE TABLE statement:
//
//	CREATE TABLE <FQN> (
//	  <name> <type> [NOT NULL] [DEFAULT <expr>],
//	  ...,
//	  [PRIMARY KEY (<pk-cols>)],
//	  [UNIQUE (<cols>)],
//	  [FOREIGN KEY (<cols>) REFERENCES <table> (<cols>)]
//	);
func BuildCreateTableSQL(t TableDef) (string, error) {
	return Render(t, Plain)
}

// Render validates t and renders it in style s. Every column needs a Name
// and a SQLType (see TableDef.WithTypes); constraint columns must exist.
func Render(t TableDef, s Style) (string, error) {
	quote := s.Quote
	if quote == nil {
		quote = func(id string) string { return id }
	}
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("%s: table FQN must not be empty", s.Name)
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%s: at least one column is required", s.Name)
	}

	known := make(map[string]bool, len(t.Columns))
	lines := make([]string, 0, len(t.Columns)+2+len(t.Unique)+len(t.ForeignKeys))
	var pks []string

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("%s: column with empty name in table %s", s.Name, fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("%s: column %s missing SQLType", s.Name, name)
		}
		known[name] = true

		var sb strings.Builder
		sb.WriteString(quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		lines = append(lines, sb.String())

		if c.PrimaryKey {
			pks = append(pks, name)
		}
	}

	list := func(cols []string) (string, error) {
		if len(cols) == 0 {
			return "", fmt.Errorf("%s: empty constraint column list in table %s", s.Name, fqn)
		}
		q := make([]string, len(cols))
		for i, c := range cols {
			if !known[c] {
				return "", fmt.Errorf("%s: constraint references unknown column %s in table %s", s.Name, c, fqn)
			}
			q[i] = quote(c)
		}
		return strings.Join(q, ", "), nil
	}

	if len(pks) > 0 {
		l, err := list(pks)
		if err != nil {
			return "", err
		}
		lines = append(lines, "PRIMARY KEY ("+l+")")
	}
	for _, u := range t.Unique {
		l, err := list(u)
		if err != nil {
			return "", err
		}
		lines = append(lines, "UNIQUE ("+l+")")
	}
	for _, fk := range t.ForeignKeys {
		l, err := list(fk.Columns)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(fk.RefTable) == "" || len(fk.RefColumns) != len(fk.Columns) {
			return "", fmt.Errorf("%s: malformed foreign key in table %s", s.Name, fqn)
		}
		refs := make([]string, len(fk.RefColumns))
		for i, c := range fk.RefColumns {
			refs[i] = quote(c)
		}
		lines = append(lines, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			l, QuoteFQN(fk.RefTable, quote), strings.Join(refs, ", ")))
	}

	body := strings.Join(lines, ",\n  ")
	table := QuoteFQN(fqn, quote)
	if s.Statement != nil {
		return s.Statement(table, fqn, body), nil
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", table, body), nil
}

// QuoteFQN quotes each dot-separated part of fqn, skipping empty parts.
func QuoteFQN(fqn string, quote func(string) string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, quote(p))
	}
	return strings.Join(out, ".")
}
