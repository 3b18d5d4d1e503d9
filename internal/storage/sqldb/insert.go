package sqldb

import (
	"context"
	"fmt"
	"strings"
)

// InsertOptions shapes multi-row INSERT statements.
type InsertOptions struct {
	// Table is the quoted target name.
	Table string
	// Quote quotes one column name.
	Quote func(string) string
	// MaxParams caps the placeholders per statement.
	MaxParams int
	// Encode converts a value before it is bound. Nil binds values as-is.
	Encode func(any) any
}

// Insert writes rows with multi-row INSERT ... VALUES (?, ...), (?, ...)
// statements, splitting them so no statement exceeds MaxParams placeholders.
// It returns the number of rows inserted.
func Insert(ctx context.Context, x Execer, opt InsertOptions, columns []string, rows [][]any) (int64, error) {
	width := len(columns)
	if width == 0 {
		return 0, fmt.Errorf("insert into %s: no columns", opt.Table)
	}
	per := len(rows)
	if opt.MaxParams > 0 {
		per = opt.MaxParams / width
		if per == 0 {
			return 0, fmt.Errorf("insert into %s: %d columns exceed %d placeholders", opt.Table, width, opt.MaxParams)
		}
	}

	quoted := make([]string, width)
	for i, c := range columns {
		if opt.Quote != nil {
			c = opt.Quote(c)
		}
		quoted[i] = c
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", opt.Table, strings.Join(quoted, ", "))
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", width), ", ") + ")"

	var total int64
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		chunk := rows[start:end]

		var sb strings.Builder
		sb.Grow(len(prefix) + len(chunk)*(len(tuple)+2))
		sb.WriteString(prefix)
		args := make([]any, 0, len(chunk)*width)
		for i, row := range chunk {
			if len(row) != width {
				return total, fmt.Errorf("insert into %s: row has %d values, want %d", opt.Table, len(row), width)
			}
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(tuple)
			for _, v := range row {
				if opt.Encode != nil {
					v = opt.Encode(v)
				}
				args = append(args, v)
			}
		}

		res, err := x.ExecContext(ctx, sb.String(), args...)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = int64(len(chunk))
		}
		total += n
	}
	return total, nil
}
