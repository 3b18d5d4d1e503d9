// Package extract loads one balances or redemptions file into a typed
// schema.Table.
//
// The file kind comes from the extension. Headers are resolved to the fixed
// fields of the role (see fields.go); balances period columns are discovered
// from their "Saldo <month><year>" headers. Cell problems never fail the
// file: they become warnings on the table, and rows without a usable account
// key are dropped.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/zeebo/xxh3"

	"escrowetl/internal/coerce"
	"escrowetl/internal/datasource"
	"escrowetl/internal/etlerr"
	"escrowetl/internal/parser"
	"escrowetl/internal/parser/csv"
	"escrowetl/internal/parser/xls"
	"escrowetl/internal/parser/xlsx"
	"escrowetl/internal/schema"
)

// Format is a supported container format.
type Format string

const (
	FormatDelimited Format = "delimited"
	FormatXLSX      Format = "xlsx"
	FormatXLS       Format = "xls"
)

var formats = map[string]Format{
	".csv":  FormatDelimited,
	".txt":  FormatDelimited,
	".tsv":  FormatDelimited,
	".xlsx": FormatXLSX,
	".xlsm": FormatXLSX,
	".xltx": FormatXLSX,
	".xltm": FormatXLSX,
	".xls":  FormatXLS,
}

// FormatOf returns the format for name's extension.
func FormatOf(name string) (Format, bool) {
	f, ok := formats[strings.ToLower(filepath.Ext(name))]
	return f, ok
}

// Options configures an Extractor. The zero value sniffs delimiters, reads
// the first sheet, and has no size limit.
type Options struct {
	Delimiter   rune
	Sheet       string
	MaxFileSize int64
}

// Extractor reads input files. It holds no per-file state and is safe for
// concurrent use.
type Extractor struct{ opt Options }

// New returns an Extractor.
func New(opt Options) *Extractor { return &Extractor{opt: opt} }

// Extract reads src as a file of the given role.
func (e *Extractor) Extract(ctx context.Context, src datasource.Source, role schema.Role) (*schema.Table, error) {
	op := "extract " + string(role)

	in, err := e.load(ctx, src, op)
	if err != nil {
		return nil, err
	}
	g := in.grid

	l := resolve(role, g.Header)
	if len(l.missing) > 0 {
		return nil, etlerr.New(etlerr.KindSchema, op, "%s: required columns not found: %s (headers: %s)",
			src.Name(), strings.Join(l.missing, ", "), strings.Join(g.Header, " | "))
	}
	if role == schema.RoleBalances && len(l.periods) == 0 {
		return nil, etlerr.New(etlerr.KindSchema, op, "%s: no period columns (expected headers like \"Saldo JANEIRO23\")", src.Name())
	}

	names := make([]string, len(l.columns))
	for i, c := range l.columns {
		names[i] = c.name
	}
	t := &schema.Table{
		Role:          role,
		Source:        src.Name(),
		Fingerprint:   in.fingerprint,
		Header:        schema.NewHeader(names),
		PeriodColumns: l.periods,
		Warnings:      l.warnings,
	}

	spreadsheet := in.format != FormatDelimited
	for i, r := range g.Rows {
		if err := parser.CheckEvery(ctx, i, 1024); err != nil {
			return nil, err
		}
		if blank(r.Cells) {
			continue
		}
		values, ok := convertRow(t, l.columns, r, spreadsheet)
		if !ok {
			continue
		}
		t.Rows = append(t.Rows, schema.NewRawRow(t.Header, r.Line, values))
	}

	log.Debug("extracted file",
		"role", role, "source", src.Name(), "format", in.format,
		"rows", len(t.Rows), "periods", len(t.PeriodColumns), "warnings", len(t.Warnings))
	return t, nil
}

// loaded is a parsed input file.
type loaded struct {
	grid        *parser.Grid
	format      Format
	size        int64
	fingerprint string
}

// load reads src, enforces the size limit, and parses it into a grid.
func (e *Extractor) load(ctx context.Context, src datasource.Source, op string) (*loaded, error) {
	if src == nil {
		return nil, etlerr.New(etlerr.KindValidation, op, "no source given")
	}
	format, ok := FormatOf(src.Name())
	if !ok {
		return nil, etlerr.New(etlerr.KindFormat, op, "%s: unsupported file type %q", src.Name(), filepath.Ext(src.Name()))
	}
	data, err := e.readAll(ctx, src)
	if err != nil {
		if ctxErr(err) {
			return nil, err
		}
		return nil, etlerr.Wrap(etlerr.KindFormat, op, err)
	}

	g, err := e.reader(format).Read(ctx, bytes.NewReader(data))
	switch {
	case ctxErr(err):
		return nil, err
	case errors.Is(err, parser.ErrNoHeader):
		return nil, etlerr.New(etlerr.KindFormat, op, "%s: file is empty", src.Name())
	case err != nil:
		return nil, etlerr.Wrap(etlerr.KindFormat, op, fmt.Errorf("%s: %w", src.Name(), err))
	}
	return &loaded{
		grid:        g,
		format:      format,
		size:        int64(len(data)),
		fingerprint: fmt.Sprintf("%016x", xxh3.Hash(data)),
	}, nil
}

func (e *Extractor) readAll(ctx context.Context, src datasource.Source) ([]byte, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if e.opt.MaxFileSize > 0 {
		r = io.LimitReader(rc, e.opt.MaxFileSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Name(), err)
	}
	if e.opt.MaxFileSize > 0 && int64(len(data)) > e.opt.MaxFileSize {
		return nil, fmt.Errorf("%s: file exceeds the %d MiB limit", src.Name(), e.opt.MaxFileSize>>20)
	}
	return data, nil
}

func (e *Extractor) reader(f Format) parser.Reader {
	switch f {
	case FormatXLSX:
		return xlsx.New(xlsx.Options{Sheet: e.opt.Sheet})
	case FormatXLS:
		return xls.New(xls.Options{Sheet: e.opt.Sheet})
	default:
		return csv.New(csv.Options{Comma: e.opt.Delimiter})
	}
}

func ctxErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

// convertRow coerces the cells of r. It reports false when the row has no
// usable account key; the reason is recorded on t.
func convertRow(t *schema.Table, cols []column, r parser.Row, spreadsheet bool) ([]any, bool) {
	warn := func(col, msg string) {
		t.Warnings = append(t.Warnings, schema.Warning{Role: t.Role, Line: r.Line, Column: col, Message: msg})
	}

	values := make([]any, len(cols))
	for i, c := range cols {
		raw := ""
		if c.index < len(r.Cells) {
			raw = r.Cells[c.index]
		}
		if c.kind == kindKey {
			if raw == "" {
				warn(c.header, "missing account key; row dropped")
				return nil, false
			}
			key, err := schema.CanonicalAccountKey(raw)
			if err != nil {
				warn(c.header, fmt.Sprintf("unparsable account key %q; row dropped", raw))
				return nil, false
			}
			values[i] = key
			continue
		}
		if raw == "" {
			continue
		}
		if c.kind == kindDecimal {
			notation := coerce.NotationOf(raw, spreadsheet)
			a, ok := coerce.ParseAmount(raw, notation)
			if !ok {
				warn(c.header, fmt.Sprintf("unparsable value %q treated as missing", raw))
				continue
			}
			if a.Rounded && notation == coerce.Text {
				warn(c.header, fmt.Sprintf("value %q has more than %d decimal places; rounded to %s", raw, coerce.AmountScale, a.Value.StringFixed(coerce.AmountScale)))
			}
			values[i] = a.Value
			continue
		}
		v, ok := coerceCell(c.kind, raw, spreadsheet)
		if !ok {
			warn(c.header, fmt.Sprintf("unparsable value %q treated as missing", raw))
			continue
		}
		values[i] = v
	}
	return values, true
}

func coerceCell(kind valueKind, raw string, spreadsheet bool) (any, bool) {
	switch kind {
	case kindInt:
		return coerce.Int(raw)
	case kindDate:
		if d, ok := coerce.Date(raw); ok {
			return d, true
		}
		if spreadsheet {
			return coerce.SerialDate(raw)
		}
		return nil, false
	default:
		return raw, true
	}
}
