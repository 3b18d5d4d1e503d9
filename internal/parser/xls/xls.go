// Package xls reads legacy BIFF8 workbooks (.xls) into a parser.Grid using
// github.com/extrame/xls. Strings are decoded as Windows-1252.
package xls

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/extrame/xls"

	"escrowetl/internal/parser"
)

// Charset handed to the BIFF decoder for non-unicode strings.
const Charset = "cp1252"

// Options selects the sheet. Empty Sheet means the first one.
type Options struct {
	Sheet string
}

// Reader implements parser.Reader for xls workbooks.
type Reader struct{ opt Options }

// New returns a Reader.
func New(opt Options) *Reader { return &Reader{opt: opt} }

// Read decodes the selected sheet of the workbook in r. The BIFF decoder
// panics on some corrupt files; those panics come back as errors.
func (rd *Reader) Read(ctx context.Context, r io.Reader) (g *parser.Grid, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read xls: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			g, err = nil, fmt.Errorf("open xls: corrupt workbook: %v", p)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), Charset)
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	if wb == nil {
		return nil, fmt.Errorf("open xls: no Workbook stream")
	}
	sheet, err := pickSheet(wb, rd.opt.Sheet)
	if err != nil {
		return nil, err
	}

	var (
		b     parser.Builder
		width int
	)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		if err := parser.CheckEvery(ctx, i, 1024); err != nil {
			return nil, err
		}
		row := rowAt(sheet, i)
		if row == nil {
			b.Add(i+1, nil)
			continue
		}
		// Cells written without a ROW record report LastCol 0.
		width = max(width, row.LastCol())
		cells := make([]string, width)
		for j := range cells {
			cells[j] = row.Col(j)
		}
		b.Add(i+1, cells)
	}
	return b.Grid(sheet.Name)
}

// rowAt returns row i of s, or nil when the sheet holds nothing for it.
// WorkSheet.Row dereferences the missing row.
func rowAt(s *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return s.Row(i)
}

func pickSheet(wb *xls.WorkBook, want string) (*xls.WorkSheet, error) {
	n := wb.NumSheets()
	if n == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	if want == "" {
		if s := wb.GetSheet(0); s != nil {
			return s, nil
		}
		return nil, fmt.Errorf("workbook has no readable sheet")
	}
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s := wb.GetSheet(i)
		if s == nil {
			continue
		}
		if s.Name == want {
			return s, nil
		}
		names = append(names, s.Name)
	}
	return nil, fmt.Errorf("sheet %q not found (have %v)", want, names)
}
