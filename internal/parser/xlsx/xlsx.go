// Package xlsx reads Office Open XML workbooks (.xlsx, .xlsm) into a
// parser.Grid using excelize.
//
// Cells are read raw: numbers keep their stored form ("1000.5") and dates
// arrive as serial day numbers, which the coerce package understands.
package xlsx

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"escrowetl/internal/parser"
)

// Options selects the sheet. Empty Sheet means the first one.
type Options struct {
	Sheet string
}

// Reader implements parser.Reader for xlsx workbooks.
type Reader struct{ opt Options }

// New returns a Reader.
func New(opt Options) *Reader { return &Reader{opt: opt} }

// Read decodes the selected sheet of the workbook in r.
func (rd *Reader) Read(ctx context.Context, r io.Reader) (*parser.Grid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet, err := pickSheet(f.GetSheetList(), rd.opt.Sheet)
	if err != nil {
		return nil, err
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	var b parser.Builder
	for i, row := range rows {
		if err := parser.CheckEvery(ctx, i, 1024); err != nil {
			return nil, err
		}
		b.Add(i+1, row)
	}
	return b.Grid(sheet)
}

func pickSheet(sheets []string, want string) (string, error) {
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	if want == "" {
		return sheets[0], nil
	}
	for _, s := range sheets {
		if s == want {
			return s, nil
		}
	}
	return "", fmt.Errorf("sheet %q not found (have %v)", want, sheets)
}
