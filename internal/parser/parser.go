// Package parser turns tabular input files into a Grid of trimmed string
// cells. Format readers live in the csv, xlsx and xls subpackages.
package parser

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ErrNoHeader is returned when an input holds no non-empty row.
var ErrNoHeader = errors.New("parser: no header row")

// Row is one data row. Line is 1-based in the source file (or sheet).
type Row struct {
	Line  int
	Cells []string
}

// Grid is the header row plus the data rows that follow it. Rows may be
// narrower or wider than Header.
type Grid struct {
	Sheet      string
	HeaderLine int
	Header     []string
	Rows       []Row
}

// Reader decodes one file format.
type Reader interface {
	Read(ctx context.Context, r io.Reader) (*Grid, error)
}

// Builder accumulates records into a Grid. The first record with at least
// one non-blank cell becomes the header.
type Builder struct {
	g         Grid
	hasHeader bool
}

// Add appends one record read at the given 1-based line. Cells are trimmed;
// the slice is not retained.
func (b *Builder) Add(line int, cells []string) {
	trimmed := make([]string, len(cells))
	blank := true
	for i, c := range cells {
		trimmed[i] = strings.TrimSpace(c)
		if trimmed[i] != "" {
			blank = false
		}
	}
	if !b.hasHeader {
		if blank {
			return
		}
		b.g.Header = trimTrailingBlank(trimmed)
		b.g.HeaderLine = line
		b.hasHeader = true
		return
	}
	b.g.Rows = append(b.g.Rows, Row{Line: line, Cells: trimmed})
}

// Grid returns the accumulated grid, or ErrNoHeader when nothing was added.
func (b *Builder) Grid(sheet string) (*Grid, error) {
	if !b.hasHeader {
		return nil, ErrNoHeader
	}
	g := b.g
	g.Sheet = sheet
	return &g, nil
}

func trimTrailingBlank(cells []string) []string {
	n := len(cells)
	for n > 0 && cells[n-1] == "" {
		n--
	}
	return cells[:n]
}

// CheckEvery reports ctx.Err() every n calls, to bound cancellation latency
// in tight read loops without polling on each record.
func CheckEvery(ctx context.Context, i, n int) error {
	if i%n != 0 {
		return nil
	}
	return ctx.Err()
}
