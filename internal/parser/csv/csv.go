// Package csv reads delimited text exports into a parser.Grid.
//
// Inputs are read whole: the extractor has already enforced the size limit.
// Bytes that are not valid UTF-8 are decoded as Windows-1252, which is what
// spreadsheet tools on Brazilian Windows desktops emit. When no delimiter is
// configured it is sniffed from the header line.
package csv

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"escrowetl/internal/parser"
)

// DefaultComma is used when sniffing finds no candidate delimiter.
const DefaultComma = ';'

// candidates in tie-break order.
var candidates = []rune{';', ',', '\t', '|'}

// Options configures the reader. The zero value sniffs the delimiter.
type Options struct {
	Comma rune
}

// Reader implements parser.Reader for delimited text.
type Reader struct{ opt Options }

// New returns a Reader.
func New(opt Options) *Reader { return &Reader{opt: opt} }

// Read decodes r into a grid.
func (rd *Reader) Read(ctx context.Context, r io.Reader) (*parser.Grid, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data, err = ToUTF8(StripBOM(data))
	if err != nil {
		return nil, err
	}

	comma := rd.opt.Comma
	if comma == 0 {
		comma = Sniff(data)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var b parser.Builder
	for i := 0; ; i++ {
		if err := parser.CheckEvery(ctx, i, 1024); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		b.Add(line, rec)
	}
	return b.Grid("")
}

// ToUTF8 returns data unchanged when it is valid UTF-8 and decodes it from
// Windows-1252 otherwise.
func ToUTF8(data []byte) ([]byte, error) {
	if utf8.Valid(data) {
		return data, nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode windows-1252: %w", err)
	}
	return out, nil
}

// Sniff picks the delimiter that occurs most often outside quotes on the
// first non-blank line.
func Sniff(data []byte) rune {
	line := firstLine(data)
	counts := make(map[rune]int, len(candidates))
	inQuotes := false
	for _, r := range string(line) {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}
	best, bestN := rune(DefaultComma), 0
	for _, c := range candidates {
		if counts[c] > bestN {
			best, bestN = c, counts[c]
		}
	}
	return best
}

func firstLine(data []byte) []byte {
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		var line []byte
		if i < 0 {
			line, data = data, nil
		} else {
			line, data = data[:i], data[i+1:]
		}
		if len(bytes.TrimSpace(line)) > 0 {
			return line
		}
	}
	return nil
}
