// Package datasource abstracts where ETL inputs come from.
package datasource

import (
	"bytes"
	"context"
	"io"
)

// Source yields a readable stream for one input file. Name is the file name
// (or path) used to choose a format by extension and to label log lines.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Bytes is an in-memory Source, used for uploads and tests.
type Bytes struct {
	Filename string
	Data     []byte
}

// Name returns the configured file name.
func (b Bytes) Name() string { return b.Filename }

// Open returns a reader over a copy-free view of Data.
func (b Bytes) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}
