package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// CopyFn bulk-inserts rows aligned to columns and returns how many it wrote.
// The rows slice is reused once it returns.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// BatchStats summarizes one CopyBatches call.
type BatchStats struct {
	Rows    int64
	Batches int64
}

// CopyBatches drains in into batches of size rows and hands each to copyFn.
// A failed batch stops the drain; the error names the table and the input
// offset of the batch's first row. Rows counts what copyFn reported.
func CopyBatches(ctx context.Context, table string, columns []string, in <-chan []any, size int, copyFn CopyFn) (BatchStats, error) {
	var st BatchStats
	if size <= 0 {
		return st, fmt.Errorf("%s: batch size must be positive, got %d", table, size)
	}
	if copyFn == nil {
		return st, fmt.Errorf("%s: no copy function", table)
	}

	var (
		start  = time.Now()
		offset int64
		batch  = make([][]any, 0, size)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		st.Rows += n
		if err != nil {
			return fmt.Errorf("%s: batch %d at row %d: %w", table, st.Batches+1, offset, err)
		}
		st.Batches++
		offset += int64(len(batch))
		batch = batch[:0]
		log.Debug("copied batch", "table", table, "batch", st.Batches, "rows", n, "total", st.Rows)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return st, err
				}
				log.Debug("copied table", "table", table, "rows", st.Rows, "batches", st.Batches,
					"elapsed", time.Since(start).Truncate(time.Millisecond))
				return st, nil
			}
			batch = append(batch, row)
			if len(batch) == size {
				if err := flush(); err != nil {
					return st, err
				}
			}
		}
	}
}
