// Package file implements the local filesystem data source used for the
// balances and redemptions inputs.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local opens one file from disk. It is safe for concurrent use.
type Local struct{ path string }

// NewLocal binds a Local to path. Nothing is touched until Open or Size.
func NewLocal(path string) *Local { return &Local{path: path} }

// Name returns the path the source was created with.
func (l *Local) Name() string { return l.path }

// Size stats the file without opening it.
func (l *Local) Size() (int64, error) {
	fi, err := os.Stat(l.path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", l.path, err)
	}
	return fi.Size(), nil
}

// Open returns the file as an io.ReadCloser. A context that is already done
// short-circuits before the filesystem is touched. Filesystem errors keep
// their identity for errors.Is (os.ErrNotExist, os.ErrPermission).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}
