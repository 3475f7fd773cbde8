// Package storage keeps the uploaded archive bytes outside the record
// database, on the local disk or in an S3 bucket.
package storage // import "github.com/Xunop/bookworm/internal/storage"

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("object not found")

type Adapter interface {
	// Put stores data under key, replacing what was there
	Put(ctx context.Context, key string, data io.Reader) error
	// Get returns the data stored under key or ErrNotFound
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes key; a missing key is not an error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ArchiveKey is where an uploaded archive lives: <owner>/books/<name>.
func ArchiveKey(owner, name string) string {
	return path.Join(owner, "books", path.Base(strings.ReplaceAll(name, "\\", "/")))
}

// ReadAll fetches the whole object stored under key.
func ReadAll(ctx context.Context, a Adapter, key string) ([]byte, error) {
	r, err := a.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
