package search

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrIndexing matches every *IndexingError.
	ErrIndexing = errors.New("search: indexing failed")
	// ErrDatabaseLocked means another writer holds the database. Batch jobs
	// skip the archive and retry on the next run.
	ErrDatabaseLocked = errors.New("search: database locked by another writer")
)

// IndexingError is a failure to create, open or delete an index database.
type IndexingError struct {
	Op   string
	Path string
	Err  error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("search: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IndexingError) Is(target error) bool {
	return target == ErrIndexing
}

func (e *IndexingError) Unwrap() error {
	return e.Err
}
