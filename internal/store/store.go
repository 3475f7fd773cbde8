package store // import "github.com/Xunop/bookworm/internal/store"

import (
	"database/sql"
	"sync"
)

type Store struct {
	db           *sql.DB    // db holds archives and their exploded content
	dbLock       sync.Mutex // dbLock serializes writes to db
	ArchiveCache sync.Map   // map[int]*model.Archive
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db: db,
	}
}

func (s *Store) DBStats() sql.DBStats {
	return s.db.Stats()
}

func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) Close() error {
	return s.db.Close()
}
