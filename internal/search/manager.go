package search

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xunop/bookworm/internal/lockfile"
	"github.com/Xunop/bookworm/internal/log"
	"github.com/Xunop/bookworm/internal/util"
)

// Manager owns the index databases under one root:
//
//	root/<username>/index.db            every book of the user
//	root/<username>/<book_id>/index.db  one book
//
// A book's documents are always also in its user's database.
type Manager struct {
	root string
}

func NewManager(root string) *Manager {
	return &Manager{root: root}
}

func (m *Manager) Root() string {
	return m.root
}

// UserDatabasePath is the directory of the user's database.
func (m *Manager) UserDatabasePath(username string) string {
	return filepath.Join(m.root, username)
}

// BookDatabasePath is the directory of one book's database.
func (m *Manager) BookDatabasePath(username string, bookID int) string {
	return filepath.Join(m.root, username, strconv.Itoa(bookID))
}

func (m *Manager) checkUser(username string) error {
	if !util.ValidUsername(username) {
		return &IndexingError{Op: "resolve", Path: username, Err: errors.New("invalid username")}
	}
	return nil
}

// CreateUserDatabase opens the user's database for writing, creating it
// when missing.
func (m *Manager) CreateUserDatabase(username string) (*Database, error) {
	if err := m.checkUser(username); err != nil {
		return nil, err
	}
	return openDatabase(m.UserDatabasePath(username), true)
}

// CreateBookDatabase opens a book's database for writing. The user
// directory is created first.
func (m *Manager) CreateBookDatabase(username string, bookID int) (*Database, error) {
	if err := m.checkUser(username); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(m.UserDatabasePath(username), 0755); err != nil {
		return nil, &IndexingError{Op: "create", Path: m.UserDatabasePath(username), Err: err}
	}
	return openDatabase(m.BookDatabasePath(username, bookID), true)
}

// OpenReadOnly opens the user's database, or the book's one when bookID is
// set, for searching. A missing database is created empty.
func (m *Manager) OpenReadOnly(username string, bookID *int) (*Database, error) {
	if err := m.checkUser(username); err != nil {
		return nil, err
	}
	if bookID != nil {
		return openDatabase(m.BookDatabasePath(username, *bookID), false)
	}
	return openDatabase(m.UserDatabasePath(username), false)
}

// DeleteUserDatabase removes the user's directory, book databases
// included.
func (m *Manager) DeleteUserDatabase(username string) error {
	if err := m.checkUser(username); err != nil {
		return err
	}
	return removeDatabase(m.UserDatabasePath(username))
}

// DeleteBookDatabase removes a book's directory. A missing database is only
// worth a warning.
func (m *Manager) DeleteBookDatabase(username string, bookID int) error {
	if err := m.checkUser(username); err != nil {
		return err
	}
	dir := m.BookDatabasePath(username, bookID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		log.Warn("Book database does not exist", zap.String("db", dir), zap.Int("book_id", bookID))
		return nil
	}
	return removeDatabase(dir)
}

// DeleteBookDocuments removes a book's chapters from the user database, so
// the user scope stops returning them once the book database is gone.
func (m *Manager) DeleteBookDocuments(username string, bookID int, chapterIDs []int) error {
	if err := m.checkUser(username); err != nil {
		return err
	}
	dir := m.UserDatabasePath(username)
	if _, err := os.Stat(filepath.Join(dir, databaseFile)); os.IsNotExist(err) {
		return nil
	}
	db, err := openDatabase(dir, true)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.DeleteDocuments(bookID, chapterIDs); err != nil {
		return &IndexingError{Op: "delete documents", Path: dir, Err: err}
	}
	return nil
}

// removeDatabase deletes dir while holding its writer lock, so a running
// writer is never pulled out from under.
func removeDatabase(dir string) error {
	lock, err := lockfile.TryLock(filepath.Join(dir, writerLock))
	if errors.Is(err, lockfile.ErrLocked) {
		return errors.Wrap(ErrDatabaseLocked, dir)
	}
	if err != nil {
		return &IndexingError{Op: "delete", Path: dir, Err: err}
	}
	defer lock.Unlock()

	if err := os.RemoveAll(dir); err != nil {
		return &IndexingError{Op: "delete", Path: dir, Err: err}
	}
	log.Debug("Index database deleted", zap.String("db", dir))
	return nil
}
