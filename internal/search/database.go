package search

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xunop/bookworm/internal/lockfile"
	"github.com/Xunop/bookworm/internal/log"
)

const (
	databaseFile = "index.db"
	writerLock   = "writer.lock"
)

// IndexedDocument is what the index stores for one chapter. ID is the
// chapter id, so writing the same chapter again replaces it.
type IndexedDocument struct {
	ID              int    `json:"id"`
	Data            string `json:"data"`
	BookID          int    `json:"book_id"`
	BookTitle       string `json:"book_title"`
	ChapterID       int    `json:"chapter_id"`
	ChapterFilename string `json:"chapter_filename"`
	ChapterTitle    string `json:"chapter_title"`
	Namespace       string `json:"namespace"`
	AuthorName      string `json:"author_name"`
	Language        string `json:"language"`
}

// Database is one inverted index on disk. Writable databases hold the
// directory's writer lock until Close.
type Database struct {
	Dir  string
	db   *sql.DB
	lock *lockfile.Lock
}

// openDatabase opens or creates the index in dir. A writable open fails
// fast with ErrDatabaseLocked when another writer holds the lock.
func openDatabase(dir string, writable bool) (*Database, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &IndexingError{Op: "create", Path: dir, Err: err}
	}

	d := &Database{Dir: dir}
	if writable {
		lock, err := lockfile.TryLock(filepath.Join(dir, writerLock))
		if errors.Is(err, lockfile.ErrLocked) {
			return nil, errors.Wrap(ErrDatabaseLocked, dir)
		}
		if err != nil {
			return nil, &IndexingError{Op: "lock", Path: dir, Err: err}
		}
		d.lock = lock
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, databaseFile)+"?_busy_timeout=5000")
	if err != nil {
		d.release()
		return nil, &IndexingError{Op: "open", Path: dir, Err: err}
	}
	d.db = db
	if writable {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		d.Close()
		return nil, &IndexingError{Op: "open", Path: dir, Err: errors.Wrap(err, "enable WAL")}
	}
	if _, err := db.Exec(schema); err != nil {
		d.Close()
		return nil, &IndexingError{Op: "create", Path: dir, Err: errors.Wrap(err, "init schema")}
	}
	return d, nil
}

func (d *Database) Writable() bool {
	return d.lock != nil
}

func (d *Database) Close() error {
	var err error
	if d.db != nil {
		err = d.db.Close()
		d.db = nil
	}
	d.release()
	return err
}

func (d *Database) release() {
	if d.lock != nil {
		d.lock.Unlock()
		d.lock = nil
	}
}

// Replace stores doc, removing any previous postings for the same id, in a
// single transaction.
func (d *Database) Replace(doc IndexedDocument, stemmer Stemmer) error {
	if !d.Writable() {
		return errors.Errorf("search: %s opened read-only", d.Dir)
	}
	terms, length := termPositions(doc.Data, stemmer)

	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM postings WHERE doc_id = ?", doc.ID); err != nil {
		return errors.Wrap(err, "failed to delete old postings")
	}
	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO documents (
			doc_id, data, book_id, book_title, chapter_id, chapter_filename,
			chapter_title, namespace, author_name, language, doc_length
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Data, doc.BookID, doc.BookTitle, doc.ChapterID, doc.ChapterFilename,
		doc.ChapterTitle, doc.Namespace, doc.AuthorName, doc.Language, length,
	); err != nil {
		return errors.Wrap(err, "failed to save document")
	}

	getTermStmt, err := tx.Prepare("SELECT term_id FROM terms WHERE term = ?")
	if err != nil {
		return err
	}
	defer getTermStmt.Close()

	insertTermStmt, err := tx.Prepare("INSERT INTO terms (term) VALUES (?)")
	if err != nil {
		return err
	}
	defer insertTermStmt.Close()

	insertPostingStmt, err := tx.Prepare("INSERT INTO postings (term_id, doc_id, term_frequency, positions) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer insertPostingStmt.Close()

	for term, positions := range terms {
		var termID int64
		err := getTermStmt.QueryRow(term).Scan(&termID)
		if err == sql.ErrNoRows {
			result, err := insertTermStmt.Exec(term)
			if err != nil {
				return errors.Wrapf(err, "failed to insert term %q", term)
			}
			if termID, err = result.LastInsertId(); err != nil {
				return err
			}
		} else if err != nil {
			return errors.Wrapf(err, "failed to query term %q", term)
		}

		if _, err := insertPostingStmt.Exec(termID, doc.ID, len(positions), encodePositions(positions)); err != nil {
			return errors.Wrapf(err, "failed to insert posting for term %q", term)
		}
	}

	return tx.Commit()
}

// DeleteDocuments removes documents by id and any belonging to bookID
// (ignored when <= 0).
func (d *Database) DeleteDocuments(bookID int, ids []int) error {
	if !d.Writable() {
		return errors.Errorf("search: %s opened read-only", d.Dir)
	}
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if bookID > 0 {
		if _, err := tx.Exec("DELETE FROM postings WHERE doc_id IN (SELECT doc_id FROM documents WHERE book_id = ?)", bookID); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM documents WHERE book_id = ?", bookID); err != nil {
			return err
		}
	}
	for _, id := range ids {
		if _, err := tx.Exec("DELETE FROM postings WHERE doc_id = ?", id); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM documents WHERE doc_id = ?", id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Count returns the number of stored documents.
func (d *Database) Count(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n)
	return n, err
}

// Document loads a stored document; nil when absent.
func (d *Database) Document(ctx context.Context, id int) (*IndexedDocument, error) {
	docs, err := d.documents(ctx, []int{id})
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[id], nil
}

func (d *Database) documents(ctx context.Context, ids []int) (map[int]*IndexedDocument, error) {
	docs := make(map[int]*IndexedDocument, len(ids))
	if len(ids) == 0 {
		return docs, nil
	}
	query := `
		SELECT doc_id, data, book_id, book_title, chapter_id, chapter_filename,
			chapter_title, namespace, author_name, language
		FROM documents WHERE doc_id IN (` + placeholders(len(ids)) + `)`
	rows, err := d.db.QueryContext(ctx, query, intArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var doc IndexedDocument
		if err := rows.Scan(
			&doc.ID, &doc.Data, &doc.BookID, &doc.BookTitle, &doc.ChapterID, &doc.ChapterFilename,
			&doc.ChapterTitle, &doc.Namespace, &doc.AuthorName, &doc.Language,
		); err != nil {
			return nil, err
		}
		docs[doc.ID] = &doc
	}
	return docs, rows.Err()
}

// posting is one term's occurrences in one document.
type posting struct {
	docID     int
	frequency int
	positions []int
}

// postings returns the postings of term keyed by document, and the term's
// document frequency.
func (d *Database) postings(ctx context.Context, term string) (map[int]posting, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT p.doc_id, p.term_frequency, p.positions
		FROM postings p JOIN terms t ON t.term_id = p.term_id
		WHERE t.term = ?`, term)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]posting)
	for rows.Next() {
		var p posting
		var positions string
		if err := rows.Scan(&p.docID, &p.frequency, &positions); err != nil {
			return nil, err
		}
		p.positions = decodePositions(positions)
		out[p.docID] = p
	}
	return out, rows.Err()
}

type collectionStats struct {
	documents int
	avgLength float64
}

func (d *Database) stats(ctx context.Context) (collectionStats, error) {
	var s collectionStats
	var avg sql.NullFloat64
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*), AVG(doc_length) FROM documents").Scan(&s.documents, &avg); err != nil {
		return s, err
	}
	s.avgLength = avg.Float64
	return s, nil
}

func (d *Database) docLengths(ctx context.Context, ids []int) (map[int]int, error) {
	lengths := make(map[int]int, len(ids))
	if len(ids) == 0 {
		return lengths, nil
	}
	rows, err := d.db.QueryContext(ctx,
		"SELECT doc_id, doc_length FROM documents WHERE doc_id IN ("+placeholders(len(ids))+")", intArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		lengths[id] = n
	}
	return lengths, rows.Err()
}

// IndexDocument writes doc into every database of the set. Writing the
// same chapter twice, or into a set that names a database twice, leaves one
// document per database.
func IndexDocument(dbs []*Database, doc IndexedDocument, stemmer Stemmer) error {
	for _, d := range dbs {
		if err := d.Replace(doc, stemmer); err != nil {
			log.Error("Failed to index document", zap.Int("chapter_id", doc.ID), zap.String("db", d.Dir), zap.Error(err))
			return errors.Wrapf(err, "index chapter %d into %s", doc.ID, d.Dir)
		}
	}
	return nil
}

func encodePositions(positions []int) string {
	parts := make([]string, len(positions))
	for i, p := range positions {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, " ")
}

func decodePositions(s string) []int {
	fields := strings.Fields(s)
	positions := make([]int, 0, len(fields))
	for _, f := range fields {
		if p, err := strconv.Atoi(f); err == nil {
			positions = append(positions, p)
		}
	}
	sort.Ints(positions)
	return positions
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func intArgs(ids []int) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
