package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xunop/bookworm/internal/log"
	"github.com/Xunop/bookworm/internal/model"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

const archiveColumns = `
	id,
	name,
	owner,
	content,
	content_root,
	container,
	opf,
	toc,
	title,
	authors,
	author_sort,
	language,
	rights,
	subjects,
	publisher,
	identifier,
	identifier_kind,
	description,
	exploded,
	indexed,
	created_ts`

func (s *Store) AddArchive(archive *model.Archive) (*model.Archive, error) {
	if archive.Name == "" {
		return nil, errors.New("archive name is empty")
	}
	if archive.Owner == "" {
		return nil, errors.New("archive owner is empty")
	}
	if archive.IdentifierKind == "" {
		archive.IdentifierKind = model.IdentifierUnknown
	}
	authors, subjects, err := encodeLists(archive)
	if err != nil {
		return nil, err
	}

	stmt := `
	INSERT INTO archive (
		name, owner, content, content_root, container, opf, toc, title, authors, author_sort,
		language, rights, subjects, publisher, identifier, identifier_kind, description, exploded, indexed
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id, created_ts
	`

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	if err := s.db.QueryRow(stmt,
		archive.Name,
		archive.Owner,
		archive.Content,
		archive.ContentRoot,
		archive.Container,
		archive.OPF,
		archive.TOC,
		archive.Title,
		authors,
		archive.AuthorSort,
		archive.Language,
		archive.Rights,
		subjects,
		archive.Publisher,
		archive.Identifier,
		string(archive.IdentifierKind),
		archive.Description,
		boolToInt(archive.Exploded),
		boolToInt(archive.Indexed),
	).Scan(&archive.ID, &archive.CreatedTs); err != nil {
		return nil, errors.Wrapf(err, "failed to add archive %s", archive.Name)
	}

	log.Debug("Archive added", zap.Int("id", archive.ID), zap.String("name", archive.Name), zap.String("owner", archive.Owner))
	return archive, nil
}

func (s *Store) GetArchive(find *model.FindArchive) (*model.Archive, error) {
	if find.ID != nil {
		if cache, ok := s.ArchiveCache.Load(*find.ID); ok {
			return cache.(*model.Archive), nil
		}
	}

	list, err := s.ListArchives(find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}

	archive := list[0]
	s.ArchiveCache.Store(archive.ID, archive)
	return archive, nil
}

func (s *Store) ListArchives(find *model.FindArchive) ([]*model.Archive, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = ?"), append(args, *v)
	}
	if v := find.Name; v != nil {
		where, args = append(where, "name = ?"), append(args, *v)
	}
	if v := find.Owner; v != nil {
		where, args = append(where, "owner = ?"), append(args, *v)
	}
	if v := find.Indexed; v != nil {
		where, args = append(where, "indexed = ?"), append(args, boolToInt(*v))
	}

	query := `SELECT ` + archiveColumns + `
	FROM archive
	WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`
	if v := find.Limit; v != nil {
		query += fmt.Sprintf(" LIMIT %d", *v)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Error("Failed to query archives", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	list := make([]*model.Archive, 0)
	for rows.Next() {
		archive, err := scanArchive(rows)
		if err != nil {
			log.Error("Failed to scan archive", zap.Error(err))
			return nil, err
		}
		list = append(list, archive)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

// UpdateArchive writes the descriptor fields of archive. The uploaded bytes
// and the owner never change.
func (s *Store) UpdateArchive(archive *model.Archive) (*model.Archive, error) {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	if err := updateArchive(s.db, archive); err != nil {
		return nil, err
	}
	s.ArchiveCache.Delete(archive.ID)
	return archive, nil
}

// RemoveArchive deletes an archive together with its content records and
// its index scopes.
func (s *Store) RemoveArchive(id int) error {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM content WHERE archive_id = ?", id); err != nil {
		return errors.Wrap(err, "failed to delete from content table")
	}
	if _, err := tx.Exec("DELETE FROM archive_index_scope WHERE archive_id = ?", id); err != nil {
		return errors.Wrap(err, "failed to delete from archive_index_scope table")
	}
	res, err := tx.Exec("DELETE FROM archive WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "failed to delete from archive table")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Warn("Attempted to delete an archive that does not exist", zap.Int("id", id))
		return nil
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit archive deletion")
	}

	s.ArchiveCache.Delete(id)
	log.Info("Archive deleted successfully", zap.Int("id", id))
	return nil
}

// MarkIndexed sets the indexed flag of an archive and of the chapters
// listed in chapterIDs. A nil chapterIDs covers every chapter of the
// archive.
func (s *Store) MarkIndexed(archiveID int, chapterIDs []int, indexed bool) error {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE archive SET indexed = ? WHERE id = ?", boolToInt(indexed), archiveID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Errorf("archive %d not found", archiveID)
	}

	if chapterIDs == nil || len(chapterIDs) > 0 {
		stmt := "UPDATE content SET indexed = ? WHERE archive_id = ? AND kind = ?"
		args := []any{boolToInt(indexed), archiveID, string(model.ContentChapter)}
		if chapterIDs != nil {
			stmt += " AND id IN (" + placeholders(len(chapterIDs)) + ")"
			for _, id := range chapterIDs {
				args = append(args, id)
			}
		}
		if _, err := tx.Exec(stmt, args...); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.ArchiveCache.Delete(archiveID)
	return nil
}

func updateArchive(e execer, archive *model.Archive) error {
	authors, subjects, err := encodeLists(archive)
	if err != nil {
		return err
	}
	stmt := `
	UPDATE archive SET
		name = ?,
		content_root = ?,
		container = ?,
		opf = ?,
		toc = ?,
		title = ?,
		authors = ?,
		author_sort = ?,
		language = ?,
		rights = ?,
		subjects = ?,
		publisher = ?,
		identifier = ?,
		identifier_kind = ?,
		description = ?,
		exploded = ?,
		indexed = ?
	WHERE id = ?
	`
	res, err := e.Exec(stmt,
		archive.Name,
		archive.ContentRoot,
		archive.Container,
		archive.OPF,
		archive.TOC,
		archive.Title,
		authors,
		archive.AuthorSort,
		archive.Language,
		archive.Rights,
		subjects,
		archive.Publisher,
		archive.Identifier,
		string(archive.IdentifierKind),
		archive.Description,
		boolToInt(archive.Exploded),
		boolToInt(archive.Indexed),
		archive.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update archive %d", archive.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Errorf("archive %d not found", archive.ID)
	}
	return nil
}

func scanArchive(row scanner) (*model.Archive, error) {
	var (
		archive           model.Archive
		authors           string
		subjects          string
		identifierKind    string
		exploded, indexed int
	)
	if err := row.Scan(
		&archive.ID,
		&archive.Name,
		&archive.Owner,
		&archive.Content,
		&archive.ContentRoot,
		&archive.Container,
		&archive.OPF,
		&archive.TOC,
		&archive.Title,
		&authors,
		&archive.AuthorSort,
		&archive.Language,
		&archive.Rights,
		&subjects,
		&archive.Publisher,
		&archive.Identifier,
		&identifierKind,
		&archive.Description,
		&exploded,
		&indexed,
		&archive.CreatedTs,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(authors), &archive.Authors); err != nil {
		return nil, errors.Wrapf(err, "archive %d has malformed authors", archive.ID)
	}
	if err := json.Unmarshal([]byte(subjects), &archive.Subjects); err != nil {
		return nil, errors.Wrapf(err, "archive %d has malformed subjects", archive.ID)
	}
	archive.IdentifierKind = model.IdentifierKind(identifierKind)
	archive.Exploded = exploded != 0
	archive.Indexed = indexed != 0
	return &archive, nil
}

func encodeLists(archive *model.Archive) (string, string, error) {
	authors, err := json.Marshal(nonNil(archive.Authors))
	if err != nil {
		return "", "", err
	}
	subjects, err := json.Marshal(nonNil(archive.Subjects))
	if err != nil {
		return "", "", err
	}
	return string(authors), string(subjects), nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
