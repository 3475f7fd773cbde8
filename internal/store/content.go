package store

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xunop/bookworm/internal/log"
	"github.com/Xunop/bookworm/internal/model"
)

// ReplaceContent stores the descriptor of archive and swaps its content
// records for records in a single transaction, so an archive is never left
// half exploded. The records get their ids assigned in place.
func (s *Store) ReplaceContent(archive *model.Archive, records []*model.ContentRecord) ([]*model.ContentRecord, error) {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := updateArchive(tx, archive); err != nil {
		return nil, err
	}
	if _, err := tx.Exec("DELETE FROM content WHERE archive_id = ?", archive.ID); err != nil {
		return nil, errors.Wrap(err, "failed to delete previous content")
	}

	stmt := `
	INSERT INTO content (archive_id, filename, kind, media_type, text, data, title, sort_order, indexed)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id
	`
	for _, record := range records {
		record.ArchiveID = archive.ID
		if err := tx.QueryRow(stmt,
			record.ArchiveID,
			record.Filename,
			string(record.Kind),
			record.MediaType,
			record.Text,
			record.Data,
			record.Title,
			record.Order,
			boolToInt(record.Indexed),
		).Scan(&record.ID); err != nil {
			return nil, errors.Wrapf(err, "failed to insert content %s", record.Filename)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit content")
	}
	s.ArchiveCache.Delete(archive.ID)

	log.Debug("Content replaced", zap.Int("archive_id", archive.ID), zap.Int("records", len(records)))
	return records, nil
}

func (s *Store) DeleteContent(archiveID int) error {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	if _, err := s.db.Exec("DELETE FROM content WHERE archive_id = ?", archiveID); err != nil {
		return errors.Wrapf(err, "failed to delete content of archive %d", archiveID)
	}
	return nil
}

func (s *Store) GetContent(id int) (*model.ContentRecord, error) {
	list, err := s.ListContent(&model.FindContent{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListContent returns matching records in the order they were exploded:
// spine order for chapters, then stylesheets and images.
func (s *Store) ListContent(find *model.FindContent) ([]*model.ContentRecord, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = ?"), append(args, *v)
	}
	if v := find.ArchiveID; v != nil {
		where, args = append(where, "archive_id = ?"), append(args, *v)
	}
	if v := find.Kind; v != nil {
		where, args = append(where, "kind = ?"), append(args, string(*v))
	}
	if v := find.Filename; v != nil {
		where, args = append(where, "filename = ?"), append(args, *v)
	}

	query := `
	SELECT
		id,
		archive_id,
		filename,
		kind,
		media_type,
		text,
		data,
		title,
		sort_order,
		indexed
	FROM content
	WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Error("Failed to query content", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	list := make([]*model.ContentRecord, 0)
	for rows.Next() {
		var (
			record  model.ContentRecord
			kind    string
			indexed int
		)
		if err := rows.Scan(
			&record.ID,
			&record.ArchiveID,
			&record.Filename,
			&kind,
			&record.MediaType,
			&record.Text,
			&record.Data,
			&record.Title,
			&record.Order,
			&indexed,
		); err != nil {
			log.Error("Failed to scan content", zap.Error(err))
			return nil, err
		}
		record.Kind = model.ContentKind(kind)
		record.Indexed = indexed != 0
		list = append(list, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
