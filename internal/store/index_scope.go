package store

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xunop/bookworm/internal/log"
)

// An index scope records that an archive was added to a user's index, so
// removing the archive can reach every index that holds it.

func (s *Store) AddIndexScopes(archiveID int, usernames []string) error {
	if len(usernames) == 0 {
		return nil
	}
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, username := range usernames {
		if _, err := tx.Exec(
			"INSERT INTO archive_index_scope (archive_id, username) VALUES (?, ?) ON CONFLICT(archive_id, username) DO NOTHING",
			archiveID, username,
		); err != nil {
			return errors.Wrapf(err, "failed to add index scope %s to archive %d", username, archiveID)
		}
	}
	return tx.Commit()
}

// ListIndexScopes returns the users whose index holds the archive, sorted
// by name.
func (s *Store) ListIndexScopes(archiveID int) ([]string, error) {
	rows, err := s.db.Query("SELECT username FROM archive_index_scope WHERE archive_id = ? ORDER BY username", archiveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, err
		}
		usernames = append(usernames, username)
	}
	return usernames, rows.Err()
}

func (s *Store) RemoveIndexScopes(archiveID int, usernames []string) error {
	if len(usernames) == 0 {
		return nil
	}
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	args := []any{archiveID}
	for _, username := range usernames {
		args = append(args, username)
	}
	stmt := "DELETE FROM archive_index_scope WHERE archive_id = ? AND username IN (" + placeholders(len(usernames)) + ")"
	if _, err := s.db.Exec(stmt, args...); err != nil {
		return errors.Wrapf(err, "failed to remove index scopes of archive %d", archiveID)
	}
	return nil
}

// RemoveUserIndexScopes forgets every archive held by a user's index.
func (s *Store) RemoveUserIndexScopes(username string) error {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	res, err := s.db.Exec("DELETE FROM archive_index_scope WHERE username = ?", username)
	if err != nil {
		return errors.Wrapf(err, "failed to remove index scopes of user %s", username)
	}
	n, _ := res.RowsAffected()
	log.Debug("Index scopes removed", zap.String("username", username), zap.Int64("count", n))
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
