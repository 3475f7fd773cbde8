package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/Xunop/bookworm/internal/store"
)

// recordMigration notes that the schema of version has been applied. A
// version already on record keeps its first timestamp.
func (d *DB) recordMigration(ctx context.Context, version string) error {
	stmt := "INSERT INTO `migration_history` (`version`) VALUES (?) ON CONFLICT(`version`) DO NOTHING"
	if _, err := d.DB.ExecContext(ctx, stmt, version); err != nil {
		return errors.Wrapf(err, "failed to record schema version %s", version)
	}
	return nil
}

// isMigrated reports whether version is on record. A database without a
// migration_history table has never been migrated.
func (d *DB) isMigrated(ctx context.Context, version string) (bool, error) {
	exist, err := d.CheckTableExists(ctx, "migration_history")
	if err != nil || !exist {
		return false, err
	}
	var n int
	query := "SELECT COUNT(*) FROM `migration_history` WHERE `version` = ?"
	if err := d.DB.QueryRowContext(ctx, query, version).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListMigrations returns the applied schema versions, newest first.
func (d *DB) ListMigrations(ctx context.Context) ([]*store.MigrationHistory, error) {
	query := "SELECT `version`, `created_ts` FROM `migration_history` ORDER BY `created_ts` DESC, `version` DESC"
	rows, err := d.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*store.MigrationHistory
	for rows.Next() {
		var h store.MigrationHistory
		if err := rows.Scan(&h.Version, &h.CreatedTs); err != nil {
			return nil, err
		}
		list = append(list, &h)
	}
	return list, rows.Err()
}

func (d *DB) CheckTableExists(ctx context.Context, tableName string) (bool, error) {
	query := "SELECT name FROM sqlite_master WHERE type='table' AND name=?"
	var name string
	if err := d.DB.QueryRowContext(ctx, query, tableName).Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
