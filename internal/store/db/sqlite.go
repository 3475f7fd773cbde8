package db // import "github.com/Xunop/bookworm/internal/store/db"

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Xunop/bookworm/internal/log"
)

// SchemaVersion is recorded in migration_history once LATEST_SCHEMA.sql
// has been applied. LATEST_SCHEMA.sql only creates what is missing, so a
// database on an older version is brought up to date by applying it again.
const SchemaVersion = "0.2.0"

const latestSchemaFileName = "LATEST_SCHEMA.sql"

type DB struct {
	*sql.DB
	dsn string
}

//go:embed migration
var migrationFS embed.FS

func NewDB(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("Database URL is required")
	}
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "failed to create database directory %s", dir)
		}
	}

	d, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Writes are serialized by the store; one connection keeps sqlite from
	// returning SQLITE_BUSY to concurrent workers.
	d.SetMaxOpenConns(1)

	return &DB{d, dsn}, nil
}

func (d *DB) Close() error {
	return d.DB.Close()
}

// Migrate applies the latest schema unless migration_history already
// records the current version.
func (d *DB) Migrate(ctx context.Context) error {
	done, err := d.isMigrated(ctx, SchemaVersion)
	if err != nil {
		return errors.Wrap(err, "failed to read migration history")
	}
	if done {
		log.Debug("Database schema is up to date", zap.String("version", SchemaVersion))
		return nil
	}

	if err := d.applyLatestSchema(ctx); err != nil {
		return errors.Wrap(err, "failed to apply latest schema")
	}
	if err := d.recordMigration(ctx, SchemaVersion); err != nil {
		return err
	}
	log.Info("Database migrated", zap.String("dsn", d.dsn), zap.String("version", SchemaVersion))
	return nil
}

func (d *DB) applyLatestSchema(ctx context.Context) error {
	latestSchemaPath := fmt.Sprintf("migration/%s", latestSchemaFileName)
	buf, err := migrationFS.ReadFile(latestSchemaPath)
	if err != nil {
		return errors.Wrapf(err, "failed to read latest schema file: %q", latestSchemaPath)
	}

	stmt := string(buf)
	if err := d.execute(ctx, stmt); err != nil {
		return errors.Wrapf(err, "failed to apply latest schema: %s", stmt)
	}
	return nil
}

// execute runs a single SQL statement within a transaction.
func (d *DB) execute(ctx context.Context, stmt string) error {
	tx, err := d.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, "failed to execute statement")
	}

	return tx.Commit()
}
