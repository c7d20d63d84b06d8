// Package storage opens the sqlite databases used for checkpoints and the
// stability test log, keeping their schemas versioned.
package storage

import (
	"database/sql"
	"os"
	"path/filepath"

	"codeberg.org/mutker/undervoltctl/internal/errors"
	"codeberg.org/mutker/undervoltctl/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

const defaultDirPerm = 0o755

// Open opens (creating if needed) the sqlite database at path and brings its
// schema to the current version. Outdated databases are backed up into
// backupDir, or a "backups" directory next to path when backupDir is empty.
func Open(path string, schema Schema, backupDir string, log logger.Logger) (*sql.DB, error) {
	errFactory := errors.New()

	if path == "" {
		return nil, errFactory.New(ErrInvalidPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  path,
			Error: err.Error(),
		})
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if backupDir == "" {
		backupDir = filepath.Join(filepath.Dir(path), "backups")
	}

	if err := migrate(db, schema, backupDir, log); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	log.Debug().
		Str("path", path).
		Str("schema", schema.Name).
		Int("schema_version", schema.Version).
		Msg("Database opened")

	return db, nil
}

// Close checkpoints the WAL and closes db.
func Close(db *sql.DB) error {
	errFactory := errors.New()

	if _, err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		db.Close()
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	return nil
}
