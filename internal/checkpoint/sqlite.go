package checkpoint

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"codeberg.org/mutker/undervoltctl/internal/curve"
	"codeberg.org/mutker/undervoltctl/internal/errors"
	"codeberg.org/mutker/undervoltctl/internal/logger"
	"codeberg.org/mutker/undervoltctl/internal/storage"
)

// SchemaVersion is bumped on breaking changes to the checkpoint table.
const SchemaVersion = 1

var schema = storage.Schema{
	Name:    "checkpoints",
	Version: SchemaVersion,
	Tables:  []string{"checkpoints"},
	CreateSQL: `
	CREATE TABLE IF NOT EXISTS checkpoints (
	    core_id     INTEGER PRIMARY KEY CHECK (typeof(core_id) = 'integer'),
	    points      INTEGER NOT NULL CHECK (points > 0),
	    curve       TEXT NOT NULL,
	    updated_at  INTEGER NOT NULL
	);`,
}

const (
	upsertCheckpointSQL = `
    INSERT INTO checkpoints (core_id, points, curve, updated_at)
    VALUES (?, ?, ?, ?)
    ON CONFLICT(core_id) DO UPDATE SET
        points = excluded.points,
        curve = excluded.curve,
        updated_at = excluded.updated_at`

	selectCheckpointSQL = `SELECT curve FROM checkpoints WHERE core_id = ?`
	deleteCheckpointSQL = `DELETE FROM checkpoints WHERE core_id = ?`
)

// SQLiteStore keeps checkpoints for all cores in one database.
type SQLiteStore struct {
	db  *sql.DB
	log logger.Logger
	mu  sync.Mutex
}

func NewSQLiteStore(path string, log logger.Logger) (*SQLiteStore, error) {
	db, err := storage.Open(path, schema, "", log)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("path", path).
		Int("schema_version", SchemaVersion).
		Msg("Checkpoint database initialized")

	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, coreID int) (*curve.Curve, error) {
	var data string
	err := s.db.QueryRowContext(ctx, selectCheckpointSQL, coreID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}

	c, err := curve.Unmarshal([]byte(data))
	if err != nil {
		return nil, errors.New().Wrap(ErrCorrupt, err)
	}

	return c, nil
}

func (s *SQLiteStore) Save(ctx context.Context, c *curve.Curve) error {
	errFactory := errors.New()

	if err := c.Validate(); err != nil {
		return errFactory.Wrap(ErrInvalidCurve, err)
	}

	data, err := c.Marshal()
	if err != nil {
		return errFactory.Wrap(ErrInvalidCurve, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, upsertCheckpointSQL,
		c.CoreID, len(c.Points), string(data), time.Now().Unix()); err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, coreID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, deleteCheckpointSQL, coreID); err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return storage.Close(s.db)
}
