package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"codeberg.org/mutker/undervoltctl/internal/curve"
	"codeberg.org/mutker/undervoltctl/internal/errors"
	"codeberg.org/mutker/undervoltctl/internal/logger"
)

// FileStore keeps each core's checkpoint as an indented JSON file.
type FileStore struct {
	dir string
	log logger.Logger
}

func NewFileStore(dir string, log logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}

	return &FileStore{dir: dir, log: log}, nil
}

// Path returns the checkpoint file for coreID.
func (s *FileStore) Path(coreID int) string {
	return filepath.Join(s.dir, fmt.Sprintf("core%d.json", coreID))
}

func (s *FileStore) Load(_ context.Context, coreID int) (*curve.Curve, error) {
	data, err := os.ReadFile(s.Path(coreID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}

	c, err := curve.Unmarshal(data)
	if err != nil {
		return nil, errors.New().Wrap(ErrCorrupt, err)
	}

	return c, nil
}

// Save replaces the checkpoint atomically.
func (s *FileStore) Save(_ context.Context, c *curve.Curve) error {
	errFactory := errors.New()

	if err := c.Validate(); err != nil {
		return errFactory.Wrap(ErrInvalidCurve, err)
	}

	data, err := c.MarshalIndent()
	if err != nil {
		return errFactory.Wrap(ErrInvalidCurve, err)
	}

	path := s.Path(c.CoreID)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errFactory.Wrap(ErrStorageAccess, err)
	}
	if err := tmp.Close(); err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}
	if err := os.Chmod(tmp.Name(), defaultFilePerm); err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	s.log.Debug().Str("path", path).Int("points", len(c.Points)).Msg("Checkpoint written")

	return nil
}

func (s *FileStore) Delete(_ context.Context, coreID int) error {
	err := os.Remove(s.Path(coreID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (*FileStore) Close() error { return nil }
