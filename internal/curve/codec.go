package curve

import (
	"encoding/json"
	"os"
	"path/filepath"

	"codeberg.org/mutker/undervoltctl/internal/errors"
	"github.com/tidwall/pretty"
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

// Marshal encodes the curve in its record form.
func (c *Curve) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// MarshalIndent encodes the curve for humans.
func (c *Curve) MarshalIndent() ([]byte, error) {
	raw, err := c.Marshal()
	if err != nil {
		return nil, err
	}

	return pretty.Pretty(raw), nil
}

// Unmarshal decodes and validates a curve record. Corrupt data is rejected,
// never repaired.
func Unmarshal(data []byte) (*Curve, error) {
	errFactory := errors.New()

	var c Curve
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errFactory.Wrap(ErrDecode, err)
	}
	if len(c.WizardConfig) == 0 || string(c.WizardConfig) == "null" {
		c.WizardConfig = emptyConfig()
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// SaveFile writes the curve as indented JSON, creating parent directories.
func (c *Curve) SaveFile(path string) error {
	errFactory := errors.New()

	data, err := c.MarshalIndent()
	if err != nil {
		return errFactory.Wrap(ErrDecode, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerm); err != nil {
		return errFactory.Wrap(ErrFileAccess, err)
	}

	if err := os.WriteFile(path, data, defaultFilePerm); err != nil {
		return errFactory.Wrap(ErrFileAccess, err)
	}

	return nil
}

// LoadFile reads and validates a curve written by SaveFile.
func LoadFile(path string) (*Curve, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New().Wrap(ErrFileAccess, err)
	}

	return Unmarshal(data)
}
