package pid_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"codeberg.org/mutker/undervoltctl/internal/errors"
	"codeberg.org/mutker/undervoltctl/internal/pid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "undervoltctl.pid")

	require.NoError(t, pid.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, pid.Remove(path))
	assert.NoFileExists(t, path)

	// removing twice is fine
	require.NoError(t, pid.Remove(path))
}

func TestWriteRejectsLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "undervoltctl.pid")
	// the parent of the test binary is alive for the duration of the test
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getppid())), 0o600))

	err := pid.Write(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))
}

func TestWriteOwnPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "undervoltctl.pid")
	require.NoError(t, pid.Write(path))
	require.NoError(t, pid.Write(path))
}

func TestWriteCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "undervoltctl.pid")
	require.NoError(t, os.WriteFile(path, []byte("not a pid"), 0o600))

	err := pid.Write(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInternal))
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, "undervoltctl.pid", filepath.Base(pid.DefaultPath()))
}
