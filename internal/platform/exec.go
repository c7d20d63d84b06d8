package platform

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"codeberg.org/mutker/undervoltctl/internal/errors"
)

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

type execRunner struct{}

// ExecRunner runs commands with os/exec.
func ExecRunner() Runner { return execRunner{} }

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(err, exec.ErrNotFound) {
		return "", "", errors.New().WithData(ErrCommandNotFound, name)
	}

	return stdout.String(), strings.TrimSpace(stderr.String()), err
}
