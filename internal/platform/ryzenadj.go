package platform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codeberg.org/mutker/undervoltctl/internal/errors"
	"codeberg.org/mutker/undervoltctl/internal/logger"
)

const (
	coperCoreShift  = 0x100000
	coperValueMask  = 0xFFFFF
	ryzenadjTimeout = 10 * time.Second
	defaultRyzenadj = "ryzenadj"
)

// Ryzenadj applies per-core curve optimizer offsets through the ryzenadj
// command line tool.
type Ryzenadj struct {
	path   string
	sudo   bool
	runner Runner
	log    logger.Logger
}

func NewRyzenadj(path string, sudo bool, runner Runner, log logger.Logger) *Ryzenadj {
	if path == "" {
		path = defaultRyzenadj
	}
	return &Ryzenadj{path: path, sudo: sudo, runner: runner, log: log}
}

// CoperValue encodes a core index and offset the way --set-coper expects.
func CoperValue(core, offset int) string {
	return fmt.Sprintf("0X%X", core*coperCoreShift+(offset&coperValueMask))
}

func (r *Ryzenadj) command(core, offset int) (string, []string) {
	arg := "--set-coper=" + CoperValue(core, offset)
	if r.sudo {
		return "sudo", []string{r.path, arg}
	}
	return r.path, []string{arg}
}

// ApplyOffsets sets the offset of each of the four cores in order and stops
// at the first failure.
func (r *Ryzenadj) ApplyOffsets(ctx context.Context, offsets [4]int) error {
	errFactory := errors.New()

	for core, offset := range offsets {
		if offset < -100 || offset > 0 {
			return errFactory.WithData(ErrInvalidOffsets, offsets)
		}

		cmdCtx, cancel := context.WithTimeout(ctx, ryzenadjTimeout)
		name, args := r.command(core, offset)
		_, stderr, err := r.runner.Run(cmdCtx, name, args...)
		cancel()

		if err != nil {
			msg := stderr
			if msg == "" {
				msg = err.Error()
			}
			return errFactory.WithData(ErrVoltageApplyFailed, struct {
				Core  int
				Error string
			}{core, msg})
		}

		// ryzenadj exits 0 on some failures and only reports them on stderr
		if lower := strings.ToLower(stderr); strings.Contains(lower, "error") || strings.Contains(lower, "fail") {
			return errFactory.WithData(ErrVoltageApplyFailed, struct {
				Core  int
				Error string
			}{core, stderr})
		} else if stderr != "" {
			r.log.Warn().Int("core", core).Str("stderr", stderr).Msg("ryzenadj reported warnings")
		}
	}

	r.log.Debug().Ints("offsets", offsets[:]).Msg("Voltage offsets applied")

	return nil
}
