package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/undervoltctl/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	f := errors.New()

	assert.Equal(t, "Operation timed out", f.New(errors.ErrTimeout).Error())
	assert.Equal(t, "custom", f.WithMessage(errors.ErrTimeout, "custom").Error())
	assert.Equal(t, "Invalid argument provided: bad core", f.WithData(errors.ErrInvalidArgument, "bad core").Error())

	wrapped := f.Wrap(errors.ErrOperationFailed, fmt.Errorf("boom"))
	assert.Equal(t, "Operation failed: boom", wrapped.Error())
}

func TestCodeMatching(t *testing.T) {
	f := errors.New()
	sentinel := f.New(errors.ErrCancelled)

	err := fmt.Errorf("sweep: %w", f.WithMessage(errors.ErrCancelled, "cancelled by user"))

	assert.True(t, errors.Is(err, sentinel))
	assert.True(t, errors.HasCode(err, errors.ErrCancelled))
	assert.Equal(t, errors.ErrCancelled, errors.CodeOf(err))
	assert.False(t, errors.Is(err, f.New(errors.ErrTimeout)))
	assert.Equal(t, errors.ErrorCode(""), errors.CodeOf(fmt.Errorf("plain")))
}

func TestRefiningSentinelLeavesItUnchanged(t *testing.T) {
	sentinel := errors.New().New(errors.ErrCancelled)

	refined := sentinel.WithMessage("sweep cancelled").WithData(3)

	assert.Equal(t, "Operation cancelled", sentinel.Error())
	assert.Nil(t, sentinel.GetData())
	assert.Equal(t, "sweep cancelled: 3", refined.Error())
	assert.True(t, errors.Is(refined, sentinel))
}
