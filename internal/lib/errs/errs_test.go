package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceErrorsUnwrap(t *testing.T) {
	for _, err := range []error{ErrPermissionDenied, ErrSignalLost, ErrTimeout} {
		assert.ErrorIs(t, err, ErrSourceUnavailable)
		assert.ErrorIs(t, fmt.Errorf("gps: %w", err), ErrSourceUnavailable)
	}

	assert.False(t, errors.Is(ErrSignalLost, ErrTimeout))
	assert.Equal(t, "location source unavailable: signal lost", ErrSignalLost.Error())
}
