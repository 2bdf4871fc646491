package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodes(t *testing.T) {
	t.Run("outermost code wins", func(t *testing.T) {
		inner := New(CodeNotFound, "company not found")
		outer := Wrap(inner, CodeInternal, "failed to load company")

		assert.True(t, HasCode(outer, CodeInternal))
		assert.False(t, HasCode(outer, CodeNotFound))
		assert.Equal(t, CodeInternal, CodeOf(outer))
	})

	t.Run("code survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("send: %w", New(CodeInsufficientCredits, "no credits left"))

		assert.True(t, Is(err, CodeInsufficientCredits))
		assert.Equal(t, "no credits left", MessageOf(err))
	})

	t.Run("plain errors map to internal", func(t *testing.T) {
		err := errors.New("boom")

		assert.Equal(t, CodeInternal, CodeOf(err))
		assert.Equal(t, "internal error", MessageOf(err))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("cause is reachable through Unwrap", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := Wrap(cause, CodeUnavailable, "store unavailable")

		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "store unavailable: connection reset", err.Error())
	})
}
