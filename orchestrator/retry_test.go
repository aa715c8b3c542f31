package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryWithBackoff(t *testing.T) {
	logger := slog.Default()
	boom := errors.New("boom")

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		attempts, err := retryWithBackoff(context.Background(), logger, func(int) error {
			calls++
			if calls < 3 {
				return boom
			}
			return nil
		}, 3, time.Millisecond)
		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("returns last error", func(t *testing.T) {
		attempts, err := retryWithBackoff(context.Background(), logger, func(int) error {
			return boom
		}, 2, time.Millisecond)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 2, attempts)
	})

	t.Run("permanent stops at once", func(t *testing.T) {
		calls := 0
		attempts, err := retryWithBackoff(context.Background(), logger, func(int) error {
			calls++
			return permanent(boom)
		}, 5, time.Millisecond)
		assert.Equal(t, boom, err)
		assert.Equal(t, 1, attempts)
		assert.Equal(t, 1, calls)
	})

	t.Run("invalid attempts", func(t *testing.T) {
		_, err := retryWithBackoff(context.Background(), logger, func(int) error { return nil }, 0, 0)
		assert.ErrorIs(t, err, ErrInvalidAttempts)
	})

	t.Run("cancelled during backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		_, err := retryWithBackoff(ctx, logger, func(int) error {
			cancel()
			return boom
		}, 3, time.Hour)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
