// internal/retry/retry_test.go
package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func TestPolicy_Do(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds on first try", func(t *testing.T) {
		calls := 0
		err := fastPolicy.Do(ctx, func(context.Context) error {
			calls++
			return nil
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries until success", func(t *testing.T) {
		calls := 0
		err := fastPolicy.Do(ctx, func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("flaky")
			}
			return nil
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops after max attempts", func(t *testing.T) {
		calls := 0
		var notified []int
		boom := errors.New("boom")
		err := fastPolicy.Do(ctx, func(context.Context) error {
			calls++
			return boom
		}, func(_ error, attempt int, _ time.Duration) {
			notified = append(notified, attempt)
		})

		var exhausted *ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, 3, exhausted.Attempts)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []int{1, 2}, notified)
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		calls := 0
		bad := errors.New("bad request")
		err := fastPolicy.Do(ctx, func(context.Context) error {
			calls++
			return Permanent(bad)
		}, nil)
		assert.Equal(t, bad, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("delay hint lengthens the wait up to max delay", func(t *testing.T) {
		var waits []time.Duration
		calls := 0
		_ = fastPolicy.Do(ctx, func(context.Context) error {
			calls++
			if calls == 1 {
				return After(errors.New("slow down"), time.Hour)
			}
			return nil
		}, func(_ error, _ int, wait time.Duration) {
			waits = append(waits, wait)
		})
		require.Len(t, waits, 1)
		assert.Equal(t, fastPolicy.MaxDelay, waits[0])
	})

	t.Run("context cancellation stops waiting", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		slow := Policy{MaxAttempts: 5, BaseDelay: time.Minute, MaxDelay: time.Minute}
		err := slow.Do(cctx, func(context.Context) error {
			cancel()
			return errors.New("transient")
		}, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
