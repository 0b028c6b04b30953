package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetrier(opts ...Option) *Retrier {
	base := []Option{
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(2 * time.Millisecond),
		WithJitter(0),
	}
	return New(append(base, opts...)...)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := fastRetrier(WithMaxAttempts(5)).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_RetryIfFilters(t *testing.T) {
	calls := 0
	boom := errors.New("bad credentials")
	r := fastRetrier(WithRetryIf(func(err error) bool { return !errors.Is(err, boom) }))

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDo_PermanentIsUnwrapped(t *testing.T) {
	calls := 0
	boom := errors.New("invalid url")
	err := fastRetrier().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(boom)
	})

	assert.Equal(t, boom, err)
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
}

func TestStartupRetrier_RetriesEverythingAndReports(t *testing.T) {
	var attempts []int
	r := StartupRetrier(3, func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	})
	r.config.InitialDelay = time.Millisecond
	r.config.MaxDelay = time.Millisecond

	boom := errors.New("dial tcp: connection refused")
	err := r.Do(context.Background(), func(ctx context.Context) error { return boom })

	require.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fastRetrier().Do(ctx, func(ctx context.Context) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestDelay_CappedAndGrowing(t *testing.T) {
	r := New(WithInitialDelay(100*time.Millisecond), WithMaxDelay(300*time.Millisecond), WithJitter(0))

	assert.Equal(t, 100*time.Millisecond, r.delay(1))
	assert.Equal(t, 200*time.Millisecond, r.delay(2))
	assert.Equal(t, 300*time.Millisecond, r.delay(3))
}
