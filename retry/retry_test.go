package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = Backoff(ConstantBackoff(time.Millisecond))

func TestDo_FailThenSuccess(t *testing.T) {
	calls := 0
	var retried []int
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, MaxAttempts(5), fast, OnRetry(func(attempt int, _ error) {
		retried = append(retried, attempt)
	}))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_AllFailed(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return boom
	}, MaxAttempts(3), fast)

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, GetAttempts(err))
	assert.True(t, errors.Is(err, boom))

	var multi *MultiError
	require.True(t, errors.As(err, &multi))
	assert.Len(t, multi.Errors, 3)
	assert.Contains(t, multi.AllErrors(), "attempt 3: boom")
}

func TestDo_Permanent(t *testing.T) {
	bad := errors.New("bad credentials")
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return Permanent(bad)
	}, MaxAttempts(5), fast)

	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, bad))
	assert.Nil(t, Permanent(nil))
}

func TestDo_Condition(t *testing.T) {
	transient := errors.New("transient")
	fatal := errors.New("fatal")
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls == 1 {
			return transient
		}
		return fatal
	}, MaxAttempts(5), fast, Condition(func(err error) bool {
		return errors.Is(err, transient)
	}))

	assert.Equal(t, 2, calls)
	assert.True(t, errors.Is(err, fatal))
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, func() error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDo_DeadlineShorterThanBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	err := Do(ctx, func() error {
		calls++
		return errors.New("down")
	}, MaxAttempts(5), Backoff(ConstantBackoff(time.Hour)))

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	v, err := DoWithData(context.Background(), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("not yet")
		}
		return "ready", nil
	}, fast)
	require.NoError(t, err)
	assert.Equal(t, "ready", v)
}

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff(100*time.Millisecond, WithJitter(0), WithMaxDelay(time.Second))
	assert.Equal(t, time.Duration(0), b.Next(0))
	assert.Equal(t, 100*time.Millisecond, b.Next(1))
	assert.Equal(t, 200*time.Millisecond, b.Next(2))
	assert.Equal(t, 400*time.Millisecond, b.Next(3))
	assert.Equal(t, time.Second, b.Next(10))

	triple := ExponentialBackoff(10*time.Millisecond, WithJitter(0), WithMultiplier(3))
	assert.Equal(t, 90*time.Millisecond, triple.Next(3))

	jittered := ExponentialBackoff(100*time.Millisecond, WithJitter(0.5))
	for i := 0; i < 20; i++ {
		d := jittered.Next(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestConstantBackoff(t *testing.T) {
	b := ConstantBackoff(time.Second)
	assert.Equal(t, time.Second, b.Next(1))
	assert.Equal(t, time.Second, b.Next(7))
}
