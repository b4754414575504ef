package publish

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoll_DoneImmediately(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), PollOptions{Interval: time.Hour}, func(context.Context) (bool, error) {
		calls++
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestPoll_UntilDone(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), PollOptions{Interval: time.Millisecond}, func(context.Context) (bool, error) {
		calls++
		return calls == 5, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, calls)
}

func TestPoll_CheckError(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), PollOptions{Interval: time.Millisecond}, func(context.Context) (bool, error) {
		calls++
		if calls == 2 {
			return false, errBoom
		}
		return false, nil
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 2, calls)
}

func TestPoll_MaxDuration(t *testing.T) {
	start := time.Now()
	err := Poll(context.Background(), PollOptions{Interval: time.Millisecond, MaxDuration: 20 * time.Millisecond},
		func(context.Context) (bool, error) { return false, nil })
	assert.True(t, errors.Is(err, ErrPollTimeout))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestPoll_ZeroMaxDurationWaitsForContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Poll(ctx, PollOptions{Interval: time.Millisecond}, func(context.Context) (bool, error) {
		calls++
		if calls == 10 {
			cancel()
		}
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, calls, 10)
}

func TestPoll_DefaultInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Poll(ctx, PollOptions{}, func(context.Context) (bool, error) { return false, nil })
	assert.ErrorIs(t, err, context.Canceled)
}
