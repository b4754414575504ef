package publish

import (
	"context"
	"errors"
	"time"
)

// DefaultPollInterval is used when PollOptions.Interval is not set.
const DefaultPollInterval = 5 * time.Second

// ErrPollTimeout is returned by Poll when MaxDuration elapses first.
var ErrPollTimeout = errors.New("timed out waiting for condition")

// PollOptions configures Poll.
type PollOptions struct {
	// Interval is the fixed wait between checks.
	Interval time.Duration

	// MaxDuration bounds the whole wait. Zero waits until the condition
	// holds, check fails or ctx is done.
	MaxDuration time.Duration
}

// CheckFunc reports whether the awaited condition holds.
type CheckFunc func(ctx context.Context) (done bool, err error)

// Poll calls check immediately and then once per interval until it reports
// done or fails. It returns nil, the check error, ErrPollTimeout or the
// context error.
func Poll(ctx context.Context, opts PollOptions, check CheckFunc) error {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}

	var deadline <-chan time.Time
	if opts.MaxDuration > 0 {
		timer := time.NewTimer(opts.MaxDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return ErrPollTimeout
		case <-time.After(opts.Interval):
		}
	}
}
