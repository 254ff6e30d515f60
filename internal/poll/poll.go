// Package poll provides bounded waits on page state.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ErrTimeout is returned when a condition is not met before the deadline
var ErrTimeout = errors.New("poll: timed out")

// Options bounds a polling loop
type Options struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 100 * time.Millisecond
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	return o
}

// Until calls cond every interval until it reports true, returns an error,
// or the timeout passes.
func Until(ctx context.Context, opts Options, cond func(ctx context.Context) (bool, error)) error {
	opts = opts.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// UntilStable samples probe every interval until two consecutive samples
// hash the same and returns the settled content.
func UntilStable(ctx context.Context, opts Options, probe func(ctx context.Context) (string, error)) (string, error) {
	var (
		last    string
		lastSum uint64
		seen    bool
	)
	err := Until(ctx, opts, func(ctx context.Context) (bool, error) {
		content, err := probe(ctx)
		if err != nil {
			return false, err
		}
		sum := xxhash.Sum64String(content)
		stable := seen && sum == lastSum
		last, lastSum, seen = content, sum, true
		return stable, nil
	})
	return last, err
}
