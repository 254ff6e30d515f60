package poll

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = Options{Interval: time.Millisecond, Timeout: 500 * time.Millisecond}

func TestUntil(t *testing.T) {
	calls := 0
	err := Until(context.Background(), fast, func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUntilTimeout(t *testing.T) {
	opts := Options{Interval: time.Millisecond, Timeout: 20 * time.Millisecond}
	err := Until(context.Background(), opts, func(context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestUntilConditionError(t *testing.T) {
	boom := errors.New("boom")
	err := Until(context.Background(), fast, func(context.Context) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Until(ctx, fast, func(context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUntilStable(t *testing.T) {
	samples := []string{"<g>0</g>", "<g>1</g>", "<g>2</g>", "<g>2</g>", "<g>3</g>"}
	i := 0
	got, err := UntilStable(context.Background(), fast, func(context.Context) (string, error) {
		s := samples[i]
		i++
		return s, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "<g>2</g>", got)
	assert.Equal(t, 4, i)
}

func TestUntilStableNeverSettles(t *testing.T) {
	opts := Options{Interval: time.Millisecond, Timeout: 20 * time.Millisecond}
	n := 0
	_, err := UntilStable(context.Background(), opts, func(context.Context) (string, error) {
		n++
		return fmt.Sprint(n), nil
	})
	assert.ErrorIs(t, err, ErrTimeout)
}
