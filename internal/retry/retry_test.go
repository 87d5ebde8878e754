package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")
var errPermanent = errors.New("permanent")

func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts:     maxAttempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Retryable: func(err error) bool {
			return errors.Is(err, errTransient)
		},
	}
}

func TestPolicy_Do_FirstTrySucceeds(t *testing.T) {
	calls := 0

	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Do_FailTwiceThenSucceed(t *testing.T) {
	calls := 0

	err := fastPolicy(4).Do(context.Background(), func(context.Context) error {
		calls++
		if calls <= 2 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_Do_ExhaustsBudget(t *testing.T) {
	calls := 0

	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestPolicy_Do_PermanentErrorNoRetry(t *testing.T) {
	calls := 0

	err := fastPolicy(5).Do(context.Background(), func(context.Context) error {
		calls++
		return errPermanent
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Do_NilPredicateRetriesEverything(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 2, InitialInterval: time.Millisecond}

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errPermanent
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestPolicy_Do_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := fastPolicy(10).Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errTransient
	})

	require.Error(t, err)
	assert.LessOrEqual(t, calls, 2)
}

func TestPolicy_Do_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	p := Policy{}

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errPermanent
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
