package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IGNF/ocsge-pv/pkg/constants"
	pkgerrors "github.com/IGNF/ocsge-pv/pkg/errors"
	"github.com/IGNF/ocsge-pv/pkg/logging"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

// swapRetryAfter makes backoffs return immediately for the duration of the
// test, restoring the real timer afterwards.
func swapRetryAfter(t *testing.T, fn func(time.Duration) <-chan time.Time) {
	t.Helper()
	prev := retryAfter
	retryAfter = fn
	t.Cleanup(func() { retryAfter = prev })
}

func immediately(time.Duration) <-chan time.Time {
	ch := make(chan time.Time)
	close(ch)
	return ch
}

func never(time.Duration) <-chan time.Time {
	return nil
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"transient error type", pkgerrors.NewTransientError("op", 1, errors.New("boom")), true},
		{"network timeout", timeoutErr{}, true},
		{"connection exception", &pgconn.PgError{Code: "08006"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"syntax error", &pgconn.PgError{Code: "42601"}, false},
		{"wrapped in materialization error", pkgerrors.NewMaterializationError("public.liens", "committing", &pgconn.PgError{Code: "08006"}), true},
		{"wrapped in store error", pkgerrors.WrapStore("fetch detections", "detections", timeoutErr{}), true},
		{"scope locked", pkgerrors.NewScopeLockedError("public.liens"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, isTransient(tt.err))
		})
	}
}

func TestWithRetry(t *testing.T) {
	log := logging.NewNopLogger()

	t.Run("returns nil on first success", func(t *testing.T) {
		calls := 0
		err := withRetry(context.Background(), log, "op", func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("does not retry permanent failures", func(t *testing.T) {
		calls := 0
		permanent := errors.New("column does not exist")
		err := withRetry(context.Background(), log, "op", func() error {
			calls++
			return permanent
		})
		assert.Equal(t, permanent, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries transient failures until success", func(t *testing.T) {
		swapRetryAfter(t, immediately)

		calls := 0
		err := withRetry(context.Background(), log, "op", func() error {
			calls++
			if calls < 2 {
				return &pgconn.PgError{Code: "40001"}
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("exhausted budget surfaces a transient error", func(t *testing.T) {
		swapRetryAfter(t, immediately)

		calls := 0
		err := withRetry(context.Background(), log, "op", func() error {
			calls++
			return timeoutErr{}
		})
		require.Error(t, err)
		assert.Equal(t, constants.MaxRetries, calls)

		var transient *pkgerrors.TransientError
		require.ErrorAs(t, err, &transient)
		assert.Equal(t, "op", transient.Operation)
		assert.Equal(t, constants.MaxRetries, transient.Attempts)
	})

	t.Run("cancellation interrupts the backoff", func(t *testing.T) {
		swapRetryAfter(t, never)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		err := withRetry(ctx, log, "op", func() error {
			calls++
			return &pgconn.PgError{Code: "08006"}
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
