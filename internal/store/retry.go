package store

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/IGNF/ocsge-pv/pkg/constants"
	pkgerrors "github.com/IGNF/ocsge-pv/pkg/errors"
)

// retryAfter is swapped out by tests to avoid real sleeps.
var retryAfter = time.After

// withRetry runs fn up to constants.MaxRetries times, backing off between
// attempts. Only transient failures are retried; anything else returns
// immediately. An exhausted budget surfaces as a TransientError so callers
// can tell a flaky endpoint from a broken query.
func withRetry(ctx context.Context, log *zerolog.Logger, op string, fn func() error) error {
	backoff := constants.RetryBackoff

	var err error
	for attempt := 1; attempt <= constants.MaxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		if attempt == constants.MaxRetries {
			break
		}

		log.Warn().
			Str("operation", op).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Err(err).
			Msg("transient failure, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-retryAfter(backoff):
		}

		backoff *= 2
		if backoff > constants.MaxRetryBackoff {
			backoff = constants.MaxRetryBackoff
		}
	}

	return pkgerrors.NewTransientError(op, constants.MaxRetries, err)
}

// isTransient reports whether err is worth retrying: connection-level
// failures, timeouts, resource exhaustion, and serialization conflicts.
// Constraint violations, syntax errors and the like are permanent.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if pkgerrors.IsTransient(err) {
		return true
	}
	if pgconn.SafeToRetry(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"): // connection exceptions
			return true
		case strings.HasPrefix(pgErr.Code, "57P"): // admin shutdown, crash recovery
			return true
		case pgErr.Code == "53300": // too many connections
			return true
		case pgErr.Code == "40001": // serialization failure
			return true
		case pgErr.Code == "40P01": // deadlock detected
			return true
		}
	}

	return false
}
