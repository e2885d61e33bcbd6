package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// Draft autosaves and escalation-log appends can land while another
// unibox process (the TUI and a watch session share one database file)
// holds the write lock, so write transactions retry busy errors with a
// doubling backoff before surfacing them.
const (
	defaultBusyAttempts = 3
	defaultBusyBackoff  = 50 * time.Millisecond
)

// TransactionWithRetry runs fn inside a write transaction, retrying on
// SQLITE_BUSY. Zero maxAttempts or baseBackoff selects the defaults.
// Non-busy failures and context cancellation surface immediately.
func (db *DB) TransactionWithRetry(ctx context.Context, maxAttempts int, baseBackoff time.Duration, fn func(*sql.Tx) error) error {
	if maxAttempts <= 0 {
		maxAttempts = defaultBusyAttempts
	}
	if baseBackoff <= 0 {
		baseBackoff = defaultBusyBackoff
	}

	backoff := baseBackoff
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := db.Transaction(ctx, fn)
		if err == nil {
			return nil
		}
		if !isBusyError(err) || attempt >= maxAttempts {
			return err
		}

		if err := backoffWait(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
	}
}

// isBusyError reports whether err is transient lock contention worth
// retrying. Cancellation is never busy.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	message := strings.ToLower(err.Error())
	return strings.Contains(message, "database is locked") ||
		strings.Contains(message, "database is busy") ||
		strings.Contains(message, "sqlite_busy")
}

func backoffWait(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
