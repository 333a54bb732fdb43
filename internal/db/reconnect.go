package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/unklstewy/ads-btrack/pkg/config"
	"github.com/unklstewy/ads-btrack/pkg/receiver"
)

// ReconnectWithRetry connects to the database with exponential backoff.
// This provides resilience against a database that starts after the
// tracker. A nil logger uses slog.Default.
//
// Returns: Connected database or error if all retries exhausted
func ReconnectWithRetry(ctx context.Context, cfg config.DatabaseConfig, retry receiver.RetryConfig, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if retry.OnRetry == nil {
		retry.OnRetry = func(attempt int, delay time.Duration, err error) {
			logger.Warn("database connection failed", "attempt", attempt, "retry_in", delay, "error", err)
		}
	}

	var db *DB
	err := receiver.RetryWithBackoff(ctx, retry, func() error {
		var err error
		db, err = Connect(cfg)
		if err != nil && !isConnError(err) {
			return receiver.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("database connected", "driver", cfg.Driver)
	return db, nil
}

// HealthCheck reports whether the database answers a trivial query.
func HealthCheck(ctx context.Context, db *DB) bool {
	if db == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return false
	}
	return result == 1
}

// WithRetry executes a database operation, retrying up to maxRetries times
// when it fails with a connection error. Other errors are returned at once.
func WithRetry(ctx context.Context, operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isConnError(err) {
			return err
		}

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(time.Duration(attempt+1) * time.Second):
			}
		}
	}

	return lastErr
}

// Common patterns: "connection refused", "broken pipe", "no connection"
var connErrors = []string{
	"connection refused",
	"broken pipe",
	"no connection",
	"connection reset",
	"eof",
	"timeout",
	"database is locked",
	"failed to ping",
}

func isConnError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range connErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
