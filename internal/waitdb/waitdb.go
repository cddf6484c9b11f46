// Package waitdb blocks until PostgreSQL accepts connections.
package waitdb

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"syscall"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// Checker probes database availability
type Checker interface {
	Ping(ctx context.Context) error
}

// Options tunes the polling loop
type Options struct {
	Interval time.Duration
	Logger   zerolog.Logger
	// Sleep waits for d or until ctx is done; defaults to a timer
	Sleep func(ctx context.Context, d time.Duration) error
}

// Wait pings the database once per interval until it answers, a non-transient
// error is returned, or ctx is cancelled
func Wait(ctx context.Context, checker Checker, opts Options) error {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	log := opts.Logger

	log.Info().Msg("waiting for database...")
	for {
		err := checker.Ping(ctx)
		if err == nil {
			log.Info().Msg("database available")
			return nil
		}
		if !Retryable(err) {
			return err
		}

		log.Warn().Err(err).Dur("retry_in", opts.Interval).Msg("database unavailable, retrying")
		if err := opts.Sleep(ctx, opts.Interval); err != nil {
			return err
		}
	}
}

// Retryable reports whether err means the server is unreachable or still starting
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// class 57: operator intervention, e.g. 57P03 cannot_connect_now
		return pqErr.Code.Class() == "57"
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
