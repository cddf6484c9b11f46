package waitdb

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedChecker struct {
	errs  []error
	calls int
}

func (c *scriptedChecker) Ping(ctx context.Context) error {
	c.calls++
	if len(c.errs) == 0 {
		return nil
	}
	err := c.errs[0]
	c.errs = c.errs[1:]
	return err
}

func noSleep(sleeps *int) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*sleeps++
		return ctx.Err()
	}
}

func connRefused() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
}

func notReady() error {
	return &pq.Error{Code: "57P03", Message: "the database system is starting up"}
}

func TestWait_RetriesTransientErrors(t *testing.T) {
	checker := &scriptedChecker{errs: []error{
		connRefused(),
		connRefused(),
		notReady(),
		notReady(),
		notReady(),
	}}
	sleeps := 0

	err := Wait(context.Background(), checker, Options{Logger: zerolog.Nop(), Sleep: noSleep(&sleeps)})

	require.NoError(t, err)
	assert.Equal(t, 6, checker.calls)
	assert.Equal(t, 5, sleeps)
}

func TestWait_ImmediateSuccess(t *testing.T) {
	checker := &scriptedChecker{}
	sleeps := 0

	require.NoError(t, Wait(context.Background(), checker, Options{Logger: zerolog.Nop(), Sleep: noSleep(&sleeps)}))
	assert.Equal(t, 1, checker.calls)
	assert.Zero(t, sleeps)
}

func TestWait_FatalErrorStops(t *testing.T) {
	authErr := &pq.Error{Code: "28P01", Message: "password authentication failed"}
	checker := &scriptedChecker{errs: []error{connRefused(), authErr}}
	sleeps := 0

	err := Wait(context.Background(), checker, Options{Logger: zerolog.Nop(), Sleep: noSleep(&sleeps)})

	require.Error(t, err)
	assert.Equal(t, authErr, err)
	assert.Equal(t, 2, checker.calls)
}

func TestWait_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	checker := &scriptedChecker{errs: []error{connRefused(), connRefused()}}
	err := Wait(ctx, checker, Options{Logger: zerolog.Nop(), Interval: time.Millisecond})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, checker.calls)
}

func TestRetryable(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"connection refused", connRefused(), true},
		{"wrapped refused", fmt.Errorf("ping: %w", syscall.ECONNREFUSED), true},
		{"bad conn", driver.ErrBadConn, true},
		{"cannot connect now", notReady(), true},
		{"admin shutdown", &pq.Error{Code: "57P01"}, true},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "db"}, true},
		{"invalid password", &pq.Error{Code: "28P01"}, false},
		{"unknown database", &pq.Error{Code: "3D000"}, false},
		{"plain error", errors.New("boom"), false},
		{"cancelled", context.Canceled, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Retryable(tc.err))
		})
	}
}
