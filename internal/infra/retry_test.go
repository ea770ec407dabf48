package infra_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tuya-switch/internal/infra"
)

func fastRetry(attempts int) infra.RetryConfig {
	return infra.RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithRetry_RetriesNetworkErrors(t *testing.T) {
	calls := 0
	err := infra.WithRetry(context.Background(), fastRetry(3), func() error {
		calls++
		if calls < 3 {
			return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_GivesUp(t *testing.T) {
	calls := 0
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	err := infra.WithRetry(context.Background(), fastRetry(2), func() error {
		calls++
		return dialErr
	})

	assert.ErrorIs(t, err, dialErr)
	assert.Equal(t, 2, calls)
}

func TestWithRetry_DoesNotRetryProtocolErrors(t *testing.T) {
	calls := 0
	protoErr := errors.New("bad frame suffix")
	err := infra.WithRetry(context.Background(), fastRetry(5), func() error {
		calls++
		return protoErr
	})

	assert.ErrorIs(t, err, protoErr)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastRetry(5)
	cfg.InitialDelay = time.Hour
	err := infra.WithRetry(ctx, cfg, func() error {
		return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("unreachable")}
	})

	assert.ErrorIs(t, err, context.Canceled)
}
