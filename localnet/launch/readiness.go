package launch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/mit-dci/parsec-local/localnet"
)

// ErrReadinessTimeout is returned when a dependency never becomes connectable.
var ErrReadinessTimeout = errors.New("readiness wait timed out")

const (
	DefaultReadyTimeout = 60 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// Connectable reports whether a TCP connection to ep succeeds.
func Connectable(ctx context.Context, ep localnet.Endpoint) bool {
	d := net.Dialer{Timeout: 500 * time.Millisecond}
	conn, err := d.DialContext(ctx, "tcp", ep.String())
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// WaitReady blocks until every endpoint accepts a connection or timeout elapses.
func WaitReady(ctx context.Context, endpoints []localnet.Endpoint, timeout, interval time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, ep := range endpoints {
		if err := waitOne(ctx, ep, interval); err != nil {
			return err
		}
	}
	return nil
}

func waitOne(ctx context.Context, ep localnet.Endpoint, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if Connectable(ctx, ep) {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s", ErrReadinessTimeout, ep)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
