package ports

import (
	"context"
	"net"
	"strconv"
	"time"
)

// Prober decides whether a port on host is free.
type Prober interface {
	Open(ctx context.Context, host string, port int) bool
}

// DialProber probes by attempting a TCP connection. A dial error counts as open
// unless ctx ended first.
type DialProber struct {
	Timeout time.Duration
}

// DefaultDialTimeout bounds a single probe.
const DefaultDialTimeout = 250 * time.Millisecond

// Open returns true if nothing accepted the connection. It returns false once
// ctx is done.
func (p DialProber) Open(ctx context.Context, host string, port int) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return ctx.Err() == nil
	}
	_ = conn.Close()
	return false
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, host string, port int) bool

// Open calls f.
func (f ProberFunc) Open(ctx context.Context, host string, port int) bool {
	return f(ctx, host, port)
}
