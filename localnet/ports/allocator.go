package ports

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Allocator hands out open ports. It is safe for concurrent use; each
// probe-and-claim step holds the allocator lock so a port is claimed before
// the next allocation starts.
type Allocator struct {
	host   string
	prober Prober
	ranges PortRange

	mu      sync.Mutex
	claimed map[int]Kind
	cursor  map[Kind]int
}

// NewAllocator creates an Allocator probing host. A nil prober selects DialProber.
func NewAllocator(host string, ranges PortRange, prober Prober) (*Allocator, error) {
	if err := ranges.Validate(); err != nil {
		return nil, err
	}
	if prober == nil {
		prober = DialProber{}
	}
	cursor := make(map[Kind]int, len(ranges))
	for k, r := range ranges {
		cursor[k] = r.Base
	}
	return &Allocator{
		host:    host,
		prober:  prober,
		ranges:  ranges,
		claimed: make(map[int]Kind),
		cursor:  cursor,
	}, nil
}

// FindOpenPort probes start, start+1, ... for up to maxAttempts candidates and
// returns the first open one without claiming it. Ports already claimed by this
// Allocator count as taken.
func (a *Allocator) FindOpenPort(ctx context.Context, start, maxAttempts int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.findLocked(ctx, start, maxAttempts)
}

func (a *Allocator) findLocked(ctx context.Context, start, maxAttempts int) (int, error) {
	if last := start + maxAttempts - 1; start < MinPort || last > MaxPort {
		return 0, fmt.Errorf("%w: %d to %d not in [%d, %d]", ErrPortOutOfRange, start, last, MinPort, MaxPort)
	}
	for i := 0; i < maxAttempts; i++ {
		port := start + i
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if _, taken := a.claimed[port]; taken {
			continue
		}
		if a.prober.Open(ctx, a.host, port) {
			logrus.Debugf("Open port %d found", port)
			return port, nil
		}
	}
	return 0, fmt.Errorf("%w in range %d to %d", ErrNoOpenPort, start, start+maxAttempts-1)
}

// Claim allocates the next open port for kind, scanning the kind's window from
// just after the previously claimed port. The window is cut short at MaxPort.
func (a *Allocator) Claim(ctx context.Context, kind Kind) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.ranges[kind]
	if !ok {
		return 0, fmt.Errorf("unknown port kind %q", kind)
	}
	start := a.cursor[kind]
	window := min(r.Window, MaxPort-start+1)
	if window < 1 {
		return 0, fmt.Errorf("claim %s port: %w after %d", kind, ErrNoOpenPort, MaxPort)
	}
	port, err := a.findLocked(ctx, start, window)
	if err != nil {
		return 0, fmt.Errorf("claim %s port: %w", kind, err)
	}
	a.claimed[port] = kind
	a.cursor[kind] = port + 1
	return port, nil
}

// Claimed returns how many ports have been handed out.
func (a *Allocator) Claimed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.claimed)
}

// Release returns a claimed port to the pool. The cursor does not move back.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.claimed, port)
}
