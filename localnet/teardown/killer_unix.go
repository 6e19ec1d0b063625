//go:build !windows

package teardown

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// SignalKiller sends Signal (SIGTERM by default) to a pid.
type SignalKiller struct {
	Signal unix.Signal
}

// Kill signals pid. A pid that no longer exists counts as killed.
func (k SignalKiller) Kill(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("refusing to signal pid %d", pid)
	}
	sig := k.Signal
	if sig == 0 {
		sig = unix.SIGTERM
	}
	err := unix.Kill(pid, sig)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}
	return fmt.Errorf("kill pid %d: %w", pid, err)
}
