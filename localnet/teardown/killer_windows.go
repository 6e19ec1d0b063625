//go:build windows

package teardown

import (
	"fmt"
	"os"
)

// SignalKiller terminates a pid. Windows has no signals; the process is killed.
type SignalKiller struct{}

// Kill terminates pid.
func (SignalKiller) Kill(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("refusing to signal pid %d", pid)
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := p.Kill(); err != nil {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	return nil
}
