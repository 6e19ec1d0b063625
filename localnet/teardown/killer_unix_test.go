//go:build !windows

package teardown

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalKiller_TerminatesChild(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	require.NoError(t, SignalKiller{}.Kill(cmd.Process.Pid))

	select {
	case err := <-done:
		assert.Error(t, err, "sleep should exit by signal")
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		t.Fatal("process still running after SIGTERM")
	}
}

func TestSignalKiller_RejectsNonPositivePid(t *testing.T) {
	assert.Error(t, SignalKiller{}.Kill(0))
	assert.Error(t, SignalKiller{}.Kill(-1))
}
