package launch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-dci/parsec-local/localnet"
)

func TestLaunch_PIDMode_ReportsPid(t *testing.T) {
	// GIVEN an executable that prints a banner and then its pid
	bin := writeScript(t, "echo starting up\necho 4242")
	logs := newTestLogs(t)
	l := New(Options{Mode: ModePID}, logs)

	// WHEN it is launched
	h, err := l.Launch(context.Background(), Spec{Role: localnet.RoleShard, Binary: bin, Unit: 3})

	// THEN the handle carries the reported pid and the first creation order
	require.NoError(t, err)
	assert.Equal(t, 4242, h.PID)
	assert.Equal(t, localnet.RoleShard, h.Role)
	assert.Equal(t, int64(1), h.CreationOrder)
	assert.Equal(t, 3, h.Unit)

	data, err := os.ReadFile(logs.Path(localnet.RoleShard))
	require.NoError(t, err)
	assert.Contains(t, string(data), "starting up")
	assert.Contains(t, string(data), "pid = 4242 created")
}

func TestLaunch_CreationOrderIncreases(t *testing.T) {
	bin := writeScript(t, "echo 77")
	l := New(Options{}, newTestLogs(t))

	first, err := l.Launch(context.Background(), Spec{Role: localnet.RoleAgent, Binary: bin})
	require.NoError(t, err)
	second, err := l.Launch(context.Background(), Spec{Role: localnet.RoleAgent, Binary: bin})
	require.NoError(t, err)

	assert.Less(t, first.CreationOrder, second.CreationOrder)
}

func TestLaunch_PIDMode_NonZeroExit(t *testing.T) {
	bin := writeScript(t, "echo 'No endpoint for component id' >&2\nexit 3")
	logs := newTestLogs(t)
	l := New(Options{}, logs)

	_, err := l.Launch(context.Background(), Spec{Role: localnet.RoleTicketMachine, Binary: bin})

	require.ErrorIs(t, err, ErrLaunchFailed)
	assert.Contains(t, err.Error(), "No endpoint for component id")
	data, readErr := os.ReadFile(logs.Path(localnet.RoleTicketMachine))
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "No endpoint for component id")
}

func TestLaunch_PIDMode_MalformedOutput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no output", "true"},
		{"text", "echo ready"},
		{"zero pid", "echo 0"},
		{"negative pid", "echo -5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(Options{}, newTestLogs(t))
			_, err := l.Launch(context.Background(), Spec{Role: localnet.RoleAgent, Binary: writeScript(t, tt.body)})
			assert.ErrorIs(t, err, ErrMalformedOutput)
		})
	}
}

func TestLaunch_PIDMode_LaunchTimeout(t *testing.T) {
	l := New(Options{LaunchTimeout: 200 * time.Millisecond}, newTestLogs(t))

	start := time.Now()
	_, err := l.Launch(context.Background(), Spec{Role: localnet.RoleShard, Binary: writeScript(t, "exec sleep 10")})

	assert.ErrorIs(t, err, ErrLaunchFailed)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestLaunch_DependencyTimeout_DoesNotStartProcess(t *testing.T) {
	// GIVEN a dependency endpoint nobody listens on
	marker := filepath.Join(t.TempDir(), "started")
	bin := writeScript(t, "touch "+marker+"\necho 99")
	l := New(Options{ReadyTimeout: 300 * time.Millisecond, PollInterval: 20 * time.Millisecond}, newTestLogs(t))

	// WHEN the launch waits on it
	_, err := l.Launch(context.Background(), Spec{
		Role:      localnet.RoleTicketMachine,
		Binary:    bin,
		DependsOn: []localnet.Endpoint{freeEndpoint(t)},
	})

	// THEN the launch fails with a readiness timeout and the executable never ran
	assert.ErrorIs(t, err, ErrReadinessTimeout)
	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "executable must not start before its dependencies")
}

func TestLaunch_DependencyReady(t *testing.T) {
	l := New(Options{ReadyTimeout: time.Second}, newTestLogs(t))

	h, err := l.Launch(context.Background(), Spec{
		Role:      localnet.RoleAgent,
		Binary:    writeScript(t, "echo 1234"),
		DependsOn: []localnet.Endpoint{liveEndpoint(t), liveEndpoint(t)},
	})

	require.NoError(t, err)
	assert.Equal(t, 1234, h.PID)
}

func TestLaunch_Foreground_ConfirmsOnOwnEndpoint(t *testing.T) {
	// GIVEN the test binary re-executed as a daemon listening on a free port
	ep := freeEndpoint(t)
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	t.Setenv("HELPER_LISTEN", ep.String())
	l := New(Options{Mode: ModeForeground, LaunchTimeout: 10 * time.Second, PollInterval: 20 * time.Millisecond}, newTestLogs(t))

	// WHEN it is launched in foreground mode
	h, err := l.Launch(context.Background(), Spec{
		Role:     localnet.RoleShard,
		Binary:   os.Args[0],
		Args:     []string{"-test.run=TestHelperProcess"},
		Endpoint: ep,
	})

	// THEN the handle is the child's pid and the endpoint is live
	require.NoError(t, err)
	t.Cleanup(func() {
		if p, err := os.FindProcess(h.PID); err == nil {
			_ = p.Kill()
		}
	})
	assert.Greater(t, h.PID, 0)
	assert.Equal(t, ep, h.Endpoint)
	assert.True(t, Connectable(context.Background(), ep))
}

func TestLaunch_Foreground_ExitBeforeReady(t *testing.T) {
	l := New(Options{Mode: ModeForeground, LaunchTimeout: 5 * time.Second, PollInterval: 20 * time.Millisecond}, newTestLogs(t))

	_, err := l.Launch(context.Background(), Spec{
		Role:     localnet.RoleAgent,
		Binary:   writeScript(t, "echo 'bad config' >&2\nexit 1"),
		Endpoint: freeEndpoint(t),
	})

	assert.ErrorIs(t, err, ErrLaunchFailed)
	assert.Contains(t, err.Error(), "exited before ready")
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModePID, m)

	m, err = ParseMode("foreground")
	require.NoError(t, err)
	assert.Equal(t, ModeForeground, m)

	_, err = ParseMode("daemon")
	assert.Error(t, err)
}

func TestParsePID(t *testing.T) {
	pid, err := parsePID("log line\n\n  31337  \n\n")
	require.NoError(t, err)
	assert.Equal(t, 31337, pid)
}
