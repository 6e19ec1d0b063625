package teardown

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/mit-dci/parsec-local/localnet"
)

// recordingKiller remembers every pid it was asked to kill and tracks peak concurrency.
type recordingKiller struct {
	mu      sync.Mutex
	killed  []int
	failFor map[int]error
	delay   time.Duration

	inFlight atomic.Int32
	peak     atomic.Int32
}

func (k *recordingKiller) Kill(pid int) error {
	n := k.inFlight.Add(1)
	defer k.inFlight.Add(-1)
	for {
		p := k.peak.Load()
		if n <= p || k.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if k.delay > 0 {
		time.Sleep(k.delay)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.killed = append(k.killed, pid)
	return k.failFor[pid]
}

func (k *recordingKiller) pids() map[int]bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := map[int]bool{}
	for _, p := range k.killed {
		out[p] = true
	}
	return out
}

type stubFinder struct {
	pids  map[string][]int
	err   error
	calls []string
}

func (f *stubFinder) FindByName(_ context.Context, name string) ([]int, error) {
	f.calls = append(f.calls, name)
	return f.pids[name], f.err
}

func handles(role localnet.Role, pids ...int) []localnet.ProcessHandle {
	out := make([]localnet.ProcessHandle, len(pids))
	for i, p := range pids {
		out[i] = localnet.ProcessHandle{Role: role, PID: p, CreationOrder: int64(i)}
	}
	return out
}

func TestPoolSize(t *testing.T) {
	tests := []struct{ n, want int }{
		{0, 0}, {1, 1}, {2, 2}, {4, 2}, {5, 3}, {9, 3}, {10, 4}, {100, 10}, {101, 11},
	}
	for _, tt := range tests {
		if got := PoolSize(tt.n); got != tt.want {
			t.Errorf("PoolSize(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestTeardownByHandles_KillsOnlyGivenPids(t *testing.T) {
	// GIVEN four recorded handles
	k := &recordingKiller{}
	c := NewCoordinator(k, nil)

	// WHEN they are torn down
	res := c.TeardownByHandles(context.Background(), handles(localnet.RoleShard, 10, 20, 30, 40))

	// THEN exactly those pids were signalled, once each
	assert.Equal(t, 4, res.Attempted)
	assert.Equal(t, 4, res.Killed())
	assert.NoError(t, res.Err)
	assert.Equal(t, map[int]bool{10: true, 20: true, 30: true, 40: true}, k.pids())
	assert.Len(t, k.killed, 4)
}

func TestTeardownByHandles_DuplicatePidsKilledOnce(t *testing.T) {
	k := &recordingKiller{}
	c := NewCoordinator(k, nil)

	hs := append(handles(localnet.RoleAgent, 7, 8), handles(localnet.RoleAgent, 7)...)
	res := c.TeardownByHandles(context.Background(), hs)

	assert.Equal(t, 2, res.Attempted)
	assert.Len(t, k.killed, 2)
}

func TestTeardownByHandles_EmptyIsNoOp(t *testing.T) {
	k := &recordingKiller{}
	c := NewCoordinator(k, nil)

	for i := 0; i < 2; i++ {
		res := c.TeardownByHandles(context.Background(), nil)
		assert.Equal(t, 0, res.Attempted)
		assert.NoError(t, res.Err)
	}
	assert.Empty(t, k.killed)
}

func TestTeardownByHandles_PartialFailureDoesNotAbortBatch(t *testing.T) {
	// GIVEN one pid whose kill fails
	boom := errors.New("operation not permitted")
	k := &recordingKiller{failFor: map[int]error{2: boom}}
	c := NewCoordinator(k, nil)

	res := c.TeardownByHandles(context.Background(), handles(localnet.RoleTicketMachine, 1, 2, 3))

	// THEN the others are still killed and the failure is reported
	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 1, res.Failed)
	assert.ErrorIs(t, res.Err, boom)
	assert.Len(t, k.pids(), 3)

	// AND the surviving pid is named so it can be retried
	assert.Equal(t, []int{2}, res.FailedPIDs)
}

func TestResult_MergeKeepsFailedPIDs(t *testing.T) {
	total := Result{Attempted: 2, Failed: 1, FailedPIDs: []int{7}}
	total.Merge(Result{Attempted: 3, Failed: 1, FailedPIDs: []int{9}})

	assert.Equal(t, 5, total.Attempted)
	assert.Equal(t, 3, total.Killed())
	assert.Equal(t, []int{7, 9}, total.FailedPIDs)
}

func TestTeardownByHandles_ConcurrencyBoundedBySqrt(t *testing.T) {
	k := &recordingKiller{delay: 5 * time.Millisecond}
	c := NewCoordinator(k, nil)

	pids := make([]int, 16)
	for i := range pids {
		pids[i] = 100 + i
	}
	res := c.TeardownByHandles(context.Background(), handles(localnet.RoleShard, pids...))

	require.Equal(t, 16, res.Killed())
	assert.LessOrEqual(t, int(k.peak.Load()), PoolSize(16))
}

func TestTeardownByHandles_CancelledContextSkipsKills(t *testing.T) {
	k := &recordingKiller{}
	c := NewCoordinator(k, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := c.TeardownByHandles(ctx, handles(localnet.RoleShard, 1, 2))

	assert.Equal(t, 2, res.Failed)
	assert.Empty(t, k.killed)
	assert.Len(t, multierr.Errors(res.Err), 2)
	assert.Equal(t, []int{1, 2}, res.FailedPIDs)
}

func TestTeardownByName_RejectsNamesOutsideAllowList(t *testing.T) {
	k := &recordingKiller{}
	f := &stubFinder{pids: map[string][]int{"sshd": {1}}}
	c := NewCoordinator(k, f)

	_, err := c.TeardownByName(context.Background(), "sshd")

	assert.ErrorIs(t, err, ErrNameNotAllowed)
	assert.Empty(t, f.calls, "finder must not run for rejected names")
	assert.Empty(t, k.killed)
}

func TestTeardownByName_KillsEveryMatch(t *testing.T) {
	k := &recordingKiller{}
	f := &stubFinder{pids: map[string][]int{"agentd": {5, 6, 7}}}
	c := NewCoordinator(k, f)

	res, err := c.TeardownByName(context.Background(), "agentd")

	require.NoError(t, err)
	assert.Equal(t, 3, res.Killed())
	assert.Equal(t, map[int]bool{5: true, 6: true, 7: true}, k.pids())
}

func TestTeardownByName_FinderError(t *testing.T) {
	c := NewCoordinator(&recordingKiller{}, &stubFinder{err: errors.New("pgrep missing")})

	_, err := c.TeardownByName(context.Background(), "agentd")
	assert.ErrorContains(t, err, "pgrep missing")
}

func TestTeardownRole_CoversEveryExecutableName(t *testing.T) {
	k := &recordingKiller{}
	f := &stubFinder{pids: map[string][]int{
		"runtime_locking_shardd": {1},
		"replicated_shard":       {2, 3},
	}}
	c := NewCoordinator(k, f)

	res := c.TeardownRole(context.Background(), localnet.RoleShard)

	assert.Equal(t, 3, res.Killed())
	assert.Equal(t, []string{"runtime_locking_shardd", "replicated_shard"}, f.calls)
}

func TestParsePids_SkipsSelf(t *testing.T) {
	pids, err := parsePids("12\n34\n56\n", 34)
	require.NoError(t, err)
	assert.Equal(t, []int{12, 56}, pids)

	_, err = parsePids("12 abc", 1)
	assert.Error(t, err)
}
