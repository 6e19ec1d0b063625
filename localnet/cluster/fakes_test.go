package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/mit-dci/parsec-local/localnet"
	"github.com/mit-dci/parsec-local/localnet/launch"
	"github.com/mit-dci/parsec-local/localnet/ports"
	"github.com/mit-dci/parsec-local/localnet/teardown"
)

// fakeLauncher hands out sequential pids without starting anything.
type fakeLauncher struct {
	mu     sync.Mutex
	calls  []launch.Spec
	fail   func(spec launch.Spec) error
	pidFor func(spec launch.Spec) int
	nextID int64
}

func (f *fakeLauncher) Launch(_ context.Context, spec launch.Spec) (localnet.ProcessHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, spec)
	if f.fail != nil {
		if err := f.fail(spec); err != nil {
			return localnet.ProcessHandle{}, err
		}
	}
	f.nextID++
	pid := 1000 + int(f.nextID)
	if f.pidFor != nil {
		if p := f.pidFor(spec); p > 0 {
			pid = p
		}
	}
	return localnet.ProcessHandle{
		Role:          spec.Role,
		PID:           pid,
		Endpoint:      spec.Endpoint,
		CreationOrder: f.nextID,
		Unit:          spec.Unit,
		Binary:        spec.Binary,
		StartedAt:     time.Now(),
	}, nil
}

func (f *fakeLauncher) roles() []localnet.Role {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]localnet.Role, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Role
	}
	return out
}

func (f *fakeLauncher) callsFor(unit int) []launch.Spec {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []launch.Spec
	for _, c := range f.calls {
		if c.Unit == unit {
			out = append(out, c)
		}
	}
	return out
}

// fakeTerminator records what it was asked to kill.
type fakeTerminator struct {
	mu      sync.Mutex
	batches [][]localnet.ProcessHandle
	roles   []localnet.Role
	// survivors are pids whose kill fails.
	survivors map[int]bool
}

func (f *fakeTerminator) TeardownByHandles(_ context.Context, handles []localnet.ProcessHandle) teardown.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]localnet.ProcessHandle(nil), handles...))
	res := teardown.Result{Attempted: len(handles)}
	for _, h := range handles {
		if f.survivors[h.PID] {
			res.Failed++
			res.FailedPIDs = append(res.FailedPIDs, h.PID)
			res.Err = multierr.Append(res.Err, fmt.Errorf("pid %d: operation not permitted", h.PID))
		}
	}
	return res
}

func (f *fakeTerminator) TeardownRole(_ context.Context, role localnet.Role) teardown.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles = append(f.roles, role)
	return teardown.Result{}
}

func (f *fakeTerminator) killed() []localnet.ProcessHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []localnet.ProcessHandle
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

var allOpen = ports.ProberFunc(func(context.Context, string, int) bool { return true })

func testConfig(t localnet.Topology) Config {
	return Config{
		Topology: t,
		Host:     "127.0.0.1",
		LogLevel: localnet.LevelInfo,
		Binaries: DefaultBinaries(),
	}
}

var basicTopology = localnet.Topology{Agents: 1, LogicalShards: 1, ReplicationFactor: 1, TicketMachines: 1}
