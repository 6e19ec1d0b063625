package teardown

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/mit-dci/parsec-local/localnet"
)

// ErrNameNotAllowed is returned for process names outside the allow-list.
var ErrNameNotAllowed = errors.New("process name not in teardown allow-list")

// Killer terminates a single process.
type Killer interface {
	Kill(pid int) error
}

// Finder lists pids whose command line matches a name.
type Finder interface {
	FindByName(ctx context.Context, name string) ([]int, error)
}

// Result summarizes one teardown batch.
type Result struct {
	Attempted int
	Failed    int
	Elapsed   time.Duration
	// FailedPIDs lists the pids that may still be running.
	FailedPIDs []int
	// Err aggregates every individual kill failure.
	Err error
}

// Killed is the number of successful kill attempts.
func (r Result) Killed() int {
	return r.Attempted - r.Failed
}

// Merge adds o into r.
func (r *Result) Merge(o Result) {
	r.Attempted += o.Attempted
	r.Failed += o.Failed
	r.Elapsed += o.Elapsed
	r.FailedPIDs = append(r.FailedPIDs, o.FailedPIDs...)
	r.Err = multierr.Append(r.Err, o.Err)
}

// PoolSize returns ceil(sqrt(n)), the worker count for a batch of n kills.
func PoolSize(n int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Ceil(math.Sqrt(float64(n))))
}

// Coordinator dispatches kills through a bounded worker pool.
type Coordinator struct {
	killer Killer
	finder Finder
}

// NewCoordinator creates a Coordinator. A nil finder disables TeardownByName.
func NewCoordinator(killer Killer, finder Finder) *Coordinator {
	return &Coordinator{killer: killer, finder: finder}
}

type target struct {
	role string
	pid  int
}

// TeardownByHandles signals exactly the given handles, once each.
func (c *Coordinator) TeardownByHandles(ctx context.Context, handles []localnet.ProcessHandle) Result {
	targets := make([]target, 0, len(handles))
	seen := make(map[int]bool, len(handles))
	for _, h := range handles {
		if seen[h.PID] {
			continue
		}
		seen[h.PID] = true
		targets = append(targets, target{role: h.Role.String(), pid: h.PID})
	}
	return c.killAll(ctx, targets)
}

// TeardownByName kills every process matching name. name must be on the allow-list.
func (c *Coordinator) TeardownByName(ctx context.Context, name string) (Result, error) {
	if !localnet.IsAllowedProcessName(name) {
		logrus.Errorf("Invalid process name %s", name)
		return Result{}, fmt.Errorf("%w: %q", ErrNameNotAllowed, name)
	}
	if c.finder == nil {
		return Result{}, fmt.Errorf("teardown by name %q: no process finder configured", name)
	}
	pids, err := c.finder.FindByName(ctx, name)
	if err != nil {
		return Result{}, fmt.Errorf("find %s processes: %w", name, err)
	}
	targets := make([]target, 0, len(pids))
	for _, pid := range pids {
		targets = append(targets, target{role: name, pid: pid})
	}
	logrus.WithField("process", name).Infof("Found %d processes to kill", len(targets))
	return c.killAll(ctx, targets), nil
}

// TeardownRole kills every allow-listed executable name of role.
func (c *Coordinator) TeardownRole(ctx context.Context, role localnet.Role) Result {
	var total Result
	for _, name := range role.ProcessNames() {
		res, err := c.TeardownByName(ctx, name)
		if err != nil {
			logrus.WithField("role", role).Errorf("Teardown by name failed: %v", err)
			total.Err = multierr.Append(total.Err, err)
			continue
		}
		total.Merge(res)
	}
	return total
}

func (c *Coordinator) killAll(ctx context.Context, targets []target) Result {
	start := time.Now()
	res := Result{Attempted: len(targets)}
	if len(targets) == 0 {
		return res
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(PoolSize(len(targets)))
	for _, tg := range targets {
		tg := tg
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				logrus.WithFields(logrus.Fields{"role": tg.role, "pid": tg.pid}).Warnf("Skipped kill: %v", err)
				mu.Lock()
				res.Failed++
				res.FailedPIDs = append(res.FailedPIDs, tg.pid)
				res.Err = multierr.Append(res.Err, fmt.Errorf("pid %d: %w", tg.pid, err))
				mu.Unlock()
				return nil
			}
			if err := c.killer.Kill(tg.pid); err != nil {
				logrus.WithFields(logrus.Fields{"role": tg.role, "pid": tg.pid}).Errorf("Failed to kill pid %d: %v", tg.pid, err)
				mu.Lock()
				res.Failed++
				res.FailedPIDs = append(res.FailedPIDs, tg.pid)
				res.Err = multierr.Append(res.Err, err)
				mu.Unlock()
				return nil
			}
			logrus.WithFields(logrus.Fields{"role": tg.role, "pid": tg.pid}).Debug("Killed")
			return nil
		})
	}
	_ = g.Wait()
	slices.Sort(res.FailedPIDs)
	res.Elapsed = time.Since(start)
	return res
}
