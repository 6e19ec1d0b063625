package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/mit-dci/parsec-local/localnet"
	"github.com/mit-dci/parsec-local/localnet/launch"
	"github.com/mit-dci/parsec-local/localnet/registry"
)

// ErrDependencyUnavailable is returned when a unit depends on a process that is not running.
var ErrDependencyUnavailable = errors.New("dependency not running")

// UnitFailure records why a unit was rolled back.
type UnitFailure struct {
	Unit int
	Role localnet.Role
	Err  error
}

func (f UnitFailure) String() string {
	return fmt.Sprintf("unit %d: %s: %v", f.Unit, f.Role, f.Err)
}

// batch is one unit's launch transaction.
type batch struct {
	unit    localnet.Unit
	handles []localnet.ProcessHandle
}

func (b *batch) started(r localnet.Role, slot int) bool {
	for _, h := range b.handles {
		if h.Role == r && b.unit.Slot(r) == slot {
			return true
		}
	}
	return false
}

// unrecorded returns b without the handles whose pid belongs to a committed process.
func (b *batch) unrecorded(reg *registry.Registry) *batch {
	out := &batch{unit: b.unit}
	for _, h := range b.handles {
		if !reg.HasPID(h.PID) {
			out.handles = append(out.handles, h)
		}
	}
	return out
}

// launchUnit starts the unit's roles in dependency order and stops at the first failure.
// The returned batch holds every process started before the failure.
func (o *Orchestrator) launchUnit(ctx context.Context, u localnet.Unit) (*batch, *UnitFailure) {
	b := &batch{unit: u}
	for _, r := range u.Roles() {
		spec, err := o.specFor(r, u, b)
		if err == nil {
			var h localnet.ProcessHandle
			h, err = o.launcher.Launch(ctx, spec)
			if err == nil {
				b.handles = append(b.handles, h)
				continue
			}
		}
		return b, &UnitFailure{Unit: u.Index, Role: r, Err: err}
	}
	return b, nil
}

// specFor resolves the executable, arguments, own endpoint and dependency endpoints of r in u.
func (o *Orchestrator) specFor(r localnet.Role, u localnet.Unit, b *batch) (launch.Spec, error) {
	slot := u.Slot(r)
	ep, ok := o.table.Lookup(r, slot)
	if !ok {
		return launch.Spec{}, fmt.Errorf("no endpoint allocated for %s %d", r, slot)
	}

	var deps []localnet.Endpoint
	for _, d := range dependencies(r, u) {
		if !o.isRunning(d.role, d.slot) && !b.started(d.role, d.slot) {
			return launch.Spec{}, fmt.Errorf("%w: %s %d", ErrDependencyUnavailable, d.role, d.slot)
		}
		dep, ok := o.table.Lookup(d.role, d.slot)
		if !ok {
			return launch.Spec{}, fmt.Errorf("%w: %s %d has no endpoint", ErrDependencyUnavailable, d.role, d.slot)
		}
		deps = append(deps, dep)
	}

	args, err := launch.BuildArgs(r, u, o.table, launch.ArgOptions{
		Topology:   o.cfg.Topology,
		LogLevel:   o.cfg.LogLevel,
		RunnerType: o.cfg.RunnerType,
	})
	if err != nil {
		return launch.Spec{}, err
	}
	return launch.Spec{
		Role:      r,
		Unit:      u.Index,
		Binary:    o.cfg.Binaries.For(r, o.plan.Basic),
		Args:      args,
		Endpoint:  ep,
		DependsOn: deps,
	}, nil
}

type dependency struct {
	role localnet.Role
	slot int
}

// dependencies lists what r waits for: a ticket machine needs its shard, an
// agent needs its ticket machine and its shard.
func dependencies(r localnet.Role, u localnet.Unit) []dependency {
	switch r {
	case localnet.RoleTicketMachine:
		return []dependency{{localnet.RoleShard, u.DepShard}}
	case localnet.RoleAgent:
		return []dependency{
			{localnet.RoleTicketMachine, u.DepTicketMachine},
			{localnet.RoleShard, u.DepShard},
		}
	}
	return nil
}
