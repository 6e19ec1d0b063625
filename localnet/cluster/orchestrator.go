package cluster

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mit-dci/parsec-local/localnet"
	"github.com/mit-dci/parsec-local/localnet/launch"
	"github.com/mit-dci/parsec-local/localnet/ports"
	"github.com/mit-dci/parsec-local/localnet/registry"
	"github.com/mit-dci/parsec-local/localnet/teardown"
)

// ErrAlreadyRun is returned when Run is called a second time.
var ErrAlreadyRun = errors.New("orchestrator already ran")

// Launcher starts one process.
type Launcher interface {
	Launch(ctx context.Context, spec launch.Spec) (localnet.ProcessHandle, error)
}

// Terminator stops processes, either by handle or by allow-listed name.
type Terminator interface {
	TeardownByHandles(ctx context.Context, handles []localnet.ProcessHandle) teardown.Result
	TeardownRole(ctx context.Context, role localnet.Role) teardown.Result
}

// Orchestrator runs the Planning, PortChecking, Launching and Done phases for
// one cluster and owns the registry of processes it started.
type Orchestrator struct {
	cfg      Config
	launcher Launcher
	term     Terminator
	prober   ports.Prober
	registry *registry.Registry
	runID    string
	log      *logrus.Entry

	mu     sync.Mutex
	state  State
	hasRun bool

	plan      localnet.Plan
	table     *localnet.EndpointTable
	running   map[localnet.Role]map[int]bool
	startedAt time.Time
}

// New creates an Orchestrator for cfg. A nil prober dials with ports.DialProber.
func New(cfg Config, l Launcher, t Terminator, p ports.Prober) *Orchestrator {
	if p == nil {
		p = ports.DialProber{}
	}
	if cfg.MaxMachines <= 0 {
		cfg.MaxMachines = localnet.DefaultMaxMachines
	}
	if cfg.PortRange == nil {
		cfg.PortRange = ports.DefaultPortRange()
	}
	id := uuid.NewString()
	running := make(map[localnet.Role]map[int]bool, len(localnet.Roles))
	for _, r := range localnet.Roles {
		running[r] = make(map[int]bool)
	}
	return &Orchestrator{
		cfg:      cfg,
		launcher: l,
		term:     t,
		prober:   p,
		registry: registry.New(),
		runID:    id,
		log:      logrus.WithField("run", id[:8]),
		running:  running,
	}
}

// RunID identifies this run in logs and in the run-state file.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Registry returns the handles of committed processes.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// State returns the current phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) enter(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.log.Debugf("State -> %s", s)
}

// phase logs how long a phase took when the returned func is called.
func (o *Orchestrator) phase(name string) func() {
	start := time.Now()
	return func() {
		o.log.Infof("%s took %s", name, time.Since(start).Round(time.Millisecond))
	}
}

func (o *Orchestrator) isRunning(r localnet.Role, slot int) bool {
	return o.running[r][slot]
}

// Run brings the cluster up. Configuration, planning and pre-flight port
// errors are returned before any process starts. Unit failures are rolled
// back and reported in the Summary; they never fail the run. When ctx is
// cancelled, launching stops, every committed process is torn down and ctx's
// error is returned alongside the Summary.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	o.mu.Lock()
	if o.hasRun {
		o.mu.Unlock()
		return nil, ErrAlreadyRun
	}
	o.hasRun = true
	o.mu.Unlock()

	o.startedAt = time.Now()
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	o.enter(StatePlanning)
	plan, err := localnet.BuildPlan(o.cfg.Topology, o.cfg.MaxMachines)
	if err != nil {
		return nil, err
	}
	o.plan = plan
	if plan.Basic {
		o.log.Info("Basic topology: launching a single unit")
	} else {
		o.log.Infof("Planned %d units for %s", len(plan.Units), o.cfg.Topology)
	}

	o.enter(StatePortChecking)
	done := o.phase("Port checking")
	unallocated, err := o.checkPorts(ctx)
	done()
	if err != nil {
		return nil, err
	}

	sum := newSummary(o.runID, plan)
	done = o.phase("Launching")
	for _, u := range plan.Units {
		if ctx.Err() != nil {
			break
		}
		o.enter(StateLaunching)
		if err, ok := unallocated[u.Index]; ok {
			o.rollback(ctx, nil, &UnitFailure{Unit: u.Index, Role: firstRole(u), Err: err}, sum)
			continue
		}
		b, failure := o.launchUnit(ctx, u)
		if failure != nil {
			o.rollback(ctx, b, failure, sum)
			continue
		}
		if failure := o.commit(b, sum); failure != nil {
			o.rollback(ctx, b.unrecorded(o.registry), failure, sum)
		}
	}
	done()

	if ctx.Err() != nil {
		o.log.Warnf("Interrupted: %v; tearing down %d processes", ctx.Err(), o.registry.Len())
		o.finish(sum)
		o.enter(StateTeardown)
		res := o.Teardown(context.WithoutCancel(ctx), TeardownByPID)
		sum.Interrupted = true
		sum.TornDown = res.Killed()
		o.saveRunState(sum)
		sum.Elapsed = time.Since(o.startedAt)
		return sum, ctx.Err()
	}

	o.enter(StateDone)
	o.finish(sum)
	o.reportShortfall(sum)
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		o.log.Debugf("Registry ordering:\n%s", o.registry.Dump())
	}

	if o.cfg.Teardown != TeardownNone {
		o.enter(StateTeardown)
		res := o.Teardown(ctx, o.cfg.Teardown)
		sum.TornDown = res.Killed()
	}
	o.saveRunState(sum)
	sum.Elapsed = time.Since(o.startedAt)
	return sum, nil
}

// checkPorts fails the run when the host cannot supply every port the topology
// needs, then claims an endpoint for every process in the plan. Units whose
// claims fail are returned with the reason; they are skipped at launch.
func (o *Orchestrator) checkPorts(ctx context.Context) (map[int]error, error) {
	need := ports.EstimatePortsNeeded(o.cfg.Topology)
	o.log.Infof("Checking availability of %d ports", need.Total())
	if _, err := ports.CheckAvailability(ctx, o.prober, o.cfg.Host, o.cfg.PortRange, need); err != nil {
		return nil, err
	}

	alloc, err := ports.NewAllocator(o.cfg.Host, o.cfg.PortRange, o.prober)
	if err != nil {
		return nil, err
	}
	o.table = localnet.NewEndpointTable(o.cfg.Topology)
	unallocated := make(map[int]error)
	for _, u := range o.plan.Units {
		if err := o.claimUnit(ctx, alloc, u); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			o.log.WithField("unit", u.Index).Warnf("Port allocation failed: %v", err)
			unallocated[u.Index] = err
		}
	}
	return unallocated, nil
}

// claimUnit claims every port of u. On failure the unit's claims are released
// and its table entries cleared.
func (o *Orchestrator) claimUnit(ctx context.Context, alloc *ports.Allocator, u localnet.Unit) error {
	type claim struct {
		kind ports.Kind
		dst  *localnet.Endpoint
	}
	var claims []claim
	if u.Shard.Present() {
		claims = append(claims,
			claim{ports.KindShard, &o.table.Shards[u.Shard.Index]},
			claim{ports.KindShardRaft, &o.table.ShardRafts[u.Shard.Index]},
		)
	}
	if u.TicketMachine != localnet.NoSlot {
		claims = append(claims, claim{ports.KindTicketMachine, &o.table.TicketMachines[u.TicketMachine]})
	}
	if u.Agent != localnet.NoSlot {
		claims = append(claims, claim{ports.KindAgent, &o.table.Agents[u.Agent]})
	}

	for i, c := range claims {
		port, err := alloc.Claim(ctx, c.kind)
		if err != nil {
			for _, prev := range claims[:i] {
				alloc.Release(prev.dst.Port)
				*prev.dst = localnet.Endpoint{}
			}
			return fmt.Errorf("%s port: %w", c.kind, err)
		}
		*c.dst = localnet.Endpoint{Host: o.cfg.Host, Port: port}
	}
	return nil
}

// commit records every handle of b in one step and marks its slots running.
// A handle that clashes with another leaves the whole unit unrecorded.
func (o *Orchestrator) commit(b *batch, sum *Summary) *UnitFailure {
	if err := o.registry.RecordAll(b.handles); err != nil {
		role := firstRole(b.unit)
		var conflict *registry.ConflictError
		if errors.As(err, &conflict) {
			role = conflict.Handle.Role
		}
		return &UnitFailure{Unit: b.unit.Index, Role: role, Err: fmt.Errorf("%w: %v", launch.ErrMalformedOutput, err)}
	}
	for _, h := range b.handles {
		o.running[h.Role][b.unit.Slot(h.Role)] = true
	}
	o.enter(StateCommitted)
	sum.Committed = append(sum.Committed, b.unit.Index)
	o.log.WithField("unit", b.unit.Index).Infof("Committed %s", b.unit)
	return nil
}

// rollback kills whatever b started. The kill runs even if ctx is cancelled.
func (o *Orchestrator) rollback(ctx context.Context, b *batch, f *UnitFailure, sum *Summary) {
	o.log.WithFields(logrus.Fields{"unit": f.Unit, "role": f.Role.String()}).Errorf("Unit failed: %v", f.Err)
	if b != nil && len(b.handles) > 0 {
		res := o.term.TeardownByHandles(context.WithoutCancel(ctx), b.handles)
		if res.Err != nil {
			o.log.WithField("unit", f.Unit).Warnf("Rollback left %d processes: %v", res.Failed, res.Err)
		}
		o.log.WithField("unit", f.Unit).Infof("Rolled back %d processes", res.Attempted)
	}
	o.enter(StateRolledBack)
	sum.RolledBack = append(sum.RolledBack, f.Unit)
	sum.Failures = append(sum.Failures, *f)
}

func (o *Orchestrator) finish(sum *Summary) {
	for i := range sum.Roles {
		sum.Roles[i].Launched = o.registry.Count(sum.Roles[i].Role)
	}
	sum.Elapsed = time.Since(o.startedAt)
}

func (o *Orchestrator) reportShortfall(sum *Summary) {
	for _, rc := range sum.Roles {
		if rc.Launched < rc.Requested {
			o.log.WithField("role", rc.Role.String()).Warnf("Shortfall: launched %d of %d requested %s processes",
				rc.Launched, rc.Requested, rc.Role)
		}
	}
}

// Teardown stops the run's processes and empties the registry. Agents go
// first, shards last. In TeardownByPID mode a process whose kill failed stays
// registered. Calling it on an empty registry is a no-op.
func (o *Orchestrator) Teardown(ctx context.Context, mode TeardownMode) teardown.Result {
	var total teardown.Result
	switch mode {
	case TeardownByPID:
		var handles []localnet.ProcessHandle
		for _, r := range localnet.Roles {
			handles = append(handles, o.registry.Drain(r)...)
			clear(o.running[r])
		}
		total = TeardownHandles(ctx, o.term, handles)
		o.keepSurvivors(handles, total.FailedPIDs)
	case TeardownByName:
		for _, r := range reverseRoles() {
			total.Merge(o.term.TeardownRole(ctx, r))
			o.registry.Drain(r)
			clear(o.running[r])
		}
	default:
		return total
	}
	if total.Attempted > 0 || total.Err != nil {
		o.log.Infof("Teardown killed %d of %d processes", total.Killed(), total.Attempted)
	}
	return total
}

// keepSurvivors records again the handles whose kill failed so a later
// teardown can retry them.
func (o *Orchestrator) keepSurvivors(handles []localnet.ProcessHandle, failed []int) {
	if len(failed) == 0 {
		return
	}
	var keep []localnet.ProcessHandle
	for _, h := range handles {
		if slices.Contains(failed, h.PID) {
			keep = append(keep, h)
		}
	}
	if err := o.registry.RecordAll(keep); err != nil {
		o.log.Errorf("Could not keep %d surviving processes: %v", len(keep), err)
		return
	}
	o.log.Warnf("%d processes survived teardown and stay registered", len(keep))
}

// saveRunState writes the registry to the run-state file while processes remain.
func (o *Orchestrator) saveRunState(sum *Summary) {
	if o.registry.Len() == 0 || o.cfg.StatePath == "" {
		return
	}
	if err := SaveRunState(o.cfg.StatePath, o.runState()); err != nil {
		o.log.Warnf("Could not write run state: %v", err)
		return
	}
	sum.StatePath = o.cfg.StatePath
}

func (o *Orchestrator) runState() RunState {
	return RunState{
		RunID:     o.runID,
		Host:      o.cfg.Host,
		StartedAt: o.startedAt,
		Topology:  o.cfg.Topology,
		Handles:   o.registry.All(),
	}
}

// TeardownHandles kills handles one role at a time: agents first, shards last.
func TeardownHandles(ctx context.Context, t Terminator, handles []localnet.ProcessHandle) teardown.Result {
	var total teardown.Result
	for _, r := range reverseRoles() {
		var batch []localnet.ProcessHandle
		for _, h := range handles {
			if h.Role == r {
				batch = append(batch, h)
			}
		}
		if len(batch) > 0 {
			total.Merge(t.TeardownByHandles(ctx, batch))
		}
	}
	return total
}

func reverseRoles() []localnet.Role {
	roles := slices.Clone(localnet.Roles)
	slices.Reverse(roles)
	return roles
}

func firstRole(u localnet.Unit) localnet.Role {
	if roles := u.Roles(); len(roles) > 0 {
		return roles[0]
	}
	return localnet.RoleShard
}
