package localnet

import "fmt"

// NoSlot marks a role that a Unit does not launch.
const NoSlot = -1

// ShardSlot locates a physical shard inside its logical cluster.
type ShardSlot struct {
	Index   int // physical shard index, NoSlot if absent
	Cluster int // logical shard (component id)
	Replica int // replica within the cluster (node id)
}

// Present reports whether the slot names a shard.
func (s ShardSlot) Present() bool {
	return s.Index != NoSlot
}

// Unit is one attempted (shard, ticket machine, agent) launch triple.
// Absent roles carry NoSlot. Dependencies always resolve to a shard and a
// ticket machine, which may belong to an earlier Unit.
type Unit struct {
	Index         int
	Shard         ShardSlot
	TicketMachine int
	Agent         int

	// Dependency slots used for readiness waits and peer wiring.
	DepShard         int
	DepTicketMachine int
}

// Roles returns the roles this Unit launches, in dependency order.
func (u Unit) Roles() []Role {
	var out []Role
	if u.Shard.Present() {
		out = append(out, RoleShard)
	}
	if u.TicketMachine != NoSlot {
		out = append(out, RoleTicketMachine)
	}
	if u.Agent != NoSlot {
		out = append(out, RoleAgent)
	}
	return out
}

// Slot returns the role-local index this Unit launches for r, or NoSlot.
func (u Unit) Slot(r Role) int {
	switch r {
	case RoleShard:
		return u.Shard.Index
	case RoleTicketMachine:
		return u.TicketMachine
	case RoleAgent:
		return u.Agent
	}
	return NoSlot
}

func (u Unit) String() string {
	return fmt.Sprintf("unit %d (agent=%d ticket_machine=%d shard=%d/%d)",
		u.Index, u.Agent, u.TicketMachine, u.Shard.Cluster, u.Shard.Replica)
}

// Plan is the ordered list of Units the Orchestrator consumes.
type Plan struct {
	Topology Topology
	Units    []Unit
	// Basic is set for the all-ones topology; the Orchestrator launches its
	// single Unit without the iteration bookkeeping.
	Basic bool
}

// Attempts counts how many launches the plan makes for a role.
func (p Plan) Attempts(r Role) int {
	n := 0
	for _, u := range p.Units {
		if u.Slot(r) != NoSlot {
			n++
		}
	}
	return n
}

// ShardSlotAt maps a physical shard index to its cluster and replica.
func (t Topology) ShardSlotAt(i int) ShardSlot {
	return ShardSlot{Index: i, Cluster: i / t.ReplicationFactor, Replica: i % t.ReplicationFactor}
}

// BuildPlan validates t and expands it into Units. The unit count is the
// largest of the physical shard, effective ticket machine and agent counts.
func BuildPlan(t Topology, maxMachines int) (Plan, error) {
	if err := t.Validate(maxMachines); err != nil {
		return Plan{}, err
	}
	if t.IsBasic() {
		return Plan{
			Topology: t,
			Basic:    true,
			Units: []Unit{{
				Index:         0,
				Shard:         ShardSlot{Index: 0},
				TicketMachine: 0,
				Agent:         0,
			}},
		}, nil
	}

	phys := t.PhysicalShards()
	tmcs := t.EffectiveTicketMachines()
	n := max(phys, tmcs, t.Agents)

	units := make([]Unit, n)
	for i := range units {
		u := Unit{
			Index:            i,
			Shard:            ShardSlot{Index: NoSlot},
			TicketMachine:    NoSlot,
			Agent:            NoSlot,
			DepShard:         i % phys,
			DepTicketMachine: i % tmcs,
		}
		if i < phys {
			u.Shard = t.ShardSlotAt(i)
		}
		if i < tmcs {
			u.TicketMachine = i
		}
		if i < t.Agents {
			u.Agent = i
		}
		units[i] = u
	}
	return Plan{Topology: t, Units: units}, nil
}
