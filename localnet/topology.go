package localnet

import (
	"errors"
	"fmt"
)

// DefaultMaxMachines bounds agents, physical shards and effective ticket machines.
const DefaultMaxMachines = 5000

// ErrInvalidTopology is returned for counts below 1 or above the machine limit.
var ErrInvalidTopology = errors.New("invalid topology")

// Topology holds the user-requested cluster counts. All fields must be >= 1.
type Topology struct {
	Agents            int `yaml:"agents" json:"agents"`
	LogicalShards     int `yaml:"shards" json:"shards"`
	ReplicationFactor int `yaml:"replication_factor" json:"replication_factor"`
	TicketMachines    int `yaml:"ticket_machines" json:"ticket_machines"`
}

// PhysicalShards is the number of shard processes: one per replica per logical shard.
func (t Topology) PhysicalShards() int {
	return t.LogicalShards * t.ReplicationFactor
}

// EffectiveTicketMachines is the number of ticket machine processes.
func (t Topology) EffectiveTicketMachines() int {
	return t.TicketMachines * t.ReplicationFactor
}

// Requested returns the number of processes wanted for a role.
func (t Topology) Requested(r Role) int {
	switch r {
	case RoleShard:
		return t.PhysicalShards()
	case RoleTicketMachine:
		return t.EffectiveTicketMachines()
	case RoleAgent:
		return t.Agents
	}
	return 0
}

// IsBasic reports whether every count is 1, the single-node development case.
func (t Topology) IsBasic() bool {
	return t.Agents == 1 && t.LogicalShards == 1 && t.ReplicationFactor == 1 && t.TicketMachines == 1
}

// Validate checks that all counts are >= 1 and that derived counts stay within maxMachines.
// A maxMachines <= 0 selects DefaultMaxMachines.
func (t Topology) Validate(maxMachines int) error {
	if maxMachines <= 0 {
		maxMachines = DefaultMaxMachines
	}
	counts := []struct {
		name string
		v    int
	}{
		{"agents", t.Agents},
		{"shards", t.LogicalShards},
		{"replication factor", t.ReplicationFactor},
		{"ticket machines", t.TicketMachines},
	}
	for _, c := range counts {
		if c.v < 1 {
			return fmt.Errorf("%w: number of %s must be at least 1, got %d", ErrInvalidTopology, c.name, c.v)
		}
	}
	derived := []struct {
		name string
		v    int
	}{
		{"agents", t.Agents},
		{"physical shards", t.PhysicalShards()},
		{"ticket machines", t.EffectiveTicketMachines()},
	}
	for _, d := range derived {
		if d.v > maxMachines {
			return fmt.Errorf("%w: number of %s must be at most %d, got %d", ErrInvalidTopology, d.name, maxMachines, d.v)
		}
	}
	return nil
}

func (t Topology) String() string {
	return fmt.Sprintf("agents=%d shards=%d replication=%d ticket_machines=%d",
		t.Agents, t.LogicalShards, t.ReplicationFactor, t.TicketMachines)
}
