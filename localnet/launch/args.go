package launch

import (
	"fmt"

	"github.com/mit-dci/parsec-local/localnet"
)

// Runner types accepted by agentd.
const (
	RunnerEVM = "evm"
	RunnerLua = "lua"
)

// ArgOptions carries the run-wide values embedded in every argument list.
type ArgOptions struct {
	Topology   localnet.Topology
	LogLevel   localnet.LogLevel
	RunnerType string
}

// BuildArgs returns the command-line flags for the process of role r in unit u.
// Every process receives the full endpoint table so it can reach all peers.
func BuildArgs(r localnet.Role, u localnet.Unit, table *localnet.EndpointTable, opts ArgOptions) ([]string, error) {
	slot := u.Slot(r)
	if slot == localnet.NoSlot {
		return nil, fmt.Errorf("%s does not launch a %s", u, r)
	}

	var componentID, nodeID int
	switch r {
	case localnet.RoleShard:
		componentID, nodeID = u.Shard.Cluster, u.Shard.Replica
	case localnet.RoleTicketMachine, localnet.RoleAgent:
		componentID, nodeID = slot, slot
	default:
		return nil, fmt.Errorf("unknown role %s", r)
	}

	args := []string{
		fmt.Sprintf("--component_id=%d", componentID),
		fmt.Sprintf("--node_id=%d", nodeID),
	}
	args = append(args, peerArgs(table, opts.Topology)...)
	args = append(args, fmt.Sprintf("--loglevel=%s", opts.LogLevel.BinaryFlag()))
	if r == localnet.RoleAgent {
		runner := opts.RunnerType
		if runner == "" {
			runner = RunnerEVM
		}
		args = append(args, fmt.Sprintf("--runner_type=%s", runner))
	}
	return args, nil
}

// peerArgs renders the shard cluster, ticket machine and agent endpoint flags.
func peerArgs(table *localnet.EndpointTable, t localnet.Topology) []string {
	args := []string{fmt.Sprintf("--shard_count=%d", t.LogicalShards)}
	for c := 0; c < t.LogicalShards; c++ {
		args = append(args, fmt.Sprintf("--shard%d_count=%d", c, t.ReplicationFactor))
		for r := 0; r < t.ReplicationFactor; r++ {
			i := c*t.ReplicationFactor + r
			if i < len(table.Shards) && !table.Shards[i].IsZero() {
				args = append(args, fmt.Sprintf("--shard%d%d_endpoint=%s", c, r, table.Shards[i]))
			}
			if i < len(table.ShardRafts) && !table.ShardRafts[i].IsZero() {
				args = append(args, fmt.Sprintf("--shard%d%d_raft_endpoint=%s", c, r, table.ShardRafts[i]))
			}
		}
	}

	args = append(args, fmt.Sprintf("--ticket_machine_count=%d", len(table.TicketMachines)))
	for i, ep := range table.TicketMachines {
		if !ep.IsZero() {
			args = append(args, fmt.Sprintf("--ticket_machine%d_endpoint=%s", i, ep))
		}
	}

	args = append(args, fmt.Sprintf("--agent_count=%d", len(table.Agents)))
	for i, ep := range table.Agents {
		if !ep.IsZero() {
			args = append(args, fmt.Sprintf("--agent%d_endpoint=%s", i, ep))
		}
	}
	return args
}
