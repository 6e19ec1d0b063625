package cluster

import (
	"fmt"

	"github.com/mit-dci/parsec-local/localnet"
	"github.com/mit-dci/parsec-local/localnet/launch"
	"github.com/mit-dci/parsec-local/localnet/ports"
)

// Binaries are the executables launched for each role.
type Binaries struct {
	BasicShard      string `yaml:"basic_shard"`      // non-replicated shard, basic topology only
	ReplicatedShard string `yaml:"replicated_shard"` // raft-replicated shard
	TicketMachine   string `yaml:"ticket_machine"`
	Agent           string `yaml:"agent"`
}

// DefaultBinaries points at a parsec build tree in the working directory.
func DefaultBinaries() Binaries {
	return Binaries{
		BasicShard:      "./build/src/parsec/runtime_locking_shard/runtime_locking_shardd",
		ReplicatedShard: "./build/src/parsec/runtime_locking_shard/replicated_shard",
		TicketMachine:   "./build/src/parsec/ticket_machine/ticket_machined",
		Agent:           "./build/src/parsec/agent/agentd",
	}
}

// For returns the executable for role r. Basic runs use the non-replicated shard.
func (b Binaries) For(r localnet.Role, basic bool) string {
	switch r {
	case localnet.RoleShard:
		if basic {
			return b.BasicShard
		}
		return b.ReplicatedShard
	case localnet.RoleTicketMachine:
		return b.TicketMachine
	case localnet.RoleAgent:
		return b.Agent
	}
	return ""
}

// TeardownMode selects what happens to the cluster once every unit has been attempted.
type TeardownMode string

const (
	TeardownNone   TeardownMode = ""      // leave processes running
	TeardownByPID  TeardownMode = "pids"  // kill the recorded handles
	TeardownByName TeardownMode = "names" // kill every allow-listed process by name
)

// Config describes one local cluster run. Topology counts must be >= 1.
type Config struct {
	Topology    localnet.Topology
	MaxMachines int
	Host        string
	LogLevel    localnet.LogLevel
	RunnerType  string
	Binaries    Binaries
	PortRange   ports.PortRange
	Teardown    TeardownMode

	// StatePath is where the run-state file is written when processes are
	// left running. Empty disables it.
	StatePath string
}

// Validate reports configuration errors that must stop the run before any process starts.
func (c Config) Validate() error {
	if err := c.Topology.Validate(c.MaxMachines); err != nil {
		return err
	}
	if c.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	if err := c.PortRange.Validate(); err != nil {
		return err
	}
	switch c.RunnerType {
	case "", launch.RunnerEVM, launch.RunnerLua:
	default:
		return fmt.Errorf("invalid runner type %q (choose %s or %s)", c.RunnerType, launch.RunnerEVM, launch.RunnerLua)
	}
	switch c.Teardown {
	case TeardownNone, TeardownByPID, TeardownByName:
	default:
		return fmt.Errorf("invalid teardown mode %q", c.Teardown)
	}
	basic := c.Topology.IsBasic()
	for _, r := range localnet.Roles {
		if c.Binaries.For(r, basic) == "" {
			return fmt.Errorf("no executable configured for %s", r)
		}
	}
	return nil
}
