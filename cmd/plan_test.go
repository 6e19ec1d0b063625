package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-dci/parsec-local/localnet"
)

func TestPrintPlan(t *testing.T) {
	plan, err := localnet.BuildPlan(localnet.Topology{Agents: 1, LogicalShards: 2, ReplicationFactor: 2, TicketMachines: 1}, 0)
	require.NoError(t, err)

	var b strings.Builder
	printPlan(&b, plan)
	out := b.String()

	assert.Contains(t, out, "Basic                : false")
	assert.Contains(t, out, "shard                : 4 attempts")
	assert.Contains(t, out, "ticket_machine       : 2 attempts")
	assert.Contains(t, out, "agent                : 1 attempts")
	assert.Contains(t, out, "Ports needed         : 11")
	assert.Equal(t, 4, strings.Count(out, "  unit "))
}
