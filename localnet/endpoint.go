package localnet

import (
	"net"
	"strconv"
)

// Endpoint is a host:port pair a process listens on.
type Endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// String renders the endpoint the way the executables parse it.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// IsZero reports whether no port has been assigned.
func (e Endpoint) IsZero() bool {
	return e.Port == 0
}

// EndpointTable holds every endpoint of the cluster, indexed by role-local slot.
// Absent entries (failed allocation) are zero Endpoints.
type EndpointTable struct {
	Shards         []Endpoint
	ShardRafts     []Endpoint
	TicketMachines []Endpoint
	Agents         []Endpoint
}

// NewEndpointTable sizes a table for t.
func NewEndpointTable(t Topology) *EndpointTable {
	return &EndpointTable{
		Shards:         make([]Endpoint, t.PhysicalShards()),
		ShardRafts:     make([]Endpoint, t.PhysicalShards()),
		TicketMachines: make([]Endpoint, t.EffectiveTicketMachines()),
		Agents:         make([]Endpoint, t.Agents),
	}
}

// Lookup returns the service endpoint of slot i for role r.
func (et *EndpointTable) Lookup(r Role, i int) (Endpoint, bool) {
	var eps []Endpoint
	switch r {
	case RoleShard:
		eps = et.Shards
	case RoleTicketMachine:
		eps = et.TicketMachines
	case RoleAgent:
		eps = et.Agents
	}
	if i < 0 || i >= len(eps) || eps[i].IsZero() {
		return Endpoint{}, false
	}
	return eps[i], true
}
