package ports

import (
	"errors"
	"fmt"
	"sort"
)

const (
	MinPort = 1024
	MaxPort = 65535
)

// Kind is a class of port the cluster needs.
type Kind string

const (
	KindShard         Kind = "shard"
	KindShardRaft     Kind = "shard_raft"
	KindTicketMachine Kind = "ticket_machine"
	KindAgent         Kind = "agent"
)

// Kinds lists all port kinds in a stable order.
var Kinds = []Kind{KindShard, KindShardRaft, KindTicketMachine, KindAgent}

// Default base ports. Each kind gets its own 10k region.
const (
	DefaultAgentBase         = 20000
	DefaultShardBase         = 30000
	DefaultShardRaftBase     = 40000
	DefaultTicketMachineBase = 50000

	DefaultScanWindow    = 100
	DefaultPreflightSpan = 10000
)

var (
	// ErrPortOutOfRange is returned when a candidate port falls outside [MinPort, MaxPort].
	ErrPortOutOfRange = errors.New("port out of range")
	// ErrNoOpenPort is returned when no open port is found within the attempt budget.
	ErrNoOpenPort = errors.New("no open port found")
	// ErrInsufficientPorts is returned by the pre-flight check.
	ErrInsufficientPorts = errors.New("not enough open ports")
)

// Range is the scan configuration for one Kind.
type Range struct {
	Base int `yaml:"base"`
	// Window is the number of candidates tried per allocation.
	Window int `yaml:"window"`
	// Span is the size of the region counted by the pre-flight check.
	Span int `yaml:"span"`
}

// PortRange maps every Kind to its Range.
type PortRange map[Kind]Range

// DefaultPortRange returns the stock base ports with default windows.
func DefaultPortRange() PortRange {
	return PortRange{
		KindShard:         {Base: DefaultShardBase, Window: DefaultScanWindow, Span: DefaultPreflightSpan},
		KindShardRaft:     {Base: DefaultShardRaftBase, Window: DefaultScanWindow, Span: DefaultPreflightSpan},
		KindTicketMachine: {Base: DefaultTicketMachineBase, Window: DefaultScanWindow, Span: DefaultPreflightSpan},
		KindAgent:         {Base: DefaultAgentBase, Window: DefaultScanWindow, Span: DefaultPreflightSpan},
	}
}

// Validate checks that every kind is present and base+window and base+span stay within MaxPort.
func (pr PortRange) Validate() error {
	for _, k := range Kinds {
		r, ok := pr[k]
		if !ok {
			return fmt.Errorf("missing port range for %s", k)
		}
		if r.Window < 1 {
			return fmt.Errorf("%s scan window must be at least 1, got %d", k, r.Window)
		}
		if r.Span < 1 {
			return fmt.Errorf("%s pre-flight span must be at least 1, got %d", k, r.Span)
		}
		if r.Base < MinPort || r.Base+r.Window > MaxPort || r.Base+r.Span > MaxPort+1 {
			return fmt.Errorf("%w: %s range %d+%d/%d exceeds [%d, %d]",
				ErrPortOutOfRange, k, r.Base, r.Window, r.Span, MinPort, MaxPort)
		}
	}
	return checkOverlap(pr)
}

func checkOverlap(pr PortRange) error {
	type region struct {
		kind   Kind
		lo, hi int
	}
	regions := make([]region, 0, len(pr))
	for _, k := range Kinds {
		r := pr[k]
		regions = append(regions, region{k, r.Base, r.Base + max(r.Window, r.Span)})
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].lo < regions[j].lo })
	for i := 1; i < len(regions); i++ {
		if regions[i].lo < regions[i-1].hi {
			return fmt.Errorf("port ranges for %s and %s overlap", regions[i-1].kind, regions[i].kind)
		}
	}
	return nil
}
