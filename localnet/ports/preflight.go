package ports

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mit-dci/parsec-local/localnet"
)

// Need is the number of ports required per Kind.
type Need map[Kind]int

// Total sums the need across kinds.
func (n Need) Total() int {
	total := 0
	for _, v := range n {
		total += v
	}
	return total
}

// EstimatePortsNeeded returns the ports a full bring-up of t consumes.
func EstimatePortsNeeded(t localnet.Topology) Need {
	return Need{
		KindShard:         t.PhysicalShards(),
		KindShardRaft:     t.PhysicalShards(),
		KindTicketMachine: t.EffectiveTicketMachines(),
		KindAgent:         t.Agents,
	}
}

// Availability reports how many open ports the pre-flight check found per Kind.
type Availability map[Kind]int

// CheckAvailability counts open ports in each kind's [base, base+span) region,
// stopping early once the need is met. Kinds are probed concurrently. It fails
// with ErrInsufficientPorts if any kind comes up short.
func CheckAvailability(ctx context.Context, prober Prober, host string, ranges PortRange, need Need) (Availability, error) {
	if err := ranges.Validate(); err != nil {
		return nil, err
	}
	if prober == nil {
		prober = DialProber{}
	}

	var mu sync.Mutex
	found := make(Availability, len(need))

	g, gctx := errgroup.WithContext(ctx)
	for _, k := range Kinds {
		k := k
		want := need[k]
		if want <= 0 {
			continue
		}
		r := ranges[k]
		g.Go(func() error {
			open := 0
			for port := r.Base; port < r.Base+r.Span && open < want; port++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if prober.Open(gctx, host, port) {
					open++
				}
			}
			mu.Lock()
			found[k] = open
			mu.Unlock()
			if open < want {
				return fmt.Errorf("%w for %s: available %d in %d-%d, needed %d",
					ErrInsufficientPorts, k, open, r.Base, r.Base+r.Span-1, want)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return found, err
	}
	logrus.Infof("Enough open ports to meet the demand: %d needed", need.Total())
	return found, nil
}
