package cluster

import (
	"fmt"
	"io"
	"time"

	"github.com/mit-dci/parsec-local/localnet"
)

// RoleCount compares requested and launched processes of one role.
type RoleCount struct {
	Role      localnet.Role
	Requested int
	Launched  int
}

// Shortfall is the number of requested processes that are not running.
func (rc RoleCount) Shortfall() int {
	return max(rc.Requested-rc.Launched, 0)
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID      string
	Topology   localnet.Topology
	Basic      bool
	Units      int
	Roles      []RoleCount
	Committed  []int // unit indices
	RolledBack []int // unit indices
	Failures   []UnitFailure
	TornDown   int
	// Interrupted is set when the run was cancelled before every unit was attempted.
	Interrupted bool
	// StatePath is the run-state file written for processes left running.
	StatePath string
	Elapsed   time.Duration
}

func newSummary(runID string, plan localnet.Plan) *Summary {
	s := &Summary{
		RunID:    runID,
		Topology: plan.Topology,
		Basic:    plan.Basic,
		Units:    len(plan.Units),
	}
	for _, r := range localnet.Roles {
		s.Roles = append(s.Roles, RoleCount{Role: r, Requested: plan.Attempts(r)})
	}
	return s
}

// Role returns the counts for r.
func (s *Summary) Role(r localnet.Role) RoleCount {
	for _, rc := range s.Roles {
		if rc.Role == r {
			return rc
		}
	}
	return RoleCount{Role: r}
}

// Complete reports whether every requested process was launched.
func (s *Summary) Complete() bool {
	for _, rc := range s.Roles {
		if rc.Shortfall() > 0 {
			return false
		}
	}
	return true
}

// Print writes a human-readable report of the run.
func (s *Summary) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Local Cluster Summary ===")
	fmt.Fprintf(w, "Run ID               : %s\n", s.RunID)
	fmt.Fprintf(w, "Topology             : %s\n", s.Topology)
	fmt.Fprintf(w, "Units                : %d committed, %d rolled back of %d\n", len(s.Committed), len(s.RolledBack), s.Units)
	for _, rc := range s.Roles {
		fmt.Fprintf(w, "%-21s: %d/%d", rc.Role, rc.Launched, rc.Requested)
		if n := rc.Shortfall(); n > 0 {
			fmt.Fprintf(w, " (short %d)", n)
		}
		fmt.Fprintln(w)
	}
	for _, f := range s.Failures {
		fmt.Fprintf(w, "Failed               : %s\n", f)
	}
	if s.TornDown > 0 {
		fmt.Fprintf(w, "Torn down            : %d processes\n", s.TornDown)
	}
	if s.Interrupted {
		fmt.Fprintln(w, "Interrupted          : yes")
	}
	if s.StatePath != "" {
		fmt.Fprintf(w, "Run state            : %s\n", s.StatePath)
	}
	fmt.Fprintf(w, "Elapsed              : %s\n", s.Elapsed.Round(time.Millisecond))
}
