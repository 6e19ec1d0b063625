package cluster

// State is a phase of an Orchestrator run.
type State int

const (
	StateIdle State = iota
	StatePlanning
	StatePortChecking
	StateLaunching
	StateCommitted
	StateRolledBack
	StateDone
	StateTeardown
)

var stateNames = map[State]string{
	StateIdle:         "idle",
	StatePlanning:     "planning",
	StatePortChecking: "port_checking",
	StateLaunching:    "launching",
	StateCommitted:    "committed",
	StateRolledBack:   "rolled_back",
	StateDone:         "done",
	StateTeardown:     "teardown",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}
