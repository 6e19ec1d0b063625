package localnet

import "fmt"

// Role identifies the kind of parsec process.
type Role int

const (
	RoleShard Role = iota
	RoleTicketMachine
	RoleAgent
)

// Roles lists every role in launch order.
var Roles = []Role{RoleShard, RoleTicketMachine, RoleAgent}

var roleNames = map[Role]string{
	RoleShard:         "shard",
	RoleTicketMachine: "ticket_machine",
	RoleAgent:         "agent",
}

// processNames is the fixed allow-list for name-based teardown.
var processNames = map[Role][]string{
	RoleShard:         {"runtime_locking_shardd", "replicated_shard"},
	RoleTicketMachine: {"ticket_machined"},
	RoleAgent:         {"agentd"},
}

var logFiles = map[Role]string{
	RoleShard:         "shardd.log",
	RoleTicketMachine: "ticket_machined.log",
	RoleAgent:         "agentd.log",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ProcessNames returns the executable names a process of this role may run under.
func (r Role) ProcessNames() []string {
	return append([]string(nil), processNames[r]...)
}

// LogFile returns the base name of the role's append-only log file.
func (r Role) LogFile() string {
	return logFiles[r]
}

// ParseRole maps a role name to a Role.
func ParseRole(name string) (Role, error) {
	for r, n := range roleNames {
		if n == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", name)
}

// IsAllowedProcessName reports whether name belongs to the teardown allow-list.
func IsAllowedProcessName(name string) bool {
	for _, names := range processNames {
		for _, n := range names {
			if n == name {
				return true
			}
		}
	}
	return false
}

// AllowedProcessNames returns the allow-list in role order.
func AllowedProcessNames() []string {
	var out []string
	for _, r := range Roles {
		out = append(out, processNames[r]...)
	}
	return out
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) {
	name, ok := roleNames[r]
	if !ok {
		return nil, fmt.Errorf("unknown role %d", int(r))
	}
	return []byte(name), nil
}

// UnmarshalText decodes a role name.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
