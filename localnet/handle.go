package localnet

import (
	"fmt"
	"time"
)

// ProcessHandle records one process that reported a successful start.
type ProcessHandle struct {
	Role          Role      `json:"role"`
	PID           int       `json:"pid"`
	Endpoint      Endpoint  `json:"endpoint"`
	CreationOrder int64     `json:"creation_order"`
	Unit          int       `json:"unit"`
	Binary        string    `json:"binary"`
	StartedAt     time.Time `json:"started_at"`
}

func (h ProcessHandle) String() string {
	return fmt.Sprintf("%s pid=%d at %s (#%d)", h.Role, h.PID, h.Endpoint, h.CreationOrder)
}
