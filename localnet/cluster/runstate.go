package cluster

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mit-dci/parsec-local/localnet"
)

// DefaultStateFile is the run-state file name inside the log directory.
const DefaultStateFile = "run-state.json"

// ErrNoRunState is returned when no run-state file exists.
var ErrNoRunState = errors.New("no run state")

// RunState is the on-disk record of processes a run left running.
type RunState struct {
	RunID     string                   `json:"run_id"`
	Host      string                   `json:"host"`
	StartedAt time.Time                `json:"started_at"`
	Topology  localnet.Topology        `json:"topology"`
	Handles   []localnet.ProcessHandle `json:"handles"`
}

// SaveRunState writes st to path, replacing any previous file atomically.
func SaveRunState(path string, st RunState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create run state dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write run state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write run state: %w", err)
	}
	return nil
}

// LoadRunState reads the run-state file at path.
func LoadRunState(path string) (*RunState, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", ErrNoRunState, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read run state: %w", err)
	}
	var st RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse run state %s: %w", path, err)
	}
	return &st, nil
}

// RemoveRunState deletes the run-state file. A missing file is not an error.
func RemoveRunState(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove run state: %w", err)
	}
	return nil
}
