package teardown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// PgrepFinder locates processes with `pgrep -f`.
type PgrepFinder struct {
	// Path defaults to "pgrep" on PATH.
	Path string
}

// FindByName returns pids whose full command line matches name.
// No match is an empty result, not an error.
func (f PgrepFinder) FindByName(ctx context.Context, name string) ([]int, error) {
	path := f.Path
	if path == "" {
		path = "pgrep"
	}
	out, err := exec.CommandContext(ctx, path, "-f", name).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return nil, nil
		}
		return nil, fmt.Errorf("pgrep -f %s: %w", name, err)
	}
	return parsePids(string(out), os.Getpid())
}

func parsePids(out string, self int) ([]int, error) {
	var pids []int
	for _, field := range strings.Fields(out) {
		pid, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("unexpected pgrep output %q: %w", field, err)
		}
		if pid == self {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}
