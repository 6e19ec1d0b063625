package launch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/mit-dci/parsec-local/localnet"
)

// DefaultLogDir is where role logs and the run log are written.
const DefaultLogDir = "logs"

// RoleLogs owns one append-only log file per role. Launched processes write
// their output into it and the launcher logs its own per-role lines there.
type RoleLogs struct {
	dir     string
	mu      sync.Mutex
	files   map[localnet.Role]*os.File
	loggers map[localnet.Role]*logrus.Logger
}

// OpenRoleLogs creates dir if needed and opens the role log files for appending.
func OpenRoleLogs(dir string, level logrus.Level) (*RoleLogs, error) {
	if dir == "" {
		dir = DefaultLogDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	rl := &RoleLogs{
		dir:     dir,
		files:   make(map[localnet.Role]*os.File, len(localnet.Roles)),
		loggers: make(map[localnet.Role]*logrus.Logger, len(localnet.Roles)),
	}
	for _, r := range localnet.Roles {
		path := filepath.Join(dir, r.LogFile())
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			_ = rl.Close()
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		rl.files[r] = f
		lg := logrus.New()
		lg.SetOutput(f)
		lg.SetLevel(level)
		lg.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
		rl.loggers[r] = lg
	}
	return rl, nil
}

// Dir returns the log directory.
func (rl *RoleLogs) Dir() string {
	return rl.dir
}

// Path returns the log file path for role r.
func (rl *RoleLogs) Path(r localnet.Role) string {
	return filepath.Join(rl.dir, r.LogFile())
}

// Writer returns the role's log file, or io.Discard once closed.
func (rl *RoleLogs) Writer(r localnet.Role) io.Writer {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if f, ok := rl.files[r]; ok {
		return f
	}
	return io.Discard
}

// File returns the role's open log file, nil once closed.
func (rl *RoleLogs) File(r localnet.Role) *os.File {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.files[r]
}

// Logger returns an entry tagged with the role that writes into the role log.
func (rl *RoleLogs) Logger(r localnet.Role) *logrus.Entry {
	rl.mu.Lock()
	lg, ok := rl.loggers[r]
	rl.mu.Unlock()
	if !ok {
		lg = logrus.New()
		lg.SetOutput(io.Discard)
	}
	return lg.WithField("role", r.String())
}

// Close closes every role log file.
func (rl *RoleLogs) Close() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	var errs error
	for r, f := range rl.files {
		errs = multierr.Append(errs, f.Close())
		delete(rl.files, r)
		delete(rl.loggers, r)
	}
	return errs
}
