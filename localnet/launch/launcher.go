package launch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mit-dci/parsec-local/localnet"
)

// Mode selects how a start is confirmed.
type Mode string

const (
	ModePID        Mode = "pid"
	ModeForeground Mode = "foreground"
)

// DefaultLaunchTimeout bounds how long a start may take to confirm.
const DefaultLaunchTimeout = 30 * time.Second

var (
	// ErrLaunchFailed is returned when the executable exits non-zero or dies before it is ready.
	ErrLaunchFailed = errors.New("launch failed")
	// ErrMalformedOutput is returned when a ModePID executable does not print a usable pid.
	ErrMalformedOutput = errors.New("malformed launch output")
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePID, ModeForeground:
		return Mode(s), nil
	case "":
		return ModePID, nil
	}
	return "", fmt.Errorf("invalid launch mode %q (choose pid or foreground)", s)
}

// Options configures a Launcher.
type Options struct {
	Mode          Mode
	ReadyTimeout  time.Duration
	LaunchTimeout time.Duration
	PollInterval  time.Duration
	// WorkDir is the working directory of launched processes.
	WorkDir string
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModePID
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = DefaultReadyTimeout
	}
	if o.LaunchTimeout <= 0 {
		o.LaunchTimeout = DefaultLaunchTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

// Spec describes one process to start.
type Spec struct {
	Role      localnet.Role
	Unit      int
	Binary    string
	Args      []string
	Endpoint  localnet.Endpoint
	DependsOn []localnet.Endpoint
}

// Launcher starts processes and stamps each confirmed start with a creation order.
type Launcher struct {
	opts Options
	logs *RoleLogs
	seq  atomic.Int64
}

// New creates a Launcher writing process output to logs.
func New(opts Options, logs *RoleLogs) *Launcher {
	return &Launcher{opts: opts.withDefaults(), logs: logs}
}

// Launch waits for spec's dependencies, starts the executable and returns its handle.
func (l *Launcher) Launch(ctx context.Context, spec Spec) (localnet.ProcessHandle, error) {
	log := l.logs.Logger(spec.Role).WithField("unit", spec.Unit)

	if len(spec.DependsOn) > 0 {
		log.Debugf("Waiting for %d dependencies", len(spec.DependsOn))
		if err := WaitReady(ctx, spec.DependsOn, l.opts.ReadyTimeout, l.opts.PollInterval); err != nil {
			log.Errorf("Dependency not ready: %v", err)
			return localnet.ProcessHandle{}, fmt.Errorf("launch %s: %w", spec.Role, err)
		}
	}

	logrus.WithFields(logrus.Fields{"role": spec.Role.String(), "unit": spec.Unit}).Infof("Attempting to launch %s", spec.Role)
	log.Infof("Launching %s %s", spec.Binary, strings.Join(spec.Args, " "))

	var (
		pid int
		err error
	)
	switch l.opts.Mode {
	case ModeForeground:
		pid, err = l.startForeground(ctx, spec)
	default:
		pid, err = l.runReportingPID(ctx, spec)
	}
	if err != nil {
		log.Errorf("Failed to launch %s process: %v", spec.Role, err)
		return localnet.ProcessHandle{}, fmt.Errorf("launch %s: %w", spec.Role, err)
	}

	h := localnet.ProcessHandle{
		Role:          spec.Role,
		PID:           pid,
		Endpoint:      spec.Endpoint,
		CreationOrder: l.seq.Add(1),
		Unit:          spec.Unit,
		Binary:        spec.Binary,
		StartedAt:     time.Now(),
	}
	log.WithField("pid", pid).Infof("pid = %d created; %s #%d", pid, spec.Role, h.CreationOrder)
	return h, nil
}

// runReportingPID runs an executable that daemonizes and prints its pid.
func (l *Launcher) runReportingPID(ctx context.Context, spec Spec) (int, error) {
	runCtx, cancel := context.WithTimeout(ctx, l.opts.LaunchTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	out := l.logs.Writer(spec.Role)
	cmd := exec.CommandContext(runCtx, spec.Binary, spec.Args...)
	cmd.Dir = l.opts.WorkDir
	cmd.Stdout = io.MultiWriter(out, &stdout)
	cmd.Stderr = io.MultiWriter(out, &stderr)
	// A daemon child may keep the output pipes open; stop waiting on them
	// shortly after the launcher process itself exits.
	cmd.WaitDelay = time.Second
	configureProcess(cmd)

	err := cmd.Run()
	if err != nil && !errors.Is(err, exec.ErrWaitDelay) {
		return 0, fmt.Errorf("%w: %v: %s", ErrLaunchFailed, err, diagnostics(stderr.String()))
	}
	return parsePID(stdout.String())
}

// startForeground starts a long-running executable and waits for its own endpoint.
func (l *Launcher) startForeground(ctx context.Context, spec Spec) (int, error) {
	cmd := exec.Command(spec.Binary, spec.Args...)
	cmd.Dir = l.opts.WorkDir
	out := l.logs.File(spec.Role)
	if out != nil {
		cmd.Stdout = out
		cmd.Stderr = out
	}
	configureProcess(cmd)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLaunchFailed, err)
	}
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	if spec.Endpoint.IsZero() {
		return cmd.Process.Pid, nil
	}

	readyCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ready := make(chan error, 1)
	go func() {
		ready <- WaitReady(readyCtx, []localnet.Endpoint{spec.Endpoint}, l.opts.LaunchTimeout, l.opts.PollInterval)
	}()

	select {
	case err := <-exited:
		cancel()
		<-ready
		return 0, fmt.Errorf("%w: exited before ready: %v (see %s)", ErrLaunchFailed, err, l.logs.Path(spec.Role))
	case err := <-ready:
		if err != nil {
			killProcessGroup(cmd)
			return 0, err
		}
		return cmd.Process.Pid, nil
	}
}

// parsePID reads the last non-empty stdout line as a positive pid.
func parsePID(stdout string) (int, error) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return 0, fmt.Errorf("%w: no pid on stdout", ErrMalformedOutput)
	}
	pid, err := strconv.Atoi(last)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("%w: %q is not a pid", ErrMalformedOutput, last)
	}
	return pid, nil
}

func diagnostics(stderr string) string {
	s := strings.TrimSpace(stderr)
	if s == "" {
		return "no error output available"
	}
	const limit = 2048
	if len(s) > limit {
		s = "..." + s[len(s)-limit:]
	}
	return s
}
