package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mit-dci/parsec-local/localnet"
	"github.com/mit-dci/parsec-local/localnet/cluster"
	"github.com/mit-dci/parsec-local/localnet/launch"
	"github.com/mit-dci/parsec-local/localnet/ports"
)

// LaunchConfig is the launch section of defaults.yaml.
type LaunchConfig struct {
	Mode          string        `yaml:"mode"`
	ReadyTimeout  time.Duration `yaml:"ready_timeout"`
	LaunchTimeout time.Duration `yaml:"launch_timeout"`
	PollInterval  time.Duration `yaml:"poll_interval"`
}

// Config represents the full defaults.yaml structure.
// Every section must be listed here; unknown keys are rejected.
type Config struct {
	Host        string            `yaml:"host"`
	LogLevel    string            `yaml:"log_level"`
	LogDir      string            `yaml:"log_dir"`
	RunnerType  string            `yaml:"runner_type"`
	MaxMachines int               `yaml:"max_machines"`
	Topology    localnet.Topology `yaml:"topology"`
	Binaries    cluster.Binaries  `yaml:"binaries"`
	Ports       ports.PortRange   `yaml:"ports"`
	Launch      LaunchConfig      `yaml:"launch"`
}

// defaultConfig is used for anything defaults.yaml leaves out.
func defaultConfig() Config {
	return Config{
		Host:        "localhost",
		LogLevel:    "WARN",
		LogDir:      launch.DefaultLogDir,
		RunnerType:  launch.RunnerEVM,
		MaxMachines: localnet.DefaultMaxMachines,
		Topology:    localnet.Topology{Agents: 1, LogicalShards: 1, ReplicationFactor: 1, TicketMachines: 1},
		Binaries:    cluster.DefaultBinaries(),
		Ports:       ports.DefaultPortRange(),
		Launch: LaunchConfig{
			Mode:          string(launch.ModePID),
			ReadyTimeout:  launch.DefaultReadyTimeout,
			LaunchTimeout: launch.DefaultLaunchTimeout,
			PollInterval:  launch.DefaultPollInterval,
		},
	}
}

// loadConfig parses path over the built-in defaults with strict field checking.
// A missing file is only an error when required is set.
func loadConfig(path string, required bool) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read defaults file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse defaults file %s: %w", path, err)
	}
	if err := cfg.normalize(); err != nil {
		return cfg, fmt.Errorf("defaults file %s: %w", path, err)
	}
	return cfg, nil
}

// normalize fills port fields a partial ports section left at zero.
func (c *Config) normalize() error {
	defaults := ports.DefaultPortRange()
	for k, r := range c.Ports {
		if !slices.Contains(ports.Kinds, k) {
			return fmt.Errorf("unknown port kind %q", k)
		}
		d := defaults[k]
		if r.Base == 0 {
			r.Base = d.Base
		}
		if r.Window == 0 {
			r.Window = d.Window
		}
		if r.Span == 0 {
			r.Span = d.Span
		}
		c.Ports[k] = r
	}
	for _, k := range ports.Kinds {
		if _, ok := c.Ports[k]; !ok {
			c.Ports[k] = defaults[k]
		}
	}
	return nil
}

// StatePath is the run-state file inside the log directory.
func (c Config) StatePath() string {
	return filepath.Join(c.LogDir, cluster.DefaultStateFile)
}

// clusterConfig converts the file configuration into orchestrator and launcher settings.
func (c Config) clusterConfig(level localnet.LogLevel, mode cluster.TeardownMode) (cluster.Config, launch.Options, error) {
	launchMode, err := launch.ParseMode(c.Launch.Mode)
	if err != nil {
		return cluster.Config{}, launch.Options{}, err
	}
	cc := cluster.Config{
		Topology:    c.Topology,
		MaxMachines: c.MaxMachines,
		Host:        c.Host,
		LogLevel:    level,
		RunnerType:  c.RunnerType,
		Binaries:    c.Binaries,
		PortRange:   c.Ports,
		Teardown:    mode,
		StatePath:   c.StatePath(),
	}
	if err := cc.Validate(); err != nil {
		return cluster.Config{}, launch.Options{}, err
	}
	opts := launch.Options{
		Mode:          launchMode,
		ReadyTimeout:  c.Launch.ReadyTimeout,
		LaunchTimeout: c.Launch.LaunchTimeout,
		PollInterval:  c.Launch.PollInterval,
	}
	return cc, opts, nil
}
