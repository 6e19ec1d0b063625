package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mit-dci/parsec-local/localnet"
	"github.com/mit-dci/parsec-local/localnet/cluster"
	"github.com/mit-dci/parsec-local/localnet/launch"
	"github.com/mit-dci/parsec-local/localnet/ports"
	"github.com/mit-dci/parsec-local/localnet/teardown"
)

var (
	// CLI flags for the cluster shape
	numAgents         int // Number of agents
	numShards         int // Number of logical shards (shard clusters)
	numTicketMachines int // Number of ticket machines per replica
	replicationFactor int // Replicas per shard cluster and ticket machine

	// CLI flags for the run
	ip           string        // Address every process listens on
	port         int           // First candidate agent port
	runnerType   string        // Agent runner (evm or lua)
	killPids     bool          // Tear down by recorded pid once every unit was attempted
	killPnames   bool          // Tear down by process name once every unit was attempted
	launchMode   string        // pid or foreground
	readyTimeout time.Duration // Dependency readiness timeout
)

// runCmd brings a local cluster up from CLI flags and defaults.yaml
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch a local parsec cluster",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
		if err != nil {
			logrus.Fatalf("Failed to load configuration: %v", err)
		}
		applyRunFlags(cmd, &cfg)

		level, err := localnet.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %v", err)
		}
		runLog, err := setupLogging(cfg.LogDir, level)
		if err != nil {
			logrus.Fatalf("Failed to set up logging: %v", err)
		}
		defer runLog.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		prober := ports.DialProber{}
		if err := probeAgentBase(ctx, &cfg, prober); err != nil {
			logrus.Fatalf("Port check failed: %v", err)
		}

		mode := cluster.TeardownNone
		switch {
		case killPids:
			mode = cluster.TeardownByPID
		case killPnames:
			mode = cluster.TeardownByName
		}
		cc, opts, err := cfg.clusterConfig(level, mode)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		recordRunVars(cc, opts)

		roleLogs, err := launch.OpenRoleLogs(cfg.LogDir, level.Logrus())
		if err != nil {
			logrus.Fatalf("Failed to open role logs: %v", err)
		}
		defer roleLogs.Close()

		coord := teardown.NewCoordinator(teardown.SignalKiller{}, teardown.PgrepFinder{})
		orch := cluster.New(cc, launch.New(opts, roleLogs), coord, prober)
		logrus.Infof("Run %s starting", orch.RunID())

		sum, err := orch.Run(ctx)
		if sum == nil {
			logrus.Fatalf("Run aborted before launching: %v", err)
		}
		sum.Print(os.Stdout)
		if err != nil {
			logrus.Errorf("Run interrupted: %v", err)
			_ = roleLogs.Close()
			_ = runLog.Close()
			os.Exit(1)
		}
		if !sum.Complete() {
			logrus.Warn("Some processes were not launched; see the summary above")
		}
	},
}

// applyRunFlags overrides file values with flags the user actually set.
func applyRunFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("num-agents") {
		cfg.Topology.Agents = numAgents
	}
	if flags.Changed("num-shards") {
		cfg.Topology.LogicalShards = numShards
	}
	if flags.Changed("num-ticket-machines") {
		cfg.Topology.TicketMachines = numTicketMachines
	}
	if flags.Changed("replication-factor") {
		cfg.Topology.ReplicationFactor = replicationFactor
	}
	if flags.Changed("ip") {
		cfg.Host = ip
	}
	if flags.Changed("port") {
		r := cfg.Ports[ports.KindAgent]
		r.Base = port
		cfg.Ports[ports.KindAgent] = r
	}
	if flags.Changed("runner-type") {
		cfg.RunnerType = runnerType
	}
	if flags.Changed("launch-mode") {
		cfg.Launch.Mode = launchMode
	}
	if flags.Changed("ready-timeout") {
		cfg.Launch.ReadyTimeout = readyTimeout
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
}

// probeAgentBase moves the agent base to the first open port at or after it.
// The pre-flight region keeps its upper end.
func probeAgentBase(ctx context.Context, cfg *Config, prober ports.Prober) error {
	alloc, err := ports.NewAllocator(cfg.Host, cfg.Ports, prober)
	if err != nil {
		return err
	}
	r := cfg.Ports[ports.KindAgent]
	open, err := alloc.FindOpenPort(ctx, r.Base, r.Window)
	if err != nil {
		return err
	}
	logrus.Infof("Running agent on %s:%d", cfg.Host, open)
	if shift := open - r.Base; shift < r.Span {
		r.Span -= shift
	}
	r.Base = open
	cfg.Ports[ports.KindAgent] = r
	return nil
}

func recordRunVars(cc cluster.Config, opts launch.Options) {
	t := cc.Topology
	logrus.Infof("log level = %s", cc.LogLevel)
	logrus.Infof("Runner type = %s", cc.RunnerType)
	logrus.Infof("Launch mode = %s", opts.Mode)
	logrus.Infof("Number of agents = %d", t.Agents)
	logrus.Infof("Replication factor = %d", t.ReplicationFactor)
	logrus.Infof("Number of logical shards and shard clusters = %d", t.LogicalShards)
	logrus.Infof("Number of physical shards = %d", t.PhysicalShards())
	logrus.Infof("Number of ticket machines = %d", t.EffectiveTicketMachines())
	logrus.Infof("Teardown = %q", cc.Teardown)
}

// addTopologyFlags registers the cluster shape flags shared by run and plan.
func addTopologyFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&numAgents, "num-agents", 1, "Number of agents")
	cmd.Flags().IntVar(&numShards, "num-shards", 1, "Number of logical shards (shard clusters)")
	cmd.Flags().IntVar(&numTicketMachines, "num-ticket-machines", 1, "Number of ticket machines")
	cmd.Flags().IntVar(&replicationFactor, "replication-factor", 1, "Replication factor for shards and ticket machines")
}

func init() {
	addTopologyFlags(runCmd)
	runCmd.Flags().StringVar(&ip, "ip", "localhost", "Address every process listens on")
	runCmd.Flags().IntVar(&port, "port", ports.DefaultAgentBase, "First port tried for agents")
	runCmd.Flags().StringVar(&runnerType, "runner-type", launch.RunnerEVM, "Agent runner type (evm, lua)")
	runCmd.Flags().BoolVar(&killPids, "kill-pids", false, "Kill the processes in creation order once every unit was attempted")
	runCmd.Flags().BoolVar(&killPnames, "kill-pnames", false, "Kill the processes by name (agentd, shardd, ticket_machined) once every unit was attempted")
	runCmd.Flags().StringVar(&launchMode, "launch-mode", string(launch.ModePID), "How a start is confirmed (pid, foreground)")
	runCmd.Flags().DurationVar(&readyTimeout, "ready-timeout", launch.DefaultReadyTimeout, "How long to wait for a dependency endpoint")
	runCmd.MarkFlagsMutuallyExclusive("kill-pids", "kill-pnames")

	rootCmd.AddCommand(runCmd)
}
