package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mit-dci/parsec-local/localnet"
	"github.com/mit-dci/parsec-local/localnet/cluster"
	"github.com/mit-dci/parsec-local/localnet/teardown"
)

var (
	byPID  bool // Kill the processes recorded in the run-state file
	byName bool // Kill every allow-listed parsec process by name
)

// teardownCmd stops a cluster left running by an earlier run
var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Stop the processes of a local parsec cluster",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
		if err != nil {
			logrus.Fatalf("Failed to load configuration: %v", err)
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
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

		coord := teardown.NewCoordinator(teardown.SignalKiller{}, teardown.PgrepFinder{})
		var res teardown.Result
		if byPID {
			res, err = teardownFromState(ctx, coord, cfg.StatePath())
			if err != nil {
				logrus.Fatalf("Teardown failed: %v", err)
			}
		} else {
			res = teardownByNames(ctx, coord)
		}
		fmt.Printf("Killed %d of %d processes in %s\n", res.Killed(), res.Attempted, res.Elapsed)
		if res.Err != nil {
			logrus.Warnf("Some processes could not be killed: %v", res.Err)
		}
	},
}

// teardownFromState kills the handles recorded at path. The file is removed
// once every kill succeeded, otherwise it is rewritten with the survivors.
func teardownFromState(ctx context.Context, t cluster.Terminator, path string) (teardown.Result, error) {
	st, err := cluster.LoadRunState(path)
	if errors.Is(err, cluster.ErrNoRunState) {
		logrus.Infof("Nothing to tear down: %v", err)
		return teardown.Result{}, nil
	}
	if err != nil {
		return teardown.Result{}, err
	}
	logrus.Infof("Tearing down run %s (%d processes)", st.RunID, len(st.Handles))
	res := cluster.TeardownHandles(ctx, t, st.Handles)
	if res.Failed == 0 {
		return res, cluster.RemoveRunState(path)
	}
	var survivors []localnet.ProcessHandle
	for _, h := range st.Handles {
		if slices.Contains(res.FailedPIDs, h.PID) {
			survivors = append(survivors, h)
		}
	}
	if len(survivors) == 0 {
		return res, nil
	}
	logrus.Warnf("%d processes survived; keeping them in %s", len(survivors), path)
	st.Handles = survivors
	return res, cluster.SaveRunState(path, *st)
}

// teardownByNames kills every allow-listed executable, agents first.
func teardownByNames(ctx context.Context, t cluster.Terminator) teardown.Result {
	var total teardown.Result
	for i := len(localnet.Roles) - 1; i >= 0; i-- {
		total.Merge(t.TeardownRole(ctx, localnet.Roles[i]))
	}
	return total
}

func init() {
	teardownCmd.Flags().BoolVar(&byPID, "by-pid", false, "Kill the processes recorded by the last run, in creation order")
	teardownCmd.Flags().BoolVar(&byName, "by-name", false, "Kill every runtime_locking_shardd, replicated_shard, ticket_machined and agentd process")
	teardownCmd.MarkFlagsMutuallyExclusive("by-pid", "by-name")
	teardownCmd.MarkFlagsOneRequired("by-pid", "by-name")

	rootCmd.AddCommand(teardownCmd)
}
