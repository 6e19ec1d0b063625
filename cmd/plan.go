package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mit-dci/parsec-local/localnet"
	"github.com/mit-dci/parsec-local/localnet/ports"
)

// planCmd prints the launch plan without starting anything
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the units a run would launch",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
		if err != nil {
			logrus.Fatalf("Failed to load configuration: %v", err)
		}
		applyRunFlags(cmd, &cfg)

		plan, err := localnet.BuildPlan(cfg.Topology, cfg.MaxMachines)
		if err != nil {
			logrus.Fatalf("Invalid topology: %v", err)
		}
		printPlan(os.Stdout, plan)
	},
}

func printPlan(w io.Writer, plan localnet.Plan) {
	fmt.Fprintln(w, "=== Launch Plan ===")
	fmt.Fprintf(w, "Topology             : %s\n", plan.Topology)
	fmt.Fprintf(w, "Basic                : %t\n", plan.Basic)
	for _, r := range localnet.Roles {
		fmt.Fprintf(w, "%-21s: %d attempts\n", r, plan.Attempts(r))
	}
	need := ports.EstimatePortsNeeded(plan.Topology)
	fmt.Fprintf(w, "Ports needed         : %d\n", need.Total())
	for _, u := range plan.Units {
		fmt.Fprintf(w, "  %s\n", u)
	}
}

func init() {
	addTopologyFlags(planCmd)
	rootCmd.AddCommand(planCmd)
}
