package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// defaultsFilePath is the defaults file read when --config is not given.
const defaultsFilePath = "defaults.yaml"

var (
	configPath string // Path to the defaults file
	logLevel   string // Log verbosity level
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:          "parsec-local",
	Short:        "Stand up and tear down a local parsec test cluster",
	SilenceUsage: true,
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultsFilePath, "Path to the defaults file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "WARN", "Log level (DEBUG, INFO, WARN, ERROR, CRITICAL)")
}
