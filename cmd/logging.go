package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/mit-dci/parsec-local/localnet"
)

// runLogFile collects the tool's own log lines next to the role logs.
const runLogFile = "parsec-run-local.log"

// setupLogging sends the standard logger to stderr and to the run log in dir.
func setupLogging(dir string, level localnet.LogLevel) (io.Closer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, runLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, f))
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(level.Logrus())
	return f, nil
}
