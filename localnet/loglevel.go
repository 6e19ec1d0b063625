package localnet

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogLevel is the tool's verbosity, one of a fixed ordered set.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
)

var levelNames = []string{"DEBUG", "INFO", "WARN", "ERROR", "CRITICAL"}

// binaryLevels are the names the parsec executables accept for --loglevel.
var binaryLevels = []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

var logrusLevels = []logrus.Level{
	logrus.DebugLevel,
	logrus.InfoLevel,
	logrus.WarnLevel,
	logrus.ErrorLevel,
	logrus.FatalLevel,
}

// ParseLogLevel accepts DEBUG, INFO, WARN, ERROR or CRITICAL, case-insensitively.
// WARNING is accepted as an alias of WARN.
func ParseLogLevel(s string) (LogLevel, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	if up == "WARNING" {
		up = "WARN"
	}
	for i, name := range levelNames {
		if name == up {
			return LogLevel(i), nil
		}
	}
	return LevelWarn, fmt.Errorf("invalid log level %q (choose from %s)", s, strings.Join(levelNames, ", "))
}

func (l LogLevel) valid() bool {
	return l >= LevelDebug && l <= LevelCritical
}

func (l LogLevel) String() string {
	if !l.valid() {
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
	return levelNames[l]
}

// Logrus returns the matching logrus level.
func (l LogLevel) Logrus() logrus.Level {
	if !l.valid() {
		return logrus.WarnLevel
	}
	return logrusLevels[l]
}

// BinaryFlag returns the value passed to the executables' --loglevel flag.
func (l LogLevel) BinaryFlag() string {
	if !l.valid() {
		return "WARN"
	}
	return binaryLevels[l]
}
