package cmd

import (
	"bytes"
	"context"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mit-dci/parsec-local/localnet"
	"github.com/mit-dci/parsec-local/localnet/teardown"
)

// captureLogOutput runs fn with the standard logger writing into a buffer at level.
func captureLogOutput(level logrus.Level, fn func()) string {
	var buf bytes.Buffer
	origOutput := logrus.StandardLogger().Out
	origLevel := logrus.GetLevel()
	logrus.SetOutput(&buf)
	logrus.SetLevel(level)
	defer func() {
		if origOutput != nil {
			logrus.SetOutput(origOutput)
		} else {
			logrus.SetOutput(os.Stderr)
		}
		logrus.SetLevel(origLevel)
	}()
	fn()
	return buf.String()
}

// recordingTerminator remembers every teardown request.
type recordingTerminator struct {
	mu      sync.Mutex
	handles []localnet.ProcessHandle
	roles   []localnet.Role
	// refuse is a pid whose kill fails.
	refuse int
}

func (r *recordingTerminator) TeardownByHandles(_ context.Context, handles []localnet.ProcessHandle) teardown.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles = append(r.handles, handles...)
	res := teardown.Result{Attempted: len(handles)}
	for _, h := range handles {
		if h.PID == r.refuse {
			res.Failed++
			res.FailedPIDs = append(res.FailedPIDs, h.PID)
		}
	}
	return res
}

func (r *recordingTerminator) TeardownRole(_ context.Context, role localnet.Role) teardown.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles = append(r.roles, role)
	return teardown.Result{Attempted: 1}
}
