package launch

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-dci/parsec-local/localnet"
)

func TestOpenRoleLogs_CreatesOneFilePerRole(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	logs, err := OpenRoleLogs(dir, logrus.InfoLevel)
	require.NoError(t, err)
	defer logs.Close()

	for _, r := range localnet.Roles {
		_, err := os.Stat(filepath.Join(dir, r.LogFile()))
		assert.NoError(t, err, "missing log for %s", r)
		assert.Equal(t, filepath.Join(dir, r.LogFile()), logs.Path(r))
	}
	assert.Equal(t, dir, logs.Dir())
}

func TestRoleLogs_AppendsAcrossOpens(t *testing.T) {
	dir := t.TempDir()

	first, err := OpenRoleLogs(dir, logrus.InfoLevel)
	require.NoError(t, err)
	first.Logger(localnet.RoleAgent).Info("first run")
	require.NoError(t, first.Close())

	second, err := OpenRoleLogs(dir, logrus.InfoLevel)
	require.NoError(t, err)
	second.Logger(localnet.RoleAgent).Info("second run")
	require.NoError(t, second.Close())

	data, err := os.ReadFile(filepath.Join(dir, localnet.RoleAgent.LogFile()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "first run")
	assert.Contains(t, string(data), "second run")
	assert.Contains(t, string(data), "role=agent")
}

func TestRoleLogs_LevelFiltersLauncherLines(t *testing.T) {
	dir := t.TempDir()
	logs, err := OpenRoleLogs(dir, logrus.WarnLevel)
	require.NoError(t, err)

	logs.Logger(localnet.RoleShard).Info("chatty")
	logs.Logger(localnet.RoleShard).Warn("important")
	require.NoError(t, logs.Close())

	data, err := os.ReadFile(filepath.Join(dir, localnet.RoleShard.LogFile()))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "chatty")
	assert.Contains(t, string(data), "important")
}

func TestRoleLogs_AfterClose(t *testing.T) {
	logs, err := OpenRoleLogs(t.TempDir(), logrus.InfoLevel)
	require.NoError(t, err)
	require.NoError(t, logs.Close())

	assert.Equal(t, io.Discard, logs.Writer(localnet.RoleShard))
	assert.Nil(t, logs.File(localnet.RoleShard))
	assert.NotPanics(t, func() { logs.Logger(localnet.RoleShard).Info("dropped") })
}
