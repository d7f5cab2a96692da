package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFileLifecycle(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "run", "wsbridge.pid"))

	pid, err := d.ReadPID()
	require.NoError(t, err)
	assert.Zero(t, pid)

	running, _, err := d.IsRunning()
	require.NoError(t, err)
	assert.False(t, running)

	require.NoError(t, d.WritePID())

	running, pid, err = d.IsRunning()
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, d.RemovePID())
	require.NoError(t, d.RemovePID(), "removing a missing PID file is not an error")
}

func TestInvalidPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wsbridge.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0644))

	_, err := New(path).ReadPID()
	assert.Error(t, err)
}

func TestStalePIDFileIsRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wsbridge.pid")
	// PIDs are capped well below this on Linux
	require.NoError(t, os.WriteFile(path, []byte("99999999\n"), 0644))

	d := New(path)
	running, _, err := d.IsRunning()
	require.NoError(t, err)
	assert.False(t, running)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, d.Stop(time.Second), ErrNotRunning)
}

func TestIsChild(t *testing.T) {
	t.Setenv(ChildEnv, "")
	assert.False(t, IsChild())

	t.Setenv(ChildEnv, "1")
	assert.True(t, IsChild())
}
