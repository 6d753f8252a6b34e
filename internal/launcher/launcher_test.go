package launcher

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestStartStop(t *testing.T) {
	l := New("sleep", []string{"30"}, testLogger())

	pid, err := l.Start()
	require.NoError(t, err)
	assert.Greater(t, pid, 0)
	assert.True(t, l.Running())
	assert.Equal(t, pid, l.PID())

	require.NoError(t, l.Stop())
	assert.False(t, l.Running())
	assert.Zero(t, l.PID())
}

func TestStartMissingBinary(t *testing.T) {
	l := New("/nonexistent/binary-xyz", nil, testLogger())

	_, err := l.Start()
	require.Error(t, err)
	assert.False(t, l.Running())
}

func TestStartImmediateExitFails(t *testing.T) {
	l := New("false", nil, testLogger())

	_, err := l.Start()
	require.Error(t, err)
	assert.False(t, l.Running())
}

func TestDoubleStart(t *testing.T) {
	l := New("sleep", []string{"30"}, testLogger())

	pid, err := l.Start()
	require.NoError(t, err)
	defer l.Stop()

	again, err := l.Start()
	require.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Equal(t, pid, again)
}

func TestRunningDetectsExit(t *testing.T) {
	l := New("true", nil, testLogger())

	// A process that exits right away never survives the startup grace.
	_, err := l.Start()
	require.Error(t, err)

	// Stop after failed start is a no-op.
	require.NoError(t, l.Stop())
}

func TestStopWhenNotRunning(t *testing.T) {
	l := New("sleep", []string{"30"}, testLogger())
	require.NoError(t, l.Stop())
}
