// Package launcher supervises the fact-lookup tool server as a child
// process: start with a brief liveness check, poll, and graceful stop
// with a kill fallback.
package launcher

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"
)

const (
	// startupGrace is how long a freshly spawned process must stay alive
	// before Start reports success.
	startupGrace = 500 * time.Millisecond

	// stopTimeout is how long Stop waits after SIGTERM before escalating
	// to SIGKILL.
	stopTimeout = 5 * time.Second
)

// ErrAlreadyRunning is returned by Start when a child is already up.
var ErrAlreadyRunning = errors.New("launcher: tool server already running")

// Launcher manages at most one child process at a time.
type Launcher struct {
	command string
	args    []string
	logger  *slog.Logger

	cmd  *exec.Cmd
	done chan error
}

// New creates a launcher for the given command. Nothing is spawned until
// Start is called.
func New(command string, args []string, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		command: command,
		args:    args,
		logger:  logger,
	}
}

// Start spawns the child and waits a short grace period to catch
// immediate failures (missing binary, bad flags). The child inherits
// stderr so its logs surface in the parent's terminal.
func (l *Launcher) Start() (int, error) {
	if l.Running() {
		return l.cmd.Process.Pid, ErrAlreadyRunning
	}

	cmd := exec.Command(l.command, l.args...)
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("launcher: start %s: %w", l.command, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err == nil {
			err = errors.New("exited cleanly")
		}
		return 0, fmt.Errorf("launcher: %s exited during startup: %w", l.command, err)
	case <-time.After(startupGrace):
	}

	l.cmd = cmd
	l.done = done
	l.logger.Info("tool server started", "command", l.command, "pid", cmd.Process.Pid)
	return cmd.Process.Pid, nil
}

// Running reports whether the child process is currently alive.
func (l *Launcher) Running() bool {
	if l.cmd == nil || l.cmd.Process == nil {
		return false
	}
	select {
	case err := <-l.done:
		// Reaped: the child exited on its own since the last check.
		l.logger.Info("tool server exited", "command", l.command, "error", err)
		l.cmd = nil
		l.done = nil
		return false
	default:
		return true
	}
}

// PID returns the child's process ID, or 0 when nothing is running.
func (l *Launcher) PID() int {
	if !l.Running() {
		return 0
	}
	return l.cmd.Process.Pid
}

// Stop terminates the child: SIGTERM first, SIGKILL if it does not exit
// within stopTimeout. Stopping an already-stopped launcher is a no-op.
func (l *Launcher) Stop() error {
	if !l.Running() {
		return nil
	}

	pid := l.cmd.Process.Pid
	if err := l.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("launcher: signal pid %d: %w", pid, err)
	}

	select {
	case <-l.done:
	case <-time.After(stopTimeout):
		l.logger.Warn("tool server ignored SIGTERM, killing", "pid", pid)
		if err := l.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("launcher: kill pid %d: %w", pid, err)
		}
		<-l.done
	}

	l.logger.Info("tool server stopped", "pid", pid)
	l.cmd = nil
	l.done = nil
	return nil
}
