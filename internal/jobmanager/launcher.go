package jobmanager

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// Launch runs the executable at path with argv in a new process group and
// registers it as a Job. A background Job is announced as `[id] pid` and
// Launch returns straight away. A foreground Job is handed the terminal and
// Launch waits until it stops, exits or is killed.
//
// A failed start returns a LaunchError and registers nothing. A failed wait
// returns the Job along with a WaitError.
func (m *Manager) Launch(
	ctx context.Context,
	path string,
	argv []string,
	background bool,
) (*Job, error) {
	if path == "" {
		return nil, &LaunchError{Path: path, Err: errors.New("path cannot be empty")}
	}

	if len(argv) == 0 {
		argv = []string{path}
	}

	// NOTE: Path is set directly instead of via exec.Command so that no
	// lookup happens here and argv[0] stays as the user typed it.
	cmd := &exec.Cmd{
		Path:        path,
		Args:        argv,
		SysProcAttr: &syscall.SysProcAttr{Setpgid: true},
	}

	// Nil *os.File values must not end up in the io.Reader/io.Writer fields,
	// they'd close the descriptor in the child instead of using /dev/null.
	if m.stdin != nil {
		cmd.Stdin = m.stdin
	}

	if m.stdout != nil {
		cmd.Stdout = m.stdout
	}

	if m.stderr != nil {
		cmd.Stderr = m.stderr
	}

	// Holding the Registry lock keeps the Reaper out until the Job exists, so
	// an early exit can't be reaped and discarded as unknown.
	m.registry.mu.Lock()

	if err := cmd.Start(); err != nil {
		m.registry.mu.Unlock()
		return nil, &LaunchError{Path: path, Err: err}
	}

	pid := cmd.Process.Pid

	// The child already did this before exec. Repeating it here covers the
	// window where the parent runs first; EACCES means the child has exec'd
	// and the group is already set.
	if err := unix.Setpgid(pid, pid); err != nil && !errors.Is(err, unix.EACCES) {
		m.logger.Debug("set process group", "pid", pid, "err", err)
	}

	j := m.registry.create(path, strings.Join(argv, " "), pid, background)

	m.registry.mu.Unlock()

	// Statuses are collected by the Reaper, so the handle isn't needed.
	if err := cmd.Process.Release(); err != nil {
		m.logger.Debug("release process", "pid", pid, "err", err)
	}

	if background {
		fmt.Fprintf(m.out, "[%d] %d\n", j.id, pid)
		return j, nil
	}

	return j, m.waitForeground(ctx, j)
}

// waitForeground hands the terminal to j and blocks until j is no longer
// Running. The terminal is reclaimed for the shell on every return path.
func (m *Manager) waitForeground(ctx context.Context, j *Job) error {
	handed := true

	if err := m.terminal.HandTo(j.pgid); err != nil {
		handed = false
		m.logger.Warn("hand terminal to job", "id", j.id, "pgid", j.pgid, "err", err)
	}

	defer func() {
		if err := m.terminal.Reclaim(); err != nil {
			m.logger.Warn("reclaim terminal", "err", err)
		}
	}()

	retried := false

	for {
		switch j.State() {
		case JobStateRunning:
		case JobStateStopped:
			// A job that touched the terminal before the handoff landed gets
			// stopped by SIGTTIN/SIGTTOU. It owns the terminal now, so let it
			// carry on, once.
			if !handed || retried || !isTTYStop(j.StopSignal()) {
				return nil
			}

			retried = true

			m.registry.mu.Lock()
			err := m.resume(j)
			m.registry.mu.Unlock()

			if err != nil {
				m.logger.Warn("resume job after handoff", "id", j.id, "err", err)
				return nil
			}

		default:
			return nil
		}

		select {
		case <-j.changed:
		case <-ctx.Done():
			return &WaitError{Pgid: j.pgid, Err: ctx.Err()}
		}
	}
}

func isTTYStop(sig syscall.Signal) bool {
	return sig == syscall.SIGTTIN || sig == syscall.SIGTTOU
}
