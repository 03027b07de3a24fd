// Package terminal moves ownership of the controlling terminal between the
// shell's process group and the process groups of its jobs.
package terminal

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Terminal is the controlling terminal of an interactive shell. When the
// shell isn't attached to a terminal every handoff is a no-op.
type Terminal struct {
	fd          int
	interactive bool
	shellPgid   int

	logger *slog.Logger
}

// New creates a Terminal on f, normally os.Stdin. The calling process's group
// is recorded as the shell's process group.
func New(f *os.File, logger *slog.Logger) *Terminal {
	fd := int(f.Fd())

	return &Terminal{
		fd:          fd,
		interactive: term.IsTerminal(fd),
		shellPgid:   unix.Getpgrp(),
		logger:      logger,
	}
}

// Interactive reports whether the shell is attached to a terminal.
func (t *Terminal) Interactive() bool {
	return t.interactive
}

// ShellPgid returns the shell's own process group id.
func (t *Terminal) ShellPgid() int {
	return t.shellPgid
}

// HandTo makes pgid the foreground process group of the terminal.
func (t *Terminal) HandTo(pgid int) error {
	if !t.interactive {
		return nil
	}

	if err := t.setForeground(pgid); err != nil {
		return fmt.Errorf("hand terminal to %d: %w", pgid, err)
	}

	t.logger.Debug("terminal handed off", "pgid", pgid)

	return nil
}

// Reclaim makes the shell's process group the foreground process group of
// the terminal again.
func (t *Terminal) Reclaim() error {
	if !t.interactive {
		return nil
	}

	if err := t.setForeground(t.shellPgid); err != nil {
		return fmt.Errorf("reclaim terminal: %w", err)
	}

	t.logger.Debug("terminal reclaimed", "pgid", t.shellPgid)

	return nil
}

// Foreground returns the terminal's current foreground process group.
func (t *Terminal) Foreground() (int, error) {
	if !t.interactive {
		return 0, fmt.Errorf("not a terminal")
	}

	return unix.IoctlGetInt(t.fd, unix.TIOCGPGRP)
}

func (t *Terminal) setForeground(pgid int) error {
	// Changing the foreground group from a background group raises SIGTTOU,
	// which would stop the shell. It is ignored only for the duration of the
	// call: an ignored disposition survives exec and children would inherit
	// it.
	signal.Ignore(syscall.SIGTTOU)
	defer signal.Reset(syscall.SIGTTOU)

	for {
		err := unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, pgid)
		if err == unix.EINTR {
			continue
		}

		return err
	}
}
