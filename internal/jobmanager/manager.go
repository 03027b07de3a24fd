package jobmanager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Terminal moves ownership of the controlling terminal between the shell and
// its jobs.
type Terminal interface {
	// HandTo makes pgid the foreground process group of the terminal.
	HandTo(pgid int) error

	// Reclaim makes the shell's own process group the foreground process group
	// again.
	Reclaim() error
}

// Config configures a Manager.
type Config struct {
	Terminal Terminal

	// Stdin, Stdout and Stderr are inherited by launched processes. A nil file
	// is replaced with the null device.
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// Output receives user-facing job notices. Defaults to os.Stdout.
	Output io.Writer

	Logger *slog.Logger
}

// Manager launches Jobs and implements job control on them.
type Manager struct {
	registry *Registry
	reaper   *Reaper
	terminal Terminal

	stdin  *os.File
	stdout *os.File
	stderr *os.File
	out    io.Writer

	logger *slog.Logger

	startOnce sync.Once
	done      chan struct{}
}

// NewManager creates a new Manager ready to run Jobs. Call Start before
// launching anything in the foreground.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Terminal == nil {
		return nil, errors.New("terminal cannot be nil")
	}

	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	registry := NewRegistry(cfg.Logger)

	return &Manager{
		registry: registry,
		reaper:   NewReaper(registry, cfg.Logger),
		terminal: cfg.Terminal,
		stdin:    cfg.Stdin,
		stdout:   cfg.Stdout,
		stderr:   cfg.Stderr,
		out:      cfg.Output,
		logger:   cfg.Logger,
		done:     make(chan struct{}),
	}, nil
}

// NewManagerWithDefaults creates a Manager whose Jobs share the shell's
// standard streams.
func NewManagerWithDefaults(terminal Terminal, logger *slog.Logger) (*Manager, error) {
	return NewManager(Config{
		Terminal: terminal,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Output:   os.Stdout,
		Logger:   logger,
	})
}

// Start runs the Reaper in a background goroutine until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		go func() {
			defer close(m.done)
			m.reaper.Run(ctx)
		}()
	})
}

// Done returns a channel that is closed once the Reaper started by Start has
// returned.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Registry returns the Manager's Registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Jobs returns the status of every Running or Stopped Job in creation order.
func (m *Manager) Jobs() []JobStatus {
	jobs := m.registry.Jobs()

	statuses := make([]JobStatus, 0, len(jobs))
	for _, j := range jobs {
		if j.State().Finished() {
			continue
		}

		statuses = append(statuses, j.Status())
	}

	return statuses
}

// Cleanup brings the Registry up to date with any pending child statuses,
// then removes finished Jobs, reporting terminated ones to the output.
func (m *Manager) Cleanup() {
	m.reaper.Reap()
	m.registry.RemoveFinished(m.out)
}

// Foreground resumes the Job with the given id in the foreground and waits
// until it stops, exits or is killed.
func (m *Manager) Foreground(ctx context.Context, id int) error {
	m.registry.mu.Lock()

	j, err := m.registry.findByID(id)
	if err != nil {
		m.registry.mu.Unlock()
		return err
	}

	j.background.Store(false)

	if j.State() == JobStateStopped {
		if err := m.resume(j); err != nil {
			m.registry.mu.Unlock()
			return err
		}
	}

	m.registry.mu.Unlock()

	return m.waitForeground(ctx, j)
}

// Background resumes the stopped Job with the given id in the background. It
// doesn't wait.
func (m *Manager) Background(id int) error {
	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()

	j, err := m.registry.findByID(id)
	if err != nil {
		return err
	}

	if j.State() == JobStateRunning {
		return ErrAlreadyRunning
	}

	if err := m.resume(j); err != nil {
		return err
	}

	j.background.Store(true)

	return nil
}

// Kill sends SIGTERM to the process group of the Job with the given id. A
// stopped Job is also continued so it can act on the signal. The Job's state
// is left for the Reaper to update.
func (m *Manager) Kill(id int) error {
	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()

	j, err := m.registry.findByID(id)
	if err != nil {
		return err
	}

	if err := m.signal(j, syscall.SIGTERM); err != nil {
		return err
	}

	if j.State() == JobStateStopped {
		return m.signal(j, syscall.SIGCONT)
	}

	return nil
}

// Shutdown makes a 'best effort' attempt to hang up every Job before the
// shell exits. Stopped Jobs are also continued so they see the SIGHUP.
// Failures are reported to the output and don't stop the remaining Jobs from
// being signalled. The Registry is empty afterwards.
func (m *Manager) Shutdown() {
	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()

	for _, j := range m.registry.jobs {
		state := j.State()
		if state.Finished() {
			continue
		}

		if err := m.signal(j, syscall.SIGHUP); err != nil {
			m.logger.Warn("hang up job", "id", j.id, "pgid", j.pgid, "err", err)
			fmt.Fprintln(m.out, "SIGHUP failed")
			continue
		}

		if state == JobStateStopped {
			if err := m.signal(j, syscall.SIGCONT); err != nil {
				m.logger.Warn("continue job", "id", j.id, "pgid", j.pgid, "err", err)
				fmt.Fprintln(m.out, "SIGCONT failed")
			}
		}
	}

	m.registry.clear()
}

// resume continues a stopped Job and marks it Running. Callers hold the
// Registry lock.
func (m *Manager) resume(j *Job) error {
	if from := j.State(); !canTransition(from, JobStateRunning) {
		return NewInvalidStateError(from, JobStateRunning)
	}

	if err := m.signal(j, syscall.SIGCONT); err != nil {
		return err
	}

	return j.setState(JobStateRunning)
}

func (m *Manager) signal(j *Job, sig syscall.Signal) error {
	if err := unix.Kill(-j.pgid, sig); err != nil {
		return &SignalError{Pgid: j.pgid, Signal: sig, Err: err}
	}

	m.logger.Debug("signalled job", "id", j.id, "pgid", j.pgid, "signal", sig)

	return nil
}
