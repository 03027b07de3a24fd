package jobmanager

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// waitFunc polls for any child that changed state without blocking. It has
// the shape of unix.Wait4(-1, ws, WNOHANG|WUNTRACED, nil).
type waitFunc func(ws *unix.WaitStatus) (int, error)

func wait4Any(ws *unix.WaitStatus) (int, error) {
	return unix.Wait4(-1, ws, unix.WNOHANG|unix.WUNTRACED, nil)
}

// Reaper collects status changes for the shell's children and records them
// in a Registry.
//
// The OS signal handler only queues a SIGCHLD on a channel. The Registry is
// updated from ordinary code in Run, or synchronously via Reap before the
// shell reads the Registry.
type Reaper struct {
	registry *Registry
	logger   *slog.Logger
	wait     waitFunc
}

// NewReaper creates a Reaper that records into registry.
func NewReaper(registry *Registry, logger *slog.Logger) *Reaper {
	return &Reaper{
		registry: registry,
		logger:   logger,
		wait:     wait4Any,
	}
}

// Run reaps children each time a SIGCHLD arrives until ctx is done.
func (rp *Reaper) Run(ctx context.Context) {
	// NOTE: Delivery coalesces, so a single queued SIGCHLD may stand for many
	// children. Reap drains everything that is ready each time.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGCHLD)
	defer signal.Stop(sigCh)

	rp.Reap()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			rp.Reap()
		}
	}
}

// Reap polls for every child that changed state without blocking and records
// each status in the Registry. It returns the number of statuses collected.
//
// The Registry lock is held for the whole pass, so a child can't be reaped
// between being started and being registered.
func (rp *Reaper) Reap() int {
	rp.registry.mu.Lock()
	defer rp.registry.mu.Unlock()

	var n int

	for {
		var ws unix.WaitStatus

		pid, err := rp.wait(&ws)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}

			// ECHILD: no children left.
			if !errors.Is(err, unix.ECHILD) {
				rp.logger.Warn("wait for children", "err", err)
			}

			return n
		}

		if pid <= 0 {
			return n
		}

		n++

		st, ok := translate(ws)
		if !ok {
			continue
		}

		if rp.registry.mark(pid, st) {
			rp.logger.Debug(
				"reaped",
				"pgid", pid,
				"state", st.state,
				"signal", st.signal,
				"code", st.code,
			)
		}
	}
}

// translate maps a wait status onto a job state. Continued and other
// statuses aren't recorded.
func translate(ws unix.WaitStatus) (reapStatus, bool) {
	switch {
	case ws.Exited():
		return reapStatus{state: JobStateCompleted, code: ws.ExitStatus()}, true

	case ws.Stopped():
		return reapStatus{
			state:  JobStateStopped,
			signal: ws.StopSignal(),
		}, true

	case ws.Signaled():
		return reapStatus{
			state:  JobStateTerminated,
			signal: ws.Signal(),
		}, true

	default:
		return reapStatus{}, false
	}
}
