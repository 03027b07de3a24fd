package jobmanager

import (
	"log/slog"
	"syscall"

	"golang.org/x/sys/unix"
)

// Mark records a status for pgid as if the Reaper had collected it.
func Mark(r *Registry, pgid int, state JobState, sig syscall.Signal) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.mark(pgid, reapStatus{state: state, signal: sig})
}

// NewReaperWithWait creates a Reaper that polls wait instead of the OS.
func NewReaperWithWait(
	r *Registry,
	wait func(ws *unix.WaitStatus) (int, error),
) *Reaper {
	rp := NewReaper(r, slog.New(slog.DiscardHandler))
	rp.wait = wait

	return rp
}
