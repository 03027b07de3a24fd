package jobmanager

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"syscall"
)

// Registry is the ordered table of Jobs known to the shell. Insertion order
// is job id order.
//
// The Registry lock also excludes the Reaper. Structural changes (insert and
// remove) and any read-modify-write across Jobs happen with it held.
type Registry struct {
	// NOTE: Job ids restart at 1 once the Registry is empty rather than growing
	// forever. That keeps ids small, but an id held from before the Registry
	// emptied can end up naming a different Job. Log lines carry the Job UID
	// to tell them apart.
	jobs   []*Job
	nextID int

	logger *slog.Logger

	mu sync.Mutex
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Create registers a new Running Job at the tail of the Registry.
func (r *Registry) Create(
	path string,
	command string,
	pgid int,
	background bool,
) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.create(path, command, pgid, background)
}

func (r *Registry) create(
	path string,
	command string,
	pgid int,
	background bool,
) *Job {
	if len(r.jobs) == 0 {
		r.nextID = 1
	} else {
		r.nextID++
	}

	j := newJob(r.nextID, path, command, pgid, background)
	r.jobs = append(r.jobs, j)

	r.logger.Debug(
		"job created",
		"id", j.id,
		"uid", j.uid,
		"pgid", pgid,
		"background", background,
	)

	return j
}

// FindByPgid returns the Job with the given process group id or
// ErrJobNotFound.
func (r *Registry) FindByPgid(pgid int) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.findByPgid(pgid)
}

func (r *Registry) findByPgid(pgid int) (*Job, error) {
	for _, j := range r.jobs {
		if j.pgid == pgid {
			return j, nil
		}
	}

	return nil, ErrJobNotFound
}

// FindByID returns the Job with the given job id or ErrJobNotFound.
func (r *Registry) FindByID(id int) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.findByID(id)
}

func (r *Registry) findByID(id int) (*Job, error) {
	for _, j := range r.jobs {
		if j.id == id {
			return j, nil
		}
	}

	return nil, ErrJobNotFound
}

// reapStatus is a child status translated into Registry terms.
type reapStatus struct {
	state  JobState
	signal syscall.Signal
	code   int
}

// mark records a reaped status for the Job leading process group pgid.
// Statuses for unknown process groups are discarded. Callers hold the lock.
func (r *Registry) mark(pgid int, st reapStatus) bool {
	j, err := r.findByPgid(pgid)
	if err != nil {
		r.logger.Debug("discard status for unknown process group", "pgid", pgid)
		return false
	}

	from := j.State()
	if !canTransition(from, st.state) {
		r.logger.Debug(
			"discard status",
			"id", j.id,
			"pgid", pgid,
			"err", NewInvalidStateError(from, st.state),
		)
		return false
	}

	// Details go in before the state so a lock-free reader that sees the new
	// state also sees them.
	switch st.state {
	case JobStateTerminated:
		j.termSig.Store(int32(st.signal))
	case JobStateStopped:
		j.stopSig.Store(int32(st.signal))
	case JobStateCompleted:
		j.exitCode.Store(int32(st.code))
	}

	if !j.state.CompareAndSwap(from, st.state) {
		return false
	}

	j.notify()

	return true
}

// RemoveFinished removes every Completed or Terminated Job in a single pass.
// Each Terminated Job is reported to w before it is removed.
func (r *Registry) RemoveFinished(w io.Writer) []*Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []*Job

	r.jobs = slices.DeleteFunc(r.jobs, func(j *Job) bool {
		state := j.State()
		if !state.Finished() {
			return false
		}

		if state == JobStateTerminated {
			fmt.Fprintf(
				w,
				"[%d] %d terminated by signal %d\n",
				j.id,
				j.pgid,
				int(j.TermSignal()),
			)
		}

		r.logger.Debug(
			"job removed",
			"id", j.id,
			"uid", j.uid,
			"pgid", j.pgid,
			"state", state,
			"exit_code", j.ExitCode(),
		)

		removed = append(removed, j)

		return true
	})

	return removed
}

// Jobs returns the Jobs in creation order.
func (r *Registry) Jobs() []*Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.jobs)
}

// Len returns the number of tracked Jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.jobs)
}

// clear drops every Job. Callers hold the lock.
func (r *Registry) clear() {
	r.jobs = nil
}
