package jobmanager

import (
	"fmt"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"
)

// Job represents one process group launched by the shell. The process group
// id is the leader's pid.
//
// State changes are written with the Registry lock held. A single Job's state
// can be read at any time without the lock.
type Job struct {
	id      int
	uid     string
	path    string
	command string
	pgid    int

	state      AtomicJobState
	background atomic.Bool
	termSig    atomic.Int32
	stopSig    atomic.Int32
	exitCode   atomic.Int32

	// changed receives a token whenever the Reaper records a new state.
	changed chan struct{}
}

// JobStatus is a point-in-time snapshot of a Job.
type JobStatus struct {
	ID         int
	Pgid       int
	State      JobState
	Command    string
	Background bool
	Signal     syscall.Signal
}

func newJob(id int, path, command string, pgid int, background bool) *Job {
	j := &Job{
		id:      id,
		uid:     uuid.NewString(),
		path:    path,
		command: command,
		pgid:    pgid,
		changed: make(chan struct{}, 1),
	}

	j.state.Store(JobStateRunning)
	j.background.Store(background)
	j.termSig.Store(-1)
	j.stopSig.Store(-1)
	j.exitCode.Store(-1)

	return j
}

// ID returns the job id shown to the user.
func (j *Job) ID() int {
	return j.id
}

// UID returns a unique identifier for the Job. Unlike ID it is never reused.
func (j *Job) UID() string {
	return j.uid
}

// Path returns the executable path that was run.
func (j *Job) Path() string {
	return j.path
}

// Command returns the command line as typed, joined with single spaces.
func (j *Job) Command() string {
	return j.command
}

// Pgid returns the process group id of the Job.
func (j *Job) Pgid() int {
	return j.pgid
}

// State returns the state of the Job.
func (j *Job) State() JobState {
	return j.state.Load()
}

// Background returns whether the Job was launched with & or last resumed
// with bg.
func (j *Job) Background() bool {
	return j.background.Load()
}

// TermSignal returns the signal that terminated the Job, or -1 if it wasn't
// terminated by a signal.
func (j *Job) TermSignal() syscall.Signal {
	return syscall.Signal(j.termSig.Load())
}

// StopSignal returns the signal that last stopped the Job, or -1.
func (j *Job) StopSignal() syscall.Signal {
	return syscall.Signal(j.stopSig.Load())
}

// ExitCode returns the exit code of the process group leader or -1 if it
// hasn't exited normally.
func (j *Job) ExitCode() int {
	return int(j.exitCode.Load())
}

// Changed returns a channel that receives a value each time the Reaper
// records a state change for the Job. Tokens coalesce, so callers re-check
// State after each receive.
func (j *Job) Changed() <-chan struct{} {
	return j.changed
}

// Status returns a snapshot of the Job.
func (j *Job) Status() JobStatus {
	return JobStatus{
		ID:         j.id,
		Pgid:       j.pgid,
		State:      j.State(),
		Command:    j.command,
		Background: j.Background(),
		Signal:     j.TermSignal(),
	}
}

// setState moves the Job to s, returning an InvalidStateError if the Job is
// already finished. Callers hold the Registry lock.
func (j *Job) setState(s JobState) error {
	from := j.state.Load()
	if !canTransition(from, s) || !j.state.CompareAndSwap(from, s) {
		return NewInvalidStateError(from, s)
	}

	return nil
}

func (j *Job) notify() {
	select {
	case j.changed <- struct{}{}:
	default:
	}
}

// String formats the status as a line of `jobs` output.
func (s JobStatus) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%d] %d %s %s", s.ID, s.Pgid, s.State, s.Command)

	if s.Background {
		b.WriteString(" &")
	}

	return b.String()
}
