package jobmanager

import "sync/atomic"

type JobState int

const (
	// JobStateUnknown indicates the state of the job is unknown. It's used as
	// the zero value for functions that return a (possibly absent) JobState.
	JobStateUnknown JobState = iota

	// JobStateRunning indicates the process group is running, either in the
	// foreground or the background.
	JobStateRunning

	// JobStateStopped indicates the process group was stopped by a signal,
	// e.g. the user pressed Ctrl-Z. The job can be resumed with fg or bg.
	JobStateStopped

	// JobStateTerminated indicates the process group leader was killed by a
	// signal. The job is removed on the next cleanup pass.
	JobStateTerminated

	// JobStateCompleted indicates the process group leader exited normally.
	// The job is removed on the next cleanup pass.
	JobStateCompleted
)

// NOTE: This slice needs to be kept in sync with any changes to the JobState
// values.
var jobStates = []string{
	"Unknown",
	"Running",
	"Stopped",
	"Terminated",
	"Completed",
}

// String implements the Stringer interface for JobState and returns a string
// representation of the JobState by using the int value to index into a slice.
func (s JobState) String() string {
	if int(s) < 0 || int(s) >= len(jobStates) {
		return jobStates[0]
	}

	return jobStates[s]
}

// Finished reports whether s is one of the absorbing states a job never
// leaves.
func (s JobState) Finished() bool {
	return s == JobStateTerminated || s == JobStateCompleted
}

// canTransition reports whether a job may move from one state to another.
// Running and Stopped flip freely; Terminated and Completed are absorbing.
func canTransition(from, to JobState) bool {
	return !from.Finished() && to != JobStateUnknown
}

// AtomicJobState is a wrapper around an atomic.Int32 to provide atomic
// operations on a JobState. Writers hold the Registry lock; readers that only
// look at a single job's state don't need to.
type AtomicJobState struct {
	v atomic.Int32
}

// Load atomically loads the JobState value.
func (a *AtomicJobState) Load() JobState {
	return JobState(a.v.Load())
}

// Store atomically stores the JobState value.
func (a *AtomicJobState) Store(s JobState) {
	a.v.Store(int32(s))
}

// CompareAndSwap performs an atomic compare-and-swap operation with an old and
// new JobState.
func (a *AtomicJobState) CompareAndSwap(o, n JobState) bool {
	return a.v.CompareAndSwap(int32(o), int32(n))
}
