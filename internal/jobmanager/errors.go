package jobmanager

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrAlreadyRunning = errors.New("job is already running")
)

// InvalidStateError is returned when attempting an invalid Job state
// transition.
type InvalidStateError struct {
	from JobState
	to   JobState
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("cannot go from %s to %s", e.from, e.to)
}

func NewInvalidStateError(from, to JobState) InvalidStateError {
	return InvalidStateError{from, to}
}

// LaunchError is returned when a command could not be started. No Job exists
// for a failed launch.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// SignalError is returned when a signal could not be delivered to a job's
// process group.
type SignalError struct {
	Pgid   int
	Signal syscall.Signal
	Err    error
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("send %s to %d: %v", e.Signal, e.Pgid, e.Err)
}

func (e *SignalError) Unwrap() error {
	return e.Err
}

// WaitError is returned when a foreground wait ends before the job changed
// state. The job keeps its last known state.
type WaitError struct {
	Pgid int
	Err  error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("wait for %d: %v", e.Pgid, e.Err)
}

func (e *WaitError) Unwrap() error {
	return e.Err
}
