package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/nixpig/jobsh/internal/jobmanager"
	"github.com/nixpig/jobsh/internal/parser"
	"github.com/nixpig/jobsh/internal/resolve"
)

var (
	errTooManyArgs = errors.New("too many arguments")
	errWrongArgs   = errors.New("wrong number of arguments")

	// errExit is returned by the exit built-in to end the read loop.
	errExit = errors.New("exit")
)

type builtin func(ctx context.Context, args []string) error

func (s *Shell) listJobs(_ context.Context, args []string) error {
	if len(args) > 0 {
		return errTooManyArgs
	}

	for _, status := range s.jobs.Jobs() {
		fmt.Fprintln(s.out, status)
	}

	return nil
}

func (s *Shell) fg(ctx context.Context, args []string) error {
	id, err := jobArg(args)
	if err != nil {
		return err
	}

	return s.jobs.Foreground(ctx, id)
}

func (s *Shell) bg(_ context.Context, args []string) error {
	id, err := jobArg(args)
	if err != nil {
		return err
	}

	return s.jobs.Background(id)
}

func (s *Shell) kill(_ context.Context, args []string) error {
	id, err := jobArg(args)
	if err != nil {
		return err
	}

	return s.jobs.Kill(id)
}

func (s *Shell) cd(_ context.Context, args []string) error {
	if len(args) > 1 {
		return errTooManyArgs
	}

	dir := os.Getenv("HOME")
	if len(args) == 1 {
		dir = args[0]
	}

	if dir == "" {
		return nil
	}

	if err := os.Chdir(dir); err != nil {
		s.logger.Debug("change directory", "dir", dir, "err", err)
		return fmt.Errorf("no such file or directory: %s", dir)
	}

	return os.Setenv("PWD", dir)
}

func (s *Shell) exit(_ context.Context, args []string) error {
	if len(args) > 0 {
		return errTooManyArgs
	}

	return errExit
}

// jobArg parses the single %N argument taken by fg, bg and kill.
func jobArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errWrongArgs
	}

	return parser.ParseJobID(args[0])
}

// mapError translates errors from job control into the message shown to the
// user after the command name.
func mapError(name string, err error) string {
	var (
		launchErr *jobmanager.LaunchError
		signalErr *jobmanager.SignalError
		waitErr   *jobmanager.WaitError
		stateErr  jobmanager.InvalidStateError
	)

	switch {
	case errors.As(err, &launchErr):
		if !isExecFailure(launchErr.Err) {
			return launchErr.Err.Error()
		}

		if resolve.IsPath(name) {
			return resolve.ErrNoSuchFile.Error()
		}

		return resolve.ErrNotFound.Error()

	case errors.As(err, &signalErr):
		if signalErr.Signal == syscall.SIGTERM {
			return "could not terminate job"
		}

		return "could not continue process"

	case errors.As(err, &waitErr):
		return waitErr.Err.Error()

	// The job finished after the last cleanup and is about to be purged.
	case errors.As(err, &stateErr):
		return jobmanager.ErrJobNotFound.Error()

	default:
		return err.Error()
	}
}

// isExecFailure reports whether err means the file couldn't be executed, as
// opposed to the process not being created at all.
func isExecFailure(err error) bool {
	for _, errno := range []syscall.Errno{
		syscall.ENOENT,
		syscall.EACCES,
		syscall.ENOEXEC,
		syscall.ENOTDIR,
		syscall.EISDIR,
		syscall.ELOOP,
		syscall.ENAMETOOLONG,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}

	return false
}
