// Package shell implements the interactive read loop and the built-in
// commands of jobsh.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/muesli/cancelreader"
	"github.com/nixpig/jobsh/internal/jobmanager"
	"github.com/nixpig/jobsh/internal/parser"
	"github.com/nixpig/jobsh/internal/resolve"
)

const DefaultPrompt = "> "

// JobControl launches commands and controls the resulting jobs.
type JobControl interface {
	Launch(
		ctx context.Context,
		path string,
		argv []string,
		background bool,
	) (*jobmanager.Job, error)
	Foreground(ctx context.Context, id int) error
	Background(id int) error
	Kill(id int) error
	Jobs() []jobmanager.JobStatus
	Cleanup()
	Shutdown()
}

// Resolver finds the executable for a command name.
type Resolver interface {
	Resolve(name string) (string, error)
}

// Config configures a Shell.
type Config struct {
	Jobs     JobControl
	Resolver Resolver

	In     io.Reader
	Out    io.Writer
	Prompt string

	Logger *slog.Logger
}

// Shell reads commands one line at a time, runs built-ins itself and hands
// everything else to its JobControl.
type Shell struct {
	jobs     JobControl
	resolver Resolver

	in     io.Reader
	out    io.Writer
	prompt string

	builtins map[string]builtin
	logger   *slog.Logger
}

// New creates a Shell from cfg.
func New(cfg Config) (*Shell, error) {
	if cfg.Jobs == nil {
		return nil, errors.New("job control cannot be nil")
	}

	if cfg.Resolver == nil {
		cfg.Resolver = resolve.New(nil)
	}

	if cfg.In == nil {
		cfg.In = os.Stdin
	}

	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	s := &Shell{
		jobs:     cfg.Jobs,
		resolver: cfg.Resolver,
		in:       cfg.In,
		out:      cfg.Out,
		prompt:   cfg.Prompt,
		logger:   cfg.Logger,
	}

	s.builtins = map[string]builtin{
		"bg":   s.bg,
		"cd":   s.cd,
		"exit": s.exit,
		"fg":   s.fg,
		"jobs": s.listJobs,
		"kill": s.kill,
	}

	return s, nil
}

// Run reads and executes lines until end of input, `exit`, or ctx is done.
// Finished jobs are cleaned up before and after each line. Every remaining
// job is hung up before Run returns.
func (s *Shell) Run(ctx context.Context) error {
	stop := s.trapSignals()
	defer stop()

	defer s.jobs.Shutdown()

	in := newLineReader(s.in, s.logger)
	defer func() {
		if err := in.close(); err != nil {
			s.logger.Debug("close input", "err", err)
		}
	}()

	stopCancel := context.AfterFunc(ctx, in.cancel)
	defer stopCancel()

	for {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Fprint(s.out, s.prompt)

		line, err := in.next()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				s.logger.Debug("read loop finished", "err", err)
				return nil
			}

			return fmt.Errorf("read input: %w", err)
		}

		s.jobs.Cleanup()

		if s.Execute(ctx, line) {
			return nil
		}

		s.jobs.Cleanup()
	}
}

// Execute runs a single line of input. It returns true if the shell should
// exit.
func (s *Shell) Execute(ctx context.Context, line string) bool {
	cmd, ok := parser.Parse(line)
	if !ok {
		return false
	}

	name := cmd.Name()

	if b, ok := s.builtins[name]; ok {
		err := b(ctx, cmd.Args[1:])
		if errors.Is(err, errExit) {
			return true
		}

		if err != nil {
			s.report(name, err)
		}

		return false
	}

	s.launch(ctx, cmd)

	return false
}

func (s *Shell) launch(ctx context.Context, cmd parser.Command) {
	name := cmd.Name()

	path, err := s.resolver.Resolve(name)
	if err != nil {
		fmt.Fprintf(s.out, "%s: %s\n", name, err)
		return
	}

	if _, err := s.jobs.Launch(ctx, path, cmd.Args, cmd.Background); err != nil {
		s.report(name, err)
	}
}

// report prints a single line describing err, prefixed with the command
// name.
func (s *Shell) report(name string, err error) {
	s.logger.Warn("command failed", "cmd", name, "err", err)
	fmt.Fprintf(s.out, "%s: %s\n", name, mapError(name, err))
}

// trapSignals catches the signals a terminal sends to its foreground group
// so they can't kill or stop the shell itself. Catching rather than ignoring
// them lets children start with the default dispositions.
func (s *Shell) trapSignals() func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTSTP, syscall.SIGQUIT)

	done := make(chan struct{})

	go func() {
		for {
			select {
			case sig := <-sigCh:
				s.logger.Debug("signal ignored", "signal", sig)
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// lineReader reads a line only when asked, on the calling goroutine. Reading
// ahead isn't an option: while a job owns the terminal a read from the shell
// would raise SIGTTIN.
type lineReader struct {
	cr     cancelreader.CancelReader
	reader *bufio.Reader
}

// newLineReader wraps r so a blocked read can be cancelled. Files that can't
// be polled, such as regular files, fall back to reads that only notice a
// cancel between calls.
func newLineReader(r io.Reader, logger *slog.Logger) *lineReader {
	cr, err := cancelreader.NewReader(r)
	if err != nil {
		logger.Debug("input can't be polled", "err", err)

		// Hiding the file methods selects the fallback reader.
		cr, _ = cancelreader.NewReader(struct{ io.Reader }{r})
	}

	return &lineReader{cr: cr, reader: bufio.NewReader(cr)}
}

// next returns the next line without its newline. Lines may be any length.
// A final line without a newline is returned before io.EOF.
func (r *lineReader) next() (string, error) {
	line, err := r.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return line, nil
		}

		return "", err
	}

	return strings.TrimSuffix(line, "\n"), nil
}

func (r *lineReader) cancel() {
	r.cr.Cancel()
}

func (r *lineReader) close() error {
	return r.cr.Close()
}
