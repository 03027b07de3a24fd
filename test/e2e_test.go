//go:build e2e

package e2e_test

import (
	"io"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

// NOTE: A relative path is used to find the shell's source. Running this test
// from anywhere that breaks that path will not work.
func buildShell(t *testing.T) string {
	t.Helper()

	binPath := filepath.Join(t.TempDir(), "jobsh")

	build := exec.Command("go", "build", "-o", binPath, "../cmd/jobsh")

	if output, err := build.CombinedOutput(); err != nil {
		t.Fatalf(
			"failed to build shell binary: '%v' (output: '%s')",
			err,
			output,
		)
	}

	return binPath
}

// syncBuffer lets the test read the shell's output while it's still being
// written.
type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

type session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *syncBuffer
}

func startShell(t *testing.T, binPath string) *session {
	t.Helper()

	s := &session{
		cmd:    exec.Command(binPath, "--prompt", ""),
		stdout: &syncBuffer{},
	}

	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		t.Fatalf("failed to create stdin pipe: '%v'", err)
	}

	s.stdin = stdin
	s.cmd.Stdout = s.stdout

	if err := s.cmd.Start(); err != nil {
		t.Fatalf("failed to exec shell: '%v'", err)
	}

	t.Cleanup(func() {
		if s.cmd.ProcessState == nil {
			s.cmd.Process.Kill()
			s.cmd.Wait()
		}
	})

	return s
}

func (s *session) send(t *testing.T, line string) {
	t.Helper()

	if _, err := io.WriteString(s.stdin, line+"\n"); err != nil {
		t.Fatalf("failed to write '%s': '%v'", line, err)
	}
}

// waitForOutput polls the shell's output until it matches re.
func (s *session) waitForOutput(t *testing.T, re *regexp.Regexp) string {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		if out := s.stdout.String(); re.MatchString(out) {
			return out
		}

		time.Sleep(20 * time.Millisecond)
	}

	t.Fatalf("expected output to match '%s': got '%s'", re, s.stdout.String())

	return ""
}

func TestBasicE2E(t *testing.T) {
	binPath := buildShell(t)

	t.Run("Test background job lifecycle", func(t *testing.T) {
		s := startShell(t, binPath)

		s.send(t, "sleep 30 &")
		s.waitForOutput(t, regexp.MustCompile(`\[1\] \d+\n`))

		s.send(t, "jobs")
		s.waitForOutput(t, regexp.MustCompile(`\[1\] \d+ Running sleep 30 &\n`))

		s.send(t, "kill %1")

		// The notice is printed by the cleanup after the next line once the
		// job has been reaped.
		re := regexp.MustCompile(`\[1\] \d+ terminated by signal 15\n`)
		deadline := time.Now().Add(5 * time.Second)

		for !re.MatchString(s.stdout.String()) && time.Now().Before(deadline) {
			s.send(t, "")
			time.Sleep(50 * time.Millisecond)
		}

		s.waitForOutput(t, re)

		s.send(t, "jobs %1")
		s.waitForOutput(t, regexp.MustCompile(`jobs: too many arguments\n`))

		s.send(t, "exit")

		if err := s.cmd.Wait(); err != nil {
			t.Errorf("expected shell to exit cleanly: got '%v'", err)
		}

		if strings.Count(s.stdout.String(), "terminated by signal") != 1 {
			t.Errorf("expected a single notice: got '%s'", s.stdout.String())
		}
	})

	t.Run("Test foreground job and errors", func(t *testing.T) {
		s := startShell(t, binPath)

		s.send(t, "echo hello world")
		s.waitForOutput(t, regexp.MustCompile(`hello world\n`))

		s.send(t, "nosuchcommand")
		s.waitForOutput(t, regexp.MustCompile(`nosuchcommand: command not found\n`))

		s.send(t, "./nosuchcommand")
		s.waitForOutput(t, regexp.MustCompile(`\./nosuchcommand: No such file or directory\n`))

		s.send(t, "fg %7")
		s.waitForOutput(t, regexp.MustCompile(`fg: job not found\n`))

		s.send(t, "bg")
		s.waitForOutput(t, regexp.MustCompile(`bg: wrong number of arguments\n`))

		if err := s.stdin.Close(); err != nil {
			t.Fatalf("failed to close stdin: '%v'", err)
		}

		if err := s.cmd.Wait(); err != nil {
			t.Errorf("expected shell to exit on end of input: got '%v'", err)
		}
	})
}
