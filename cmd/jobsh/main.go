// Command jobsh is an interactive shell with POSIX-style job control.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// TODO: Inject version at build time.
const version = "0.0.1"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		os.Exit(1)
	}
}

func run() error {
	// SIGINT is deliberately absent: it belongs to the foreground job.
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGHUP,
	)
	defer cancel()

	return rootCmd().ExecuteContext(ctx)
}
