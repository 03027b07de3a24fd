package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/nixpig/jobsh/internal/jobmanager"
	"github.com/nixpig/jobsh/internal/resolve"
	"github.com/nixpig/jobsh/internal/shell"
	"github.com/nixpig/jobsh/internal/terminal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func rootCmd() *cobra.Command {
	v := viper.New()

	var configFile string

	c := &cobra.Command{
		Use:          "jobsh",
		Short:        "Interactive shell with job control",
		Example:      "  jobsh --debug --log-file /tmp/jobsh.log",
		Version:      version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cmd.Flags(), configFile)
			if err != nil {
				return err
			}

			return runShell(cmd.Context(), cfg)
		},
	}

	c.CompletionOptions.HiddenDefaultCmd = true

	c.Flags().StringVar(&configFile, "config", "", "Path to config file")

	bindFlags(c.Flags())

	return c
}

func runShell(ctx context.Context, cfg *config) error {
	logger, closeLog, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	defer closeLog()

	logger = logger.With("session", uuid.NewString())

	tty := terminal.New(os.Stdin, logger)

	// Make sure the shell starts out owning the terminal.
	if err := tty.Reclaim(); err != nil {
		logger.Warn("take terminal", "err", err)
	}

	manager, err := jobmanager.NewManagerWithDefaults(tty, logger)
	if err != nil {
		return fmt.Errorf("create job manager: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	manager.Start(ctx)

	sh, err := shell.New(shell.Config{
		Jobs:     manager,
		Resolver: resolve.New(cfg.Path),
		In:       os.Stdin,
		Out:      os.Stdout,
		Prompt:   cfg.Prompt,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("create shell: %w", err)
	}

	logger.Debug(
		"shell started",
		"interactive", tty.Interactive(),
		"pgid", tty.ShellPgid(),
		"path", cfg.Path,
	)

	return sh.Run(ctx)
}
