package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nixpig/jobsh/internal/resolve"
	"github.com/nixpig/jobsh/internal/shell"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "JOBSH"

type config struct {
	Prompt  string   `mapstructure:"prompt"`
	Path    []string `mapstructure:"path"`
	Debug   bool     `mapstructure:"debug"`
	LogFile string   `mapstructure:"log-file"`
}

func (c *config) validate() error {
	if len(c.Path) == 0 {
		return errors.New("path cannot be empty")
	}

	for _, dir := range c.Path {
		if !filepath.IsAbs(dir) {
			return fmt.Errorf("path entry must be absolute: '%s'", dir)
		}
	}

	if c.LogFile != "" {
		if _, err := os.Stat(filepath.Dir(c.LogFile)); err != nil {
			return fmt.Errorf("failed to stat log-file directory: %w", err)
		}
	}

	return nil
}

func bindFlags(fs *pflag.FlagSet) {
	fs.String("prompt", shell.DefaultPrompt, "Prompt printed before each line")

	fs.StringSlice(
		"path",
		resolve.DefaultDirs,
		"Directories searched for commands, in order",
	)

	fs.Bool("debug", false, "Enable debug logs")

	fs.String("log-file", "", "Write logs to this file instead of stderr")
}

// loadConfig merges, lowest first: flag defaults, the config file (if any),
// JOBSH_* environment variables, and flags set on the command line.
func loadConfig(
	v *viper.Viper,
	fs *pflag.FlagSet,
	configFile string,
) (*config, error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newLogger builds the shell's logger. Logs never go to stdout, which is
// reserved for the shell's own output.
func newLogger(cfg *config, stderr io.Writer) (*slog.Logger, func() error, error) {
	level := slog.LevelWarn
	if cfg.Debug {
		level = slog.LevelDebug
	}

	w := stderr
	closer := func() error { return nil }

	if cfg.LogFile != "" {
		f, err := os.OpenFile(
			cfg.LogFile,
			os.O_CREATE|os.O_WRONLY|os.O_APPEND,
			0o644,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}

		w = f
		closer = f.Close
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))

	return logger, closer, nil
}
