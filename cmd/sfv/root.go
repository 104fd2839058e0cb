// Command sfv generates, verifies and compares SFV checksum manifests.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"swiftsfv/internal/config"
	"swiftsfv/internal/session"
	"swiftsfv/internal/task"
)

// app carries the loaded settings and collaborators shared by all
// subcommands.
type app struct {
	cfgPath    string
	algorithm  string
	workers    int
	quick      bool
	noProgress bool

	cfg     *config.Config
	logger  *slog.Logger
	runner  *task.Runner
	sess    *session.Session
	logFile *os.File
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "sfv",
		Short:         "Generate, verify and compare SFV checksum manifests",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logFile != nil {
				_ = a.logFile.Close()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "config file (default .swiftsfv.yaml in CWD or $HOME)")
	pf.StringVarP(&a.algorithm, "algorithm", "a", "", "checksum algorithm (CRC32, MD5, SHA1, SHA256, ...)")
	pf.IntVarP(&a.workers, "workers", "w", 0, "worker pool size (0 = hardware concurrency)")
	pf.BoolVarP(&a.quick, "quick", "q", false, "quick mode: short-circuit on size differences")
	pf.BoolVar(&a.noProgress, "no-progress", false, "disable the progress bar")

	root.AddCommand(
		a.generateCmd(),
		a.verifyCmd(),
		a.compareCmd(),
		a.historyCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("algorithm") {
		cfg.Algorithm = a.algorithm
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = a.workers
	}
	if cmd.Flags().Changed("quick") {
		cfg.Quick = a.quick
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, logFile, err := newLogger(cfg)
	if err != nil {
		return err
	}
	a.logger = logger
	a.logFile = logFile
	a.runner = task.NewRunner(logger)

	sess, err := session.Load(cfg.SessionFile)
	if err != nil {
		logger.Warn("session unreadable, starting empty", "error", err)
		sess = &session.Session{}
	}
	a.sess = sess
	return nil
}

func newLogger(cfg *config.Config) (*slog.Logger, *os.File, error) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	var f *os.File
	if cfg.LogFile != "" {
		var err error
		f, err = os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), f, nil
}

// saveSession persists the session, logging instead of failing the
// command when the write goes wrong.
func (a *app) saveSession() {
	if err := a.sess.Save(a.cfg.SessionFile); err != nil {
		a.logger.Warn("session not saved", "error", err)
	}
}

// algorithmOverride returns the flag-supplied algorithm, or empty when
// the user left it to the manifest/config default.
func (a *app) algorithmOverride(cmd *cobra.Command) string {
	if cmd.Flags().Changed("algorithm") {
		return a.algorithm
	}
	return ""
}
