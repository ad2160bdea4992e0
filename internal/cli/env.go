package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/explog/internal/config"
	"github.com/roach88/explog/internal/ledger"
)

// env is what a command needs to touch the database: the loaded config, a
// logger and an open ledger.
type env struct {
	cfg     config.Config
	logger  *slog.Logger
	ledger  *ledger.Ledger
	logFile *os.File
}

// setup loads the config, installs the logger and opens the ledger.
// Callers must call close.
func setup(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}

	e := &env{cfg: cfg}
	if e.logger, err = e.newLogger(opts, cmd.ErrOrStderr()); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open log file", err)
	}

	e.logger.Debug("opening database", "path", cfg.Database, "autocommit", cfg.Autocommit)
	e.ledger, err = ledger.Open(cfg.Database, ledger.Options{
		Commit:      cfg.CommitPolicy(),
		Logger:      e.logger,
		Synchronous: cfg.Synchronous,
		CacheSize:   cfg.CacheSize,
	})
	if err != nil {
		e.closeLog()
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open database %s", cfg.Database), err)
	}
	return e, nil
}

// newLogger builds a text logger on stderr, debug level with --verbose,
// teed to the configured log file.
func (e *env) newLogger(opts *RootOptions, stderr io.Writer) (*slog.Logger, error) {
	level := e.cfg.Level()
	if opts.Verbose {
		level = slog.LevelDebug
	}

	w := stderr
	if e.cfg.LogFile != "" {
		f, err := os.OpenFile(e.cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		e.logFile = f
		w = io.MultiWriter(stderr, f)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

func (e *env) close() {
	if err := e.ledger.Close(); err != nil {
		e.logger.Error("error closing database", "error", err)
	}
	e.closeLog()
}

func (e *env) closeLog() {
	if e.logFile != nil {
		_ = e.logFile.Close()
	}
}
