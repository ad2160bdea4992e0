package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/explog/internal/harness"
)

// ScriptOptions holds flags for the script command.
type ScriptOptions struct {
	*RootOptions
	DryRun bool // run against a fresh in-memory database
}

// ScriptResult is the outcome of one script.
type ScriptResult struct {
	Name   string               `json:"name"`
	Pass   bool                 `json:"pass"`
	Trace  []harness.TraceEvent `json:"trace"`
	Errors []string             `json:"errors,omitempty"`
}

// NewScriptCommand creates the script command.
func NewScriptCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScriptOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "script <file.yaml>",
		Short: "Execute a ledger script",
		Long: `Execute a YAML script of ledger operations and check its assertions.

By default the script writes to the configured database on the wall
clock, so advance steps fail. With --dry-run it runs against a fresh
in-memory database on a frozen clock, exactly as the test harness does.

Exit codes:
  0 - Every step and assertion passed
  1 - A step or assertion failed
  2 - Command error (missing file, invalid script, etc.)

Examples:
  explog script ./session.yaml
  explog script ./session.yaml --dry-run --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "run against an in-memory database")

	return cmd
}

func runScript(opts *ScriptOptions, path string, cmd *cobra.Command) error {
	script, err := harness.LoadScript(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load script", err)
	}

	var result *harness.Result
	if opts.DryRun {
		result, err = harness.Run(script)
	} else {
		e, serr := setup(opts.RootOptions, cmd)
		if serr != nil {
			return serr
		}
		defer e.close()
		e.logger.Info("executing script", "script", script.Name, "database", e.cfg.Database)
		result, err = harness.New(e.ledger, nil, e.logger).Execute(cmd.Context(), script)
	}
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("script %s failed", script.Name), err)
	}

	out := ScriptResult{Name: script.Name, Pass: result.Pass, Trace: result.Trace, Errors: result.Errors}
	if err := newFormatter(opts.RootOptions, cmd).Emit(out, func(w io.Writer) error {
		return writeScriptResult(w, out)
	}); err != nil {
		return err
	}
	if !out.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("script %s failed", script.Name))
	}
	return nil
}

func writeScriptResult(w io.Writer, r ScriptResult) error {
	for _, e := range r.Trace {
		switch {
		case e.Error != "":
			fmt.Fprintf(w, "  [%d] %s -> %s\n", e.Seq, e.Op, e.Error)
		case e.Name != "":
			fmt.Fprintf(w, "  [%d] %s %s\n", e.Seq, e.Op, e.Name)
		case e.ID != 0:
			fmt.Fprintf(w, "  [%d] %s #%d\n", e.Seq, e.Op, e.ID)
		default:
			fmt.Fprintf(w, "  [%d] %s\n", e.Seq, e.Op)
		}
	}
	if r.Pass {
		_, err := fmt.Fprintf(w, "✓ %s\n", r.Name)
		return err
	}
	fmt.Fprintf(w, "✗ %s\n", r.Name)
	for _, msg := range r.Errors {
		fmt.Fprintf(w, "  %s\n", msg)
	}
	return nil
}
