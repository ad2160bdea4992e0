package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// StageResult is the current database stage.
type StageResult struct {
	Stage string `json:"stage"`
}

// NewStageCommand creates the stage command.
func NewStageCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stage [name]",
		Short: "Show or advance the database setup stage",
		Long: `Show the current setup stage, or record a new one.

Stages are append-only milestones such as "piloting" or "collecting".
A new database starts at "init".

Examples:
  explog stage
  explog stage collecting`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			f := newFormatter(rootOpts, cmd)
			ctx := cmd.Context()
			if len(args) == 1 {
				if err := e.ledger.SetStage(ctx, args[0]); err != nil {
					return f.Fail("set stage failed", err)
				}
			}

			stage, err := e.ledger.Stage(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read stage", err)
			}
			return f.Emit(StageResult{Stage: stage}, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, stage)
				return err
			})
		},
	}
}
