package cli

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/explog/internal/harness"
)

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the whole ledger as canonical JSON",
		Long: `Print every ledger table as canonical JSON with sorted keys.

Payloads are embedded as JSON values, times as RFC 3339 UTC and blobs as
base64. Two databases with the same content dump identically.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			ctx := cmd.Context()
			result := harness.NewResult()
			if result.Stage, err = e.ledger.Stage(ctx); err != nil {
				return WrapExitError(ExitFailure, "failed to read stage", err)
			}
			if result.Dump, err = e.ledger.Store().Dump(ctx); err != nil {
				return WrapExitError(ExitFailure, "failed to read tables", err)
			}
			snapshot, err := harness.Snapshot(e.cfg.Database, result)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to encode dump", err)
			}

			return newFormatter(rootOpts, cmd).Emit(json.RawMessage(snapshot), func(w io.Writer) error {
				_, err := w.Write(snapshot)
				return err
			})
		},
	}
}
