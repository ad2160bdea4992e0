package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewIndicesCommand creates the indices command.
func NewIndicesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "indices",
		Short: "Create the log table query indices",
		Long: `Create indices on the log table for analysis queries.

Indices slow down recording, so they are normally added once data
collection is finished. Running indices twice is harmless.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.ledger.AddIndices(cmd.Context()); err != nil {
				return WrapExitError(ExitFailure, "failed to create indices", err)
			}
			return newFormatter(rootOpts, cmd).Emit(map[string]string{"database": e.cfg.Database}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Indexed %s\n", e.cfg.Database)
				return err
			})
		},
	}
}
