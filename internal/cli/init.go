package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// InitResult describes the database after init.
type InitResult struct {
	Database string `json:"database"`
	Created  bool   `json:"created"`
	Stage    string `json:"stage"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the ledger database",
		Long: `Create the ledger database if it does not exist and report its stage.

Running init on an existing database is harmless.

Example:
  explog init --db ./pilot.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			stage, err := e.ledger.Stage(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read stage", err)
			}
			result := InitResult{
				Database: e.cfg.Database,
				Created:  e.ledger.Store().Bootstrapped(),
				Stage:    stage,
			}
			return newFormatter(rootOpts, cmd).Emit(result, func(w io.Writer) error {
				verb := "Opened"
				if result.Created {
					verb = "Created"
				}
				_, err := fmt.Fprintf(w, "%s %s (stage %s)\n", verb, result.Database, result.Stage)
				return err
			})
		},
	}
}
