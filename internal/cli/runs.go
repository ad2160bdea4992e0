package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/explog/internal/store"
)

// RunSummary is one row of the runs listing.
type RunSummary struct {
	ID           int64      `json:"id"`
	Start        time.Time  `json:"start"`
	End          *time.Time `json:"end,omitempty"`
	Experimenter string     `json:"experimenter"`
	CleanExit    bool       `json:"clean_exit"`
	Sessions     int        `json:"sessions"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List recording runs",
		Long: `List every run in the database with its session count.

A run without an end time was not shut down cleanly.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			summaries, err := listRuns(cmd, e.ledger.Store())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list runs", err)
			}
			return newFormatter(rootOpts, cmd).Emit(summaries, func(w io.Writer) error {
				return writeRuns(w, summaries)
			})
		},
	}
}

func listRuns(cmd *cobra.Command, st *store.Store) ([]RunSummary, error) {
	ctx := cmd.Context()
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		sessions, err := st.RunSessions(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, RunSummary{
			ID:           int64(r.ID),
			Start:        r.StartTime.UTC(),
			End:          utcPtr(r.EndTime),
			Experimenter: r.Experimenter,
			CleanExit:    r.CleanExit,
			Sessions:     len(sessions),
		})
	}
	return summaries, nil
}

func writeRuns(w io.Writer, runs []RunSummary) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTART\tDURATION\tEXPERIMENTER\tSESSIONS")
	for _, r := range runs {
		duration := "unclean"
		if r.End != nil {
			duration = humanize.RelTime(r.Start, *r.End, "", "")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", r.ID, r.Start.Format(time.RFC3339), duration, r.Experimenter, r.Sessions)
	}
	return tw.Flush()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
