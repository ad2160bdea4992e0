package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/explog/internal/store"
)

// SessionNode is one session in the hierarchy with its direct children.
type SessionNode struct {
	ID       int64          `json:"id"`
	Path     string         `json:"path"`
	Status   string         `json:"status"`
	Start    time.Time      `json:"start"`
	TestRun  bool           `json:"test_run,omitempty"`
	Children []*SessionNode `json:"children,omitempty"`
}

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "Show the session hierarchy",
		Long: `Show every session as a tree ordered by start.

Status is one of complete, incomplete, invalid or open. A session left
open after its run ended was interrupted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			roots, err := sessionTree(cmd, e.ledger.Store())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read sessions", err)
			}
			return newFormatter(rootOpts, cmd).Emit(roots, func(w io.Writer) error {
				if len(roots) == 0 {
					_, err := fmt.Fprintln(w, "No sessions recorded.")
					return err
				}
				for _, n := range roots {
					if err := writeSessionNode(w, n, 0); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

// sessionTree links sessions to their parents. Sessions are listed in id
// order, so a parent always precedes its children.
func sessionTree(cmd *cobra.Command, st *store.Store) ([]*SessionNode, error) {
	ctx := cmd.Context()
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	paths := make(map[store.ID]string)
	nodes := make(map[store.ID]*SessionNode, len(sessions))
	roots := []*SessionNode{}
	for _, s := range sessions {
		path, ok := paths[s.Path]
		if !ok {
			m, err := st.ReadMeta(ctx, s.Path)
			if err != nil {
				return nil, err
			}
			path = m.Name
			paths[s.Path] = path
		}

		n := &SessionNode{
			ID:      int64(s.ID),
			Path:    path,
			Status:  sessionStatus(s),
			Start:   s.StartTime.UTC(),
			TestRun: s.TestRun,
		}
		nodes[s.ID] = n

		if s.Parent != nil {
			if parent, ok := nodes[*s.Parent]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots, nil
}

func sessionStatus(s store.Session) string {
	switch {
	case s.EndTime == nil:
		return "open"
	case !s.Valid:
		return "invalid"
	case !s.Complete:
		return "incomplete"
	default:
		return "complete"
	}
}

func writeSessionNode(w io.Writer, n *SessionNode, depth int) error {
	label := n.Status
	if n.TestRun {
		label += ", test run"
	}
	if _, err := fmt.Fprintf(w, "%s#%d %s [%s]\n", strings.Repeat("  ", depth), n.ID, n.Path, label); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := writeSessionNode(w, c, depth+1); err != nil {
			return err
		}
	}
	return nil
}
