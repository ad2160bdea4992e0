// Package ledger records experiments: runs of the recording software, the
// nested sessions opened during a run, the users present in each session and
// the timestamped log entries written into them.
//
// A Ledger owns one store and every piece of process state the recording
// needs: the open run, the stack of open sessions, the pending roster of
// active users and the registry caches. It is single-writer and not safe for
// concurrent use.
//
// Typical use:
//
//	l, err := ledger.Open("experiment.db", ledger.Options{Commit: ledger.CommitInterval(10 * time.Second)})
//	...
//	l.StartRun(ctx, "jh", nil)
//	l.EnterSession(ctx, "Experiment", ledger.SessionOptions{})
//	l.Log(ctx, "touch", map[string]any{"x": 1})
//	l.LeaveSession(ctx, ledger.LeaveOptions{})
//	l.EndRun(ctx)
//	l.Close()
//
// Durability only extends to the last commit. Run starts and session
// boundaries always commit; everything else follows the CommitPolicy. A run
// or session row without an end time marks an unclean shutdown.
package ledger
