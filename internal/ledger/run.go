package ledger

import (
	"context"

	"github.com/roach88/explog/internal/codec"
	"github.com/roach88/explog/internal/store"
)

// StartRun records the start of a run and commits immediately, so the run
// row survives a crash before the next commit. Runs do not nest.
func (l *Ledger) StartRun(ctx context.Context, experimenter string, config any) (store.ID, error) {
	if l.inRun {
		return 0, stateError(CodeInvalidState, "start run", "run %d is already open", l.runID)
	}
	payload, err := codec.Encode(config)
	if err != nil {
		return 0, err
	}

	id, err := l.store.InsertRun(ctx, store.Run{
		StartTime:    l.clock.Now(),
		Experimenter: experimenter,
		JSON:         payload,
	})
	if err != nil {
		return 0, err
	}
	if err := l.Commit(); err != nil {
		return 0, err
	}

	l.runID = id
	l.inRun = true
	l.logger.Debug("run started", "run", id, "experimenter", experimenter, "config", payload)
	return id, nil
}

// EndRun stamps the end of the open run and marks it as a clean exit.
// Every session must have been left first.
func (l *Ledger) EndRun(ctx context.Context) error {
	if !l.inRun {
		return stateError(CodeInvalidState, "end run", "no run is open")
	}
	if len(l.stack) > 0 {
		return stateError(CodeInvalidState, "end run", "%d session(s) still open at %s", len(l.stack), l.SessionPath())
	}
	if err := l.store.EndRun(ctx, l.runID, l.clock.Now()); err != nil {
		return err
	}

	l.logger.Debug("run ended", "run", l.runID)
	l.inRun = false
	return l.wrote()
}

// RunID returns the id of the open run, or of the last run once it ended.
func (l *Ledger) RunID() store.ID {
	return l.runID
}

// InRun reports whether a run is open.
func (l *Ledger) InRun() bool {
	return l.inRun
}

func (l *Ledger) requireRun(op string) error {
	if !l.inRun {
		return &StateError{Code: CodeNoActiveRun, Op: op, Message: "no run started"}
	}
	return nil
}
