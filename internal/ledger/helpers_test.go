package ledger

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/explog/internal/testutil"
)

// newTestLedger opens a ledger on a fresh file with a deterministic clock.
func newTestLedger(t *testing.T, opts Options) (*Ledger, *testutil.StepClock) {
	t.Helper()
	clock := testutil.NewStepClock(testutil.DefaultEpoch, time.Millisecond)
	if opts.Clock == nil {
		opts.Clock = clock
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	l, err := Open(filepath.Join(t.TempDir(), "test.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, clock
}

// startedLedger returns a ledger with an open run and the given session
// prototypes and streams registered.
func startedLedger(t *testing.T, prototypes []string, streams []string) *Ledger {
	t.Helper()
	l, _ := newTestLedger(t, Options{})
	ctx := context.Background()
	for _, p := range prototypes {
		_, err := l.RegisterSession(ctx, p, Definition{}, false)
		require.NoError(t, err)
	}
	for _, s := range streams {
		_, err := l.RegisterStream(ctx, s, Definition{}, false)
		require.NoError(t, err)
	}
	_, err := l.StartRun(ctx, "tester", nil)
	require.NoError(t, err)
	return l
}
