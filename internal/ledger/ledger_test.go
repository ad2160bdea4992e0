package ledger

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/explog/internal/codec"
	"github.com/roach88/explog/internal/store"
)

func TestEndToEnd(t *testing.T) {
	l, _ := newTestLedger(t, Options{})
	ctx := context.Background()

	_, err := l.RegisterSession(ctx, "Exp", Definition{}, false)
	require.NoError(t, err)
	runID, err := l.StartRun(ctx, "tester", nil)
	require.NoError(t, err)
	_, err = l.RegisterUser(ctx, "alice", map[string]any{"age": 30}, false)
	require.NoError(t, err)
	_, err = l.RegisterStream(ctx, "s1", Definition{}, false)
	require.NoError(t, err)
	require.NoError(t, l.AddActiveUser(ctx, "alice", "", nil))
	sessionID, err := l.EnterSession(ctx, "Exp", SessionOptions{})
	require.NoError(t, err)
	_, err = l.Log(ctx, "s1", map[string]any{"x": 1})
	require.NoError(t, err)
	require.NoError(t, l.LeaveSession(ctx, LeaveOptions{}))
	require.NoError(t, l.EndRun(ctx))

	dump, err := l.Store().Dump(ctx)
	require.NoError(t, err)

	require.Len(t, dump.Runs, 1)
	assert.Equal(t, runID, dump.Runs[0].ID)
	assert.True(t, dump.Runs[0].CleanExit)
	assert.Equal(t, "tester", dump.Runs[0].Experimenter)

	require.Len(t, dump.Sessions, 1)
	sess := dump.Sessions[0]
	assert.Equal(t, sessionID, sess.ID)
	assert.True(t, sess.Complete)
	assert.True(t, sess.Valid)
	path, err := l.Store().ReadMeta(ctx, sess.Path)
	require.NoError(t, err)
	assert.Equal(t, "/Exp", path.Name)

	alice, _, err := l.Registry().Lookup(ctx, store.MetaUser, "alice")
	require.NoError(t, err)
	require.Len(t, dump.UserSessions, 1)
	assert.Equal(t, alice, dump.UserSessions[0].User)
	assert.Equal(t, sessionID, dump.UserSessions[0].Session)

	require.Len(t, dump.Logs, 1)
	assert.Equal(t, sessionID, dump.Logs[0].Session)
	var data map[string]int
	require.NoError(t, codec.DecodeInto(dump.Logs[0].JSON, &data))
	assert.Equal(t, map[string]int{"x": 1}, data)

	require.Len(t, dump.RunSessions, 1)
	assert.Equal(t, runID, dump.RunSessions[0].Run)
	assert.Empty(t, dump.Children)
}

func TestReopen_PreservesRowsAndIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	l, err := Open(path, Options{Logger: quiet})
	require.NoError(t, err)
	require.True(t, l.Store().Bootstrapped())
	streamID, err := l.RegisterStream(ctx, "s1", Definition{}, false)
	require.NoError(t, err)
	_, err = l.RegisterSession(ctx, "A", Definition{}, false)
	require.NoError(t, err)
	require.NoError(t, l.SetStage(ctx, "configured"))
	_, err = l.StartRun(ctx, "", nil)
	require.NoError(t, err)
	sessionID, err := l.EnterSession(ctx, "A", SessionOptions{})
	require.NoError(t, err)
	logID, err := l.Log(ctx, "s1", "hello")
	require.NoError(t, err)
	require.NoError(t, l.LeaveSession(ctx, LeaveOptions{}))
	require.NoError(t, l.EndRun(ctx))
	before, err := l.Store().Dump(ctx)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = Open(path, Options{Logger: quiet})
	require.NoError(t, err)
	defer l.Close()
	assert.False(t, l.Store().Bootstrapped(), "reopen must not re-run table creation")

	after, err := l.Store().Dump(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	stage, err := l.Stage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "configured", stage)

	got, err := l.Registry().StreamID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, streamID, got)

	// New sessions continue after the old ids and the stream view still works.
	_, err = l.StartRun(ctx, "", nil)
	require.NoError(t, err)
	next, err := l.EnterSession(ctx, "A", SessionOptions{})
	require.NoError(t, err)
	assert.Greater(t, next, sessionID)
	nextLog, err := l.Log(ctx, "s1", "again")
	require.NoError(t, err)
	assert.Greater(t, nextLog, logID)

	logs, err := l.Store().ListStreamLogs(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestStages(t *testing.T) {
	l, _ := newTestLedger(t, Options{})
	ctx := context.Background()

	stage, err := l.Stage(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.InitialStage, stage)

	require.NoError(t, l.SetStage(ctx, "setup"))
	require.NoError(t, l.SetStage(ctx, "collecting"))
	stage, err = l.Stage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "collecting", stage)

	stages, err := l.Store().ListStages(ctx)
	require.NoError(t, err)
	assert.Len(t, stages, 3)

	assert.Error(t, l.SetStage(ctx, ""))
}

func TestClose_OpenSessionLeftUnclean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	l, err := Open(path, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	_, err = l.RegisterSession(ctx, "A", Definition{}, false)
	require.NoError(t, err)
	runID, err := l.StartRun(ctx, "", nil)
	require.NoError(t, err)
	sessionID, err := l.EnterSession(ctx, "A", SessionOptions{})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	st, err := store.Open(path, store.Options{})
	require.NoError(t, err)
	defer st.Close()

	run, err := st.ReadRun(ctx, runID)
	require.NoError(t, err)
	assert.Nil(t, run.EndTime)
	assert.False(t, run.CleanExit)

	sess, err := st.ReadSession(ctx, sessionID)
	require.NoError(t, err)
	assert.Nil(t, sess.EndTime)
}

func TestAddIndices(t *testing.T) {
	l, _ := newTestLedger(t, Options{})
	ctx := context.Background()
	require.NoError(t, l.AddIndices(ctx))
	require.NoError(t, l.AddIndices(ctx))
	require.NoError(t, l.Commit())

	var n int
	row := l.Store().DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name LIKE 'log_%_ix'")
	require.NoError(t, row.Scan(&n))
	assert.Equal(t, 4, n)
}
