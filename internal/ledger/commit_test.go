package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommitPolicy(t *testing.T) {
	tests := []struct {
		in       string
		mode     CommitMode
		interval time.Duration
		str      string
	}{
		{"", ModeManual, 0, "none"},
		{"none", ModeManual, 0, "none"},
		{"Manual", ModeManual, 0, "none"},
		{"every-write", ModeEveryWrite, 0, "every-write"},
		{"30s", ModeInterval, 30 * time.Second, "30s"},
		{"1m30s", ModeInterval, 90 * time.Second, "1m30s"},
		{"10", ModeInterval, 10 * time.Second, "10s"},
		{"2.5", ModeInterval, 2500 * time.Millisecond, "2.5s"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParseCommitPolicy(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.mode, p.Mode())
			assert.Equal(t, tt.interval, p.Interval())
			assert.Equal(t, tt.str, p.String())
		})
	}
}

func TestParseCommitPolicy_Invalid(t *testing.T) {
	for _, in := range []string{"sometimes", "-5s", "-1"} {
		_, err := ParseCommitPolicy(in)
		assert.Error(t, err, in)
	}
}

func TestCommitPolicy_ZeroValueIsManual(t *testing.T) {
	var p CommitPolicy
	assert.Equal(t, ModeManual, p.Mode())
}

func TestCommit_Manual(t *testing.T) {
	l := startedLedger(t, []string{"A"}, []string{"s1"})
	ctx := context.Background()
	_, err := l.EnterSession(ctx, "A", SessionOptions{})
	require.NoError(t, err)

	_, err = l.Log(ctx, "s1", 1)
	require.NoError(t, err)
	assert.True(t, l.Store().Pending())

	require.NoError(t, l.Commit())
	assert.False(t, l.Store().Pending())
}

func TestCommit_EveryWrite(t *testing.T) {
	l, _ := newTestLedger(t, Options{Commit: CommitEveryWrite()})
	ctx := context.Background()

	_, err := l.RegisterStream(ctx, "s1", Definition{}, false)
	require.NoError(t, err)
	assert.False(t, l.Store().Pending())

	_, err = l.RegisterSession(ctx, "A", Definition{}, false)
	require.NoError(t, err)
	_, err = l.StartRun(ctx, "", nil)
	require.NoError(t, err)
	_, err = l.EnterSession(ctx, "A", SessionOptions{})
	require.NoError(t, err)

	logID, err := l.Log(ctx, "s1", 1)
	require.NoError(t, err)
	assert.False(t, l.Store().Pending())

	_, err = l.AttachBlob(ctx, logID, []byte("x"), "")
	require.NoError(t, err)
	assert.False(t, l.Store().Pending())

	require.NoError(t, l.SetStage(ctx, "running"))
	assert.False(t, l.Store().Pending())
}

func TestCommit_Interval(t *testing.T) {
	l, clock := newTestLedger(t, Options{Commit: CommitInterval(5 * time.Second)})
	ctx := context.Background()
	_, err := l.RegisterSession(ctx, "A", Definition{}, false)
	require.NoError(t, err)
	_, err = l.RegisterStream(ctx, "s1", Definition{}, false)
	require.NoError(t, err)
	assert.True(t, l.Store().Pending(), "registration waits for the interval")

	_, err = l.StartRun(ctx, "", nil)
	require.NoError(t, err)
	_, err = l.EnterSession(ctx, "A", SessionOptions{})
	require.NoError(t, err)

	_, err = l.Log(ctx, "s1", 1)
	require.NoError(t, err)
	assert.True(t, l.Store().Pending(), "interval has not elapsed")

	clock.Advance(6 * time.Second)
	_, err = l.Log(ctx, "s1", 2)
	require.NoError(t, err)
	assert.False(t, l.Store().Pending(), "interval elapsed")

	_, err = l.Log(ctx, "s1", 3)
	require.NoError(t, err)
	assert.True(t, l.Store().Pending(), "interval restarts at the last commit")
}
