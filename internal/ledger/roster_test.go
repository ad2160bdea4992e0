package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/explog/internal/store"
	"github.com/roach88/explog/internal/testutil"
)

func TestRegisterUser_Named(t *testing.T) {
	l, _ := newTestLedger(t, Options{})
	ctx := context.Background()

	name, err := l.RegisterUser(ctx, "alice", map[string]any{"age": 30}, false)
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	e, err := l.Registry().Entity(ctx, store.MetaUser, "alice")
	require.NoError(t, err)
	assert.Equal(t, `{"age":30}`, e.JSON)

	_, err = l.RegisterUser(ctx, "alice", nil, false)
	assert.True(t, errors.Is(err, ErrDuplicateEntity), "got %v", err)

	_, err = l.RegisterUser(ctx, "alice", map[string]any{"age": 31}, true)
	require.NoError(t, err)
}

func TestRegisterUser_Pseudonym(t *testing.T) {
	l, _ := newTestLedger(t, Options{Names: testutil.NewFixedNames("fox", "fox", "owl")})
	ctx := context.Background()

	first, err := l.RegisterUser(ctx, "", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "fox", first)

	// The second "fox" collides and is skipped.
	second, err := l.RegisterUser(ctx, "", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "owl", second)
}

func TestRegisterUser_PseudonymsExhausted(t *testing.T) {
	names := make([]string, maxPseudonymAttempts+1)
	for i := range names {
		names[i] = "same"
	}
	l, _ := newTestLedger(t, Options{Names: testutil.NewFixedNames(names...)})
	ctx := context.Background()

	_, err := l.RegisterUser(ctx, "", nil, false)
	require.NoError(t, err)
	_, err = l.RegisterUser(ctx, "", nil, false)
	assert.ErrorContains(t, err, "no free pseudonym")
}

func TestRegisterUser_UUIDPseudonym(t *testing.T) {
	l, _ := newTestLedger(t, Options{})
	name, err := l.RegisterUser(context.Background(), "", nil, false)
	require.NoError(t, err)
	assert.Len(t, name, 36)
}

func TestAddActiveUser_Unknown(t *testing.T) {
	l, _ := newTestLedger(t, Options{})
	err := l.AddActiveUser(context.Background(), "nobody", "", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownUser))
	assert.Empty(t, l.ActiveUsers())
	assert.False(t, l.UsersChanged())
}

func TestActiveUsers_Order(t *testing.T) {
	l, _ := newTestLedger(t, Options{})
	ctx := context.Background()
	for _, n := range []string{"carol", "alice", "bob"} {
		_, err := l.RegisterUser(ctx, n, nil, false)
		require.NoError(t, err)
		require.NoError(t, l.AddActiveUser(ctx, n, "", nil))
	}

	// Re-adding keeps the position and replaces the role.
	require.NoError(t, l.AddActiveUser(ctx, "alice", "lead", nil))

	users := l.ActiveUsers()
	require.Len(t, users, 3)
	assert.Equal(t, "carol", users[0].Name)
	assert.Equal(t, "alice", users[1].Name)
	assert.Equal(t, "lead", users[1].Role)
	assert.Equal(t, "bob", users[2].Name)
}

func TestRemoveActiveUser(t *testing.T) {
	l, _ := newTestLedger(t, Options{})
	ctx := context.Background()
	for _, n := range []string{"alice", "bob"} {
		_, err := l.RegisterUser(ctx, n, nil, false)
		require.NoError(t, err)
		require.NoError(t, l.AddActiveUser(ctx, n, "", nil))
	}

	require.NoError(t, l.RemoveActiveUser("alice"))
	users := l.ActiveUsers()
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].Name)

	err := l.RemoveActiveUser("alice")
	assert.True(t, errors.Is(err, ErrInvalidState), "got %v", err)

	// Registered-ness does not matter; the roster is the only check.
	err = l.RemoveActiveUser("never-registered")
	assert.True(t, errors.Is(err, ErrInvalidState), "got %v", err)

	l.ClearActiveUsers()
	assert.Empty(t, l.ActiveUsers())
}

func TestRoster_SnapshotAtEnter(t *testing.T) {
	l := startedLedger(t, []string{"A", "B"}, nil)
	ctx := context.Background()
	for _, n := range []string{"alice", "bob"} {
		_, err := l.RegisterUser(ctx, n, nil, false)
		require.NoError(t, err)
	}
	aliceID, _, err := l.Registry().Lookup(ctx, store.MetaUser, "alice")
	require.NoError(t, err)

	require.NoError(t, l.AddActiveUser(ctx, "alice", "subject", map[string]any{"hand": "left"}))
	assert.True(t, l.UsersChanged())

	a, err := l.EnterSession(ctx, "A", SessionOptions{})
	require.NoError(t, err)
	assert.False(t, l.UsersChanged(), "entering a session consumes the dirty flag")

	// Roster changes after the session opened do not touch its snapshot.
	require.NoError(t, l.AddActiveUser(ctx, "bob", "observer", nil))
	b, err := l.EnterSession(ctx, "B", SessionOptions{})
	require.NoError(t, err)

	rows, err := l.Store().ListUserSessions(ctx, a)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, aliceID, rows[0].User)
	assert.Equal(t, "subject", rows[0].Role)
	assert.Equal(t, `{"hand":"left"}`, rows[0].JSON)

	rows, err = l.Store().ListUserSessions(ctx, b)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRoster_NotPersistedUntilEnter(t *testing.T) {
	l := startedLedger(t, nil, nil)
	ctx := context.Background()
	_, err := l.RegisterUser(ctx, "alice", nil, false)
	require.NoError(t, err)
	require.NoError(t, l.AddActiveUser(ctx, "alice", "", nil))

	dump, err := l.Store().Dump(ctx)
	require.NoError(t, err)
	assert.Empty(t, dump.UserSessions)
}
