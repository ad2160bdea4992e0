package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertMeta_UniquePerPartition(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.InsertMeta(ctx, MetaEntity{MType: MetaStream, Name: "eeg"})
	require.NoError(t, err)

	// Same name in another partition is fine.
	_, err = s.InsertMeta(ctx, MetaEntity{MType: MetaBlob, Name: "eeg"})
	require.NoError(t, err)

	// Same partition violates the unique index.
	_, err = s.InsertMeta(ctx, MetaEntity{MType: MetaStream, Name: "eeg"})
	assert.Error(t, err)
}

func TestUpdateMeta_KeepsIdentity(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.InsertMeta(ctx, MetaEntity{MType: MetaSession, Name: "Exp", Type: "EXP", JSON: `{"a":1}`})
	require.NoError(t, err)

	require.NoError(t, s.UpdateMeta(ctx, id, "EXPERIMENT", "main", `{"a":2}`))

	e, err := s.ReadMeta(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, e.ID)
	assert.Equal(t, "Exp", e.Name)
	assert.Equal(t, MetaSession, e.MType)
	assert.Equal(t, "EXPERIMENT", e.Type)
	assert.Equal(t, "main", e.Description)
	assert.Equal(t, `{"a":2}`, e.JSON)
}

func TestUpdateMeta_Missing(t *testing.T) {
	s := createTestStore(t)
	err := s.UpdateMeta(context.Background(), 999, "", "", "")
	assert.True(t, IsNotFound(err), "got %v", err)
}

func TestRun_StartAndEnd(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.InsertRun(ctx, Run{StartTime: testEpoch, Experimenter: "JHW", JSON: `{"rig":2}`})
	require.NoError(t, err)

	r, err := s.ReadRun(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, r.EndTime, "new run must have no end time")
	assert.False(t, r.CleanExit)
	assert.Equal(t, "JHW", r.Experimenter)
	assert.True(t, testEpoch.Equal(r.StartTime))

	end := testEpoch.Add(90 * time.Second)
	require.NoError(t, s.EndRun(ctx, id, end))

	r, err = s.ReadRun(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, r.EndTime)
	assert.True(t, end.Equal(*r.EndTime))
	assert.True(t, r.CleanExit)
}

func TestEndRun_Missing(t *testing.T) {
	s := createTestStore(t)
	err := s.EndRun(context.Background(), 42, testEpoch)
	assert.True(t, IsNotFound(err), "got %v", err)
}

func TestSession_InsertAndClose(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id := createTestSession(t, s, nil, "/Exp")
	require.NoError(t, s.SetRandomSeed(ctx, id, int64(id)))

	sess, err := s.ReadSession(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, sess.EndTime)
	assert.Nil(t, sess.Parent)
	assert.True(t, sess.Valid)
	assert.False(t, sess.Complete)
	require.NotNil(t, sess.RandomSeed)
	assert.Equal(t, int64(id), *sess.RandomSeed)

	end := testEpoch.Add(time.Minute)
	require.NoError(t, s.CloseSession(ctx, id, end, false, true))

	sess, err = s.ReadSession(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, sess.EndTime)
	assert.True(t, end.Equal(*sess.EndTime))
	assert.True(t, end.Equal(sess.LastTime))
	assert.False(t, sess.Valid)
	assert.True(t, sess.Complete)
}

func TestTouchSessions_NeverDecreases(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	root := createTestSession(t, s, nil, "/A")
	child := createTestSession(t, s, &root, "/A/B")

	later := testEpoch.Add(10 * time.Second)
	require.NoError(t, s.TouchSessions(ctx, []ID{root, child}, later))
	require.NoError(t, s.TouchSessions(ctx, []ID{root, child}, testEpoch.Add(5*time.Second)))

	for _, id := range []ID{root, child} {
		sess, err := s.ReadSession(ctx, id)
		require.NoError(t, err)
		assert.True(t, later.Equal(sess.LastTime), "session %d last_time = %v", id, sess.LastTime)
	}

	require.NoError(t, s.TouchSessions(ctx, nil, later))
}

func TestClosure_AncestorsAndDescendants(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := createTestSession(t, s, nil, "/A")
	b := createTestSession(t, s, &a, "/A/B")
	c := createTestSession(t, s, &b, "/A/B/C")
	for _, pair := range [][2]ID{{a, b}, {a, c}, {b, c}} {
		_, err := s.InsertClosure(ctx, pair[0], pair[1])
		require.NoError(t, err)
	}

	anc, err := s.Ancestors(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []ID{a, b}, anc)

	desc, err := s.Descendants(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []ID{b, c}, desc)

	none, err := s.Descendants(ctx, c)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NotNil(t, none)
}

func TestLog_ForeignKeys(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	stream, err := s.InsertMeta(ctx, MetaEntity{MType: MetaStream, Name: "s1"})
	require.NoError(t, err)

	_, err = s.InsertLog(ctx, LogEntry{Session: 12345, Valid: true, Time: testEpoch, Stream: stream})
	assert.Error(t, err, "log referencing a missing session must fail")
}

func TestLogAndBlob(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	stream, err := s.InsertMeta(ctx, MetaEntity{MType: MetaStream, Name: "s1"})
	require.NoError(t, err)
	blobType, err := s.InsertMeta(ctx, MetaEntity{MType: MetaBlob, Name: "frame"})
	require.NoError(t, err)
	sess := createTestSession(t, s, nil, "/Exp")

	logID, err := s.InsertLog(ctx, LogEntry{Session: sess, Valid: true, Time: testEpoch, Stream: stream, Tag: "t", JSON: `{"x":1}`})
	require.NoError(t, err)

	_, err = s.InsertBlob(ctx, Blob{Log: logID, Meta: &blobType, Data: []byte{1, 2, 3}})
	require.NoError(t, err)
	_, err = s.InsertBlob(ctx, Blob{Log: logID})
	require.NoError(t, err)

	e, err := s.ReadLog(ctx, logID)
	require.NoError(t, err)
	assert.Equal(t, sess, e.Session)
	assert.Equal(t, stream, e.Stream)
	assert.Equal(t, "t", e.Tag)
	assert.Equal(t, `{"x":1}`, e.JSON)
	assert.True(t, e.Valid)

	blobs, err := s.ListBlobs(ctx, logID)
	require.NoError(t, err)
	require.Len(t, blobs, 2)
	assert.Equal(t, []byte{1, 2, 3}, blobs[0].Data)
	require.NotNil(t, blobs[0].Meta)
	assert.Equal(t, blobType, *blobs[0].Meta)
	assert.Nil(t, blobs[1].Meta)
	assert.Empty(t, blobs[1].Data)
}

func TestCreateStreamView(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	s1, err := s.InsertMeta(ctx, MetaEntity{MType: MetaStream, Name: "sensor 1"})
	require.NoError(t, err)
	s2, err := s.InsertMeta(ctx, MetaEntity{MType: MetaStream, Name: "other"})
	require.NoError(t, err)
	require.NoError(t, s.CreateStreamView(ctx, "sensor 1", s1))
	require.NoError(t, s.CreateStreamView(ctx, "sensor 1", s1), "view creation is idempotent")

	sess := createTestSession(t, s, nil, "/Exp")
	for _, stream := range []ID{s1, s2, s1} {
		_, err := s.InsertLog(ctx, LogEntry{Session: sess, Valid: true, Time: testEpoch, Stream: stream})
		require.NoError(t, err)
	}

	logs, err := s.ListStreamLogs(ctx, "sensor 1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	for _, e := range logs {
		assert.Equal(t, s1, e.Stream)
	}
}

func TestCreateStreamView_Reserved(t *testing.T) {
	s := createTestStore(t)
	for _, name := range []string{"log", "Meta", "users", "sqlite_master"} {
		assert.Error(t, s.CreateStreamView(context.Background(), name, 1), name)
	}
}

func TestStreamNameConflict(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.InsertMeta(ctx, MetaEntity{MType: MetaStream, Name: "Temp"})
	require.NoError(t, err)
	require.NoError(t, s.CreateStreamView(ctx, "Temp", id))
	_, err = s.InsertMeta(ctx, MetaEntity{MType: MetaSession, Name: "proto"})
	require.NoError(t, err)

	conflict, stream, err := s.StreamNameConflict(ctx, "TEMP")
	require.NoError(t, err)
	assert.Equal(t, "Temp", conflict)
	assert.True(t, stream)

	conflict, stream, err = s.StreamNameConflict(ctx, "Idx_Meta_MType_Name")
	require.NoError(t, err)
	assert.Equal(t, "idx_meta_mtype_name", conflict)
	assert.False(t, stream)

	// Names in other partitions have no view.
	conflict, _, err = s.StreamNameConflict(ctx, "PROTO")
	require.NoError(t, err)
	assert.Empty(t, conflict)
}

func TestStages(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.InsertStage(ctx, "setup", testEpoch.Add(time.Second))
	require.NoError(t, err)
	_, err = s.InsertStage(ctx, "collecting", testEpoch.Add(2*time.Second))
	require.NoError(t, err)

	stage, err := s.CurrentStage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "collecting", stage)

	stages, err := s.ListStages(ctx)
	require.NoError(t, err)
	names := make([]string, len(stages))
	for i, st := range stages {
		names[i] = st.Name
	}
	assert.Equal(t, []string{InitialStage, "setup", "collecting"}, names)
}

func TestUnixSeconds_RoundTrip(t *testing.T) {
	in := time.Unix(1700000000, 123456000)
	out := FromUnixSeconds(UnixSeconds(in))
	assert.True(t, in.Equal(out), "%v != %v", in, out)
}
