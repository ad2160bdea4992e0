package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

var testEpoch = time.Unix(1700000000, 0)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, Options{Now: func() time.Time { return testEpoch }})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession inserts a run-less root or child session with a fresh path.
func createTestSession(t *testing.T, s *Store, parent *ID, path string) ID {
	t.Helper()
	ctx := context.Background()
	pathID, found, err := s.FindMeta(ctx, MetaPath, path)
	if err != nil {
		t.Fatalf("FindMeta() failed: %v", err)
	}
	if !found {
		pathID, err = s.InsertMeta(ctx, MetaEntity{MType: MetaPath, Name: path})
		if err != nil {
			t.Fatalf("InsertMeta() failed: %v", err)
		}
	}
	id, err := s.InsertSession(ctx, Session{
		StartTime: testEpoch,
		LastTime:  testEpoch,
		Valid:     true,
		Parent:    parent,
		Path:      pathID,
	})
	if err != nil {
		t.Fatalf("InsertSession() failed: %v", err)
	}
	return id
}
