package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// InsertRun records the start of a run. EndTime and CleanExit are ignored:
// a new run is always open and not yet clean.
func (s *Store) InsertRun(ctx context.Context, r Run) (ID, error) {
	id, err := s.insert(ctx, `
		INSERT INTO runs (start_time, end_time, experimenter, clean_exit, json)
		VALUES (?, NULL, ?, 0, ?)
	`,
		UnixSeconds(r.StartTime),
		r.Experimenter,
		nullString(r.JSON),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// EndRun stamps the end time of a run and marks it as a clean exit.
func (s *Store) EndRun(ctx context.Context, id ID, end time.Time) error {
	res, err := s.exec(ctx, `
		UPDATE runs SET end_time = ?, clean_exit = 1 WHERE id = ?
	`, UnixSeconds(end), int64(id))
	if err != nil {
		return fmt.Errorf("end run %d: %w", id, err)
	}
	return requireOneRow(res, "end run", id)
}

// InsertSession inserts a new open session. EndTime is ignored.
func (s *Store) InsertSession(ctx context.Context, sess Session) (ID, error) {
	var seed sql.NullInt64
	if sess.RandomSeed != nil {
		seed = sql.NullInt64{Int64: *sess.RandomSeed, Valid: true}
	}
	id, err := s.insert(ctx, `
		INSERT INTO session
		(start_time, end_time, last_time, test_run, random_seed, valid, complete,
		 description, json, parent, path, meta)
		VALUES (?, NULL, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		UnixSeconds(sess.StartTime),
		UnixSeconds(sess.LastTime),
		boolInt(sess.TestRun),
		seed,
		boolInt(sess.Valid),
		boolInt(sess.Complete),
		sess.Description,
		nullString(sess.JSON),
		nullID(sess.Parent),
		int64(sess.Path),
		nullID(sess.Prototype),
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// SetRandomSeed records the reproducibility seed of a session.
func (s *Store) SetRandomSeed(ctx context.Context, id ID, seed int64) error {
	res, err := s.exec(ctx, "UPDATE session SET random_seed = ? WHERE id = ?", seed, int64(id))
	if err != nil {
		return fmt.Errorf("set random seed %d: %w", id, err)
	}
	return requireOneRow(res, "set random seed", id)
}

// CloseSession finalizes a session: end and last time, validity and
// completion.
func (s *Store) CloseSession(ctx context.Context, id ID, end time.Time, valid, complete bool) error {
	res, err := s.exec(ctx, `
		UPDATE session SET end_time = ?, last_time = MAX(COALESCE(last_time, 0), ?), valid = ?, complete = ?
		WHERE id = ?
	`, UnixSeconds(end), UnixSeconds(end), boolInt(valid), boolInt(complete), int64(id))
	if err != nil {
		return fmt.Errorf("close session %d: %w", id, err)
	}
	return requireOneRow(res, "close session", id)
}

// TouchSessions raises last_time of the given sessions to t. last_time never
// decreases.
func (s *Store) TouchSessions(ctx context.Context, ids []ID, t time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, UnixSeconds(t))
	for _, id := range ids {
		args = append(args, int64(id))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	_, err := s.exec(ctx,
		"UPDATE session SET last_time = MAX(COALESCE(last_time, 0), ?) WHERE id IN ("+placeholders+")",
		args...)
	if err != nil {
		return fmt.Errorf("touch sessions: %w", err)
	}
	return nil
}

// InsertRunSession links a session to a run.
func (s *Store) InsertRunSession(ctx context.Context, session, run ID) (ID, error) {
	id, err := s.insert(ctx,
		"INSERT INTO run_session (session, run) VALUES (?, ?)", int64(session), int64(run))
	if err != nil {
		return 0, fmt.Errorf("insert run_session: %w", err)
	}
	return id, nil
}

// InsertClosure records that parent is an ancestor of child.
func (s *Store) InsertClosure(ctx context.Context, parent, child ID) (ID, error) {
	id, err := s.insert(ctx,
		"INSERT INTO children (parent, child) VALUES (?, ?)", int64(parent), int64(child))
	if err != nil {
		return 0, fmt.Errorf("insert children: %w", err)
	}
	return id, nil
}

// InsertUserSession records a roster entry for a session.
func (s *Store) InsertUserSession(ctx context.Context, us UserSession) (ID, error) {
	id, err := s.insert(ctx, `
		INSERT INTO user_session (user, session, role, json) VALUES (?, ?, ?, ?)
	`, int64(us.User), int64(us.Session), nullString(us.Role), nullString(us.JSON))
	if err != nil {
		return 0, fmt.Errorf("insert user_session: %w", err)
	}
	return id, nil
}

// InsertLog appends a log entry.
func (s *Store) InsertLog(ctx context.Context, e LogEntry) (ID, error) {
	id, err := s.insert(ctx, `
		INSERT INTO log (session, valid, time, stream, tag, json) VALUES (?, ?, ?, ?, ?, ?)
	`,
		int64(e.Session),
		boolInt(e.Valid),
		UnixSeconds(e.Time),
		int64(e.Stream),
		e.Tag,
		nullString(e.JSON),
	)
	if err != nil {
		return 0, fmt.Errorf("insert log: %w", err)
	}
	return id, nil
}

// InsertBlob appends a binary attachment. The referenced log entry must exist.
func (s *Store) InsertBlob(ctx context.Context, b Blob) (ID, error) {
	data := b.Data
	if data == nil {
		data = []byte{}
	}
	id, err := s.insert(ctx,
		"INSERT INTO blobs (log, meta, blob) VALUES (?, ?, ?)",
		int64(b.Log), nullID(b.Meta), data)
	if err != nil {
		return 0, fmt.Errorf("insert blob: %w", err)
	}
	return id, nil
}

// InsertStage appends a stage marker.
func (s *Store) InsertStage(ctx context.Context, name string, t time.Time) (ID, error) {
	id, err := s.insert(ctx,
		"INSERT INTO setup (stage, time) VALUES (?, ?)", name, UnixSeconds(t))
	if err != nil {
		return 0, fmt.Errorf("insert stage: %w", err)
	}
	return id, nil
}

func requireOneRow(res sql.Result, op string, id ID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: rows affected: %w", op, id, err)
	}
	if n != 1 {
		return fmt.Errorf("%s %d: %w", op, id, sql.ErrNoRows)
	}
	return nil
}
