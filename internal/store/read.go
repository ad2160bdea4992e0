package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const runColumns = "id, start_time, end_time, experimenter, clean_exit, json"

const sessionColumns = `id, start_time, end_time, last_time, test_run, random_seed, valid, complete,
	description, json, parent, path, meta`

const logColumns = "id, session, valid, time, stream, tag, json"

// ReadRun retrieves a single run by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id ID) (Run, error) {
	row := s.reader().QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", int64(id))
	r, err := scanRun(row)
	if err != nil {
		return Run{}, fmt.Errorf("read run %d: %w", id, err)
	}
	return r, nil
}

// ListRuns returns all runs ordered by id.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	return queryAll(ctx, s, "runs", scanRun, "SELECT "+runColumns+" FROM runs ORDER BY id ASC")
}

// ReadSession retrieves a single session by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadSession(ctx context.Context, id ID) (Session, error) {
	row := s.reader().QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM session WHERE id = ?", int64(id))
	sess, err := scanSession(row)
	if err != nil {
		return Session{}, fmt.Errorf("read session %d: %w", id, err)
	}
	return sess, nil
}

// ListSessions returns all sessions ordered by id.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	return queryAll(ctx, s, "sessions", scanSession, "SELECT "+sessionColumns+" FROM session ORDER BY id ASC")
}

// Ancestors returns the ids of every ancestor of a session, root first.
func (s *Store) Ancestors(ctx context.Context, child ID) ([]ID, error) {
	return queryIDs(ctx, s, "ancestors",
		"SELECT parent FROM children WHERE child = ? ORDER BY parent ASC", int64(child))
}

// Descendants returns the ids of every descendant of a session in creation
// order.
func (s *Store) Descendants(ctx context.Context, parent ID) ([]ID, error) {
	return queryIDs(ctx, s, "descendants",
		"SELECT child FROM children WHERE parent = ? ORDER BY child ASC", int64(parent))
}

// RunSessions returns the ids of the sessions opened during a run.
func (s *Store) RunSessions(ctx context.Context, run ID) ([]ID, error) {
	return queryIDs(ctx, s, "run sessions",
		"SELECT session FROM run_session WHERE run = ? ORDER BY session ASC", int64(run))
}

// ListUserSessions returns the roster snapshot of a session.
func (s *Store) ListUserSessions(ctx context.Context, session ID) ([]UserSession, error) {
	return queryAll(ctx, s, "user sessions", scanUserSession,
		"SELECT id, user, session, role, json FROM user_session WHERE session = ? ORDER BY id ASC",
		int64(session))
}

// ReadLog retrieves a single log entry by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadLog(ctx context.Context, id ID) (LogEntry, error) {
	row := s.reader().QueryRowContext(ctx, "SELECT "+logColumns+" FROM log WHERE id = ?", int64(id))
	e, err := scanLog(row)
	if err != nil {
		return LogEntry{}, fmt.Errorf("read log %d: %w", id, err)
	}
	return e, nil
}

// ListLogs returns the log entries of a session ordered by id.
func (s *Store) ListLogs(ctx context.Context, session ID) ([]LogEntry, error) {
	return queryAll(ctx, s, "logs", scanLog,
		"SELECT "+logColumns+" FROM log WHERE session = ? ORDER BY id ASC", int64(session))
}

// ListStreamLogs returns the log entries of a stream through its view.
func (s *Store) ListStreamLogs(ctx context.Context, stream string) ([]LogEntry, error) {
	return queryAll(ctx, s, "stream logs", scanLog,
		"SELECT "+logColumns+" FROM "+quoteIdent(stream)+" ORDER BY id ASC")
}

// ListBlobs returns the attachments of a log entry ordered by id.
func (s *Store) ListBlobs(ctx context.Context, log ID) ([]Blob, error) {
	return queryAll(ctx, s, "blobs", scanBlob,
		"SELECT id, log, meta, blob FROM blobs WHERE log = ? ORDER BY id ASC", int64(log))
}

// CurrentStage returns the most recently recorded stage.
func (s *Store) CurrentStage(ctx context.Context) (string, error) {
	var stage string
	err := s.reader().QueryRowContext(ctx,
		"SELECT stage FROM setup WHERE id = (SELECT MAX(id) FROM setup)").Scan(&stage)
	if err != nil {
		return "", fmt.Errorf("current stage: %w", err)
	}
	return stage, nil
}

// ListStages returns all stage markers in order.
func (s *Store) ListStages(ctx context.Context) ([]Stage, error) {
	return queryAll(ctx, s, "stages", scanStage, "SELECT id, stage, time FROM setup ORDER BY id ASC")
}

// queryAll runs a query and scans every row with scan.
// Returns an empty slice (not nil) when there are no rows.
func queryAll[T any](ctx context.Context, s *Store, what string, scan func(scanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := s.reader().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", what, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, err)
	}
	return out, nil
}

func queryIDs(ctx context.Context, s *Store, what, query string, args ...any) ([]ID, error) {
	return queryAll(ctx, s, what, func(row scanner) (ID, error) {
		var id int64
		err := row.Scan(&id)
		return ID(id), err
	}, query, args...)
}

func scanRun(row scanner) (Run, error) {
	var (
		r            Run
		id           int64
		start        float64
		end          sql.NullFloat64
		experimenter sql.NullString
		clean        int
		jsonT        sql.NullString
	)
	if err := row.Scan(&id, &start, &end, &experimenter, &clean, &jsonT); err != nil {
		return Run{}, err
	}
	r.ID = ID(id)
	r.StartTime = FromUnixSeconds(start)
	r.EndTime = timePtr(end)
	r.Experimenter = experimenter.String
	r.CleanExit = clean != 0
	r.JSON = jsonT.String
	return r, nil
}

func scanSession(row scanner) (Session, error) {
	var (
		sess                     Session
		id, path                 int64
		start, last              float64
		end                      sql.NullFloat64
		testRun, valid, complete int
		seed, parent, proto      sql.NullInt64
		description, jsonT       sql.NullString
	)
	err := row.Scan(&id, &start, &end, &last, &testRun, &seed, &valid, &complete,
		&description, &jsonT, &parent, &path, &proto)
	if err != nil {
		return Session{}, err
	}
	sess.ID = ID(id)
	sess.StartTime = FromUnixSeconds(start)
	sess.EndTime = timePtr(end)
	sess.LastTime = FromUnixSeconds(last)
	sess.TestRun = testRun != 0
	if seed.Valid {
		v := seed.Int64
		sess.RandomSeed = &v
	}
	sess.Valid = valid != 0
	sess.Complete = complete != 0
	sess.Description = description.String
	sess.JSON = jsonT.String
	sess.Parent = idPtr(parent)
	sess.Path = ID(path)
	sess.Prototype = idPtr(proto)
	return sess, nil
}

func scanUserSession(row scanner) (UserSession, error) {
	var (
		us                UserSession
		id, user, session int64
		role, jsonT       sql.NullString
	)
	if err := row.Scan(&id, &user, &session, &role, &jsonT); err != nil {
		return UserSession{}, err
	}
	us.ID, us.User, us.Session = ID(id), ID(user), ID(session)
	us.Role = role.String
	us.JSON = jsonT.String
	return us, nil
}

func scanLog(row scanner) (LogEntry, error) {
	var (
		e                   LogEntry
		id, session, stream int64
		valid               int
		t                   float64
		tag, jsonT          sql.NullString
	)
	if err := row.Scan(&id, &session, &valid, &t, &stream, &tag, &jsonT); err != nil {
		return LogEntry{}, err
	}
	e.ID, e.Session, e.Stream = ID(id), ID(session), ID(stream)
	e.Valid = valid != 0
	e.Time = FromUnixSeconds(t)
	e.Tag = tag.String
	e.JSON = jsonT.String
	return e, nil
}

func scanBlob(row scanner) (Blob, error) {
	var (
		b       Blob
		id, log int64
		meta    sql.NullInt64
	)
	if err := row.Scan(&id, &log, &meta, &b.Data); err != nil {
		return Blob{}, err
	}
	b.ID, b.Log = ID(id), ID(log)
	b.Meta = idPtr(meta)
	return b, nil
}

func scanStage(row scanner) (Stage, error) {
	var (
		st Stage
		id int64
		t  float64
	)
	if err := row.Scan(&id, &st.Name, &t); err != nil {
		return Stage{}, err
	}
	st.ID = ID(id)
	st.Time = FromUnixSeconds(t)
	return st, nil
}

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
