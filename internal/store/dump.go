package store

import (
	"context"
	"fmt"
)

// Dump is a complete copy of the ledger tables, each ordered by id.
type Dump struct {
	Meta         []MetaEntity
	Stages       []Stage
	Runs         []Run
	Sessions     []Session
	RunSessions  []RunSession
	Children     []Closure
	UserSessions []UserSession
	Logs         []LogEntry
	Blobs        []Blob
}

// Dump reads every table, including uncommitted rows.
func (s *Store) Dump(ctx context.Context) (*Dump, error) {
	var (
		d   Dump
		err error
	)
	if d.Meta, err = s.ListMeta(ctx, ""); err != nil {
		return nil, err
	}
	if d.Stages, err = s.ListStages(ctx); err != nil {
		return nil, err
	}
	if d.Runs, err = s.ListRuns(ctx); err != nil {
		return nil, err
	}
	if d.Sessions, err = s.ListSessions(ctx); err != nil {
		return nil, err
	}
	d.RunSessions, err = queryAll(ctx, s, "run sessions", func(row scanner) (RunSession, error) {
		var id, session, run int64
		err := row.Scan(&id, &session, &run)
		return RunSession{ID: ID(id), Session: ID(session), Run: ID(run)}, err
	}, "SELECT id, session, run FROM run_session ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	d.Children, err = queryAll(ctx, s, "children", func(row scanner) (Closure, error) {
		var id, parent, child int64
		err := row.Scan(&id, &parent, &child)
		return Closure{ID: ID(id), Parent: ID(parent), Child: ID(child)}, err
	}, "SELECT id, parent, child FROM children ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	d.UserSessions, err = queryAll(ctx, s, "user sessions", scanUserSession,
		"SELECT id, user, session, role, json FROM user_session ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	d.Logs, err = queryAll(ctx, s, "logs", scanLog, "SELECT "+logColumns+" FROM log ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	d.Blobs, err = queryAll(ctx, s, "blobs", scanBlob, "SELECT id, log, meta, blob FROM blobs ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("dump: %w", err)
	}
	return &d, nil
}
