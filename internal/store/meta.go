package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ReservedNames are the tables and views created by the schema. Per-stream
// views share their namespace.
var ReservedNames = []string{
	"meta", "setup", "session", "log", "blobs", "runs", "run_session",
	"children", "user_session", "users", "session_meta", "blob_meta",
	"log_stream", "paths",
}

// IsReservedName reports whether name collides with a schema object.
// SQLite identifiers are case-insensitive, so is the comparison.
func IsReservedName(name string) bool {
	for _, reserved := range ReservedNames {
		if strings.EqualFold(name, reserved) {
			return true
		}
	}
	return strings.HasPrefix(strings.ToLower(name), "sqlite_")
}

// InsertMeta inserts a new entity and returns its id.
// The (mtype, name) pair must be unused.
func (s *Store) InsertMeta(ctx context.Context, e MetaEntity) (ID, error) {
	id, err := s.insert(ctx, `
		INSERT INTO meta (mtype, name, type, description, json, meta)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		string(e.MType),
		e.Name,
		nullString(e.Type),
		nullString(e.Description),
		nullString(e.JSON),
		nullID(e.Ref),
	)
	if err != nil {
		return 0, fmt.Errorf("insert meta %s %q: %w", e.MType, e.Name, err)
	}
	return id, nil
}

// UpdateMeta overwrites the mutable fields of an entity. The id, partition
// and name never change.
func (s *Store) UpdateMeta(ctx context.Context, id ID, typ, description, jsonText string) error {
	res, err := s.exec(ctx, `
		UPDATE meta SET type = ?, description = ?, json = ? WHERE id = ?
	`, nullString(typ), nullString(description), nullString(jsonText), int64(id))
	if err != nil {
		return fmt.Errorf("update meta %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update meta %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// FindMeta looks up an entity id by partition and name.
func (s *Store) FindMeta(ctx context.Context, mtype MetaType, name string) (ID, bool, error) {
	var id int64
	err := s.reader().QueryRowContext(ctx,
		"SELECT id FROM meta WHERE mtype = ? AND name = ?", string(mtype), name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find meta %s %q: %w", mtype, name, err)
	}
	return ID(id), true, nil
}

// ReadMeta retrieves a single entity by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadMeta(ctx context.Context, id ID) (MetaEntity, error) {
	row := s.reader().QueryRowContext(ctx, `
		SELECT id, mtype, name, type, description, json, meta
		FROM meta WHERE id = ?
	`, int64(id))
	e, err := scanMeta(row)
	if err != nil {
		return MetaEntity{}, fmt.Errorf("read meta %d: %w", id, err)
	}
	return e, nil
}

// ListMeta returns every entity of a partition ordered by id.
// An empty mtype lists all partitions.
func (s *Store) ListMeta(ctx context.Context, mtype MetaType) ([]MetaEntity, error) {
	query := "SELECT id, mtype, name, type, description, json, meta FROM meta"
	var args []any
	if mtype != "" {
		query += " WHERE mtype = ?"
		args = append(args, string(mtype))
	}
	query += " ORDER BY id ASC"

	rows, err := s.reader().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query meta: %w", err)
	}
	defer rows.Close()

	entities := []MetaEntity{}
	for rows.Next() {
		e, err := scanMeta(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meta: %w", err)
	}
	return entities, nil
}

// StreamNameConflict reports an existing stream or schema object whose name
// equals name under SQLite's ASCII case folding. Such a name cannot get its
// own view. The conflicting name is returned with stream set when it belongs
// to another stream.
func (s *Store) StreamNameConflict(ctx context.Context, name string) (conflict string, stream bool, err error) {
	err = s.reader().QueryRowContext(ctx, `
		SELECT name, 1 FROM meta WHERE mtype = ? AND name = ? COLLATE NOCASE
		UNION ALL
		SELECT name, 0 FROM sqlite_master WHERE name = ? COLLATE NOCASE
		LIMIT 1
	`, string(MetaStream), name, name).Scan(&conflict, &stream)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("check stream name %q: %w", name, err)
	}
	return conflict, stream, nil
}

// CreateStreamView creates a view named after a stream exposing only that
// stream's log rows.
func (s *Store) CreateStreamView(ctx context.Context, name string, stream ID) error {
	if IsReservedName(name) {
		return fmt.Errorf("create stream view: %q is a reserved name", name)
	}
	stmt := fmt.Sprintf("CREATE VIEW IF NOT EXISTS %s AS SELECT * FROM log WHERE stream = %d",
		quoteIdent(name), int64(stream))
	if _, err := s.exec(ctx, stmt); err != nil {
		return fmt.Errorf("create stream view %q: %w", name, err)
	}
	return nil
}

// quoteIdent quotes an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeta(row scanner) (MetaEntity, error) {
	var (
		e                       MetaEntity
		id                      int64
		mtype                   string
		typ, description, jsonT sql.NullString
		ref                     sql.NullInt64
	)
	if err := row.Scan(&id, &mtype, &e.Name, &typ, &description, &jsonT, &ref); err != nil {
		return MetaEntity{}, err
	}
	e.ID = ID(id)
	e.MType = MetaType(mtype)
	e.Type = typ.String
	e.Description = description.String
	e.JSON = jsonT.String
	e.Ref = idPtr(ref)
	return e, nil
}
