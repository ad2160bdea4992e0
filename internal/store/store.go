package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// bootstrapTable is probed to decide whether the schema exists.
const bootstrapTable = "setup"

// InitialStage is recorded when a fresh database is bootstrapped.
const InitialStage = "init"

// Options configures Open.
type Options struct {
	// Synchronous is the SQLite synchronous pragma: OFF, NORMAL, FULL or EXTRA.
	// Empty means NORMAL.
	Synchronous string

	// CacheSize is passed to PRAGMA cache_size when non-zero.
	CacheSize int

	// Now stamps the bootstrap stage marker. Defaults to time.Now.
	Now func() time.Time

	// Logger receives bootstrap diagnostics. Defaults to a discarding logger.
	Logger *slog.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store provides durable storage for the ledger.
// It is not safe for concurrent use.
type Store struct {
	db           *sql.DB
	tx           *sql.Tx
	bootstrapped bool
	logger       *slog.Logger
}

// Open creates or opens a SQLite database at the given path, applies pragmas
// and bootstraps the schema if the database has none.
func Open(path string, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Single writer; also keeps :memory: databases on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db, path, opts); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s := &Store{db: db, logger: opts.Logger}
	if err := s.bootstrap(context.Background(), opts.Now()); err != nil {
		s.Rollback()
		db.Close()
		return nil, fmt.Errorf("failed to bootstrap schema: %w", err)
	}

	return s, nil
}

// Close commits pending writes and closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	commitErr := s.Commit()
	if err := s.db.Close(); err != nil {
		return err
	}
	return commitErr
}

// DB returns the underlying sql.DB for direct queries.
// Queries on it do not see uncommitted writes and block while a transaction
// is pending; prefer Store methods.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Bootstrapped reports whether Open created the schema.
func (s *Store) Bootstrapped() bool {
	return s.bootstrapped
}

// Pending reports whether there are uncommitted writes.
func (s *Store) Pending() bool {
	return s.tx != nil
}

// Commit makes all pending writes durable. It is a no-op when nothing is
// pending.
func (s *Store) Commit() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards all pending writes.
func (s *Store) Rollback() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Query runs a read-only query through the pending transaction if any.
// Callers are responsible for closing the returned rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.reader().QueryContext(ctx, query, args...)
}

// writer returns the pending transaction, opening one if needed.
// The transaction outlives the caller's context: cancelling one call must not
// roll back writes that other calls already made.
func (s *Store) writer(ctx context.Context) (querier, error) {
	if s.tx == nil {
		tx, err := s.db.BeginTx(context.WithoutCancel(ctx), nil)
		if err != nil {
			return nil, fmt.Errorf("begin tx: %w", err)
		}
		s.tx = tx
	}
	return s.tx, nil
}

func (s *Store) reader() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// exec runs a write statement in the pending transaction.
func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	w, err := s.writer(ctx)
	if err != nil {
		return nil, err
	}
	return w.ExecContext(ctx, query, args...)
}

// insert runs an INSERT and returns the new row id.
func (s *Store) insert(ctx context.Context, query string, args ...any) (ID, error) {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return ID(id), nil
}

var validSynchronous = map[string]bool{"OFF": true, "NORMAL": true, "FULL": true, "EXTRA": true}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB, path string, opts Options) error {
	sync := strings.ToUpper(opts.Synchronous)
	if sync == "" {
		sync = "NORMAL"
	}
	if !validSynchronous[sync] {
		return fmt.Errorf("invalid synchronous mode %q", opts.Synchronous)
	}

	var pragmas []string
	if !isMemory(path) {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	pragmas = append(pragmas,
		"PRAGMA synchronous = "+sync,
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	)
	if opts.CacheSize != 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA cache_size = %d", opts.CacheSize))
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// bootstrap creates the schema if the bootstrap table is absent.
// Existing databases are left untouched.
func (s *Store) bootstrap(ctx context.Context, now time.Time) error {
	exists, err := s.tableExists(ctx, bootstrapTable)
	if err != nil {
		return err
	}
	if exists {
		s.logger.Debug("tables already created")
		return nil
	}

	s.logger.Debug("creating tables")
	if _, err := s.exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := s.InsertStage(ctx, InitialStage, now); err != nil {
		return err
	}
	if err := s.Commit(); err != nil {
		return err
	}
	s.bootstrapped = true
	return nil
}

func (s *Store) tableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.reader().QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check table %q: %w", name, err)
	}
	return count > 0, nil
}

// AddIndices creates lookup indices on the log table. Safe to call repeatedly.
func (s *Store) AddIndices(ctx context.Context) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS log_session_ix ON log(session)",
		"CREATE INDEX IF NOT EXISTS log_tag_ix ON log(tag)",
		"CREATE INDEX IF NOT EXISTS log_stream_ix ON log(stream)",
		"CREATE INDEX IF NOT EXISTS log_valid_ix ON log(valid)",
	}
	for _, stmt := range stmts {
		if _, err := s.exec(ctx, stmt); err != nil {
			return fmt.Errorf("add indices: %w", err)
		}
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.reader().QueryRowContext(context.Background(), query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
