package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/explog/internal/codec"
	"github.com/roach88/explog/internal/registry"
	"github.com/roach88/explog/internal/store"
)

// Options configures a Ledger. The zero value is usable.
type Options struct {
	// Commit selects when pending writes are committed. Default: manual.
	Commit CommitPolicy

	// Clock stamps runs, sessions and log entries. Default: SystemClock.
	Clock Clock

	// Names generates pseudonyms for anonymous users. Default: UUIDNames.
	Names NameGenerator

	// Arrays encodes AttachArrays payloads. Default: codec.BinaryArrays.
	Arrays codec.ArrayCodec

	// Logger receives debug transitions and force-update warnings.
	// Default: slog.Default().
	Logger *slog.Logger

	// Synchronous and CacheSize are passed to the store by Open.
	Synchronous string
	CacheSize   int
}

// Ledger is the recording handle: one store plus the open run, the session
// stack and the active-user roster.
type Ledger struct {
	store    *store.Store
	registry *registry.Registry
	clock    Clock
	names    NameGenerator
	arrays   codec.ArrayCodec
	policy   CommitPolicy
	logger   *slog.Logger

	lastCommit time.Time

	runID store.ID
	inRun bool

	// stack is the open lineage, root first; open holds its records.
	stack []store.ID
	open  map[store.ID]*openSession

	roster       []ActiveUser
	usersChanged bool
}

// Open opens (creating if needed) the database at path and returns a ledger
// over it.
func Open(path string, opts Options) (*Ledger, error) {
	opts = opts.withDefaults()
	st, err := store.Open(path, store.Options{
		Synchronous: opts.Synchronous,
		CacheSize:   opts.CacheSize,
		Now:         opts.Clock.Now,
		Logger:      opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return New(st, opts), nil
}

// New returns a ledger over an already open store. The ledger takes
// ownership: Close closes st.
func New(st *store.Store, opts Options) *Ledger {
	opts = opts.withDefaults()
	return &Ledger{
		store:      st,
		registry:   registry.New(st, opts.Logger),
		clock:      opts.Clock,
		names:      opts.Names,
		arrays:     opts.Arrays,
		policy:     opts.Commit,
		logger:     opts.Logger,
		lastCommit: opts.Clock.Now(),
		open:       make(map[store.ID]*openSession),
	}
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = SystemClock{}
	}
	if o.Names == nil {
		o.Names = UUIDNames{}
	}
	if o.Arrays == nil {
		o.Arrays = codec.BinaryArrays{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Store returns the underlying store for read access.
func (l *Ledger) Store() *store.Store {
	return l.store
}

// Registry returns the ledger's metadata registry.
func (l *Ledger) Registry() *registry.Registry {
	return l.registry
}

// Policy returns the commit policy.
func (l *Ledger) Policy() CommitPolicy {
	return l.policy
}

// Commit makes every pending write durable.
func (l *Ledger) Commit() error {
	if err := l.store.Commit(); err != nil {
		// The transaction is gone along with any entity it registered.
		l.registry.Forget()
		return err
	}
	l.lastCommit = l.clock.Now()
	l.logger.Debug("commit")
	return nil
}

// Close commits and closes the database. An open run or session is left
// without an end time, which readers treat as an unclean shutdown.
func (l *Ledger) Close() error {
	if l.inRun || len(l.stack) > 0 {
		l.logger.Warn("closing ledger with open run or sessions",
			"run", l.runID, "in_run", l.inRun, "open_sessions", len(l.stack))
	}
	err := l.store.Close()
	l.logger.Debug("database closed")
	return err
}

// wrote applies the commit policy after a mutating call.
func (l *Ledger) wrote() error {
	if l.policy.mode == ModeEveryWrite {
		return l.Commit()
	}
	return nil
}

// SetStage appends a setup milestone, e.g. "configured" after registering
// streams and prototypes.
func (l *Ledger) SetStage(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("set stage: empty stage name")
	}
	if _, err := l.store.InsertStage(ctx, name, l.clock.Now()); err != nil {
		return err
	}
	l.logger.Debug("database moving to stage", "stage", name)
	return l.wrote()
}

// Stage returns the most recent setup milestone.
func (l *Ledger) Stage(ctx context.Context) (string, error) {
	return l.store.CurrentStage(ctx)
}

// AddIndices creates the optional log indices.
func (l *Ledger) AddIndices(ctx context.Context) error {
	if err := l.store.AddIndices(ctx); err != nil {
		return err
	}
	return l.wrote()
}
