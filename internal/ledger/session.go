package ledger

import (
	"context"
	"math/rand/v2"
	"strings"

	"github.com/roach88/explog/internal/codec"
	"github.com/roach88/explog/internal/registry"
	"github.com/roach88/explog/internal/store"
)

// unnamedSegment is the path segment of a session opened without a
// prototype.
const unnamedSegment = "None"

// SessionOptions are the optional arguments of EnterSession.
type SessionOptions struct {
	// Config is stored as the session's JSON payload.
	Config any

	// TestRun marks sessions recorded while testing the setup.
	TestRun bool

	// Notes is free text stored as the session description.
	Notes string
}

// LeaveOptions are the optional arguments of LeaveSession. The zero value
// leaves the session complete and valid.
type LeaveOptions struct {
	Incomplete bool
	Invalid    bool
}

// openSession is an arena record of a session on the stack.
type openSession struct {
	record    store.Session
	prototype string // empty for unnamed sessions
}

func (s *openSession) segment() string {
	if s.prototype == "" {
		return unnamedSegment
	}
	return s.prototype
}

// EnterSession opens a child of the current session (or a root session) from
// the named prototype and commits. An empty prototype opens an unnamed
// session, which contributes "None" to the path.
//
// The active-user roster is snapshotted into the new session, and every open
// ancestor gets a closure row pointing at it.
func (l *Ledger) EnterSession(ctx context.Context, prototype string, opts SessionOptions) (store.ID, error) {
	if err := l.requireRun("enter session"); err != nil {
		return 0, err
	}

	var protoID *store.ID
	if prototype != "" {
		id, err := l.registry.Resolve(ctx, store.MetaSession, prototype)
		if err != nil {
			return 0, err
		}
		protoID = &id
	}

	frame := &openSession{prototype: prototype}
	path := "/" + strings.Join(append(l.SessionNames(), frame.segment()), "/")
	l.logger.Debug("entering session", "path", path, "prototype", prototype)

	pathID, err := l.registry.PathID(ctx, path)
	if err != nil {
		return 0, err
	}
	config, err := codec.Encode(opts.Config)
	if err != nil {
		return 0, err
	}

	parent, _ := l.Current()
	var parentID *store.ID
	if len(l.stack) > 0 {
		parentID = &parent
	}

	now := l.clock.Now()
	frame.record = store.Session{
		StartTime:   now,
		LastTime:    now,
		TestRun:     opts.TestRun,
		Valid:       true,
		Description: opts.Notes,
		JSON:        config,
		Parent:      parentID,
		Path:        pathID,
		Prototype:   protoID,
	}
	id, err := l.store.InsertSession(ctx, frame.record)
	if err != nil {
		return 0, err
	}
	seed := int64(id)
	if err := l.store.SetRandomSeed(ctx, id, seed); err != nil {
		return 0, err
	}
	frame.record.ID = id
	frame.record.RandomSeed = &seed

	if _, err := l.store.InsertRunSession(ctx, id, l.runID); err != nil {
		return 0, err
	}
	for _, u := range l.roster {
		if _, err := l.store.InsertUserSession(ctx, store.UserSession{
			User:    u.ID,
			Session: id,
			Role:    u.Role,
			JSON:    u.JSON,
		}); err != nil {
			return 0, err
		}
	}
	for _, ancestor := range l.stack {
		if _, err := l.store.InsertClosure(ctx, ancestor, id); err != nil {
			return 0, err
		}
	}

	if err := l.Commit(); err != nil {
		return 0, err
	}
	l.stack = append(l.stack, id)
	l.open[id] = frame
	l.usersChanged = false
	l.logger.Debug("session opened", "session", id, "path", path, "users", l.activeNames())
	return id, nil
}

// LeaveSession closes the current session, returns to its parent and
// commits.
func (l *Ledger) LeaveSession(ctx context.Context, opts LeaveOptions) error {
	id, ok := l.Current()
	if !ok {
		return stateError(CodeInvalidState, "leave session", "no session is open")
	}
	path := l.SessionPath()

	now := l.clock.Now()
	if err := l.store.CloseSession(ctx, id, now, !opts.Invalid, !opts.Incomplete); err != nil {
		return err
	}

	l.stack = l.stack[:len(l.stack)-1]
	delete(l.open, id)
	if parent, ok := l.Current(); ok {
		l.logger.Debug("left session", "path", path, "session", id, "current", parent)
	} else {
		l.logger.Debug("left session", "path", path, "session", id, "current", "root")
	}

	return l.Commit()
}

// Current returns the id of the innermost open session.
func (l *Ledger) Current() (store.ID, bool) {
	if len(l.stack) == 0 {
		return 0, false
	}
	return l.stack[len(l.stack)-1], true
}

// CurrentSession returns the in-memory record of the innermost open session.
// LastTime reflects log writes made through this ledger.
func (l *Ledger) CurrentSession() (store.Session, bool) {
	id, ok := l.Current()
	if !ok {
		return store.Session{}, false
	}
	return l.open[id].record, true
}

// Depth returns the number of open sessions.
func (l *Ledger) Depth() int {
	return len(l.stack)
}

// SessionIDs returns the open lineage, root first.
func (l *Ledger) SessionIDs() []store.ID {
	return append([]store.ID(nil), l.stack...)
}

// SessionNames returns the path segments of the open lineage, root first.
func (l *Ledger) SessionNames() []string {
	names := make([]string, len(l.stack))
	for i, id := range l.stack {
		names[i] = l.open[id].segment()
	}
	return names
}

// SessionPath returns the slash-joined lineage, "/" at the root.
func (l *Ledger) SessionPath() string {
	return "/" + strings.Join(l.SessionNames(), "/")
}

// StableRandomSeed returns the current session id. Session ids are never
// reused, so seeding from it and recording the id makes random draws
// reproducible.
func (l *Ledger) StableRandomSeed() (int64, error) {
	id, ok := l.Current()
	if !ok {
		return 0, &StateError{Code: CodeNoActiveSession, Op: "random seed", Message: "no session open"}
	}
	return int64(id), nil
}

// Rand returns a generator seeded from StableRandomSeed.
func (l *Ledger) Rand() (*rand.Rand, error) {
	seed, err := l.StableRandomSeed()
	if err != nil {
		return nil, err
	}
	return rand.New(rand.NewPCG(uint64(seed), 0)), nil
}

// RegisterSession registers a session prototype.
func (l *Ledger) RegisterSession(ctx context.Context, name string, def Definition, force bool) (store.ID, error) {
	id, err := l.registry.Register(ctx, def.entry(store.MetaSession, name), force)
	if err != nil {
		return 0, err
	}
	return id, l.wrote()
}

// Definition describes a registered entity: a free-form type tag, a
// description and a JSON payload.
type Definition struct {
	Type        string
	Description string
	Payload     any
}

func (d Definition) entry(mtype store.MetaType, name string) registry.Entry {
	return registry.Entry{
		MType:       mtype,
		Name:        name,
		Type:        d.Type,
		Description: d.Description,
		Payload:     d.Payload,
	}
}
