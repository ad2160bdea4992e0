package ledger

import (
	"context"
	"time"

	"github.com/roach88/explog/internal/codec"
	"github.com/roach88/explog/internal/store"
)

// LogOption customizes a log entry.
type LogOption func(*logOptions)

type logOptions struct {
	at    time.Time
	tag   string
	valid bool
}

// At sets the entry timestamp. Default: the ledger clock at write time.
func At(t time.Time) LogOption {
	return func(o *logOptions) { o.at = t }
}

// Tag labels the entry.
func Tag(tag string) LogOption {
	return func(o *logOptions) { o.tag = tag }
}

// Invalid marks the entry as not valid.
func Invalid() LogOption {
	return func(o *logOptions) { o.valid = false }
}

// Log appends data to a registered stream in the current session and
// returns the entry id, for attaching blobs. Entry ids increase
// monotonically.
//
// last_time of the current session and of every open ancestor is raised to
// the write time.
func (l *Ledger) Log(ctx context.Context, stream string, data any, opts ...LogOption) (store.ID, error) {
	if err := l.requireRun("log"); err != nil {
		return 0, err
	}
	session, ok := l.Current()
	if !ok {
		return 0, &StateError{Code: CodeNoActiveSession, Op: "log", Message: "no session open; cannot log data"}
	}

	streamID, err := l.registry.StreamID(ctx, stream)
	if err != nil {
		return 0, err
	}
	payload, err := codec.Encode(data)
	if err != nil {
		return 0, err
	}
	if err := l.registry.ValidateStreamData(streamID, payload); err != nil {
		return 0, err
	}

	now := l.clock.Now()
	o := logOptions{at: now, valid: true}
	for _, opt := range opts {
		opt(&o)
	}

	id, err := l.store.InsertLog(ctx, store.LogEntry{
		Session: session,
		Valid:   o.valid,
		Time:    o.at,
		Stream:  streamID,
		Tag:     o.tag,
		JSON:    payload,
	})
	if err != nil {
		return 0, err
	}

	if err := l.store.TouchSessions(ctx, l.stack, now); err != nil {
		return 0, err
	}
	for _, sid := range l.stack {
		if rec := &l.open[sid].record; now.After(rec.LastTime) {
			rec.LastTime = now
		}
	}

	switch {
	case l.policy.mode == ModeEveryWrite:
		err = l.Commit()
	case l.policy.due(l.lastCommit, now):
		l.logger.Debug("time-based autocommit", "interval", l.policy.interval)
		err = l.Commit()
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AttachBlob appends a binary attachment to a log entry. A non-empty
// blobType must be a registered blob type. The log entry is not required to
// belong to the current session.
func (l *Ledger) AttachBlob(ctx context.Context, logID store.ID, data []byte, blobType string) (store.ID, error) {
	var meta *store.ID
	if blobType != "" {
		id, err := l.registry.Resolve(ctx, store.MetaBlob, blobType)
		if err != nil {
			return 0, err
		}
		meta = &id
	}
	id, err := l.store.InsertBlob(ctx, store.Blob{Log: logID, Meta: meta, Data: data})
	if err != nil {
		return 0, err
	}
	return id, l.wrote()
}

// AttachArrays encodes named numeric arrays with the ledger's ArrayCodec and
// attaches them as a blob.
func (l *Ledger) AttachArrays(ctx context.Context, logID store.ID, arrays map[string][]float64, blobType string) (store.ID, error) {
	data, err := l.arrays.Encode(arrays)
	if err != nil {
		return 0, err
	}
	return l.AttachBlob(ctx, logID, data, blobType)
}

// RegisterStream registers a log stream and creates its view. Streams typed
// "jsonschema" validate every logged payload against Definition.Payload.
func (l *Ledger) RegisterStream(ctx context.Context, name string, def Definition, force bool) (store.ID, error) {
	id, err := l.registry.Register(ctx, def.entry(store.MetaStream, name), force)
	if err != nil {
		return 0, err
	}
	return id, l.wrote()
}

// RegisterBlob registers a blob type.
func (l *Ledger) RegisterBlob(ctx context.Context, name string, def Definition, force bool) (store.ID, error) {
	id, err := l.registry.Register(ctx, def.entry(store.MetaBlob, name), force)
	if err != nil {
		return 0, err
	}
	return id, l.wrote()
}
