package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/explog/internal/codec"
	"github.com/roach88/explog/internal/store"
)

// TypeJSONSchema is the stream type tag marking a payload that is a JSON
// Schema every log entry of the stream must satisfy.
const TypeJSONSchema = "jsonschema"

// Entry describes an entity to register.
type Entry struct {
	MType       store.MetaType
	Name        string
	Type        string // free-form type tag
	Description string
	Payload     any // JSON-encodable
}

// Registry is the name->id catalog. It is not safe for concurrent use.
type Registry struct {
	store  *store.Store
	logger *slog.Logger

	streams map[string]store.ID
	paths   map[string]store.ID
	schemas map[store.ID]*streamSchema

	// streamLookups counts stream lookups that reached the database.
	streamLookups int
}

// New creates a registry over st. A nil logger discards output.
func New(st *store.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		store:   st,
		logger:  logger,
		streams: make(map[string]store.ID),
		paths:   make(map[string]store.ID),
		schemas: make(map[store.ID]*streamSchema),
	}
}

// Register creates the entity, or with force overwrites the type, description
// and payload of an existing one. The returned id is stable: the same
// (partition, name) always yields the same id.
//
// Without force an existing name fails with ErrDuplicateEntity. A forced
// update is logged at warn level.
func (r *Registry) Register(ctx context.Context, e Entry, force bool) (store.ID, error) {
	if !e.MType.Valid() {
		return 0, fmt.Errorf("register: unknown partition %q", e.MType)
	}
	name, err := normalizeName(e.MType, e.Name)
	if err != nil {
		return 0, err
	}
	if e.MType == store.MetaStream && store.IsReservedName(name) {
		return 0, &EntityError{Code: CodeReservedName, MType: e.MType, Name: name}
	}

	payload, err := codec.Encode(e.Payload)
	if err != nil {
		return 0, fmt.Errorf("register %s %q: %w", KindName(e.MType), name, err)
	}

	var schema *streamSchema
	if e.MType == store.MetaStream && e.Type == TypeJSONSchema {
		if schema, err = compileSchema(name, payload); err != nil {
			return 0, err
		}
	}

	id, found, err := r.store.FindMeta(ctx, e.MType, name)
	if err != nil {
		return 0, err
	}

	if !found {
		if e.MType == store.MetaStream {
			if err := r.checkStreamName(ctx, name); err != nil {
				return 0, err
			}
		}
		id, err = r.store.InsertMeta(ctx, store.MetaEntity{
			MType:       e.MType,
			Name:        name,
			Type:        e.Type,
			Description: e.Description,
			JSON:        payload,
		})
		if err != nil {
			return 0, err
		}
		r.logger.Debug("registered entity",
			"kind", KindName(e.MType), "name", name, "type", e.Type, "id", id, "payload", payload)
	} else {
		if !force {
			return 0, &EntityError{Code: CodeDuplicateEntity, MType: e.MType, Name: name}
		}
		r.logger.Warn("entity exists; force updating",
			"kind", KindName(e.MType), "name", name, "id", id, "type", e.Type, "payload", payload)
		if err := r.store.UpdateMeta(ctx, id, e.Type, e.Description, payload); err != nil {
			return 0, err
		}
	}

	switch e.MType {
	case store.MetaStream:
		if err := r.store.CreateStreamView(ctx, name, id); err != nil {
			return 0, err
		}
		r.streams[name] = id
		if schema != nil {
			r.schemas[id] = schema
		} else {
			delete(r.schemas, id)
		}
	case store.MetaPath:
		r.paths[name] = id
	}

	return id, nil
}

// checkStreamName rejects a new stream whose view would land on an
// existing view, table or index. SQLite folds ASCII case in identifiers, so
// "Foo" and "foo" cannot both have views.
func (r *Registry) checkStreamName(ctx context.Context, name string) error {
	conflict, stream, err := r.store.StreamNameConflict(ctx, name)
	if err != nil {
		return err
	}
	switch {
	case conflict == "":
		return nil
	case stream:
		return &EntityError{Code: CodeDuplicateEntity, MType: store.MetaStream, Name: name,
			Detail: fmt.Sprintf("differs from stream %q only by case", conflict)}
	default:
		return &EntityError{Code: CodeReservedName, MType: store.MetaStream, Name: name,
			Detail: fmt.Sprintf("collides with schema object %q", conflict)}
	}
}

// Lookup returns the id of a registered entity without creating it.
func (r *Registry) Lookup(ctx context.Context, mtype store.MetaType, name string) (store.ID, bool, error) {
	name = norm.NFC.String(name)
	switch mtype {
	case store.MetaStream:
		if id, ok := r.streams[name]; ok {
			return id, true, nil
		}
		r.streamLookups++
	case store.MetaPath:
		if id, ok := r.paths[name]; ok {
			return id, true, nil
		}
	}

	id, found, err := r.store.FindMeta(ctx, mtype, name)
	if err != nil || !found {
		return 0, false, err
	}

	switch mtype {
	case store.MetaStream:
		if err := r.cacheStream(ctx, name, id); err != nil {
			return 0, false, err
		}
	case store.MetaPath:
		r.paths[name] = id
	}
	return id, true, nil
}

// Resolve is Lookup that fails with an unknown-entity error when the name is
// not registered.
func (r *Registry) Resolve(ctx context.Context, mtype store.MetaType, name string) (store.ID, error) {
	id, found, err := r.Lookup(ctx, mtype, name)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, &EntityError{Code: CodeUnknownEntity, MType: mtype, Name: norm.NFC.String(name)}
	}
	return id, nil
}

// StreamID resolves a stream name through the stream cache.
// Fails with ErrUnknownStream if the stream was never registered.
func (r *Registry) StreamID(ctx context.Context, name string) (store.ID, error) {
	return r.Resolve(ctx, store.MetaStream, name)
}

// PathID returns the id of a lineage string, registering it on first use.
// Identical lineages always map to the same id.
func (r *Registry) PathID(ctx context.Context, path string) (store.ID, error) {
	id, found, err := r.Lookup(ctx, store.MetaPath, path)
	if err != nil {
		return 0, err
	}
	if found {
		return id, nil
	}
	return r.Register(ctx, Entry{MType: store.MetaPath, Name: path}, false)
}

// Entity reads the current state of a registered entity.
func (r *Registry) Entity(ctx context.Context, mtype store.MetaType, name string) (store.MetaEntity, error) {
	id, err := r.Resolve(ctx, mtype, name)
	if err != nil {
		return store.MetaEntity{}, err
	}
	return r.store.ReadMeta(ctx, id)
}

// List returns every entity of a partition.
func (r *Registry) List(ctx context.Context, mtype store.MetaType) ([]store.MetaEntity, error) {
	return r.store.ListMeta(ctx, mtype)
}

// Forget drops every cached id. Call it after pending writes were lost so
// names registered in the discarded transaction are looked up again.
func (r *Registry) Forget() {
	clear(r.streams)
	clear(r.paths)
	clear(r.schemas)
}

// cacheStream records a stream id found in the database and compiles its
// schema if it has one.
func (r *Registry) cacheStream(ctx context.Context, name string, id store.ID) error {
	e, err := r.store.ReadMeta(ctx, id)
	if err != nil {
		return err
	}
	if e.Type == TypeJSONSchema {
		schema, err := compileSchema(name, e.JSON)
		if err != nil {
			return err
		}
		r.schemas[id] = schema
	}
	r.streams[name] = id
	return nil
}

func normalizeName(mtype store.MetaType, name string) (string, error) {
	name = norm.NFC.String(name)
	if name == "" {
		return "", &EntityError{Code: CodeInvalidName, MType: mtype, Name: name, Detail: "name must not be empty"}
	}
	return name, nil
}
