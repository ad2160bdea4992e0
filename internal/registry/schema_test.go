package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/explog/internal/store"
)

var pointSchema = map[string]any{
	"type":     "object",
	"required": []any{"x"},
	"properties": map[string]any{
		"x": map[string]any{"type": "number"},
	},
}

func TestValidateStreamData(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	id, err := r.Register(ctx, Entry{MType: store.MetaStream, Name: "points", Type: TypeJSONSchema, Payload: pointSchema}, false)
	require.NoError(t, err)
	assert.True(t, r.HasSchema(id))

	assert.NoError(t, r.ValidateStreamData(id, `{"x":1}`))

	err = r.ValidateStreamData(id, `{"y":1}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPayload))

	err = r.ValidateStreamData(id, `{"x":"one"}`)
	assert.True(t, errors.Is(err, ErrInvalidPayload))
}

func TestValidateStreamData_NoSchema(t *testing.T) {
	r, _ := newTestRegistry(t)
	id, err := r.Register(context.Background(), Entry{MType: store.MetaStream, Name: "free"}, false)
	require.NoError(t, err)
	assert.False(t, r.HasSchema(id))
	assert.NoError(t, r.ValidateStreamData(id, `"anything"`))
}

func TestSchema_LoadedOnLookup(t *testing.T) {
	r, st := newTestRegistry(t)
	ctx := context.Background()

	_, err := New(st, nil).Register(ctx, Entry{MType: store.MetaStream, Name: "points", Type: TypeJSONSchema, Payload: pointSchema}, false)
	require.NoError(t, err)

	id, err := r.StreamID(ctx, "points")
	require.NoError(t, err)
	assert.True(t, r.HasSchema(id))
	assert.Error(t, r.ValidateStreamData(id, `{}`))
}

func TestSchema_DroppedByForceUpdate(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	id, err := r.Register(ctx, Entry{MType: store.MetaStream, Name: "points", Type: TypeJSONSchema, Payload: pointSchema}, false)
	require.NoError(t, err)

	_, err = r.Register(ctx, Entry{MType: store.MetaStream, Name: "points", Type: "free"}, true)
	require.NoError(t, err)
	assert.False(t, r.HasSchema(id))
	assert.NoError(t, r.ValidateStreamData(id, `{}`))
}

func TestSchema_InvalidSchemaRejected(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Register(ctx, Entry{MType: store.MetaStream, Name: "broken", Type: TypeJSONSchema, Payload: 42}, false)
	assert.True(t, errors.Is(err, ErrInvalidPayload), "got %v", err)

	_, found, err := r.Lookup(ctx, store.MetaStream, "broken")
	require.NoError(t, err)
	assert.False(t, found, "a stream with a broken schema must not be registered")
}
