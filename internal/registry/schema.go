package registry

import (
	"fmt"

	"github.com/kaptinlin/jsonschema"

	"github.com/roach88/explog/internal/store"
)

// streamSchema is the compiled payload schema of a jsonschema stream.
type streamSchema struct {
	stream string
	schema *jsonschema.Schema
}

func compileSchema(stream, schemaJSON string) (*streamSchema, error) {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(schemaJSON))
	if err != nil {
		return nil, &EntityError{
			Code:   CodeInvalidPayload,
			MType:  store.MetaStream,
			Name:   stream,
			Detail: fmt.Sprintf("compile schema: %v", err),
		}
	}
	return &streamSchema{stream: stream, schema: schema}, nil
}

// ValidateStreamData checks encoded log data against the schema of a stream.
// Streams without a schema accept any data. The stream must have been
// resolved through this registry first.
func (r *Registry) ValidateStreamData(stream store.ID, dataJSON string) error {
	s, ok := r.schemas[stream]
	if !ok {
		return nil
	}
	result := s.schema.ValidateJSON([]byte(dataJSON))
	if result.IsValid() {
		return nil
	}
	return &EntityError{
		Code:   CodeInvalidPayload,
		MType:  store.MetaStream,
		Name:   s.stream,
		Detail: fmt.Sprintf("schema validation failed: %v", result.Errors),
	}
}

// HasSchema reports whether a stream validates its payloads.
func (r *Registry) HasSchema(stream store.ID) bool {
	_, ok := r.schemas[stream]
	return ok
}
