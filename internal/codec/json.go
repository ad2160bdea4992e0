package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Null is the column text stored for an absent value.
const Null = "null"

// Encode converts v to canonical JSON text.
//
// A json.RawMessage is canonicalized as-is. A nil
// value encodes as "null".
func Encode(v any) (string, error) {
	var raw []byte
	switch val := v.(type) {
	case nil:
		return Null, nil
	case json.RawMessage:
		raw = val
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return "", fmt.Errorf("encode json: %w", err)
		}
		raw = buf.Bytes()
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return Null, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return "", fmt.Errorf("canonicalize json: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return "", fmt.Errorf("canonicalize json: trailing data after value")
	}

	var out bytes.Buffer
	if err := writeCanonical(&out, tree); err != nil {
		return "", fmt.Errorf("canonicalize json: %w", err)
	}
	return out.String(), nil
}

// Decode parses JSON column text.
//
// Numbers decode as json.Number so integers beyond 2^53 survive. Empty text
// and "null" decode to nil.
func Decode(text string) (any, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == Null {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return v, nil
}

// DecodeInto parses JSON column text into out.
func DecodeInto(text string, out any) error {
	text = strings.TrimSpace(text)
	if text == "" || text == Null {
		return nil
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// Pretty renders v as indented JSON with sorted keys, for diagnostics.
// Encoding failures are rendered inline rather than returned.
func Pretty(v any) string {
	text, err := Encode(v)
	if err != nil {
		return fmt.Sprintf("<unencodable: %v>", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(text), "", "    "); err != nil {
		return text
	}
	return buf.String()
}
