package schema

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// Node is a decoded JSON schema object. A node is either inline (type,
// properties, items, enum, const, anyOf, ...) or a reference ({"$ref": ...}).
type Node = map[string]any

// Document wraps a decoded OpenAPI document and its origin.
type Document struct {
	source   Source
	raw      []byte
	payload  map[string]any
	checksum string
}

// NewDocument decodes raw JSON and validates that it holds an object.
func NewDocument(src Source, raw []byte) (Document, error) {
	if src == nil {
		return Document{}, errors.New("schema: source is required")
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Document{}, errors.New("schema: raw document is empty")
	}

	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return Document{}, fmt.Errorf("schema: decode document: %w", err)
	}
	payload, ok := decoded.(map[string]any)
	if !ok {
		return Document{}, ErrNotObject
	}

	sum := sha256.Sum256(trimmed)
	return Document{
		source:   src,
		raw:      append([]byte(nil), trimmed...),
		payload:  payload,
		checksum: hex.EncodeToString(sum[:]),
	}, nil
}

// MustNewDocument panics if the document cannot be created. Useful for tests.
func MustNewDocument(src Source, raw []byte) Document {
	doc, err := NewDocument(src, raw)
	if err != nil {
		panic(err)
	}
	return doc
}

// Source returns the origin metadata for the document.
func (d Document) Source() Source {
	return d.source
}

// Raw returns a copy of the encoded payload.
func (d Document) Raw() []byte {
	return append([]byte(nil), d.raw...)
}

// Payload returns the decoded root object. Callers must treat it as read-only.
func (d Document) Payload() map[string]any {
	return d.payload
}

// Checksum identifies the document contents; two fetches of the same spec
// share a checksum.
func (d Document) Checksum() string {
	return d.checksum
}

// Location returns the string identifier for the origin.
func (d Document) Location() string {
	if d.source == nil {
		return ""
	}
	return d.source.Location()
}

// IsZero reports whether the document was never initialised.
func (d Document) IsZero() bool {
	return d.payload == nil
}
