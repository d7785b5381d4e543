// Package schema resolves OpenAPI / JSON Schema nodes and classifies them into
// the shapes the form builder understands. Nodes are kept as decoded JSON
// objects (map[string]any) so server-generated documents flow through without
// a lossy conversion step; references are followed lazily against the root
// document, one JSON pointer at a time.
package schema
