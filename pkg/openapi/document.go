package openapi

import (
	"errors"
	"sort"
	"strings"

	"github.com/neuroplatform/simforms/pkg/schema"
)

// Operation models the subset of OpenAPI operation metadata needed to build a
// form for an endpoint.
type Operation struct {
	ID          string
	Method      string
	Path        string
	Summary     string
	Description string
	Tags        []string
	// RequestSchema is the raw request body schema, still carrying $ref
	// pointers into the document. Nil when the operation takes no body.
	RequestSchema schema.Node
	// RequestRequired mirrors requestBody.required.
	RequestRequired bool
}

// NewOperation validates core fields.
func NewOperation(id, method, path string, request schema.Node) (Operation, error) {
	if id == "" {
		return Operation{}, errors.New("openapi: operation id is required")
	}
	if method == "" {
		return Operation{}, errors.New("openapi: operation method is required")
	}
	if path == "" {
		return Operation{}, errors.New("openapi: operation path is required")
	}
	return Operation{
		ID:            id,
		Method:        strings.ToUpper(method),
		Path:          path,
		RequestSchema: request,
	}, nil
}

// MustNewOperation panics when construction fails, assisting fixtures/tests.
func MustNewOperation(id, method, path string, request schema.Node) Operation {
	op, err := NewOperation(id, method, path, request)
	if err != nil {
		panic(err)
	}
	return op
}

// HasRequestBody reports whether the operation accepts a body.
func (op Operation) HasRequestBody() bool {
	return op.RequestSchema != nil
}

// Operations is the parser output keyed by operation id.
type Operations map[string]Operation

// ByPath returns the operation registered for path. When several methods share
// a path the body-carrying one wins, preferring POST.
func (ops Operations) ByPath(path string) (Operation, bool) {
	var (
		found Operation
		ok    bool
	)
	for _, op := range ops.Sorted() {
		if op.Path != path {
			continue
		}
		if !ok || rank(op) < rank(found) {
			found, ok = op, true
		}
	}
	return found, ok
}

// Sorted lists operations ordered by path then method.
func (ops Operations) Sorted() []Operation {
	out := make([]Operation, 0, len(ops))
	for _, op := range ops {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// WithBody filters operations that accept a request body.
func (ops Operations) WithBody() []Operation {
	var out []Operation
	for _, op := range ops.Sorted() {
		if op.HasRequestBody() {
			out = append(out, op)
		}
	}
	return out
}

func rank(op Operation) int {
	switch {
	case op.HasRequestBody() && op.Method == "POST":
		return 0
	case op.HasRequestBody():
		return 1
	default:
		return 2
	}
}
