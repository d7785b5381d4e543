package schema

import (
	"fmt"
	"strings"

	"github.com/dadav/go-jsonpointer"
)

const defaultMaxRefDepth = 64

// ResolveOptions configures reference resolution.
type ResolveOptions struct {
	// MaxRefDepth caps the length of $ref chains. Defaults to 64.
	MaxRefDepth int
}

// Resolver dereferences schema nodes against a single root document.
type Resolver struct {
	root map[string]any
	opts ResolveOptions
}

// NewResolver constructs a resolver bound to the document payload.
func NewResolver(doc Document, opts ResolveOptions) *Resolver {
	return NewResolverFromMap(doc.Payload(), opts)
}

// NewResolverFromMap constructs a resolver over an already decoded root.
func NewResolverFromMap(root map[string]any, opts ResolveOptions) *Resolver {
	if opts.MaxRefDepth <= 0 {
		opts.MaxRefDepth = defaultMaxRefDepth
	}
	if root == nil {
		root = map[string]any{}
	}
	return &Resolver{root: root, opts: opts}
}

// Root returns the document the resolver reads from.
func (r *Resolver) Root() map[string]any {
	return r.root
}

// EmptyObject returns the schema used for missing or undefined input.
func EmptyObject() Node {
	return Node{"type": "object", "properties": map[string]any{}}
}

// Resolve returns the concrete schema for node. Missing input yields the empty
// object schema, inline schemas are returned unchanged and references are
// followed until a concrete node is reached.
func (r *Resolver) Resolve(node Node) (Node, error) {
	if node == nil {
		return EmptyObject(), nil
	}

	seen := make(map[string]struct{})
	current := node
	for depth := 0; ; depth++ {
		ref, ok := RefOf(current)
		if !ok {
			return current, nil
		}
		if depth >= r.opts.MaxRefDepth {
			return nil, &ReferenceError{Ref: ref, Err: ErrReferenceDepth}
		}
		if _, loop := seen[ref]; loop {
			return nil, &ReferenceError{Ref: ref, Err: ErrReferenceCycle}
		}
		seen[ref] = struct{}{}

		target, err := r.Lookup(ref)
		if err != nil {
			return nil, err
		}
		current = target
	}
}

// ResolveAny accepts an arbitrary decoded JSON value (as found under
// "properties" or "items") and resolves it when it is an object.
func (r *Resolver) ResolveAny(value any) (Node, error) {
	switch typed := value.(type) {
	case nil:
		return EmptyObject(), nil
	case map[string]any:
		return r.Resolve(typed)
	case bool:
		// JSON Schema boolean schemas accept (true) or reject (false) anything.
		return Node{}, nil
	default:
		return nil, fmt.Errorf("schema: expected schema object, got %T", value)
	}
}

// Lookup reads the target of a local reference such as
// "#/components/schemas/Foo" without following further references.
func (r *Resolver) Lookup(ref string) (Node, error) {
	docPart, pointer, _ := strings.Cut(strings.TrimSpace(ref), "#")
	if docPart != "" {
		return nil, &ReferenceError{Ref: ref, Err: ErrExternalReference}
	}
	if pointer == "" {
		return r.root, nil
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, &ReferenceError{Ref: ref, Err: ErrReferenceNotFound}
	}

	target, err := jsonpointer.Get(r.root, pointer)
	if err != nil || target == nil {
		return nil, &ReferenceError{Ref: ref, Err: ErrReferenceNotFound}
	}
	node, ok := target.(map[string]any)
	if !ok {
		return nil, &ReferenceError{Ref: ref, Err: ErrNotObject}
	}
	return node, nil
}

// RefOf returns the $ref string carried by node, if any.
func RefOf(node Node) (string, bool) {
	if node == nil {
		return "", false
	}
	ref, ok := node["$ref"].(string)
	if !ok || strings.TrimSpace(ref) == "" {
		return "", false
	}
	return ref, true
}
