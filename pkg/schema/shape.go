package schema

import (
	"fmt"
	"sort"
	"strings"
)

// ShapeKind tags the variant a resolved node falls into.
type ShapeKind string

const (
	ShapeObject      ShapeKind = "object"
	ShapeArray       ShapeKind = "array"
	ShapeEnum        ShapeKind = "enum"
	ShapeConst       ShapeKind = "const"
	ShapeBlockRef    ShapeKind = "block_ref"
	ShapeString      ShapeKind = "string"
	ShapeNumber      ShapeKind = "number"
	ShapeInteger     ShapeKind = "integer"
	ShapeBoolean     ShapeKind = "boolean"
	ShapeUnsupported ShapeKind = "unsupported"
)

// DiscriminatorKey is the property whose const value names a block variant.
const DiscriminatorKey = "type"

// Shape is the classified form of a schema node. Only the members relevant to
// Kind are populated.
type Shape struct {
	Kind ShapeKind
	// Schema is the resolved node the shape was derived from.
	Schema Node
	// Items holds the (possibly unresolved) item schema for arrays.
	Items Node
	// Enum lists the allowed values for enums.
	Enum []any
	// Const holds the fixed value for const nodes.
	Const any
	// BlockTypes lists the discriminators a block reference accepts.
	BlockTypes []string
	// Reason explains why a node is unsupported.
	Reason string
}

// Classify resolves node and matches it against the supported shapes. Nodes
// that match none of them classify as ShapeUnsupported rather than failing.
func (r *Resolver) Classify(node Node) (Shape, error) {
	return r.classify(node, 0)
}

func (r *Resolver) classify(node Node, depth int) (Shape, error) {
	if depth > r.opts.MaxRefDepth {
		return Shape{}, fmt.Errorf("schema: anyOf nesting exceeds %d", r.opts.MaxRefDepth)
	}
	resolved, err := r.Resolve(node)
	if err != nil {
		return Shape{}, err
	}

	if value, ok := resolved["const"]; ok {
		return Shape{Kind: ShapeConst, Schema: resolved, Const: value}, nil
	}
	if list, ok := resolved["enum"].([]any); ok && len(list) > 0 {
		return Shape{Kind: ShapeEnum, Schema: resolved, Enum: append([]any(nil), list...)}, nil
	}

	typ := TypeOf(resolved)
	if typ == "array" {
		items, ok := resolved["items"].(map[string]any)
		if !ok {
			return unsupported(resolved, "array without items"), nil
		}
		return Shape{Kind: ShapeArray, Schema: resolved, Items: items}, nil
	}

	if branches, ok := resolved["anyOf"].([]any); ok {
		return r.classifyAnyOf(resolved, branches, depth)
	}

	if typ == "object" || (typ == "" && resolved["properties"] != nil) {
		if name, ok := discriminatorConst(resolved); ok {
			return Shape{Kind: ShapeBlockRef, Schema: resolved, BlockTypes: []string{name}}, nil
		}
		return Shape{Kind: ShapeObject, Schema: resolved}, nil
	}

	switch typ {
	case "string":
		return Shape{Kind: ShapeString, Schema: resolved}, nil
	case "number":
		return Shape{Kind: ShapeNumber, Schema: resolved}, nil
	case "integer":
		return Shape{Kind: ShapeInteger, Schema: resolved}, nil
	case "boolean":
		return Shape{Kind: ShapeBoolean, Schema: resolved}, nil
	case "":
		return unsupported(resolved, "schema declares no type"), nil
	default:
		return unsupported(resolved, fmt.Sprintf("type %q", typ)), nil
	}
}

func (r *Resolver) classifyAnyOf(resolved Node, branches []any, depth int) (Shape, error) {
	members := make([]Node, 0, len(branches))
	for idx, raw := range branches {
		branch, err := r.ResolveAny(raw)
		if err != nil {
			return Shape{}, fmt.Errorf("schema: anyOf[%d]: %w", idx, err)
		}
		if TypeOf(branch) == "null" {
			continue
		}
		members = append(members, branch)
	}

	for _, member := range members {
		if TypeOf(member) == "array" {
			items, ok := member["items"].(map[string]any)
			if !ok {
				return unsupported(resolved, "array branch without items"), nil
			}
			return Shape{Kind: ShapeArray, Schema: resolved, Items: items}, nil
		}
	}

	if len(members) == 0 {
		return unsupported(resolved, "anyOf has no usable branches"), nil
	}

	types := make([]string, 0, len(members))
	for _, member := range members {
		name, ok := discriminatorConst(member)
		if !ok {
			types = nil
			break
		}
		types = append(types, name)
	}
	if len(types) > 0 {
		return Shape{Kind: ShapeBlockRef, Schema: resolved, BlockTypes: types}, nil
	}

	if len(members) == 1 {
		inner, err := r.classify(members[0], depth+1)
		if err != nil {
			return Shape{}, err
		}
		if inner.Schema != nil {
			inner.Schema = overlay(inner.Schema, resolved)
		}
		return inner, nil
	}

	return unsupported(resolved, fmt.Sprintf("anyOf with %d branches", len(members))), nil
}

// Discriminator returns the variant name of a block schema: the const value of
// its "type" property, falling back to the schema title.
func (r *Resolver) Discriminator(node Node) (string, bool) {
	resolved, err := r.Resolve(node)
	if err != nil {
		return "", false
	}
	if name, ok := discriminatorConst(resolved); ok {
		return name, true
	}
	if title, ok := resolved["title"].(string); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title), true
	}
	return "", false
}

// TypeOf reads the "type" keyword. Type lists ("string", "null") collapse to
// their first non-null member.
func TypeOf(node Node) string {
	switch typed := node["type"].(type) {
	case string:
		return strings.TrimSpace(typed)
	case []any:
		for _, entry := range typed {
			if name, ok := entry.(string); ok && name != "null" {
				return name
			}
		}
		if len(typed) > 0 {
			return "null"
		}
	}
	return ""
}

// Properties returns the "properties" map of a resolved node.
func Properties(node Node) map[string]any {
	props, _ := node["properties"].(map[string]any)
	return props
}

// PropertyNames returns the property names of node in a stable order.
func PropertyNames(node Node) []string {
	props := Properties(node)
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Required reports the required property set of node.
func Required(node Node) map[string]bool {
	list, _ := node["required"].([]any)
	out := make(map[string]bool, len(list))
	for _, entry := range list {
		if name, ok := entry.(string); ok {
			out[name] = true
		}
	}
	return out
}

// StringField reads a string keyword, returning "" when absent.
func StringField(node Node, key string) string {
	value, _ := node[key].(string)
	return strings.TrimSpace(value)
}

func discriminatorConst(node Node) (string, bool) {
	prop, ok := Properties(node)[DiscriminatorKey].(map[string]any)
	if !ok {
		return "", false
	}
	if value, ok := prop["const"].(string); ok && strings.TrimSpace(value) != "" {
		return value, true
	}
	if list, ok := prop["enum"].([]any); ok && len(list) == 1 {
		if value, ok := list[0].(string); ok && strings.TrimSpace(value) != "" {
			return value, true
		}
	}
	if value, ok := prop["default"].(string); ok && strings.TrimSpace(value) != "" && prop["type"] == nil {
		return value, true
	}
	return "", false
}

// overlay copies annotation keywords from the wrapping anyOf node onto the
// selected branch so titles and defaults survive the unwrap.
func overlay(target, wrapper Node) Node {
	out := make(Node, len(target)+3)
	for key, value := range target {
		out[key] = value
	}
	for _, key := range []string{"title", "description", "default"} {
		if value, ok := wrapper[key]; ok {
			out[key] = value
		}
	}
	return out
}

func unsupported(node Node, reason string) Shape {
	return Shape{Kind: ShapeUnsupported, Schema: node, Reason: reason}
}
