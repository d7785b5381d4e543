package form

import "github.com/neuroplatform/simforms/pkg/schema"

// FieldKind enumerates the controls the builder produces.
type FieldKind string

const (
	KindString      FieldKind = "string"
	KindNumber      FieldKind = "number"
	KindInteger     FieldKind = "integer"
	KindBoolean     FieldKind = "boolean"
	KindEnum        FieldKind = "enum"
	KindConst       FieldKind = "const"
	KindArray       FieldKind = "array"
	KindObject      FieldKind = "object"
	KindBlockRef    FieldKind = "block_ref"
	KindUnsupported FieldKind = "unsupported"
)

// Field describes one schema property.
type Field struct {
	Name        string    `json:"name"`
	Kind        FieldKind `json:"kind"`
	Label       string    `json:"label"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required,omitempty"`
	Default     any       `json:"default,omitempty"`
	// Const is the fixed value of KindConst fields.
	Const any `json:"const,omitempty"`
	// Options lists enum values.
	Options []any `json:"options,omitempty"`
	// BlockTypes lists the block types a KindBlockRef field may point at.
	BlockTypes []string `json:"blockTypes,omitempty"`
	// Item describes the rows of KindArray fields.
	Item *Field `json:"item,omitempty"`
	// Fields holds the children of KindObject fields.
	Fields []Field `json:"fields,omitempty"`
	// Reason explains KindUnsupported fields.
	Reason string `json:"reason,omitempty"`

	Minimum *float64 `json:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty"`

	Schema schema.Node `json:"-"`
}

// Form is the field tree of one block schema.
type Form struct {
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Fields      []Field     `json:"fields"`
	Schema      schema.Node `json:"-"`
}

// Lookup returns the field addressed by a concrete dotted path. Numeric
// segments step into array items.
func (f Form) Lookup(path string) (*Field, bool) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, false
	}
	fields := f.Fields
	var current *Field
	for idx := 0; idx < len(segments); idx++ {
		seg := segments[idx]
		if current != nil && current.Kind == KindArray {
			if _, ok := parseIndex(seg); !ok || current.Item == nil {
				return nil, false
			}
			current = current.Item
			fields = current.Fields
			continue
		}
		current = findField(fields, seg)
		if current == nil {
			return nil, false
		}
		fields = current.Fields
	}
	return current, current != nil
}

// Walk visits every field in depth-first order with its schema level path.
// Array items are visited with a "[]" segment.
func (f Form) Walk(visit func(path string, field *Field)) {
	for idx := range f.Fields {
		walkField(joinPath("", f.Fields[idx].Name), &f.Fields[idx], visit)
	}
}

func walkField(path string, field *Field, visit func(string, *Field)) {
	visit(path, field)
	if field.Item != nil {
		walkField(path+".[]", field.Item, visit)
	}
	for idx := range field.Fields {
		walkField(joinPath(path, field.Fields[idx].Name), &field.Fields[idx], visit)
	}
}

func findField(fields []Field, name string) *Field {
	for idx := range fields {
		if fields[idx].Name == name {
			return &fields[idx]
		}
	}
	return nil
}
