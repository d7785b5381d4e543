package form

import (
	"fmt"

	"github.com/neuroplatform/simforms/pkg/schema"
)

const defaultMaxDepth = 16

// Options configures Build.
type Options struct {
	// Labeler derives labels for properties without a title.
	Labeler Labeler
	// Exclude lists top-level property names left out of the form. Defaults to
	// the block discriminator "type".
	Exclude []string
	// MaxDepth bounds object and array nesting.
	MaxDepth int
}

func (o Options) withDefaults() Options {
	if o.Labeler == nil {
		o.Labeler = DefaultLabeler
	}
	if o.Exclude == nil {
		o.Exclude = []string{schema.DiscriminatorKey}
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = defaultMaxDepth
	}
	return o
}

// Build walks the resolved properties of node, sorted by name, and returns the
// field tree. Properties whose schema matches no supported shape become
// KindUnsupported fields.
func Build(node schema.Node, resolver *schema.Resolver, options Options) (Form, error) {
	if resolver == nil {
		return Form{}, fmt.Errorf("form: resolver is required")
	}
	b := builder{resolver: resolver, opts: options.withDefaults()}

	resolved, err := resolver.Resolve(node)
	if err != nil {
		return Form{}, fmt.Errorf("form: resolve root: %w", err)
	}
	excluded := make(map[string]bool, len(b.opts.Exclude))
	for _, name := range b.opts.Exclude {
		excluded[name] = true
	}

	fields, err := b.properties(resolved, excluded, 0)
	if err != nil {
		return Form{}, err
	}
	return Form{
		Title:       schema.StringField(resolved, "title"),
		Description: schema.StringField(resolved, "description"),
		Fields:      fields,
		Schema:      resolved,
	}, nil
}

type builder struct {
	resolver *schema.Resolver
	opts     Options
}

func (b builder) properties(node schema.Node, excluded map[string]bool, depth int) ([]Field, error) {
	props := schema.Properties(node)
	required := schema.Required(node)

	fields := make([]Field, 0, len(props))
	for _, name := range schema.PropertyNames(node) {
		if excluded[name] {
			continue
		}
		raw, ok := props[name].(map[string]any)
		if !ok {
			raw = nil
		}
		field, err := b.field(name, raw, depth)
		if err != nil {
			return nil, fmt.Errorf("form: property %q: %w", name, err)
		}
		field.Required = required[name]
		fields = append(fields, field)
	}
	return fields, nil
}

func (b builder) field(name string, node schema.Node, depth int) (Field, error) {
	if depth > b.opts.MaxDepth {
		return Field{
			Name:   name,
			Kind:   KindUnsupported,
			Label:  b.opts.Labeler(name),
			Reason: fmt.Sprintf("nesting deeper than %d levels", b.opts.MaxDepth),
		}, nil
	}

	shape, err := b.resolver.Classify(node)
	if err != nil {
		return Field{}, err
	}

	field := Field{
		Name:        name,
		Label:       b.label(name, node, shape.Schema),
		Description: schema.StringField(shape.Schema, "description"),
		Default:     shape.Schema["default"],
		Schema:      shape.Schema,
		Minimum:     number(shape.Schema["minimum"]),
		Maximum:     number(shape.Schema["maximum"]),
	}

	switch shape.Kind {
	case schema.ShapeConst:
		field.Kind = KindConst
		field.Const = shape.Const
	case schema.ShapeEnum:
		field.Kind = KindEnum
		field.Options = shape.Enum
	case schema.ShapeArray:
		field.Kind = KindArray
		item, err := b.field("", shape.Items, depth+1)
		if err != nil {
			return Field{}, fmt.Errorf("items: %w", err)
		}
		item.Label = field.Label
		field.Item = &item
	case schema.ShapeBlockRef:
		field.Kind = KindBlockRef
		field.BlockTypes = append([]string(nil), shape.BlockTypes...)
	case schema.ShapeObject:
		field.Kind = KindObject
		children, err := b.properties(shape.Schema, nil, depth+1)
		if err != nil {
			return Field{}, err
		}
		field.Fields = children
	case schema.ShapeString:
		field.Kind = KindString
	case schema.ShapeNumber:
		field.Kind = KindNumber
	case schema.ShapeInteger:
		field.Kind = KindInteger
	case schema.ShapeBoolean:
		field.Kind = KindBoolean
	default:
		field.Kind = KindUnsupported
		field.Reason = shape.Reason
	}
	return field, nil
}

// label prefers the title declared on the property. Titles of referenced
// components name the type ("IDNeuronSet"), not the property, so those fall
// back to the labeler.
func (b builder) label(name string, node, resolved schema.Node) string {
	if title := schema.StringField(node, "title"); title != "" {
		return title
	}
	if _, isRef := schema.RefOf(node); !isRef {
		if title := schema.StringField(resolved, "title"); title != "" {
			return title
		}
	}
	return b.opts.Labeler(name)
}

func number(value any) *float64 {
	switch typed := value.(type) {
	case float64:
		return &typed
	case int:
		out := float64(typed)
		return &out
	}
	return nil
}
