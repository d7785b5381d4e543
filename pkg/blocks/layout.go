package blocks

import (
	"fmt"

	"github.com/neuroplatform/simforms/pkg/form"
	"github.com/neuroplatform/simforms/pkg/schema"
)

// InitializeSection names the section that always comes first and holds
// exactly one implicit block.
const InitializeSection = "initialize"

// Variant is one block type a section accepts.
type Variant struct {
	Type        string      `json:"type"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Schema      schema.Node `json:"-"`
}

// Section groups the blocks backing one top-level property of the schema.
type Section struct {
	Name        string    `json:"name"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Variants    []Variant `json:"variants"`
	// Single marks sections holding exactly one implicit block: initialize,
	// or the whole root of a schema without sections.
	Single bool `json:"single,omitempty"`
}

// Variant returns the variant named typeName.
func (s Section) Variant(typeName string) (Variant, bool) {
	for _, variant := range s.Variants {
		if variant.Type == typeName {
			return variant, true
		}
	}
	return Variant{}, false
}

// Skipped records a top-level property that could not become a section.
type Skipped struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Layout is the partition of a root schema.
type Layout struct {
	Title    string    `json:"title,omitempty"`
	RootType string    `json:"rootType,omitempty"`
	Sections []Section `json:"sections"`
	Skipped  []Skipped `json:"skipped,omitempty"`
	// Plain is set when the root has no initialize property; the root schema
	// is then edited as a single block and emitted unnested.
	Plain bool `json:"plain,omitempty"`
}

// Section returns the section called name.
func (l Layout) Section(name string) (Section, bool) {
	for _, section := range l.Sections {
		if section.Name == name {
			return section, true
		}
	}
	return Section{}, false
}

// Partition splits the top-level properties of root (excluding "type") into
// sections: initialize first, then every property whose additionalProperties
// describes the allowed block variants, sorted by name.
func Partition(root schema.Node, resolver *schema.Resolver) (Layout, error) {
	resolved, err := resolver.Resolve(root)
	if err != nil {
		return Layout{}, fmt.Errorf("blocks: resolve root: %w", err)
	}
	layout := Layout{Title: schema.StringField(resolved, "title")}
	if name, ok := resolver.Discriminator(resolved); ok {
		layout.RootType = name
	}

	props := schema.Properties(resolved)
	if _, ok := props[InitializeSection]; !ok {
		layout.Plain = true
		layout.Sections = []Section{{
			Name:        InitializeSection,
			Title:       layout.Title,
			Description: schema.StringField(resolved, "description"),
			Single:      true,
			Variants:    []Variant{{Type: layout.RootType, Title: layout.Title, Schema: resolved}},
		}}
		return layout, nil
	}

	for _, name := range schema.PropertyNames(resolved) {
		if name == schema.DiscriminatorKey {
			continue
		}
		raw, _ := props[name].(map[string]any)
		node, err := resolver.Resolve(raw)
		if err != nil {
			return Layout{}, fmt.Errorf("blocks: section %q: %w", name, err)
		}

		section := Section{
			Name:        name,
			Title:       schema.StringField(node, "title"),
			Description: schema.StringField(node, "description"),
		}
		if section.Title == "" || name == InitializeSection {
			section.Title = form.DefaultLabeler(name)
		}

		if name == InitializeSection {
			typeName, ok := resolver.Discriminator(node)
			if !ok {
				typeName = InitializeSection
			}
			section.Single = true
			section.Variants = []Variant{{Type: typeName, Title: schema.StringField(node, "title"), Schema: raw}}
			layout.Sections = append([]Section{section}, layout.Sections...)
			continue
		}

		variants, reason, err := sectionVariants(node, resolver)
		if err != nil {
			return Layout{}, fmt.Errorf("blocks: section %q: %w", name, err)
		}
		if len(variants) == 0 {
			layout.Skipped = append(layout.Skipped, Skipped{Name: name, Reason: reason})
			continue
		}
		section.Variants = variants
		layout.Sections = append(layout.Sections, section)
	}
	return layout, nil
}

func sectionVariants(node schema.Node, resolver *schema.Resolver) ([]Variant, string, error) {
	additional, ok := node["additionalProperties"].(map[string]any)
	if !ok {
		return nil, "no additionalProperties describing block variants", nil
	}
	resolved, err := resolver.Resolve(additional)
	if err != nil {
		return nil, "", err
	}

	members := []any{additional}
	if branches, ok := resolved["anyOf"].([]any); ok {
		members = branches
	}

	variants := make([]Variant, 0, len(members))
	seen := make(map[string]bool, len(members))
	for idx, member := range members {
		raw, _ := member.(map[string]any)
		target, err := resolver.ResolveAny(member)
		if err != nil {
			return nil, "", fmt.Errorf("variant %d: %w", idx, err)
		}
		if schema.TypeOf(target) == "null" {
			continue
		}
		typeName, ok := resolver.Discriminator(target)
		if !ok || seen[typeName] {
			continue
		}
		seen[typeName] = true
		variants = append(variants, Variant{
			Type:        typeName,
			Title:       schema.StringField(target, "title"),
			Description: schema.StringField(target, "description"),
			Schema:      raw,
		})
	}
	if len(variants) == 0 {
		return nil, "block variants carry no type discriminator", nil
	}
	return variants, "", nil
}
