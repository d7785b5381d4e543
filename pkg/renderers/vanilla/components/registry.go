package components

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/neuroplatform/simforms/pkg/form"
	rendertemplate "github.com/neuroplatform/simforms/pkg/render/template"
)

// Renderer writes the HTML of one control into buf.
type Renderer func(buf *bytes.Buffer, ctrl form.Control, data ComponentData) error

// ComponentData carries helpers shared by component renderers.
type ComponentData struct {
	Template rendertemplate.TemplateRenderer
	// RenderChild renders a nested control including its field chrome.
	RenderChild func(ctrl form.Control) (string, error)
	// RowAction is the URL array row buttons submit to.
	RowAction string
	// ThemePartials maps partial keys ("forms.input") to replacement templates.
	ThemePartials map[string]string
}

// Descriptor bundles a component renderer with the scripts it needs once per
// page.
type Descriptor struct {
	Name     string
	Renderer Renderer
	Scripts  []string
}

// Registry tracks component descriptors keyed by name. Callers can register new
// components or override defaults.
type Registry struct {
	mu         sync.RWMutex
	components map[string]Descriptor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{components: make(map[string]Descriptor)}
}

// Clone returns a copy of the registry to allow isolated mutations.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cloned := New()
	for name, descriptor := range r.components {
		descriptor.Scripts = slices.Clone(descriptor.Scripts)
		cloned.components[name] = descriptor
	}
	return cloned
}

// Register associates a descriptor with name, replacing any existing entry.
func (r *Registry) Register(name string, descriptor Descriptor) error {
	if name = normalize(name); name == "" {
		return fmt.Errorf("components: component name is required")
	}
	if descriptor.Renderer == nil {
		return fmt.Errorf("components: renderer for %q is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	descriptor.Name = name
	descriptor.Scripts = slices.Clone(descriptor.Scripts)
	r.components[name] = descriptor
	return nil
}

// MustRegister mirrors Register but panics on error.
func (r *Registry) MustRegister(name string, descriptor Descriptor) {
	if err := r.Register(name, descriptor); err != nil {
		panic(err)
	}
}

// Descriptor fetches a descriptor by name.
func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descriptor, ok := r.components[normalize(name)]
	return descriptor, ok
}

// Names returns the registered component names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.components))
	for name := range r.components {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Scripts returns the de-duplicated scripts needed by the named components.
func (r *Registry) Scripts(names []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	seen := make(map[string]struct{})
	for _, name := range names {
		for _, src := range r.components[normalize(name)].Scripts {
			if _, ok := seen[src]; ok || src == "" {
				continue
			}
			seen[src] = struct{}{}
			out = append(out, src)
		}
	}
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
