package vanilla

import (
	"bytes"
	"fmt"
	"html"
	"slices"
	"strings"

	"github.com/neuroplatform/simforms/pkg/form"
	"github.com/neuroplatform/simforms/pkg/preview"
	"github.com/neuroplatform/simforms/pkg/render/template"
	"github.com/neuroplatform/simforms/pkg/render/template/gotemplate"
	"github.com/neuroplatform/simforms/pkg/renderers/vanilla/components"
)

type componentRenderer struct {
	templates template.TemplateRenderer
	registry  *components.Registry
	partials  map[string]string
	rowAction string

	usedComponents map[string]struct{}
}

func newComponentRenderer(templates template.TemplateRenderer, registry *components.Registry, partials map[string]string, rowAction string) *componentRenderer {
	if registry == nil {
		registry = components.NewDefaultRegistry()
	}
	return &componentRenderer{
		templates:      templates,
		registry:       registry,
		partials:       partials,
		rowAction:      rowAction,
		usedComponents: make(map[string]struct{}),
	}
}

func (r *componentRenderer) renderAll(controls []form.Control) (string, error) {
	var out strings.Builder
	for _, ctrl := range controls {
		rendered, err := r.render(ctrl)
		if err != nil {
			return "", err
		}
		out.WriteString(rendered)
	}
	return out.String(), nil
}

func (r *componentRenderer) render(ctrl form.Control) (string, error) {
	if ctrl.Field == nil {
		return "", fmt.Errorf("control %q has no field", ctrl.Path)
	}
	name := components.NameFor(ctrl.Field.Kind)
	descriptor, ok := r.registry.Descriptor(name)
	if !ok {
		return "", fmt.Errorf("component %q not registered for field %q", name, ctrl.Path)
	}

	var control bytes.Buffer
	err := descriptor.Renderer(&control, ctrl, components.ComponentData{
		Template:      r.templates,
		RenderChild:   r.render,
		RowAction:     r.rowAction,
		ThemePartials: r.partials,
	})
	if err != nil {
		return "", fmt.Errorf("render component %q for field %q: %w", name, ctrl.Path, err)
	}
	r.usedComponents[name] = struct{}{}

	if components.HandlesChrome(name) {
		return control.String(), nil
	}
	return buildFieldMarkup(ctrl, name, control.String()), nil
}

func (r *componentRenderer) scripts() []string {
	names := make([]string, 0, len(r.usedComponents))
	for name := range r.usedComponents {
		names = append(names, name)
	}
	slices.Sort(names)
	return r.registry.Scripts(names)
}

func buildFieldMarkup(ctrl form.Control, componentName, control string) string {
	field := ctrl.Field
	var b strings.Builder
	b.Grow(len(control) + 256)

	b.WriteString(`<div class="` + string(ClassField) + `" data-component="`)
	b.WriteString(html.EscapeString(componentName))
	b.WriteString(`" data-path="`)
	b.WriteString(html.EscapeString(ctrl.Path))
	b.WriteString(`">`)

	if label := strings.TrimSpace(field.Label); label != "" {
		b.WriteString(`<label class="` + string(ClassLabel) + `" for="`)
		b.WriteString(html.EscapeString(gotemplate.DomID(ctrl.Path)))
		b.WriteString(`">`)
		b.WriteString(html.EscapeString(label))
		if field.Required {
			b.WriteString(` <abbr class="` + string(ClassRequired) + `" title="required">*</abbr>`)
		}
		b.WriteString(`</label>`)
	}

	b.WriteString(strings.TrimSpace(control))

	if desc := preview.Inline(field.Description); desc != "" {
		b.WriteString(`<small class="` + string(ClassDesc) + `">`)
		b.WriteString(string(desc))
		b.WriteString(`</small>`)
	}

	var errs bytes.Buffer
	components.WriteErrors(&errs, ctrl.Errors)
	b.Write(errs.Bytes())

	b.WriteString("</div>\n")
	return b.String()
}
