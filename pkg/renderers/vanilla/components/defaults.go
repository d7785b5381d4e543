package components

import (
	"bytes"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/neuroplatform/simforms/pkg/form"
	"github.com/neuroplatform/simforms/pkg/preview"
	"github.com/neuroplatform/simforms/pkg/render/template/gotemplate"
)

const templatePrefix = "templates/components/"

// RowParam is the submit button name carrying array row operations, encoded as
// "add:{path}" or "remove:{path}:{index}".
const RowParam = "_row"

// NewDefaultRegistry constructs a registry pre-populated with the built-in
// components used by the vanilla renderer.
func NewDefaultRegistry() *Registry {
	registry := New()

	registry.MustRegister(NameInput, Descriptor{
		Renderer: templateComponentRenderer("forms.input", templatePrefix+"input.tmpl"),
	})
	registry.MustRegister(NameSelect, Descriptor{
		Renderer: templateComponentRenderer("forms.select", templatePrefix+"select.tmpl"),
	})
	registry.MustRegister(NameBoolean, Descriptor{
		Renderer: templateComponentRenderer("forms.checkbox", templatePrefix+"boolean.tmpl"),
	})
	registry.MustRegister(NameConst, Descriptor{
		Renderer: templateComponentRenderer("forms.const", templatePrefix+"const.tmpl"),
	})
	registry.MustRegister(NameBlockRef, Descriptor{
		Renderer: templateComponentRenderer("forms.block-ref", templatePrefix+"block_ref.tmpl"),
	})
	registry.MustRegister(NameObject, Descriptor{Renderer: objectRenderer})
	registry.MustRegister(NameArray, Descriptor{Renderer: arrayRenderer})
	registry.MustRegister(NameUnsupported, Descriptor{Renderer: unsupportedRenderer})

	return registry
}

func templateComponentRenderer(partialKey, templateName string) Renderer {
	return func(buf *bytes.Buffer, ctrl form.Control, data ComponentData) error {
		if data.Template == nil {
			return fmt.Errorf("components: template renderer not configured for %q", templateName)
		}

		resolved := templateName
		if candidate := strings.TrimSpace(data.ThemePartials[partialKey]); candidate != "" {
			resolved = candidate
		}

		payload := map[string]any{
			"control": ctrl,
			"id":      gotemplate.DomID(ctrl.Path),
			"input":   inputAttributes(ctrl.Field),
		}
		rendered, err := data.Template.RenderTemplate(resolved, payload)
		if err != nil {
			return fmt.Errorf("components: render template %q: %w", resolved, err)
		}
		buf.WriteString(rendered)
		return nil
	}
}

type inputAttrs struct {
	Type string `json:"type"`
	Step string `json:"step,omitempty"`
	Min  string `json:"min,omitempty"`
	Max  string `json:"max,omitempty"`
}

func inputAttributes(field *form.Field) inputAttrs {
	attrs := inputAttrs{Type: "text"}
	if field == nil {
		return attrs
	}
	switch field.Kind {
	case form.KindInteger:
		attrs.Type, attrs.Step = "number", "1"
	case form.KindNumber:
		attrs.Type, attrs.Step = "number", "any"
	default:
		return attrs
	}
	if field.Minimum != nil {
		attrs.Min = strconv.FormatFloat(*field.Minimum, 'f', -1, 64)
	}
	if field.Maximum != nil {
		attrs.Max = strconv.FormatFloat(*field.Maximum, 'f', -1, 64)
	}
	return attrs
}

func objectRenderer(buf *bytes.Buffer, ctrl form.Control, data ComponentData) error {
	buf.WriteString(`<fieldset class="sf-object" id="`)
	buf.WriteString(html.EscapeString(gotemplate.DomID(ctrl.Path)))
	buf.WriteString(`">`)
	writeLegend(buf, ctrl)
	for _, child := range ctrl.Children {
		rendered, err := data.RenderChild(child)
		if err != nil {
			return err
		}
		buf.WriteString(rendered)
	}
	WriteErrors(buf, ctrl.Errors)
	buf.WriteString(`</fieldset>`)
	return nil
}

func arrayRenderer(buf *bytes.Buffer, ctrl form.Control, data ComponentData) error {
	path := ctrl.Path

	buf.WriteString(`<fieldset class="sf-array" id="`)
	buf.WriteString(html.EscapeString(gotemplate.DomID(ctrl.Path)))
	buf.WriteString(`" data-rows="`)
	buf.WriteString(strconv.Itoa(len(ctrl.Rows)))
	buf.WriteString(`">`)
	writeLegend(buf, ctrl)

	buf.WriteString(`<ol class="sf-rows">`)
	for _, row := range ctrl.Rows {
		rendered, err := data.RenderChild(row.Control)
		if err != nil {
			return err
		}
		buf.WriteString(`<li class="sf-row">`)
		buf.WriteString(rendered)
		buf.WriteString(`<span class="sf-row-actions">`)
		if row.CanRemove {
			writeRowButton(buf, data.RowAction, "remove:"+path+":"+strconv.Itoa(row.Index), "Remove row", "&minus;")
		}
		if row.CanAdd {
			writeRowButton(buf, data.RowAction, "add:"+path, "Add row", "+")
		}
		buf.WriteString(`</span></li>`)
	}
	buf.WriteString(`</ol>`)

	if len(ctrl.Rows) == 0 {
		writeRowButton(buf, data.RowAction, "add:"+path, "Add row", "+ Add")
	}
	WriteErrors(buf, ctrl.Errors)
	buf.WriteString(`</fieldset>`)
	return nil
}

func unsupportedRenderer(buf *bytes.Buffer, ctrl form.Control, _ ComponentData) error {
	label := ""
	reason := ""
	if ctrl.Field != nil {
		label = ctrl.Field.Label
		reason = ctrl.Field.Reason
	}
	buf.WriteString(`<div class="sf-unsupported" data-path="`)
	buf.WriteString(html.EscapeString(ctrl.Path))
	buf.WriteString(`"><span class="sf-label">`)
	buf.WriteString(html.EscapeString(label))
	buf.WriteString(`</span> <em>unsupported field`)
	if reason != "" {
		buf.WriteString(`: `)
		buf.WriteString(html.EscapeString(reason))
	}
	buf.WriteString(`</em></div>`)
	return nil
}

// writeRowButton escapes value itself; label is trusted markup.
func writeRowButton(buf *bytes.Buffer, action, value, title, label string) {
	buf.WriteString(`<button type="submit" class="sf-row-button" name="` + RowParam + `" value="`)
	buf.WriteString(html.EscapeString(value))
	buf.WriteString(`"`)
	if action != "" {
		buf.WriteString(` formaction="`)
		buf.WriteString(html.EscapeString(action))
		buf.WriteString(`"`)
	}
	buf.WriteString(` title="`)
	buf.WriteString(html.EscapeString(title))
	buf.WriteString(`">`)
	buf.WriteString(label)
	buf.WriteString(`</button>`)
}

func writeLegend(buf *bytes.Buffer, ctrl form.Control) {
	if ctrl.Field == nil {
		return
	}
	if label := strings.TrimSpace(ctrl.Field.Label); label != "" {
		buf.WriteString(`<legend class="sf-label">`)
		buf.WriteString(html.EscapeString(label))
		if ctrl.Field.Required {
			buf.WriteString(` <abbr title="required">*</abbr>`)
		}
		buf.WriteString(`</legend>`)
	}
	if desc := preview.Inline(ctrl.Field.Description); desc != "" {
		buf.WriteString(`<p class="sf-description">`)
		buf.WriteString(string(desc))
		buf.WriteString(`</p>`)
	}
}

// WriteErrors renders control-level messages.
func WriteErrors(buf *bytes.Buffer, messages []string) {
	if len(messages) == 0 {
		return
	}
	buf.WriteString(`<ul class="sf-errors" role="alert">`)
	for _, message := range messages {
		buf.WriteString(`<li>`)
		buf.WriteString(html.EscapeString(message))
		buf.WriteString(`</li>`)
	}
	buf.WriteString(`</ul>`)
}
