package form

import (
	"strconv"
)

// BlockOption is a block a reference field can point at.
type BlockOption struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Section string `json:"section"`
}

// BlockLister returns the existing blocks whose type is one of types.
type BlockLister interface {
	BlocksOfType(types ...string) []BlockOption
}

// Choice is one option of a select control.
type Choice struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Selected bool   `json:"selected,omitempty"`
}

// Control is a field bound to a concrete path and the current state.
type Control struct {
	Field    *Field    `json:"field"`
	Path     string    `json:"path"`
	Value    any       `json:"value,omitempty"`
	Text     string    `json:"text"`
	Disabled bool      `json:"disabled,omitempty"`
	Choices  []Choice  `json:"choices,omitempty"`
	Rows     []Row     `json:"rows,omitempty"`
	Children []Control `json:"children,omitempty"`
	Errors   []string  `json:"errors,omitempty"`
}

// Row is one entry of an array control. Only the last row offers "add".
type Row struct {
	Index     int     `json:"index"`
	Control   Control `json:"control"`
	CanAdd    bool    `json:"canAdd"`
	CanRemove bool    `json:"canRemove"`
}

// ViewOptions customises View.
type ViewOptions struct {
	// Blocks feeds block reference selects. Nil yields empty selects.
	Blocks BlockLister
	// Errors maps concrete paths to messages shown next to the control.
	Errors map[string][]string
}

// View binds the field tree to state and returns one control per field.
func View(f Form, state *State, opts ViewOptions) []Control {
	if state == nil {
		state = NewState(nil)
	}
	v := viewer{state: state, opts: opts}
	controls := make([]Control, 0, len(f.Fields))
	for idx := range f.Fields {
		controls = append(controls, v.control(f.Fields[idx].Name, &f.Fields[idx]))
	}
	return controls
}

type viewer struct {
	state *State
	opts  ViewOptions
}

func (v viewer) control(path string, field *Field) Control {
	ctrl := Control{
		Field:  field,
		Path:   path,
		Errors: v.opts.Errors[path],
	}
	value, ok := v.state.Get(path)
	if !ok && field.Kind != KindArray && field.Kind != KindObject {
		value = field.Default
	}
	ctrl.Value = value
	ctrl.Text = OptionValue(value)

	switch field.Kind {
	case KindConst:
		ctrl.Value = field.Const
		ctrl.Text = OptionValue(field.Const)
		ctrl.Disabled = true
	case KindEnum:
		ctrl.Choices = make([]Choice, 0, len(field.Options))
		for _, option := range field.Options {
			text := OptionValue(option)
			ctrl.Choices = append(ctrl.Choices, Choice{
				Value:    text,
				Label:    text,
				Selected: ok && text == ctrl.Text,
			})
		}
	case KindBlockRef:
		var options []BlockOption
		if v.opts.Blocks != nil {
			options = v.opts.Blocks.BlocksOfType(field.BlockTypes...)
		}
		ctrl.Choices = make([]Choice, 0, len(options))
		for _, option := range options {
			ctrl.Choices = append(ctrl.Choices, Choice{
				Value:    option.ID,
				Label:    option.Name + " (" + option.Type + ")",
				Selected: option.ID == ctrl.Text,
			})
		}
	case KindArray:
		count := v.state.Rows(path)
		ctrl.Rows = make([]Row, 0, count)
		for idx := 0; idx < count; idx++ {
			rowPath := joinPath(path, strconv.Itoa(idx))
			ctrl.Rows = append(ctrl.Rows, Row{
				Index:     idx,
				Control:   v.control(rowPath, field.Item),
				CanAdd:    idx == count-1,
				CanRemove: true,
			})
		}
	case KindObject:
		ctrl.Children = make([]Control, 0, len(field.Fields))
		for idx := range field.Fields {
			child := &field.Fields[idx]
			ctrl.Children = append(ctrl.Children, v.control(joinPath(path, child.Name), child))
		}
	}
	return ctrl
}
