package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/neuroplatform/simforms/pkg/form"
)

const noneOption = "(none)"

// walker prompts for a field tree and writes the answers into state.
type walker struct {
	renderer *Renderer
	state    *form.State
	choices  func(path string, field *form.Field) []form.Choice
}

func (w *walker) fields(ctx context.Context, prefix string, fields []form.Field) error {
	for idx := range fields {
		field := &fields[idx]
		if err := w.field(ctx, joinPath(prefix, field.Name), field, displayLabel(field)); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) field(ctx context.Context, path string, field *form.Field, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch field.Kind {
	case form.KindConst:
		w.state.Set(path, field.Const)
		return nil
	case form.KindUnsupported:
		reason := field.Reason
		if reason == "" {
			reason = "unsupported schema"
		}
		return w.renderer.info(ctx, fmt.Sprintf("Skipping %s: %s", label, reason))
	case form.KindObject:
		if err := w.renderer.info(ctx, label); err != nil {
			return err
		}
		return w.fields(ctx, path, field.Fields)
	case form.KindArray:
		return w.array(ctx, path, field, label)
	case form.KindBoolean:
		return w.boolean(ctx, path, field, label)
	case form.KindEnum:
		return w.enum(ctx, path, field, label)
	case form.KindBlockRef:
		return w.blockRef(ctx, path, field, label)
	default:
		return w.input(ctx, path, field, label)
	}
}

func (w *walker) input(ctx context.Context, path string, field *form.Field, label string) error {
	current, _ := w.state.Get(path)
	defaultVal := form.OptionValue(current)

	for {
		response, err := w.renderer.driver.Input(ctx, InputConfig{
			Message: label,
			Default: defaultVal,
			Help:    field.Description,
		})
		if err != nil {
			return err
		}
		response = strings.TrimSpace(response)
		if response == "" && field.Required {
			if err := w.renderer.invalid(ctx, path, errors.New("value is required")); err != nil {
				return err
			}
			continue
		}
		value, err := form.CoerceValue(field, response)
		if err == nil {
			err = checkBounds(field, value)
		}
		if err != nil {
			if err := w.renderer.invalid(ctx, path, err); err != nil {
				return err
			}
			continue
		}
		w.state.Set(path, value)
		return nil
	}
}

func (w *walker) boolean(ctx context.Context, path string, field *form.Field, label string) error {
	current, _ := w.state.Get(path)
	defaultVal, _ := current.(bool)
	resp, err := w.renderer.driver.Confirm(ctx, ConfirmConfig{
		Message: label,
		Default: defaultVal,
		Help:    field.Description,
	})
	if err != nil {
		return err
	}
	w.state.Set(path, resp)
	return nil
}

func (w *walker) enum(ctx context.Context, path string, field *form.Field, label string) error {
	current, ok := w.state.Get(path)
	options := make([]string, 0, len(field.Options)+1)
	offset := 0
	if !field.Required {
		options = append(options, noneOption)
		offset = 1
	}
	defaultIdx := 0
	for idx, option := range field.Options {
		text := form.OptionValue(option)
		if ok && text == form.OptionValue(current) {
			defaultIdx = idx + offset
		}
		options = append(options, text)
	}

	idx, err := w.renderer.driver.Select(ctx, SelectConfig{
		Message:      label,
		Options:      options,
		DefaultIndex: defaultIdx,
		Help:         field.Description,
	})
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(options) {
		return fmt.Errorf("tui: invalid selection %d for %s", idx, path)
	}
	if idx < offset {
		w.state.Set(path, nil)
		return nil
	}
	w.state.Set(path, field.Options[idx-offset])
	return nil
}

func (w *walker) blockRef(ctx context.Context, path string, field *form.Field, label string) error {
	var choices []form.Choice
	if w.choices != nil {
		choices = w.choices(path, field)
	}
	if len(choices) == 0 {
		w.state.Set(path, nil)
		return w.renderer.info(ctx, fmt.Sprintf("%s: no %s block exists yet", label, strings.Join(field.BlockTypes, " or ")))
	}

	options := []string{noneOption}
	defaultIdx := 0
	for idx, choice := range choices {
		if choice.Selected {
			defaultIdx = idx + 1
		}
		options = append(options, choice.Label)
	}
	idx, err := w.renderer.driver.Select(ctx, SelectConfig{
		Message:      label,
		Options:      options,
		DefaultIndex: defaultIdx,
		Help:         field.Description,
	})
	if err != nil {
		return err
	}
	switch {
	case idx < 0 || idx >= len(options):
		return fmt.Errorf("tui: invalid selection %d for %s", idx, path)
	case idx == 0:
		w.state.Set(path, nil)
	default:
		w.state.Set(path, choices[idx-1].Value)
	}
	return nil
}

func (w *walker) array(ctx context.Context, path string, field *form.Field, label string) error {
	item := field.Item
	if item == nil {
		return nil
	}
	if item.Kind == form.KindEnum {
		return w.multiSelect(ctx, path, field, label)
	}

	count, err := w.rowCount(ctx, path, field, label)
	if err != nil {
		return err
	}
	if err := w.resize(path, count); err != nil {
		return err
	}
	for idx := 0; idx < count; idx++ {
		rowLabel := fmt.Sprintf("%s [%d]", label, idx)
		if err := w.field(ctx, joinPath(path, strconv.Itoa(idx)), item, rowLabel); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) rowCount(ctx context.Context, path string, field *form.Field, label string) (int, error) {
	for {
		response, err := w.renderer.driver.Input(ctx, InputConfig{
			Message: fmt.Sprintf("How many %s entries?", label),
			Default: strconv.Itoa(w.state.Rows(path)),
			Help:    field.Description,
		})
		if err != nil {
			return 0, err
		}
		count, err := strconv.Atoi(strings.TrimSpace(response))
		if err != nil || count < 0 {
			if err := w.renderer.invalid(ctx, path, fmt.Errorf("%q is not a row count", response)); err != nil {
				return 0, err
			}
			continue
		}
		return count, nil
	}
}

func (w *walker) multiSelect(ctx context.Context, path string, field *form.Field, label string) error {
	item := field.Item
	options := make([]string, len(item.Options))
	selected := make(map[string]bool)
	for idx := 0; idx < w.state.Rows(path); idx++ {
		if value, ok := w.state.Get(joinPath(path, strconv.Itoa(idx))); ok {
			selected[form.OptionValue(value)] = true
		}
	}
	var defaults []int
	for idx, option := range item.Options {
		options[idx] = form.OptionValue(option)
		if selected[options[idx]] {
			defaults = append(defaults, idx)
		}
	}

	picked, err := w.renderer.driver.MultiSelect(ctx, SelectConfig{
		Message:  label,
		Options:  options,
		Defaults: defaults,
		Help:     field.Description,
	})
	if err != nil {
		return err
	}
	if err := w.resize(path, len(picked)); err != nil {
		return err
	}
	for row, idx := range picked {
		if idx < 0 || idx >= len(item.Options) {
			return fmt.Errorf("tui: invalid selection %d for %s", idx, path)
		}
		w.state.Set(joinPath(path, strconv.Itoa(row)), item.Options[idx])
	}
	return nil
}

// resize grows or shrinks the array at path one row at a time so nested
// values and row counts shift the same way the HTML row buttons do.
func (w *walker) resize(path string, count int) error {
	for w.state.Rows(path) > count {
		if err := w.state.RemoveRow(path, w.state.Rows(path)-1); err != nil {
			return err
		}
	}
	for w.state.Rows(path) < count {
		w.state.AddRow(path)
	}
	return nil
}

func checkBounds(field *form.Field, value any) error {
	number, ok := value.(float64)
	if !ok {
		return nil
	}
	if field.Minimum != nil && number < *field.Minimum {
		return fmt.Errorf("must be >= %v", *field.Minimum)
	}
	if field.Maximum != nil && number > *field.Maximum {
		return fmt.Errorf("must be <= %v", *field.Maximum)
	}
	return nil
}

func displayLabel(field *form.Field) string {
	label := strings.TrimSpace(field.Label)
	if label == "" {
		label = field.Name
	}
	if field.Required {
		label += " *"
	}
	return label
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	if name == "" {
		return parent
	}
	return parent + "." + name
}
