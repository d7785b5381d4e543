// Package tui collects form values through terminal prompts. It walks the
// same field tree the HTML renderer draws and emits the JSON payload the
// endpoint expects.
package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/neuroplatform/simforms/pkg/blocks"
	"github.com/neuroplatform/simforms/pkg/form"
	"github.com/neuroplatform/simforms/pkg/render"
	"github.com/neuroplatform/simforms/pkg/schema"
)

// Renderer implements render.Renderer for terminal-driven sessions.
type Renderer struct {
	driver            PromptDriver
	customDriver      bool
	outputFormat      OutputFormat
	submitTransformer SubmitTransformer
	theme             Theme
	messages          io.Writer
	logger            *slog.Logger
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs a TUI renderer with defaults (survey driver, JSON output).
func New(options ...Option) (*Renderer, error) {
	r := &Renderer{
		outputFormat: OutputFormatJSON,
		logger:       slog.Default(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}

	switch r.outputFormat {
	case OutputFormatJSON, OutputFormatPrettyText:
	default:
		return nil, fmt.Errorf("tui: unknown output format %q", r.outputFormat)
	}
	if r.driver == nil {
		r.driver = newSurveyDriver(r.messages)
	}
	return r, nil
}

// Name reports the renderer identifier.
func (r *Renderer) Name() string {
	return "tui"
}

// ContentType reports the serialization format used by Render and Fill.
func (r *Renderer) ContentType() string {
	if r.outputFormat == OutputFormatPrettyText {
		return "text/plain; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

// Render prompts for every control of the page's active block, starting from
// the values the page already shows, and returns the block payload tagged
// with its type. Block references are emitted as block ids since the page
// carries no workspace to expand them against.
func (r *Renderer) Render(ctx context.Context, page render.Page, _ render.RenderOptions) ([]byte, error) {
	if err := r.ready(ctx); err != nil {
		return nil, err
	}

	state := form.NewState(nil)
	choices := make(map[string][]form.Choice)
	seedControls(state, choices, page.Controls)

	w := &walker{
		renderer: r,
		state:    state,
		choices: func(path string, _ *form.Field) []form.Choice {
			return choices[path]
		},
	}
	if err := w.fields(ctx, "", page.Form.Fields); err != nil {
		return nil, err
	}

	payload := form.Unflatten(state.Values())
	if page.Active.Type != "" {
		payload[schema.DiscriminatorKey] = page.Active.Type
	}
	return r.finish(payload)
}

// Fill walks every section of ws: it fills the initialize block, offers to add
// blocks to the other sections and fills each one. The result is the payload
// Workspace.Generate builds, tagged with typeName or, when empty, the root
// schema type.
func (r *Renderer) Fill(ctx context.Context, ws *blocks.Workspace, typeName string) ([]byte, error) {
	if ws == nil {
		return nil, errors.New("tui: workspace is required")
	}
	if err := r.ready(ctx); err != nil {
		return nil, err
	}

	for _, section := range ws.Sections() {
		if section.Single {
			list, err := ws.Blocks(section.Name)
			if err != nil {
				return nil, err
			}
			if _, err := ws.SelectBlock(section.Name, list[0].ID); err != nil {
				return nil, err
			}
			if err := r.fillActive(ctx, ws); err != nil {
				return nil, err
			}
			continue
		}
		if err := r.fillSection(ctx, ws, section); err != nil {
			return nil, err
		}
	}
	if typeName == "" {
		typeName = ws.Layout().RootType
	}
	return r.finish(ws.Generate(typeName))
}

func (r *Renderer) fillSection(ctx context.Context, ws *blocks.Workspace, section blocks.Section) error {
	title := section.Title
	if title == "" {
		title = section.Name
	}
	for {
		add, err := r.driver.Confirm(ctx, ConfirmConfig{
			Message: fmt.Sprintf("Add a block to %s?", title),
			Help:    section.Description,
		})
		if err != nil {
			return err
		}
		if !add {
			return nil
		}

		variant := section.Variants[0]
		if len(section.Variants) > 1 {
			options := make([]string, len(section.Variants))
			for idx, v := range section.Variants {
				options[idx] = v.Type
			}
			idx, err := r.driver.Select(ctx, SelectConfig{Message: "Block type", Options: options})
			if err != nil {
				return err
			}
			if idx < 0 || idx >= len(options) {
				return fmt.Errorf("tui: invalid block type selection %d", idx)
			}
			variant = section.Variants[idx]
		}

		block, err := ws.AddBlock(section.Name, variant.Type)
		if err != nil {
			return err
		}
		name, err := r.driver.Input(ctx, InputConfig{Message: "Block name", Default: block.Name})
		if err != nil {
			return err
		}
		if name = strings.TrimSpace(name); name != "" && name != block.Name {
			if _, err := ws.RenameBlock(section.Name, block.ID, name); err != nil {
				return err
			}
		}
		if err := r.fillActive(ctx, ws); err != nil {
			return err
		}
	}
}

func (r *Renderer) fillActive(ctx context.Context, ws *blocks.Workspace) error {
	active := ws.Active()
	f, state, err := ws.ActiveForm()
	if err != nil {
		return err
	}
	r.logger.Debug("tui fill block", "section", active.Section, "block", active.Name, "type", active.Type)
	if err := r.info(ctx, fmt.Sprintf("%s (%s)", active.Name, active.Type)); err != nil {
		return err
	}

	w := &walker{
		renderer: r,
		state:    state,
		choices: func(path string, field *form.Field) []form.Choice {
			current, _ := state.Get(path)
			options := ws.BlocksOfType(field.BlockTypes...)
			out := make([]form.Choice, 0, len(options))
			for _, option := range options {
				out = append(out, form.Choice{
					Value:    option.ID,
					Label:    option.Name + " (" + option.Type + ")",
					Selected: option.ID == form.OptionValue(current),
				})
			}
			return out
		},
	}
	return w.fields(ctx, "", f.Fields)
}

func (r *Renderer) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("tui: context is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.driver == nil {
		return errors.New("tui: prompt driver is nil")
	}
	if !r.customDriver && !Interactive(os.Stdin) {
		return ErrNoTerminal
	}
	return nil
}

func (r *Renderer) finish(payload map[string]any) ([]byte, error) {
	if r.submitTransformer != nil {
		var err error
		payload, err = r.submitTransformer(payload)
		if err != nil {
			return nil, fmt.Errorf("tui: submit transformer: %w", err)
		}
	}
	return r.serialize(payload)
}

func (r *Renderer) info(ctx context.Context, msg string) error {
	return r.driver.Info(ctx, r.theme.InfoPrefix+msg)
}

func (r *Renderer) invalid(ctx context.Context, path string, err error) error {
	return r.driver.Info(ctx, fmt.Sprintf("%sInvalid %s: %v", r.theme.ErrorPrefix, path, err))
}

func (r *Renderer) serialize(values map[string]any) ([]byte, error) {
	if r.outputFormat == OutputFormatPrettyText {
		return []byte(prettyPrint(values)), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(values); err != nil {
		return nil, fmt.Errorf("tui: encode payload: %w", err)
	}
	return buf.Bytes(), nil
}

func prettyPrint(values map[string]any) string {
	flat := form.Flatten(values)
	keys := make([]string, 0, len(flat))
	for key := range flat {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "%s: %v\n", key, flat[key])
	}
	return b.String()
}

// seedControls copies the values a page shows into state, recording block
// reference choices by path.
func seedControls(state *form.State, choices map[string][]form.Choice, controls []form.Control) {
	for _, ctrl := range controls {
		if ctrl.Field == nil {
			continue
		}
		switch ctrl.Field.Kind {
		case form.KindObject:
			seedControls(state, choices, ctrl.Children)
		case form.KindArray:
			state.SetRows(ctrl.Path, len(ctrl.Rows))
			rows := make([]form.Control, 0, len(ctrl.Rows))
			for _, row := range ctrl.Rows {
				rows = append(rows, row.Control)
			}
			seedControls(state, choices, rows)
		case form.KindBlockRef:
			choices[ctrl.Path] = ctrl.Choices
			if ctrl.Text != "" {
				state.Set(ctrl.Path, ctrl.Text)
			}
		case form.KindUnsupported:
		default:
			if ctrl.Value != nil {
				state.Set(ctrl.Path, ctrl.Value)
			}
		}
	}
}
