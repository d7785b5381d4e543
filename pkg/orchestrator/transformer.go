package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/neuroplatform/simforms/pkg/form"
	"github.com/neuroplatform/simforms/pkg/preview"
	"github.com/neuroplatform/simforms/pkg/render"
)

// Transformer mutates a page after it is built and before it is rendered.
// Implementations can relabel controls, rewrite descriptions, or disable
// inputs.
type Transformer interface {
	Transform(ctx context.Context, page *render.Page) error
}

// TransformerFunc adapts plain functions to the Transformer interface.
type TransformerFunc func(ctx context.Context, page *render.Page) error

// Transform executes the wrapped function when non-nil.
func (fn TransformerFunc) Transform(ctx context.Context, page *render.Page) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, page)
}

// JSONPresetTransformer applies declarative overrides loaded from a JSON file.
// Field patches are keyed by schema path, where "items" steps into array rows.
// Patches under "blocks" only apply when the active block has that type:
//
//	{
//	  "title": "Simulation",
//	  "description": "Configure a **simulation** run.",
//	  "fields": {
//	    "v_init.items": {"label": "Initial potential (mV)"}
//	  },
//	  "blocks": {
//	    "ConstantCurrentStimulus": {
//	      "fields": {"amplitude": {"description": "Injected current in nA"}}
//	    }
//	  }
//	}
type JSONPresetTransformer struct {
	document jsonTransformDocument
}

type jsonTransformDocument struct {
	Title       string                    `json:"title"`
	Description string                    `json:"description"`
	Fields      map[string]jsonFieldPatch `json:"fields"`
	Blocks      map[string]jsonBlockPatch `json:"blocks"`
}

type jsonBlockPatch struct {
	Fields map[string]jsonFieldPatch `json:"fields"`
}

type jsonFieldPatch struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Disabled    *bool  `json:"disabled"`
}

// NewJSONPresetTransformer constructs a transformer from raw JSON bytes.
func NewJSONPresetTransformer(data []byte) (*JSONPresetTransformer, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("json preset transformer: document is empty")
	}
	var document jsonTransformDocument
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("json preset transformer: parse document: %w", err)
	}
	return &JSONPresetTransformer{document: document}, nil
}

// NewJSONPresetTransformerFromFS loads a JSON transformer document from the
// provided filesystem path.
func NewJSONPresetTransformerFromFS(fsys fs.FS, path string) (*JSONPresetTransformer, error) {
	if fsys == nil {
		return nil, errors.New("json preset transformer: filesystem is nil")
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("json preset transformer: path is required")
	}
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("json preset transformer: read %s: %w", path, err)
	}
	return NewJSONPresetTransformer(data)
}

// Transform applies the declarative patches onto the supplied page.
func (t *JSONPresetTransformer) Transform(ctx context.Context, page *render.Page) error {
	if page == nil {
		return errors.New("json preset transformer: page is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if t.document.Title != "" {
		page.Title = t.document.Title
	}
	if t.document.Description != "" {
		page.Description = preview.Render(t.document.Description)
	}

	patches := t.document.Fields
	if block, ok := t.document.Blocks[page.Active.Type]; ok && len(block.Fields) > 0 {
		merged := make(map[string]jsonFieldPatch, len(patches)+len(block.Fields))
		for path, patch := range patches {
			merged[path] = patch
		}
		for path, patch := range block.Fields {
			merged[path] = patch
		}
		patches = merged
	}
	if len(patches) == 0 {
		return nil
	}
	patchControls(page.Controls, patches)
	return nil
}

func patchControls(controls []form.Control, patches map[string]jsonFieldPatch) {
	for idx := range controls {
		patchControl(&controls[idx], patches)
	}
}

func patchControl(ctrl *form.Control, patches map[string]jsonFieldPatch) {
	if patch, ok := patches[schemaPath(ctrl.Path)]; ok {
		applyFieldPatch(ctrl, patch)
	}
	patchControls(ctrl.Children, patches)
	for idx := range ctrl.Rows {
		patchControl(&ctrl.Rows[idx].Control, patches)
	}
}

// applyFieldPatch edits a copy of the control's field; fields are shared with
// the workspace form cache.
func applyFieldPatch(ctrl *form.Control, patch jsonFieldPatch) {
	if ctrl.Field != nil && (patch.Label != "" || patch.Description != "") {
		field := *ctrl.Field
		if patch.Label != "" {
			field.Label = patch.Label
		}
		if patch.Description != "" {
			field.Description = patch.Description
		}
		ctrl.Field = &field
	}
	if patch.Disabled != nil {
		ctrl.Disabled = *patch.Disabled
	}
}

// schemaPath maps a concrete control path such as "v_init.1" to its schema
// path "v_init.items".
func schemaPath(path string) string {
	segments := strings.Split(path, ".")
	for idx, segment := range segments {
		if _, err := strconv.Atoi(segment); err == nil {
			segments[idx] = "items"
		}
	}
	return strings.Join(segments, ".")
}
