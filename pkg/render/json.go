package render

import (
	"context"
	"encoding/json"
	"fmt"
)

// JSONRenderer emits the page model as indented JSON for API clients and
// debugging.
type JSONRenderer struct{}

var _ Renderer = JSONRenderer{}

// Name implements Renderer.
func (JSONRenderer) Name() string { return "json" }

// ContentType implements Renderer.
func (JSONRenderer) ContentType() string { return "application/json; charset=utf-8" }

// Render implements Renderer. Fragment requests emit only the active block's
// controls.
func (JSONRenderer) Render(ctx context.Context, page Page, options RenderOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var value any = page
	if options.Fragment {
		value = struct {
			Active   BlockView `json:"active"`
			Controls any       `json:"controls"`
			Errors   []string  `json:"errors,omitempty"`
		}{page.Active, page.Controls, page.Errors}
	}
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render: encode page: %w", err)
	}
	return append(out, '\n'), nil
}
