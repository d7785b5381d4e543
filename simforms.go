// Package simforms turns OpenAPI request schemas into editable block
// workspaces and renders them as HTML forms, JSON page models or terminal
// prompts.
package simforms

import (
	"context"

	"github.com/neuroplatform/simforms/pkg/orchestrator"
	"github.com/neuroplatform/simforms/pkg/render"
	"github.com/neuroplatform/simforms/pkg/schema"
)

// RenderOptions describes per-request overrides such as hidden fields, the
// theme, or fragment rendering.
type RenderOptions = render.RenderOptions

// Page aliases render.Page for callers writing custom renderers.
type Page = render.Page

// NewOrchestrator exposes the orchestrator constructor from the top-level
// module.
func NewOrchestrator(options ...orchestrator.Option) *orchestrator.Orchestrator {
	return orchestrator.New(options...)
}

// GenerateHTML loads the OpenAPI source, opens a fresh workspace for the
// endpoint at path, and renders it with the named renderer. It is the simplest
// entry point for callers that just want HTML output.
func GenerateHTML(ctx context.Context, source schema.Source, path, rendererName string, options ...orchestrator.Option) ([]byte, error) {
	gen := orchestrator.New(options...)
	return gen.Generate(ctx, orchestrator.Request{
		Source:   source,
		Path:     path,
		Renderer: rendererName,
	})
}
