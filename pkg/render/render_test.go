package render_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroplatform/simforms/pkg/blocks"
	"github.com/neuroplatform/simforms/pkg/render"
	"github.com/neuroplatform/simforms/pkg/schema"
	"github.com/neuroplatform/simforms/pkg/testsupport"
)

func newSimulationWorkspace(t *testing.T) *blocks.Workspace {
	t.Helper()

	doc := schema.MustNewDocument(schema.SourceFromFS(testsupport.SimulationSpecName), testsupport.SimulationSpec())
	resolver := schema.NewResolver(doc, schema.ResolveOptions{})
	layout, err := blocks.Partition(schema.Node{"$ref": "#/components/schemas/SimulationsForm"}, resolver)
	require.NoError(t, err)

	next := 0
	ws, err := blocks.NewWorkspace(layout, resolver, blocks.WithIDGenerator(func() string {
		next++
		return fmt.Sprintf("block-%d", next)
	}))
	require.NoError(t, err)
	return ws
}

func TestNewPage(t *testing.T) {
	ws := newSimulationWorkspace(t)
	stim, err := ws.AddBlock("stimuli", "ConstantCurrentStimulus")
	require.NoError(t, err)

	page, err := render.NewPage(ws, render.PageOptions{
		Path:        "/generate/simulation-config",
		Description: "Initial potential $V$",
		FormErrors:  []string{" bad ", "bad"},
	})
	require.NoError(t, err)

	assert.Equal(t, "SimulationsForm", page.Title)
	assert.Equal(t, []string{"bad"}, page.Errors)
	assert.Contains(t, string(page.Description), `class="math inline"`)
	assert.Equal(t, stim.ID, page.Active.ID)
	assert.True(t, page.Active.Active)

	names := make([]string, 0, len(page.Sections))
	for _, section := range page.Sections {
		names = append(names, section.Name)
	}
	assert.Equal(t, []string{"initialize", "neuron_sets", "recordings", "stimuli"}, names)

	initialize := page.Sections[0]
	assert.True(t, initialize.Single)
	assert.Empty(t, initialize.Variants)
	require.Len(t, initialize.Blocks, 1)
	assert.False(t, initialize.Blocks[0].Active)

	stimuli := page.Sections[3]
	require.Len(t, stimuli.Variants, 2)
	assert.Equal(t, "ConstantCurrentStimulus", stimuli.Variants[0].Type)
	require.Len(t, stimuli.Blocks, 1)
	assert.True(t, stimuli.Blocks[0].Active)

	require.Len(t, page.Skipped, 1)
	assert.Equal(t, "metadata", page.Skipped[0].Name)
}

func TestNewPage_RequiresWorkspace(t *testing.T) {
	_, err := render.NewPage(nil, render.PageOptions{})
	assert.Error(t, err)
}

func TestJSONRenderer(t *testing.T) {
	ws := newSimulationWorkspace(t)
	page, err := render.NewPage(ws, render.PageOptions{Path: "/generate/simulation-config"})
	require.NoError(t, err)

	out, err := render.JSONRenderer{}.Render(context.Background(), page, render.RenderOptions{})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "/generate/simulation-config", decoded["path"])

	fragment, err := render.JSONRenderer{}.Render(context.Background(), page, render.RenderOptions{Fragment: true})
	require.NoError(t, err)
	decoded = nil
	require.NoError(t, json.Unmarshal(fragment, &decoded))
	assert.NotContains(t, decoded, "sections")
	assert.Contains(t, decoded, "controls")
}

type stubRenderer struct {
	name, contentType string
}

func (s stubRenderer) Name() string        { return s.name }
func (s stubRenderer) ContentType() string { return s.contentType }
func (s stubRenderer) Render(context.Context, render.Page, render.RenderOptions) ([]byte, error) {
	return []byte(s.name), nil
}

func TestRegistry(t *testing.T) {
	registry := render.NewRegistry()
	registry.MustRegister(stubRenderer{name: "vanilla", contentType: "text/html; charset=utf-8"})
	registry.MustRegister(render.JSONRenderer{})

	assert.Error(t, registry.Register(render.JSONRenderer{}), "duplicate names are rejected")
	assert.Error(t, registry.Register(nil))
	assert.Equal(t, []string{"json", "vanilla"}, registry.List())
	assert.True(t, registry.Has("json"))

	cases := map[string]string{
		"":                                  "vanilla",
		"*/*":                               "vanilla",
		"application/json":                  "json",
		"text/html,application/xhtml+xml":   "vanilla",
		"application/xml, application/json": "json",
	}
	for accept, want := range cases {
		renderer, err := registry.Negotiate(accept)
		require.NoError(t, err, accept)
		assert.Equal(t, want, renderer.Name(), accept)
	}

	require.NoError(t, registry.SetDefault("json"))
	renderer, err := registry.Negotiate("")
	require.NoError(t, err)
	assert.Equal(t, "json", renderer.Name())
	assert.Error(t, registry.SetDefault("missing"))

	_, err = render.NewRegistry().Negotiate("text/html")
	assert.Error(t, err)
}
