package orchestrator_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	theme "github.com/goliatone/go-theme"
	"github.com/google/go-cmp/cmp"

	"github.com/neuroplatform/simforms/internal/openapi/parser"
	pkgopenapi "github.com/neuroplatform/simforms/pkg/openapi"
	"github.com/neuroplatform/simforms/pkg/orchestrator"
	"github.com/neuroplatform/simforms/pkg/render"
	"github.com/neuroplatform/simforms/pkg/schema"
	"github.com/neuroplatform/simforms/pkg/testsupport"
)

type stubRenderer struct {
	last    render.Page
	options render.RenderOptions
	calls   int
}

func (r *stubRenderer) Name() string        { return "stub" }
func (r *stubRenderer) ContentType() string { return "text/plain" }

func (r *stubRenderer) Render(_ context.Context, page render.Page, options render.RenderOptions) ([]byte, error) {
	r.calls++
	r.last = page
	r.options = options
	return []byte("rendered:" + page.Active.Type), nil
}

type countingParser struct {
	inner pkgopenapi.Parser
	calls int
}

func (p *countingParser) Operations(ctx context.Context, doc schema.Document) (pkgopenapi.Operations, error) {
	p.calls++
	return p.inner.Operations(ctx, doc)
}

type stubSelector struct {
	manifest *theme.Manifest
	name     string
	variant  string
}

func (s *stubSelector) Select(name, variant string, _ ...theme.QueryOption) (*theme.Selection, error) {
	s.name, s.variant = name, variant
	if name == "missing" {
		return nil, errors.New("theme not found")
	}
	return &theme.Selection{Theme: s.manifest.Name, Variant: variant, Manifest: s.manifest}, nil
}

func newStubOrchestrator(t *testing.T, opts ...orchestrator.Option) (*orchestrator.Orchestrator, *stubRenderer) {
	t.Helper()
	renderer := &stubRenderer{}
	registry := render.NewRegistry()
	registry.MustRegister(renderer)
	base := []orchestrator.Option{
		orchestrator.WithRegistry(registry),
		orchestrator.WithDefaultRenderer(renderer.Name()),
		orchestrator.WithLoader(loaderForFixtures()),
	}
	return orchestrator.New(append(base, opts...)...), renderer
}

func loaderForFixtures() pkgopenapi.Loader {
	return orchestratorLoader{}
}

type orchestratorLoader struct{}

func (orchestratorLoader) Load(_ context.Context, src schema.Source) (schema.Document, error) {
	if src.Location() != testsupport.SimulationSpecName {
		return schema.Document{}, errors.New("unexpected source " + src.Location())
	}
	return schema.NewDocument(src, testsupport.SimulationSpec())
}

func TestOrchestrator_GenerateDefaults(t *testing.T) {
	orch, renderer := newStubOrchestrator(t)

	out, err := orch.Generate(context.Background(), orchestrator.Request{
		Source: schema.SourceFromFS(testsupport.SimulationSpecName),
		Path:   "generate/simulation-config",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if string(out) != "rendered:SimulationsForm.Initialize" {
		t.Fatalf("unexpected output %q", out)
	}

	page := renderer.last
	if page.Path != "/generate/simulation-config" || page.Method != "POST" {
		t.Fatalf("unexpected page endpoint %s %s", page.Method, page.Path)
	}
	if !strings.Contains(string(page.Description), "<strong>simulation</strong>") {
		t.Fatalf("expected rendered description, got %q", page.Description)
	}
	wantLinks := []render.FormLink{
		{Path: "/generate/morphology-metrics", Title: "Compute morphology metrics"},
		{Path: "/generate/simulation-config", Title: "Generate a simulation campaign", Current: true},
	}
	if diff := cmp.Diff(wantLinks, page.Forms); diff != "" {
		t.Fatalf("links mismatch (-want +got):\n%s", diff)
	}
	if renderer.options.Theme == nil || renderer.options.Theme.Theme != render.DefaultThemeName {
		t.Fatalf("expected built-in theme, got %#v", renderer.options.Theme)
	}
}

func TestOrchestrator_CatalogCachedByChecksum(t *testing.T) {
	counting := &countingParser{inner: parser.New(pkgopenapi.NewParserOptions())}
	orch, _ := newStubOrchestrator(t, orchestrator.WithParser(counting))
	doc := schema.MustNewDocument(schema.SourceFromFS(testsupport.SimulationSpecName), testsupport.SimulationSpec())

	first, err := orch.Catalog(context.Background(), doc)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	second, err := orch.Load(context.Background(), schema.SourceFromFS(testsupport.SimulationSpecName))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if first != second {
		t.Fatal("expected the cached catalog to be reused")
	}
	if counting.calls != 1 {
		t.Fatalf("expected a single parse, got %d", counting.calls)
	}
}

func TestOrchestrator_UsesGivenWorkspace(t *testing.T) {
	orch, renderer := newStubOrchestrator(t)
	doc := schema.MustNewDocument(schema.SourceFromFS(testsupport.SimulationSpecName), testsupport.SimulationSpec())
	catalog, err := orch.Catalog(context.Background(), doc)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	ws, err := orch.NewWorkspace(catalog, "/generate/simulation-config")
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	if _, err := ws.AddBlock("stimuli", "NoiseStimulus"); err != nil {
		t.Fatalf("add block: %v", err)
	}

	out, err := orch.Generate(context.Background(), orchestrator.Request{
		Document:  &doc,
		Path:      "/generate/simulation-config",
		Workspace: ws,
		Page:      render.PageOptions{Title: "Custom"},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if string(out) != "rendered:NoiseStimulus" {
		t.Fatalf("unexpected output %q", out)
	}
	if renderer.last.Title != "Custom" {
		t.Fatalf("expected title override, got %q", renderer.last.Title)
	}
}

func TestOrchestrator_ThemeSelector(t *testing.T) {
	manifest := render.DefaultThemeManifest()
	manifest.Name = "lab"
	selector := &stubSelector{manifest: manifest}
	orch, renderer := newStubOrchestrator(t, orchestrator.WithThemeSelector(selector))

	req := orchestrator.Request{
		Source:       schema.SourceFromFS(testsupport.SimulationSpecName),
		Path:         "/generate/morphology-metrics",
		ThemeName:    "lab",
		ThemeVariant: "dark",
	}
	if _, err := orch.Generate(context.Background(), req); err != nil {
		t.Fatalf("generate: %v", err)
	}
	cfg := renderer.options.Theme
	if cfg == nil || cfg.Theme != "lab" || cfg.Variant != "dark" {
		t.Fatalf("unexpected theme config %#v", cfg)
	}
	if cfg.CSSVars["--surface"] != "#161b26" {
		t.Fatalf("expected dark surface token, got %q", cfg.CSSVars["--surface"])
	}

	req.ThemeName = "missing"
	if _, err := orch.Generate(context.Background(), req); err == nil || !strings.Contains(err.Error(), "theme not found") {
		t.Fatalf("expected selector error, got %v", err)
	}
}

func TestOrchestrator_Errors(t *testing.T) {
	orch, _ := newStubOrchestrator(t)
	ctx := context.Background()
	src := schema.SourceFromFS(testsupport.SimulationSpecName)

	if _, err := orch.Generate(ctx, orchestrator.Request{Source: src}); err == nil {
		t.Fatal("expected error for missing path")
	}
	if _, err := orch.Generate(ctx, orchestrator.Request{Path: "/generate/simulation-config"}); err == nil {
		t.Fatal("expected error for missing source")
	}
	_, err := orch.Generate(ctx, orchestrator.Request{Source: src, Path: "/nope"})
	if !errors.Is(err, orchestrator.ErrUnknownPath) {
		t.Fatalf("expected ErrUnknownPath, got %v", err)
	}
	_, err = orch.Generate(ctx, orchestrator.Request{Source: src, Path: "/health", Renderer: "pdf"})
	if err == nil || !strings.Contains(err.Error(), `renderer "pdf"`) {
		t.Fatalf("expected unknown renderer error, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := orch.Generate(cancelled, orchestrator.Request{Source: src, Path: "/health"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestOrchestrator_DefaultRegistry(t *testing.T) {
	orch := orchestrator.New(orchestrator.WithLoader(loaderForFixtures()))
	if diff := cmp.Diff([]string{"json", "vanilla"}, orch.Registry().List()); diff != "" {
		t.Fatalf("registry mismatch (-want +got):\n%s", diff)
	}

	out, err := orch.Generate(context.Background(), orchestrator.Request{
		Source:   schema.SourceFromFS(testsupport.SimulationSpecName),
		Path:     "/generate/morphology-metrics",
		Renderer: "json",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	decoded := testsupport.DecodeJSON(t, out).(map[string]any)
	if decoded["path"] != "/generate/morphology-metrics" {
		t.Fatalf("unexpected page path %v", decoded["path"])
	}
}

func TestCatalog_Validate(t *testing.T) {
	orch, _ := newStubOrchestrator(t)
	catalog, err := orch.Load(context.Background(), schema.SourceFromFS(testsupport.SimulationSpecName))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	result, err := catalog.Validate("/generate/morphology-metrics", map[string]any{
		"type":          "MorphologyMetricsForm",
		"morphology_id": "m-1",
		"metrics":       []any{"length"},
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid payload, got %#v", result)
	}

	result, err = catalog.Validate("/generate/morphology-metrics", map[string]any{
		"type":    "MorphologyMetricsForm",
		"metrics": []any{"colour"},
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Valid {
		t.Fatal("expected invalid payload")
	}

	result, err = catalog.Validate("/health", nil)
	if err != nil || !result.Valid {
		t.Fatalf("expected body-less operation to pass, got %#v (%v)", result, err)
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"":              "",
		" forms ":       "/forms",
		"//generate/a":  "/generate/a",
		"/generate/b":   "/generate/b",
	}
	for in, want := range cases {
		if got := orchestrator.NormalizePath(in); got != want {
			t.Errorf("NormalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}
