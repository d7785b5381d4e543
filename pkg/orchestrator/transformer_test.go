package orchestrator_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/neuroplatform/simforms/pkg/blocks"
	"github.com/neuroplatform/simforms/pkg/form"
	"github.com/neuroplatform/simforms/pkg/orchestrator"
	"github.com/neuroplatform/simforms/pkg/render"
	"github.com/neuroplatform/simforms/pkg/schema"
	"github.com/neuroplatform/simforms/pkg/testsupport"
)

func simulationPage(t *testing.T, mutate func(ws *blocks.Workspace)) (render.Page, *blocks.Workspace) {
	t.Helper()
	orch, _ := newStubOrchestrator(t)
	catalog, err := orch.Load(context.Background(), schema.SourceFromFS(testsupport.SimulationSpecName))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ws, err := orch.NewWorkspace(catalog, "/generate/simulation-config")
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	if mutate != nil {
		mutate(ws)
	}
	page, err := catalog.Page("/generate/simulation-config", ws, render.PageOptions{})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	return page, ws
}

func findControl(controls []form.Control, path string) *form.Control {
	for idx := range controls {
		ctrl := &controls[idx]
		if ctrl.Path == path {
			return ctrl
		}
		if found := findControl(ctrl.Children, path); found != nil {
			return found
		}
		for r := range ctrl.Rows {
			if ctrl.Rows[r].Control.Path == path {
				return &ctrl.Rows[r].Control
			}
		}
	}
	return nil
}

func TestOrchestrator_AppliesTransformer(t *testing.T) {
	transformCalled := false
	transformer := orchestrator.TransformerFunc(func(_ context.Context, page *render.Page) error {
		transformCalled = true
		page.Title = "patched"
		return nil
	})
	orch, renderer := newStubOrchestrator(t, orchestrator.WithTransformer(transformer))

	_, err := orch.Generate(context.Background(), orchestrator.Request{
		Source: schema.SourceFromFS(testsupport.SimulationSpecName),
		Path:   "/generate/morphology-metrics",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !transformCalled {
		t.Fatalf("expected transformer to be invoked")
	}
	if renderer.last.Title != "patched" {
		t.Fatalf("transformer mutation missing: %q", renderer.last.Title)
	}
}

func TestJSONPresetTransformerFromFS(t *testing.T) {
	transformer, err := orchestrator.NewJSONPresetTransformerFromFS(os.DirFS("testdata"), "sample_transformer.json")
	if err != nil {
		t.Fatalf("new json transformer: %v", err)
	}

	page, ws := simulationPage(t, func(ws *blocks.Workspace) {
		ws.AddRow("v_init")
	})
	if err := transformer.Transform(context.Background(), &page); err != nil {
		t.Fatalf("apply transformer: %v", err)
	}

	if page.Title != "Simulation campaign" {
		t.Fatalf("title not updated: %q", page.Title)
	}
	if !strings.Contains(string(page.Description), "<strong>initial state</strong>") {
		t.Fatalf("description not rendered: %q", page.Description)
	}
	for _, path := range []string{"v_init.0", "v_init.1"} {
		row := findControl(page.Controls, path)
		if row == nil || row.Field.Label != "Initial potential (mV)" {
			t.Fatalf("row %s not relabelled: %#v", path, row)
		}
	}
	calcium := findControl(page.Controls, "extracellular.calcium")
	if calcium == nil || calcium.Field.Description != "Extracellular calcium in mM" {
		t.Fatalf("nested description missing: %#v", calcium)
	}
	circuit := findControl(page.Controls, "circuit")
	if circuit == nil || !circuit.Disabled {
		t.Fatalf("circuit should be disabled: %#v", circuit)
	}
	if findControl(page.Controls, "mode").Disabled {
		t.Fatal("unpatched controls must stay enabled")
	}

	// The workspace form cache must not observe the patch.
	f, _, err := ws.ActiveForm()
	if err != nil {
		t.Fatalf("active form: %v", err)
	}
	field, ok := f.Lookup("extracellular.calcium")
	if !ok || field.Description == "Extracellular calcium in mM" {
		t.Fatalf("patch leaked into workspace form: %#v", field)
	}
}

func TestJSONPresetTransformer_BlockScopedPatches(t *testing.T) {
	transformer, err := orchestrator.NewJSONPresetTransformerFromFS(os.DirFS("testdata"), "sample_transformer.json")
	if err != nil {
		t.Fatalf("new json transformer: %v", err)
	}

	initial, _ := simulationPage(t, nil)
	if err := transformer.Transform(context.Background(), &initial); err != nil {
		t.Fatalf("apply transformer: %v", err)
	}
	if findControl(initial.Controls, "amplitude") != nil {
		t.Fatal("initialize block has no amplitude control")
	}

	stimulus, _ := simulationPage(t, func(ws *blocks.Workspace) {
		if _, err := ws.AddBlock("stimuli", "ConstantCurrentStimulus"); err != nil {
			t.Fatalf("add block: %v", err)
		}
	})
	if err := transformer.Transform(context.Background(), &stimulus); err != nil {
		t.Fatalf("apply transformer: %v", err)
	}
	amplitude := findControl(stimulus.Controls, "amplitude")
	if amplitude == nil || amplitude.Field.Label != "Current (nA)" {
		t.Fatalf("block patch missing: %#v", amplitude)
	}
}

func TestNewJSONPresetTransformer_Errors(t *testing.T) {
	if _, err := orchestrator.NewJSONPresetTransformer([]byte("  ")); err == nil {
		t.Fatal("expected error for empty document")
	}
	if _, err := orchestrator.NewJSONPresetTransformer([]byte("{")); err == nil {
		t.Fatal("expected error for malformed document")
	}
	if _, err := orchestrator.NewJSONPresetTransformerFromFS(nil, "x.json"); err == nil {
		t.Fatal("expected error for nil filesystem")
	}
	if _, err := orchestrator.NewJSONPresetTransformerFromFS(os.DirFS("testdata"), "missing.json"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestOrchestrator_TransformerErrorAborts(t *testing.T) {
	transformer := orchestrator.TransformerFunc(func(context.Context, *render.Page) error {
		return fmt.Errorf("boom")
	})
	orch, renderer := newStubOrchestrator(t, orchestrator.WithTransformer(transformer))

	_, err := orch.Generate(context.Background(), orchestrator.Request{
		Source: schema.SourceFromFS(testsupport.SimulationSpecName),
		Path:   "/generate/morphology-metrics",
	})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected transformer error, got %v", err)
	}
	if renderer.calls != 0 {
		t.Fatal("renderer must not run after a transformer failure")
	}
}
