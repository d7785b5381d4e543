package form

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type staticBlocks []BlockOption

func (s staticBlocks) BlocksOfType(types ...string) []BlockOption {
	allowed := make(map[string]bool, len(types))
	for _, name := range types {
		allowed[name] = true
	}
	var out []BlockOption
	for _, block := range s {
		if allowed[block.Type] {
			out = append(out, block)
		}
	}
	return out
}

func TestView_BlockReferenceChoices(t *testing.T) {
	f := buildComponent(t, "SomaVoltageRecording")
	state := NewState(nil)
	state.Set("neuron_set", "id-2")

	blocks := staticBlocks{
		{ID: "id-1", Name: "idneuronset_0", Type: "IDNeuronSet", Section: "neuron_sets"},
		{ID: "id-2", Name: "layer5", Type: "IDNeuronSet", Section: "neuron_sets"},
		{ID: "id-3", Name: "all", Type: "PredefinedNeuronSet", Section: "neuron_sets"},
	}
	controls := View(f, state, ViewOptions{Blocks: blocks})

	var ref *Control
	for idx := range controls {
		if controls[idx].Path == "neuron_set" {
			ref = &controls[idx]
		}
	}
	if ref == nil {
		t.Fatal("neuron_set control missing")
	}
	want := []Choice{
		{Value: "id-1", Label: "idneuronset_0 (IDNeuronSet)"},
		{Value: "id-2", Label: "layer5 (IDNeuronSet)", Selected: true},
	}
	if diff := cmp.Diff(want, ref.Choices); diff != "" {
		t.Fatalf("choices mismatch (-want +got):\n%s", diff)
	}
}

func TestView_ConstAndDefaults(t *testing.T) {
	f := buildComponent(t, "SomaVoltageRecording")
	f.Fields = append(f.Fields, Field{Name: "type", Kind: KindConst, Const: "SomaVoltageRecording"})

	controls := View(f, NewState(nil), ViewOptions{Errors: map[string][]string{"dt": {"must be positive"}}})
	byPath := make(map[string]Control, len(controls))
	for _, ctrl := range controls {
		byPath[ctrl.Path] = ctrl
	}

	if ctrl := byPath["type"]; !ctrl.Disabled || ctrl.Text != "SomaVoltageRecording" {
		t.Fatalf("const control not disabled/prefilled: %+v", ctrl)
	}
	dt := byPath["dt"]
	if dt.Text != "0.1" {
		t.Fatalf("default not shown: %q", dt.Text)
	}
	if diff := cmp.Diff([]string{"must be positive"}, dt.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestView_NestedObjectPaths(t *testing.T) {
	f := buildComponent(t, "Initialize")
	state := NewState(nil)
	state.Set("extracellular.calcium", 2.0)

	for _, ctrl := range View(f, state, ViewOptions{}) {
		if ctrl.Path != "extracellular" {
			continue
		}
		paths := make([]string, 0, len(ctrl.Children))
		for _, child := range ctrl.Children {
			paths = append(paths, child.Path)
		}
		if diff := cmp.Diff([]string{"extracellular.calcium", "extracellular.enabled"}, paths); diff != "" {
			t.Fatalf("child paths mismatch (-want +got):\n%s", diff)
		}
		if ctrl.Children[0].Text != "2" {
			t.Fatalf("child value not bound: %q", ctrl.Children[0].Text)
		}
		return
	}
	t.Fatal("extracellular control missing")
}
