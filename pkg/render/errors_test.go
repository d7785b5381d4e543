package render_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/neuroplatform/simforms/pkg/form"
	"github.com/neuroplatform/simforms/pkg/render"
)

func stimulusForm() form.Form {
	return form.Form{
		Fields: []form.Field{
			{Name: "delay", Kind: form.KindNumber},
			{Name: "amplitude", Kind: form.KindArray, Item: &form.Field{Kind: form.KindNumber}},
			{
				Name: "window",
				Kind: form.KindObject,
				Fields: []form.Field{
					{Name: "start", Kind: form.KindNumber},
				},
			},
		},
	}
}

func TestMapErrorPayload_ActiveBlock(t *testing.T) {
	payload := map[string][]string{
		"body.stimuli.stim_0.delay":         {"Delay must be positive"},
		"/body/stimuli/stim_0/amplitude/1":  {"not a valid float"},
		"stimuli.stim_0.window.start.extra": {"Start invalid"},
		"body.stimuli.stim_1.delay":         {"Other block"},
		"body.initialize.simulation_length": {"field required"},
		"body.stimuli.stim_0.unknown":       {"Unknown field"},
		"":                                  {"Unscoped"},
	}

	mapped := render.MapErrorPayload(stimulusForm(), payload, "stimuli.stim_0")

	wantFields := map[string][]string{
		"delay":        {"Delay must be positive"},
		"amplitude.1":  {"not a valid float"},
		"window.start": {"Start invalid"},
	}
	if diff := cmp.Diff(wantFields, mapped.Fields); diff != "" {
		t.Fatalf("field errors mismatch (-want +got):\n%s", diff)
	}

	wantForm := []string{
		"stimuli.stim_1.delay: Other block",
		"initialize.simulation_length: field required",
		"stimuli.stim_0.unknown: Unknown field",
		"Unscoped",
	}
	if diff := cmp.Diff(wantForm, mapped.Form, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Fatalf("form errors mismatch (-want +got):\n%s", diff)
	}
}

func TestMapErrorPayload_PlainLayout(t *testing.T) {
	mapped := render.MapErrorPayload(stimulusForm(), map[string][]string{
		"amplitude[0]": {"required"},
	}, "")

	if diff := cmp.Diff(map[string][]string{"amplitude.0": {"required"}}, mapped.Fields); diff != "" {
		t.Fatalf("field errors mismatch (-want +got):\n%s", diff)
	}
	if mapped.Form != nil {
		t.Fatalf("expected no form errors, got %v", mapped.Form)
	}
}

func TestMergeFormErrors(t *testing.T) {
	merged := render.MergeFormErrors([]string{" First ", "Second"}, "Second", "third", "  ")
	want := []string{"First", "Second", "third"}
	if diff := cmp.Diff(want, merged); diff != "" {
		t.Fatalf("merged errors mismatch (-want +got):\n%s", diff)
	}
}
