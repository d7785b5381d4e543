package form

import (
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUnflatten(t *testing.T) {
	cases := []struct {
		name string
		in   map[string]any
		want map[string]any
	}{
		{
			name: "indexed values become a list",
			in:   map[string]any{"amplitude.0": 1, "amplitude.1": 2},
			want: map[string]any{"amplitude": []any{1, 2}},
		},
		{
			name: "indices sort numerically",
			in:   map[string]any{"a.10": "k", "a.2": "c", "a.0": "a"},
			want: map[string]any{"a": []any{"a", "c", "k"}},
		},
		{
			name: "nested objects",
			in:   map[string]any{"extracellular.calcium": 1.2, "extracellular.enabled": true, "delay": 3},
			want: map[string]any{"extracellular": map[string]any{"calcium": 1.2, "enabled": true}, "delay": 3},
		},
		{
			name: "lists of objects",
			in: map[string]any{
				"electrodes.0.name":        "a",
				"electrodes.1.name":        "b",
				"electrodes.1.positions.0": 7,
			},
			want: map[string]any{"electrodes": []any{
				map[string]any{"name": "a"},
				map[string]any{"name": "b", "positions": []any{7}},
			}},
		},
		{
			name: "mixed keys stay an object",
			in:   map[string]any{"m.0": 1, "m.x": 2},
			want: map[string]any{"m": map[string]any{"0": 1, "x": 2}},
		},
		{
			name: "empty",
			in:   map[string]any{},
			want: map[string]any{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, Unflatten(tc.in)); diff != "" {
				t.Fatalf("unflatten mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	flat := map[string]any{
		"amplitude.0":           1.0,
		"amplitude.1":           2.0,
		"extracellular.calcium": 1.2,
		"delay":                 3.0,
	}
	if diff := cmp.Diff(flat, Flatten(Unflatten(flat))); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCoerce(t *testing.T) {
	f := buildComponent(t, "Initialize")

	got, err := Coerce(f, map[string]string{
		"simulation_length":     "1500",
		"random_seed":           "42",
		"mode":                  "accurate",
		"circuit":               "  ",
		"extracellular.enabled": "on",
		"extracellular.calcium": "1.25",
		"v_init.0":              "-65",
		"unknown":               "kept",
	})
	if err != nil {
		t.Fatalf("coerce: %v", err)
	}
	want := map[string]any{
		"simulation_length":     1500.0,
		"random_seed":           42.0,
		"mode":                  "accurate",
		"circuit":               nil,
		"extracellular.enabled": true,
		"extracellular.calcium": 1.25,
		"v_init.0":              -65.0,
		"unknown":               "kept",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("coerce mismatch (-want +got):\n%s", diff)
	}
}

func TestCoerce_CollectsErrors(t *testing.T) {
	f := buildComponent(t, "Initialize")

	got, err := Coerce(f, map[string]string{
		"simulation_length": "long",
		"random_seed":       "1.5",
		"mode":              "turbo",
		"circuit":           "hippocampus",
	})
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, path := range []string{"simulation_length", "random_seed", "mode"} {
		if !strings.Contains(err.Error(), path) {
			t.Fatalf("error %q does not mention %s", err, path)
		}
	}
	if got["circuit"] != "hippocampus" {
		t.Fatalf("valid values must survive: %v", got)
	}

	byPath := FieldErrors(err)
	paths := make([]string, 0, len(byPath))
	for path := range byPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	if diff := cmp.Diff([]string{"mode", "random_seed", "simulation_length"}, paths); diff != "" {
		t.Fatalf("field error paths mismatch (-want +got):\n%s", diff)
	}
	if byPath["simulation_length"][0] != `invalid number "long"` {
		t.Fatalf("unexpected message %q", byPath["simulation_length"][0])
	}
}
