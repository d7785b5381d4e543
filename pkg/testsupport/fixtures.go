package testsupport

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

//go:embed testdata/*.json
var fixtures embed.FS

// SimulationSpecName is the fixture path of the sample simulation API document.
const SimulationSpecName = "testdata/simulation.json"

// SimulationSpec returns the raw sample OpenAPI document describing the
// simulation, morphology and form listing operations.
func SimulationSpec() []byte {
	data, err := fixtures.ReadFile(SimulationSpecName)
	if err != nil {
		panic(err)
	}
	return data
}

// SimulationPayload decodes the sample document into a generic JSON object.
func SimulationPayload(t *testing.T) map[string]any {
	t.Helper()

	var out map[string]any
	if err := json.Unmarshal(SimulationSpec(), &out); err != nil {
		t.Fatalf("decode simulation fixture: %v", err)
	}
	return out
}

// FS exposes the embedded fixtures for loaders that read from an fs.FS.
func FS() embed.FS {
	return fixtures
}

// WriteGolden writes arbitrary data to a golden file when UPDATE_GOLDENS is set.
func WriteGolden(t *testing.T, path string, value any) {
	t.Helper()

	if os.Getenv("UPDATE_GOLDENS") == "" {
		return
	}
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		t.Fatalf("marshal golden: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
}

// CompareGolden returns a diff string if the values differ.
func CompareGolden(want, got any) string {
	return cmp.Diff(want, got)
}

// MustReadGolden reads a golden file and returns its raw bytes.
func MustReadGolden(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	return data
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}

// DecodeJSON unmarshals raw into a generic value, failing the test on error.
func DecodeJSON(t *testing.T, raw []byte) any {
	t.Helper()

	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode json: %v\n%s", err, raw)
	}
	return out
}

// CaptureOutput executes a render function that writes to an io.Writer and
// returns the written contents.
func CaptureOutput(t *testing.T, render func(io.Writer) error) string {
	t.Helper()

	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}
