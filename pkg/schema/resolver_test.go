package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const resolverFixture = `{
  "openapi": "3.1.0",
  "components": {
    "schemas": {
      "Stimulus": {
        "type": "object",
        "properties": {
          "type": {"const": "Stimulus"},
          "amplitude": {"type": "array", "items": {"type": "number"}}
        }
      },
      "Alias": {"$ref": "#/components/schemas/Stimulus"},
      "AliasOfAlias": {"$ref": "#/components/schemas/Alias"},
      "LoopA": {"$ref": "#/components/schemas/LoopB"},
      "LoopB": {"$ref": "#/components/schemas/LoopA"},
      "a/b": {"type": "string"},
      "Scalar": 42
    }
  }
}`

func newFixtureResolver(t *testing.T) *Resolver {
	t.Helper()
	doc := MustNewDocument(SourceFromFS("fixture.json"), []byte(resolverFixture))
	return NewResolver(doc, ResolveOptions{})
}

func TestResolver_ReferenceMatchesPointerTarget(t *testing.T) {
	resolver := newFixtureResolver(t)

	got, err := resolver.Resolve(Node{"$ref": "#/components/schemas/Stimulus"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	schemas := resolver.Root()["components"].(map[string]any)["schemas"].(map[string]any)
	want := schemas["Stimulus"]
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("resolved mismatch (-want +got):\n%s", diff)
	}
}

func TestResolver_FollowsReferenceChains(t *testing.T) {
	resolver := newFixtureResolver(t)

	direct, err := resolver.Resolve(Node{"$ref": "#/components/schemas/Stimulus"})
	if err != nil {
		t.Fatalf("resolve direct: %v", err)
	}
	chained, err := resolver.Resolve(Node{"$ref": "#/components/schemas/AliasOfAlias"})
	if err != nil {
		t.Fatalf("resolve chain: %v", err)
	}
	if diff := cmp.Diff(direct, chained); diff != "" {
		t.Fatalf("chain mismatch (-want +got):\n%s", diff)
	}
}

func TestResolver_UnknownReference(t *testing.T) {
	resolver := newFixtureResolver(t)

	_, err := resolver.Resolve(Node{"$ref": "#/components/schemas/Missing"})
	if err == nil {
		t.Fatal("expected error for missing reference")
	}
	if !errors.Is(err, ErrReferenceNotFound) {
		t.Fatalf("expected ErrReferenceNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "reference not found") {
		t.Fatalf("error message %q does not mention missing reference", err)
	}

	var refErr *ReferenceError
	if !errors.As(err, &refErr) {
		t.Fatalf("expected *ReferenceError, got %T", err)
	}
	if refErr.Ref != "#/components/schemas/Missing" {
		t.Fatalf("unexpected ref %q", refErr.Ref)
	}
}

func TestResolver_NilYieldsEmptyObject(t *testing.T) {
	resolver := newFixtureResolver(t)

	got, err := resolver.Resolve(nil)
	if err != nil {
		t.Fatalf("resolve nil: %v", err)
	}
	if diff := cmp.Diff(EmptyObject(), got); diff != "" {
		t.Fatalf("empty object mismatch (-want +got):\n%s", diff)
	}

	fromAny, err := resolver.ResolveAny(nil)
	if err != nil {
		t.Fatalf("resolve any nil: %v", err)
	}
	if diff := cmp.Diff(EmptyObject(), fromAny); diff != "" {
		t.Fatalf("empty object mismatch (-want +got):\n%s", diff)
	}
}

func TestResolver_Idempotent(t *testing.T) {
	resolver := newFixtureResolver(t)

	inputs := []Node{
		{"$ref": "#/components/schemas/Alias"},
		{"type": "string", "title": "Inline"},
		nil,
	}
	for _, input := range inputs {
		once, err := resolver.Resolve(input)
		if err != nil {
			t.Fatalf("resolve %v: %v", input, err)
		}
		twice, err := resolver.Resolve(once)
		if err != nil {
			t.Fatalf("resolve twice %v: %v", input, err)
		}
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Fatalf("resolve not idempotent for %v (-once +twice):\n%s", input, diff)
		}
	}
}

func TestResolver_InlineReturnedUnchanged(t *testing.T) {
	resolver := newFixtureResolver(t)
	inline := Node{"type": "integer", "minimum": 0.0}

	got, err := resolver.Resolve(inline)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if diff := cmp.Diff(inline, got); diff != "" {
		t.Fatalf("inline mismatch (-want +got):\n%s", diff)
	}
}

func TestResolver_Failures(t *testing.T) {
	resolver := newFixtureResolver(t)

	cases := []struct {
		name string
		ref  string
		want error
	}{
		{name: "cycle", ref: "#/components/schemas/LoopA", want: ErrReferenceCycle},
		{name: "external", ref: "other.json#/components/schemas/Stimulus", want: ErrExternalReference},
		{name: "non object target", ref: "#/components/schemas/Scalar", want: ErrNotObject},
		{name: "relative pointer", ref: "#components", want: ErrReferenceNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolver.Resolve(Node{"$ref": tc.ref})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestResolver_EscapedPointerSegments(t *testing.T) {
	resolver := newFixtureResolver(t)

	got, err := resolver.Resolve(Node{"$ref": "#/components/schemas/a~1b"})
	if err != nil {
		t.Fatalf("resolve escaped: %v", err)
	}
	if got["type"] != "string" {
		t.Fatalf("expected string schema, got %v", got)
	}
}

func TestResolver_DepthCap(t *testing.T) {
	root := map[string]any{
		"defs": map[string]any{
			"a": map[string]any{"$ref": "#/defs/b"},
			"b": map[string]any{"$ref": "#/defs/c"},
			"c": map[string]any{"type": "string"},
		},
	}
	resolver := NewResolverFromMap(root, ResolveOptions{MaxRefDepth: 2})

	_, err := resolver.Resolve(Node{"$ref": "#/defs/a"})
	if !errors.Is(err, ErrReferenceDepth) {
		t.Fatalf("expected ErrReferenceDepth, got %v", err)
	}
}

func TestNewDocument_RejectsNonObject(t *testing.T) {
	_, err := NewDocument(SourceFromFS("list.json"), []byte(`[1,2,3]`))
	if !errors.Is(err, ErrNotObject) {
		t.Fatalf("expected ErrNotObject, got %v", err)
	}
}
