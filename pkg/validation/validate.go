package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/neuroplatform/simforms/pkg/schema"
)

const (
	componentsPrefix = "#/components/schemas/"
	defsPrefix       = "#/$defs/"
	resourceURL      = "urn:simforms:request.json"
)

// SchemaIssue represents a validation error with optional location metadata.
type SchemaIssue struct {
	Path    string `json:"path,omitempty"`
	Field   string `json:"field,omitempty"`
	Keyword string `json:"keyword,omitempty"`
	Message string `json:"message"`
}

// SchemaValidationResult captures validation outcomes for a generated payload.
// Issues are advisory: a payload with issues can still be submitted.
type SchemaValidationResult struct {
	Valid  bool          `json:"valid"`
	Issues []SchemaIssue `json:"issues,omitempty"`
}

// ForPrefix groups issue messages by field path below prefix. The prefix is
// stripped from the returned keys; issues outside it are dropped.
func (r SchemaValidationResult) ForPrefix(prefix string) map[string][]string {
	out := make(map[string][]string)
	prefix = strings.Trim(prefix, ".")
	for _, issue := range r.Issues {
		field := issue.Field
		switch {
		case prefix == "":
		case field == prefix:
			field = ""
		case strings.HasPrefix(field, prefix+"."):
			field = strings.TrimPrefix(field, prefix+".")
		default:
			continue
		}
		out[field] = append(out[field], issue.Message)
	}
	return out
}

// Validator checks payloads against one compiled request schema.
type Validator struct {
	schema *jsonschema.Schema
}

// Compile builds a standalone Draft 2020-12 schema from node. Component
// references are rewritten into $defs so the request schema can be compiled
// without the surrounding OpenAPI document.
func Compile(root map[string]any, node schema.Node) (*Validator, error) {
	if node == nil {
		return nil, errors.New("validation: request schema is nil")
	}

	standalone, ok := rewriteRefs(node).(map[string]any)
	if !ok {
		return nil, errors.New("validation: request schema is not an object")
	}
	if defs := componentSchemas(root); len(defs) > 0 {
		standalone["$defs"] = rewriteRefs(defs)
	}
	standalone["$schema"] = "https://json-schema.org/draft/2020-12/schema"

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft2020)
	if err := compiler.AddResource(resourceURL, standalone); err != nil {
		return nil, fmt.Errorf("validation: add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("validation: compile schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// Validate checks payload and flattens any failures into issues.
func (v *Validator) Validate(payload any) (SchemaValidationResult, error) {
	instance, err := normalize(payload)
	if err != nil {
		return SchemaValidationResult{}, err
	}

	result := SchemaValidationResult{Valid: true}
	err = v.schema.Validate(instance)
	if err == nil {
		return result, nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return SchemaValidationResult{}, fmt.Errorf("validation: %w", err)
	}
	result.Valid = false
	result.Issues = collectIssues(verr)
	return result, nil
}

// Validate compiles node against the document root and checks payload in one
// step.
func Validate(root map[string]any, node schema.Node, payload any) (SchemaValidationResult, error) {
	validator, err := Compile(root, node)
	if err != nil {
		return SchemaValidationResult{}, err
	}
	return validator.Validate(payload)
}

var printer = message.NewPrinter(language.English)

func collectIssues(root *jsonschema.ValidationError) []SchemaIssue {
	var issues []SchemaIssue
	var walk func(*jsonschema.ValidationError)
	walk = func(verr *jsonschema.ValidationError) {
		if len(verr.Causes) == 0 {
			issues = append(issues, issueFromError(verr))
			return
		}
		for _, cause := range verr.Causes {
			walk(cause)
		}
	}
	walk(root)

	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Path < issues[j].Path
	})
	return issues
}

func issueFromError(verr *jsonschema.ValidationError) SchemaIssue {
	issue := SchemaIssue{
		Path:  pointerFromLocation(verr.InstanceLocation),
		Field: strings.Join(verr.InstanceLocation, "."),
	}
	if verr.ErrorKind != nil {
		issue.Message = strings.TrimSpace(verr.ErrorKind.LocalizedString(printer))
		if keyword := verr.ErrorKind.KeywordPath(); len(keyword) > 0 {
			issue.Keyword = keyword[len(keyword)-1]
		}
	}
	if issue.Message == "" {
		issue.Message = "invalid value"
	}
	return issue
}

func pointerFromLocation(location []string) string {
	if len(location) == 0 {
		return ""
	}
	escaped := make([]string, len(location))
	for idx, segment := range location {
		segment = strings.ReplaceAll(segment, "~", "~0")
		escaped[idx] = strings.ReplaceAll(segment, "/", "~1")
	}
	return "/" + strings.Join(escaped, "/")
}

func componentSchemas(root map[string]any) map[string]any {
	components, _ := root["components"].(map[string]any)
	schemas, _ := components["schemas"].(map[string]any)
	return schemas
}

// rewriteRefs deep copies value, pointing component references at $defs.
func rewriteRefs(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, child := range typed {
			if ref, ok := child.(string); ok && key == "$ref" && strings.HasPrefix(ref, componentsPrefix) {
				out[key] = defsPrefix + strings.TrimPrefix(ref, componentsPrefix)
				continue
			}
			out[key] = rewriteRefs(child)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for idx, child := range typed {
			out[idx] = rewriteRefs(child)
		}
		return out
	default:
		return value
	}
}

// normalize round-trips payload through encoding/json so Go numeric types
// reach the validator as float64.
func normalize(payload any) (any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("validation: encode payload: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("validation: decode payload: %w", err)
	}
	return out, nil
}
