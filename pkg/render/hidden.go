package render

import (
	"fmt"
	"sort"
	"strings"
)

// Hidden input names posted back with every workspace form.
const (
	CSRFFieldName  = "_csrf"
	BlockFieldName = "_block"
	// TargetFieldName names the block a sidebar button acts on, posted
	// together with the active block's values.
	TargetFieldName = "_target"
	// BlockTypeFieldPrefix prefixes the per-section variant select.
	BlockTypeFieldPrefix = "_type."
)

// HiddenField is a hidden form input emitted alongside the visible controls.
type HiddenField struct {
	Name  string
	Value string
}

// Hidden returns a HiddenField for an arbitrary name/value pair.
func Hidden(name string, value any) HiddenField {
	return HiddenField{
		Name:  strings.TrimSpace(name),
		Value: fmt.Sprint(value),
	}
}

// CSRFToken carries the session's anti-forgery token.
func CSRFToken(token string) HiddenField {
	return Hidden(CSRFFieldName, token)
}

// BlockField carries the id of the block a form edits so stale submissions
// can be detected after the selection changed.
func BlockField(id string) HiddenField {
	return Hidden(BlockFieldName, id)
}

// BlockTarget encodes section and block id as a TargetFieldName value. The id
// is empty for section-wide actions such as add.
func BlockTarget(section, id string) string {
	if id == "" {
		return section
	}
	return section + "/" + id
}

// ParseBlockTarget splits a TargetFieldName value into section and block id.
func ParseBlockTarget(value string) (section, id string) {
	section, id, _ = strings.Cut(strings.TrimSpace(value), "/")
	return section, id
}

// MergeHiddenFields returns a copy of base with fields applied. Empty names are
// ignored and later fields win on collisions.
func MergeHiddenFields(base map[string]string, fields ...HiddenField) map[string]string {
	out := make(map[string]string, len(base)+len(fields))
	for key, value := range base {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			out[trimmed] = value
		}
	}
	for _, field := range fields {
		if field.Name == "" {
			continue
		}
		out[field.Name] = field.Value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// SortedHiddenFields orders hidden fields by name for deterministic output.
func SortedHiddenFields(fields map[string]string) []HiddenField {
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		if strings.TrimSpace(name) != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	result := make([]HiddenField, 0, len(names))
	for _, name := range names {
		result = append(result, HiddenField{Name: name, Value: fields[name]})
	}
	return result
}
