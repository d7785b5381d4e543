package render

import (
	"strconv"
	"strings"

	"github.com/neuroplatform/simforms/pkg/form"
)

// ErrorMapping splits an error payload into control-level messages keyed by
// the concrete dotted paths of the active block, and page-level messages.
type ErrorMapping struct {
	Fields map[string][]string
	Form   []string
}

// MergeFormErrors concatenates and normalises multiple page-level error
// slices, trimming whitespace and removing duplicates while preserving order.
func MergeFormErrors(existing []string, extras ...string) []string {
	combined := make([]string, 0, len(existing)+len(extras))
	combined = append(combined, existing...)
	combined = append(combined, extras...)
	return normalizeMessages(combined)
}

// MapErrorPayload attaches errors reported against the generated payload to
// the controls of f. prefix is the dotted location of the active block inside
// that payload; errors located under another block, or matching no field, are
// kept as page-level messages prefixed with their location.
func MapErrorPayload(f form.Form, payload map[string][]string, prefix string) ErrorMapping {
	mapping := ErrorMapping{
		Fields: make(map[string][]string),
	}
	if len(payload) == 0 {
		return mapping
	}

	schemaPaths := make(map[string]struct{})
	f.Walk(func(path string, _ *form.Field) {
		schemaPaths[path] = struct{}{}
	})
	prefixSegments := parsePathSegments(prefix)

	for rawPath, messages := range payload {
		normalized := normalizeMessages(messages)
		if len(normalized) == 0 {
			continue
		}

		segments := dropWrapperSegments(parsePathSegments(rawPath))
		relative, inBlock := trimPrefix(segments, prefixSegments)
		if inBlock {
			if path := longestMatchingPath(relative, schemaPaths); path != "" {
				mapping.Fields[path] = append(mapping.Fields[path], normalized...)
				continue
			}
		}

		location := strings.Join(segments, ".")
		for _, message := range normalized {
			if location != "" {
				message = location + ": " + message
			}
			mapping.Form = append(mapping.Form, message)
		}
	}

	if len(mapping.Fields) == 0 {
		mapping.Fields = nil
	}
	mapping.Form = normalizeMessages(mapping.Form)
	return mapping
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}

	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

// parsePathSegments accepts dotted paths, JSON pointers and bracketed indices.
func parsePathSegments(path string) []string {
	clean := strings.TrimSpace(path)
	for strings.HasPrefix(clean, "#") || strings.HasPrefix(clean, "/") || strings.HasPrefix(clean, ".") || strings.HasPrefix(clean, "$") {
		clean = strings.TrimPrefix(clean, "#")
		clean = strings.TrimPrefix(clean, "/")
		clean = strings.TrimPrefix(clean, ".")
		clean = strings.TrimPrefix(clean, "$")
	}

	replacer := strings.NewReplacer("[", ".", "]", "")
	clean = strings.Trim(replacer.Replace(clean), "./")
	if clean == "" {
		return nil
	}

	parts := strings.FieldsFunc(clean, func(r rune) bool {
		return r == '.' || r == '/'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		segment := strings.TrimSpace(part)
		if segment == "" {
			continue
		}
		segment = strings.ReplaceAll(segment, "~1", "/")
		segment = strings.ReplaceAll(segment, "~0", "~")
		out = append(out, segment)
	}
	return out
}

func dropWrapperSegments(segments []string) []string {
	wrappers := map[string]struct{}{
		"body":    {},
		"request": {},
		"payload": {},
	}
	out := segments
	for len(out) > 0 {
		if _, ok := wrappers[strings.ToLower(out[0])]; !ok {
			break
		}
		out = out[1:]
	}
	return out
}

func trimPrefix(segments, prefix []string) ([]string, bool) {
	if len(prefix) > len(segments) {
		return nil, false
	}
	for idx, segment := range prefix {
		if segments[idx] != segment {
			return nil, false
		}
	}
	return segments[len(prefix):], true
}

// longestMatchingPath returns the longest concrete prefix of segments that
// names a field. Numeric segments match array items.
func longestMatchingPath(segments []string, schemaPaths map[string]struct{}) string {
	for end := len(segments); end > 0; end-- {
		key := make([]string, end)
		for idx, segment := range segments[:end] {
			if _, err := strconv.Atoi(segment); err == nil {
				segment = "[]"
			}
			key[idx] = segment
		}
		if _, ok := schemaPaths[strings.Join(key, ".")]; ok {
			return strings.Join(segments[:end], ".")
		}
	}
	return ""
}
