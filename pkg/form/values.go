package form

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Unflatten expands dotted keys into nested objects. Objects whose keys are
// all non-negative integers become lists ordered by index, so
// {"amplitude.0": 1, "amplitude.1": 2} yields {"amplitude": [1, 2]}.
func Unflatten(values map[string]any) map[string]any {
	root := make(map[string]any)
	for _, key := range sortedKeys(values) {
		segments := splitPath(key)
		if len(segments) == 0 {
			continue
		}
		node := root
		for _, segment := range segments[:len(segments)-1] {
			child, ok := node[segment].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[segment] = child
			}
			node = child
		}
		leaf := segments[len(segments)-1]
		if _, isMap := node[leaf].(map[string]any); isMap {
			// A nested path already claimed this key.
			continue
		}
		node[leaf] = values[key]
	}
	for key, child := range root {
		root[key] = listify(child)
	}
	return root
}

// listify converts index-keyed objects into ordered lists, depth first.
func listify(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		for key, child := range typed {
			typed[key] = listify(child)
		}
		if len(typed) == 0 {
			return typed
		}
		indices := make([]int, 0, len(typed))
		for key := range typed {
			pos, ok := parseIndex(key)
			if !ok {
				return typed
			}
			indices = append(indices, pos)
		}
		sort.Ints(indices)
		list := make([]any, 0, len(indices))
		for _, pos := range indices {
			list = append(list, typed[strconv.Itoa(pos)])
		}
		return list
	case []any:
		for idx, child := range typed {
			typed[idx] = listify(child)
		}
		return typed
	default:
		return value
	}
}

// Flatten is the inverse of Unflatten: nested objects and lists become dotted
// path keys. Empty containers are dropped.
func Flatten(nested map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", nested)
	return out
}

func flattenInto(out map[string]any, prefix string, value any) {
	switch typed := value.(type) {
	case map[string]any:
		for key, child := range typed {
			flattenInto(out, joinPath(prefix, key), child)
		}
	case []any:
		for idx, child := range typed {
			flattenInto(out, joinPath(prefix, strconv.Itoa(idx)), child)
		}
	default:
		if prefix != "" && value != nil {
			out[prefix] = value
		}
	}
}

// Coerce converts posted string values into the JSON types of their fields.
// Empty strings clear the path (nil value). Paths that address no field are
// kept verbatim. Every conversion failure is reported; the returned map still
// holds every value that converted.
func Coerce(f Form, raw map[string]string) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	var result *multierror.Error
	for _, path := range sortedKeys(raw) {
		text := strings.TrimSpace(raw[path])
		field, ok := f.Lookup(path)
		if !ok {
			out[path] = raw[path]
			continue
		}
		value, err := CoerceValue(field, text)
		if err != nil {
			result = multierror.Append(result, &FieldError{Path: path, Err: err})
			continue
		}
		out[path] = value
	}
	return out, result.ErrorOrNil()
}

// FieldError reports a value that could not be converted for the control at
// Path.
type FieldError struct {
	Path string
	Err  error
}

func (e *FieldError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// FieldErrors groups the FieldError values inside err by path.
func FieldErrors(err error) map[string][]string {
	if err == nil {
		return nil
	}
	var errs []error
	var merr *multierror.Error
	if errors.As(err, &merr) {
		errs = merr.Errors
	} else {
		errs = []error{err}
	}
	out := make(map[string][]string)
	for _, item := range errs {
		var fieldErr *FieldError
		if errors.As(item, &fieldErr) {
			out[fieldErr.Path] = append(out[fieldErr.Path], fieldErr.Err.Error())
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// CoerceValue converts a single text input according to field.
func CoerceValue(field *Field, text string) (any, error) {
	switch field.Kind {
	case KindConst:
		return field.Const, nil
	case KindBoolean:
		switch strings.ToLower(text) {
		case "on", "true", "1", "yes":
			return true, nil
		case "", "off", "false", "0", "no":
			return false, nil
		}
		return nil, fmt.Errorf("invalid boolean %q", text)
	}
	if text == "" {
		return nil, nil
	}
	switch field.Kind {
	case KindNumber:
		value, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", text)
		}
		return value, nil
	case KindInteger:
		value, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", text)
		}
		return float64(value), nil
	case KindEnum:
		for _, option := range field.Options {
			if OptionValue(option) == text {
				return option, nil
			}
		}
		return nil, fmt.Errorf("%q is not an allowed value", text)
	default:
		return text, nil
	}
}

// OptionValue renders an enum option as form text.
func OptionValue(option any) string {
	switch typed := option.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return fmt.Sprint(typed)
	}
}
