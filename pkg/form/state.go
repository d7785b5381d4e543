package form

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Mirror receives every value change so components outside the form (block
// reference selects, previews) can read live values. A nil value reports a
// cleared path.
type Mirror interface {
	Mirror(path string, value any)
}

// MirrorFunc adapts a function to Mirror.
type MirrorFunc func(path string, value any)

// Mirror implements Mirror.
func (f MirrorFunc) Mirror(path string, value any) {
	f(path, value)
}

// State holds the values of one block keyed by dotted path, plus the tracked
// row count of each array field. It is not safe for concurrent use; the owning
// workspace serialises access.
type State struct {
	values map[string]any
	rows   map[string]int
	mirror Mirror
}

// NewState returns an empty state. mirror may be nil.
func NewState(mirror Mirror) *State {
	return &State{
		values: make(map[string]any),
		rows:   make(map[string]int),
		mirror: mirror,
	}
}

// SetMirror replaces the mirror notified on change.
func (s *State) SetMirror(mirror Mirror) {
	s.mirror = mirror
}

// Set stores value at path and notifies the mirror. A nil value clears the
// path.
func (s *State) Set(path string, value any) {
	path = normalizePath(path)
	if path == "" {
		return
	}
	if value == nil {
		delete(s.values, path)
	} else {
		s.values[path] = value
	}
	s.notify(path, value)
}

// Get returns the value stored at path.
func (s *State) Get(path string) (any, bool) {
	value, ok := s.values[normalizePath(path)]
	return value, ok
}

// Values returns a copy of the raw path-keyed values.
func (s *State) Values() map[string]any {
	out := make(map[string]any, len(s.values))
	for key, value := range s.values {
		out[key] = value
	}
	return out
}

// Len reports the number of stored values.
func (s *State) Len() int {
	return len(s.values)
}

// Rows returns the tracked row count of the array at path. Arrays start with
// one row.
func (s *State) Rows(path string) int {
	if count, ok := s.rows[normalizePath(path)]; ok {
		return count
	}
	return 1
}

// RowCounts returns a copy of the tracked row counts.
func (s *State) RowCounts() map[string]int {
	out := make(map[string]int, len(s.rows))
	for key, value := range s.rows {
		out[key] = value
	}
	return out
}

// SetRows overrides the row count of the array at path.
func (s *State) SetRows(path string, count int) {
	if count < 0 {
		count = 0
	}
	s.rows[normalizePath(path)] = count
}

// AddRow appends one row to the array at path and returns the new count.
func (s *State) AddRow(path string) int {
	path = normalizePath(path)
	count := s.Rows(path) + 1
	s.rows[path] = count
	return count
}

// RemoveRow drops row index from the array at path. Values and nested row
// counts of later rows shift down so indices stay contiguous from 0.
func (s *State) RemoveRow(path string, index int) error {
	path = normalizePath(path)
	count := s.Rows(path)
	if index < 0 || index >= count {
		return fmt.Errorf("form: row %d out of range for %s (%d rows)", index, path, count)
	}

	prefix := path + "."
	moved := make(map[string]any)
	cleared := make([]string, 0)
	for _, key := range sortedKeys(s.values) {
		target, keep := shiftKey(key, prefix, index)
		if target == key {
			continue
		}
		value := s.values[key]
		delete(s.values, key)
		cleared = append(cleared, key)
		if keep {
			moved[target] = value
		}
	}
	for key, value := range moved {
		s.values[key] = value
	}

	rows := make(map[string]int, len(s.rows))
	for key, value := range s.rows {
		target, keep := shiftKey(key, prefix, index)
		if keep {
			rows[target] = value
		}
	}
	rows[path] = count - 1
	s.rows = rows

	for _, key := range cleared {
		if _, ok := moved[key]; !ok {
			s.notify(key, nil)
		}
	}
	for _, key := range sortedKeys(moved) {
		s.notify(key, moved[key])
	}
	return nil
}

// Load replaces the state with values, deriving array row counts from the
// highest index present under each array path of f.
func (s *State) Load(f Form, values map[string]any) {
	s.values = make(map[string]any, len(values))
	s.rows = make(map[string]int)
	for key, value := range values {
		if value == nil {
			continue
		}
		s.values[normalizePath(key)] = value
	}
	for key := range s.values {
		segments := splitPath(key)
		for idx := 1; idx < len(segments); idx++ {
			pos, ok := parseIndex(segments[idx])
			if !ok {
				continue
			}
			arrayPath := strings.Join(segments[:idx], ".")
			if field, ok := f.Lookup(arrayPath); !ok || field.Kind != KindArray {
				continue
			}
			if pos+1 > s.rows[arrayPath] {
				s.rows[arrayPath] = pos + 1
			}
		}
	}
}

// Clone returns a deep copy of values and row counts sharing the mirror.
func (s *State) Clone() *State {
	return &State{
		values: s.Values(),
		rows:   s.RowCounts(),
		mirror: s.mirror,
	}
}

// Prefill stores constants and schema defaults for paths without a value.
// Constants always win.
func (s *State) Prefill(f Form) {
	for idx := range f.Fields {
		s.prefill(f.Fields[idx].Name, &f.Fields[idx])
	}
}

func (s *State) prefill(path string, field *Field) {
	switch field.Kind {
	case KindConst:
		s.Set(path, field.Const)
	case KindObject:
		for idx := range field.Fields {
			s.prefill(joinPath(path, field.Fields[idx].Name), &field.Fields[idx])
		}
	case KindArray:
		list, ok := field.Default.([]any)
		if !ok {
			return
		}
		if _, tracked := s.rows[path]; tracked {
			return
		}
		s.rows[path] = len(list)
		for idx, value := range list {
			key := joinPath(path, strconv.Itoa(idx))
			if _, exists := s.values[key]; !exists {
				s.Set(key, value)
			}
		}
	default:
		if field.Default == nil {
			return
		}
		if _, exists := s.values[path]; !exists {
			s.Set(path, field.Default)
		}
	}
}

func (s *State) notify(path string, value any) {
	if s.mirror != nil {
		s.mirror.Mirror(path, value)
	}
}

// shiftKey rewrites key when it addresses a row after index under prefix.
// keep is false for keys inside the removed row.
func shiftKey(key, prefix string, index int) (string, bool) {
	if !strings.HasPrefix(key, prefix) {
		return key, true
	}
	rest := key[len(prefix):]
	segment, tail, hasTail := strings.Cut(rest, ".")
	pos, ok := parseIndex(segment)
	if !ok || pos < index {
		return key, true
	}
	if pos == index {
		return key, false
	}
	target := prefix + strconv.Itoa(pos-1)
	if hasTail {
		target += "." + tail
	}
	return target, true
}

func normalizePath(path string) string {
	return strings.Trim(strings.TrimSpace(path), ".")
}

func splitPath(path string) []string {
	path = normalizePath(path)
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

func joinPath(parent, name string) string {
	switch {
	case parent == "":
		return name
	case name == "":
		return parent
	default:
		return parent + "." + name
	}
}

func parseIndex(segment string) (int, bool) {
	if segment == "" {
		return 0, false
	}
	for _, r := range segment {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	value, err := strconv.Atoi(segment)
	if err != nil {
		return 0, false
	}
	return value, true
}

func sortedKeys[V any](values map[string]V) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
