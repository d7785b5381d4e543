package blocks

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/neuroplatform/simforms/pkg/form"
	"github.com/neuroplatform/simforms/pkg/schema"
)

// Block is a named instance of a section variant. Its type never changes after
// creation.
type Block struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Section string `json:"section"`
	// Implicit marks the initialize block.
	Implicit bool `json:"implicit,omitempty"`
}

// InitializeID identifies the implicit initialize block.
const InitializeID = "initialize"

// Workspace owns the blocks and per-block form state of one endpoint.
// Methods are safe for concurrent use.
type Workspace struct {
	mu       sync.Mutex
	layout   Layout
	resolver *schema.Resolver
	logger   *slog.Logger
	newID    func() string

	blocks map[string][]Block
	states map[string]*form.State
	live   map[string]map[string]any
	forms  map[string]form.Form
	active Block
}

// Option customises a Workspace.
type Option func(*Workspace)

// WithLogger sets the workspace logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workspace) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithIDGenerator overrides block id generation.
func WithIDGenerator(next func() string) Option {
	return func(w *Workspace) {
		if next != nil {
			w.newID = next
		}
	}
}

// NewWorkspace creates a workspace over layout. The initialize block exists
// from the start and is active.
func NewWorkspace(layout Layout, resolver *schema.Resolver, opts ...Option) (*Workspace, error) {
	if resolver == nil {
		return nil, fmt.Errorf("blocks: resolver is required")
	}
	if len(layout.Sections) == 0 || !layout.Sections[0].Single {
		return nil, fmt.Errorf("blocks: layout must start with the %s section", InitializeSection)
	}
	w := &Workspace{
		layout:   layout,
		resolver: resolver,
		logger:   slog.Default(),
		newID:    uuid.NewString,
		blocks:   make(map[string][]Block, len(layout.Sections)),
		states:   make(map[string]*form.State),
		live:     make(map[string]map[string]any),
		forms:    make(map[string]form.Form),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	first := layout.Sections[0]
	initialize := Block{
		ID:       InitializeID,
		Name:     first.Name,
		Type:     first.Variants[0].Type,
		Section:  first.Name,
		Implicit: true,
	}
	if _, err := w.createState(initialize); err != nil {
		return nil, err
	}
	w.blocks[first.Name] = []Block{initialize}
	w.active = initialize
	return w, nil
}

// Layout returns the section partition the workspace was built from.
func (w *Workspace) Layout() Layout {
	return w.layout
}

// Sections lists the sections in display order.
func (w *Workspace) Sections() []Section {
	return append([]Section(nil), w.layout.Sections...)
}

// Blocks lists the blocks of section in creation order.
func (w *Workspace) Blocks(section string) ([]Block, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.layout.Section(section); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSection, section)
	}
	return append([]Block(nil), w.blocks[section]...), nil
}

// Active returns the selected block.
func (w *Workspace) Active() Block {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// AddBlock creates a block of typeName in section, named
// "{lowercased type}_{n}" with the smallest n not used in the section, and
// selects it.
func (w *Workspace) AddBlock(section, typeName string) (Block, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	sec, ok := w.layout.Section(section)
	if !ok {
		return Block{}, fmt.Errorf("%w: %s", ErrUnknownSection, section)
	}
	if sec.Single {
		return Block{}, fmt.Errorf("%w: %s", ErrSingleSection, section)
	}
	if _, ok := sec.Variant(typeName); !ok {
		return Block{}, fmt.Errorf("%w: %s in %s", ErrUnknownVariant, typeName, section)
	}

	block := Block{
		ID:      w.newID(),
		Name:    w.nextName(section, typeName),
		Type:    typeName,
		Section: section,
	}
	if _, err := w.createState(block); err != nil {
		return Block{}, err
	}
	w.blocks[section] = append(w.blocks[section], block)
	w.active = block
	w.logger.Debug("block added", "section", section, "type", typeName, "name", block.Name, "id", block.ID)
	return block, nil
}

// RenameBlock changes the display name of a block. Names need not be unique.
func (w *Workspace) RenameBlock(section, id, name string) (Block, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return Block{}, ErrEmptyName
	}
	idx, err := w.find(section, id)
	if err != nil {
		return Block{}, err
	}
	block := &w.blocks[section][idx]
	if block.Implicit {
		return Block{}, ErrImmutableBlock
	}
	block.Name = name
	if w.active.ID == id {
		w.active = *block
	}
	return *block, nil
}

// DeleteBlock removes a block together with its saved form state and clears
// references to it held by other blocks. Deleting the active block selects
// initialize.
func (w *Workspace) DeleteBlock(section, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx, err := w.find(section, id)
	if err != nil {
		return err
	}
	if w.blocks[section][idx].Implicit {
		return ErrImmutableBlock
	}

	w.blocks[section] = append(w.blocks[section][:idx:idx], w.blocks[section][idx+1:]...)
	delete(w.states, id)
	delete(w.live, id)
	for _, state := range w.states {
		for path, value := range state.Values() {
			if value == id {
				state.Set(path, nil)
			}
		}
	}
	if w.active.ID == id {
		w.active = w.blocks[InitializeSection][0]
	}
	w.logger.Debug("block deleted", "section", section, "id", id)
	return nil
}

// SelectBlock makes a block active. Its saved state is swapped in; a block
// that never held values starts empty.
func (w *Workspace) SelectBlock(section, id string) (Block, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx, err := w.find(section, id)
	if err != nil {
		return Block{}, err
	}
	w.active = w.blocks[section][idx]
	return w.active, nil
}

// BlocksOfType lists blocks across sections whose type is one of types. It
// feeds block reference selects.
func (w *Workspace) BlocksOfType(types ...string) []form.BlockOption {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.blocksOfType(types...)
}

func (w *Workspace) blocksOfType(types ...string) []form.BlockOption {
	allowed := make(map[string]bool, len(types))
	for _, name := range types {
		allowed[name] = true
	}
	var out []form.BlockOption
	for _, section := range w.layout.Sections {
		for _, block := range w.blocks[section.Name] {
			if block.Implicit || !allowed[block.Type] {
				continue
			}
			out = append(out, form.BlockOption{
				ID:      block.ID,
				Name:    block.Name,
				Type:    block.Type,
				Section: block.Section,
			})
		}
	}
	return out
}

// ActiveForm returns the field tree and state of the active block.
func (w *Workspace) ActiveForm() (form.Form, *form.State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.formFor(w.active)
	if err != nil {
		return form.Form{}, nil, err
	}
	return f, w.states[w.active.ID], nil
}

// View renders the active block's controls with block references resolved
// against this workspace.
func (w *Workspace) View(errors map[string][]string) (form.Form, []form.Control, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.formFor(w.active)
	if err != nil {
		return form.Form{}, nil, err
	}
	controls := form.View(f, w.states[w.active.ID], form.ViewOptions{
		Blocks: lister(w.blocksOfType),
		Errors: errors,
	})
	return f, controls, nil
}

type lister func(types ...string) []form.BlockOption

func (l lister) BlocksOfType(types ...string) []form.BlockOption {
	return l(types...)
}

// UpdateValues coerces posted text values with the active form and stores
// them. Values that convert are kept even when others fail.
func (w *Workspace) UpdateValues(raw map[string]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.formFor(w.active)
	if err != nil {
		return err
	}
	values, coerceErr := form.Coerce(f, raw)
	state := w.states[w.active.ID]
	for _, path := range sortedKeys(values) {
		state.Set(path, values[path])
	}
	return coerceErr
}

// SetValue stores a typed value on the active block.
func (w *Workspace) SetValue(path string, value any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.states[w.active.ID].Set(path, value)
}

// AddRow grows the array at path on the active block by one row.
func (w *Workspace) AddRow(path string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.states[w.active.ID].AddRow(path)
}

// RemoveRow drops row index of the array at path on the active block.
func (w *Workspace) RemoveRow(path string, index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.states[w.active.ID].RemoveRow(path, index)
}

// LiveValues returns the mirrored values of a block, as last reported by its
// form state.
func (w *Workspace) LiveValues(id string) map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]any, len(w.live[id]))
	for key, value := range w.live[id] {
		out[key] = value
	}
	return out
}

func (w *Workspace) find(section, id string) (int, error) {
	if _, ok := w.layout.Section(section); !ok {
		return -1, fmt.Errorf("%w: %s", ErrUnknownSection, section)
	}
	for idx, block := range w.blocks[section] {
		if block.ID == id {
			return idx, nil
		}
	}
	return -1, fmt.Errorf("%w: %s in %s", ErrUnknownBlock, id, section)
}

func (w *Workspace) nextName(section, typeName string) string {
	used := make(map[string]bool, len(w.blocks[section]))
	for _, block := range w.blocks[section] {
		used[block.Name] = true
	}
	base := strings.ToLower(typeName) + "_"
	for n := 0; ; n++ {
		candidate := base + strconv.Itoa(n)
		if !used[candidate] {
			return candidate
		}
	}
}

func (w *Workspace) createState(block Block) (*form.State, error) {
	f, err := w.formFor(block)
	if err != nil {
		return nil, err
	}
	live := make(map[string]any)
	w.live[block.ID] = live
	state := form.NewState(form.MirrorFunc(func(path string, value any) {
		if value == nil {
			delete(live, path)
			return
		}
		live[path] = value
	}))
	state.Prefill(f)
	w.states[block.ID] = state
	return state, nil
}

func (w *Workspace) formFor(block Block) (form.Form, error) {
	key := block.Section + "/" + block.Type
	if f, ok := w.forms[key]; ok {
		return f, nil
	}
	sec, ok := w.layout.Section(block.Section)
	if !ok {
		return form.Form{}, fmt.Errorf("%w: %s", ErrUnknownSection, block.Section)
	}
	variant, ok := sec.Variant(block.Type)
	if !ok {
		return form.Form{}, fmt.Errorf("%w: %s in %s", ErrUnknownVariant, block.Type, block.Section)
	}
	f, err := form.Build(variant.Schema, w.resolver, form.Options{})
	if err != nil {
		return form.Form{}, fmt.Errorf("blocks: build %s form: %w", block.Type, err)
	}
	w.forms[key] = f
	return f, nil
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
