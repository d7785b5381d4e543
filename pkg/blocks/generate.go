package blocks

import (
	"github.com/neuroplatform/simforms/pkg/form"
	"github.com/neuroplatform/simforms/pkg/schema"
)

// Reference keys emitted in place of block ids held by block reference fields.
const (
	RefBlockName    = "block_name"
	RefBlockSection = "block_dict_name"
)

// Generate collects every section into one payload: initialize values under
// "initialize" and the blocks of other sections under section -> block name.
// The payload is tagged with typeName, falling back to the active block's
// type. An initialize block without a discriminator of its own falls back to
// the root schema type. Plain layouts emit the root block's values unnested.
func (w *Workspace) Generate(typeName string) map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()

	var payload map[string]any
	if w.layout.Plain {
		payload = w.blockPayload(w.blocks[InitializeSection][0])
	} else {
		payload = make(map[string]any, len(w.layout.Sections)+1)
		for _, section := range w.layout.Sections {
			blocks := w.blocks[section.Name]
			if section.Single {
				block := blocks[0]
				values := w.blockPayload(block)
				if block.Type != "" && block.Type != InitializeSection {
					values[schema.DiscriminatorKey] = block.Type
				}
				payload[section.Name] = values
				continue
			}
			entries := make(map[string]any, len(blocks))
			for _, block := range blocks {
				values := w.blockPayload(block)
				values[schema.DiscriminatorKey] = block.Type
				entries[block.Name] = values
			}
			payload[section.Name] = entries
		}
	}

	if typeName == "" {
		typeName = w.activeType()
	}
	if typeName != "" {
		payload[schema.DiscriminatorKey] = typeName
	}
	return payload
}

func (w *Workspace) activeType() string {
	if w.active.Type != "" && w.active.Type != InitializeSection {
		return w.active.Type
	}
	return w.layout.RootType
}

func (w *Workspace) blockPayload(block Block) map[string]any {
	state, ok := w.states[block.ID]
	if !ok {
		return map[string]any{}
	}
	payload := form.Unflatten(state.Values())
	for key, value := range payload {
		payload[key] = w.expandReferences(value)
	}
	return payload
}

// expandReferences replaces block ids with a reference object naming the
// block and its section.
func (w *Workspace) expandReferences(value any) any {
	switch typed := value.(type) {
	case string:
		if block, ok := w.blockByID(typed); ok {
			return map[string]any{
				RefBlockName:    block.Name,
				RefBlockSection: block.Section,
			}
		}
		return typed
	case map[string]any:
		for key, child := range typed {
			typed[key] = w.expandReferences(child)
		}
		return typed
	case []any:
		for idx, child := range typed {
			typed[idx] = w.expandReferences(child)
		}
		return typed
	default:
		return value
	}
}

func (w *Workspace) blockByID(id string) (Block, bool) {
	if id == "" || id == InitializeID {
		return Block{}, false
	}
	for _, blocks := range w.blocks {
		for _, block := range blocks {
			if block.ID == id {
				return block, true
			}
		}
	}
	return Block{}, false
}

// PayloadPath returns the dotted location of block inside the Generate payload.
// Plain layouts place the root block at the top level.
func (w *Workspace) PayloadPath(block Block) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.payloadPath(block)
}

func (w *Workspace) payloadPath(block Block) string {
	if w.layout.Plain {
		return ""
	}
	section, ok := w.layout.Section(block.Section)
	if !ok {
		return ""
	}
	if section.Single {
		return section.Name
	}
	return section.Name + "." + block.Name
}
