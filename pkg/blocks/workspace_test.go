package blocks

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroplatform/simforms/pkg/schema"
)

const stimulusDocument = `{
  "components": {
    "schemas": {
      "Root": {
        "type": "object",
        "properties": {
          "type": {"const": "Campaign"},
          "initialize": {"type": "object", "properties": {"duration": {"type": "number"}}},
          "stimuli": {"type": "object", "additionalProperties": {"$ref": "#/components/schemas/Stimulus"}}
        }
      },
      "Stimulus": {
        "type": "object",
        "properties": {
          "type": {"const": "Stimulus"},
          "amplitude": {"type": "array", "items": {"type": "number"}}
        }
      }
    }
  }
}`

func counterIDs() func() string {
	next := 0
	return func() string {
		next++
		return fmt.Sprintf("block-%d", next)
	}
}

func newStimulusWorkspace(t *testing.T) *Workspace {
	t.Helper()
	doc := schema.MustNewDocument(schema.SourceFromFS("stimulus.json"), []byte(stimulusDocument))
	resolver := schema.NewResolver(doc, schema.ResolveOptions{})
	layout, err := Partition(schema.Node{"$ref": "#/components/schemas/Root"}, resolver)
	require.NoError(t, err)
	ws, err := NewWorkspace(layout, resolver, WithIDGenerator(counterIDs()))
	require.NoError(t, err)
	return ws
}

func TestWorkspace_DefaultNamesUniquePerType(t *testing.T) {
	ws := newStimulusWorkspace(t)

	var names []string
	for range 3 {
		block, err := ws.AddBlock("stimuli", "Stimulus")
		require.NoError(t, err)
		names = append(names, block.Name)
	}
	assert.Equal(t, []string{"stimulus_0", "stimulus_1", "stimulus_2"}, names)

	// A freed name is reused before growing the index.
	blocks, err := ws.Blocks("stimuli")
	require.NoError(t, err)
	require.NoError(t, ws.DeleteBlock("stimuli", blocks[1].ID))
	block, err := ws.AddBlock("stimuli", "Stimulus")
	require.NoError(t, err)
	assert.Equal(t, "stimulus_1", block.Name)

	// Renamed blocks free their default name.
	_, err = ws.RenameBlock("stimuli", blocks[0].ID, "ramp")
	require.NoError(t, err)
	block, err = ws.AddBlock("stimuli", "Stimulus")
	require.NoError(t, err)
	assert.Equal(t, "stimulus_0", block.Name)
}

func TestWorkspace_DeleteActiveFallsBackToInitialize(t *testing.T) {
	ws := newStimulusWorkspace(t)

	first, err := ws.AddBlock("stimuli", "Stimulus")
	require.NoError(t, err)
	second, err := ws.AddBlock("stimuli", "Stimulus")
	require.NoError(t, err)
	assert.Equal(t, second.ID, ws.Active().ID, "adding selects the new block")

	// Deleting a non-active block keeps the selection.
	require.NoError(t, ws.DeleteBlock("stimuli", first.ID))
	assert.Equal(t, second.ID, ws.Active().ID)

	require.NoError(t, ws.DeleteBlock("stimuli", second.ID))
	active := ws.Active()
	assert.Equal(t, InitializeID, active.ID)
	assert.Equal(t, InitializeSection, active.Section)
}

func TestWorkspace_DeleteDropsState(t *testing.T) {
	ws := newStimulusWorkspace(t)

	block, err := ws.AddBlock("stimuli", "Stimulus")
	require.NoError(t, err)
	ws.SetValue("amplitude.0", 3.0)
	require.NotEmpty(t, ws.LiveValues(block.ID))

	require.NoError(t, ws.DeleteBlock("stimuli", block.ID))
	assert.Empty(t, ws.LiveValues(block.ID))
	_, err = ws.SelectBlock("stimuli", block.ID)
	assert.ErrorIs(t, err, ErrUnknownBlock)
}

func TestWorkspace_InitializeIsImmutable(t *testing.T) {
	ws := newStimulusWorkspace(t)

	_, err := ws.RenameBlock(InitializeSection, InitializeID, "setup")
	assert.ErrorIs(t, err, ErrImmutableBlock)
	assert.ErrorIs(t, ws.DeleteBlock(InitializeSection, InitializeID), ErrImmutableBlock)

	_, err = ws.AddBlock(InitializeSection, "Campaign")
	assert.ErrorIs(t, err, ErrSingleSection)

	blocks, err := ws.Blocks(InitializeSection)
	require.NoError(t, err)
	assert.Len(t, blocks, 1)
}

func TestWorkspace_Errors(t *testing.T) {
	ws := newStimulusWorkspace(t)

	_, err := ws.AddBlock("recordings", "Stimulus")
	assert.ErrorIs(t, err, ErrUnknownSection)
	_, err = ws.AddBlock("stimuli", "Noise")
	assert.ErrorIs(t, err, ErrUnknownVariant)
	_, err = ws.SelectBlock("stimuli", "missing")
	assert.ErrorIs(t, err, ErrUnknownBlock)

	block, err := ws.AddBlock("stimuli", "Stimulus")
	require.NoError(t, err)
	_, err = ws.RenameBlock("stimuli", block.ID, "   ")
	assert.True(t, errors.Is(err, ErrEmptyName))
}

func TestWorkspace_RenameKeepsType(t *testing.T) {
	ws := newStimulusWorkspace(t)

	block, err := ws.AddBlock("stimuli", "Stimulus")
	require.NoError(t, err)
	renamed, err := ws.RenameBlock("stimuli", block.ID, "stimulus_0")
	require.NoError(t, err)
	other, err := ws.AddBlock("stimuli", "Stimulus")
	require.NoError(t, err)
	_, err = ws.RenameBlock("stimuli", other.ID, "stimulus_0")
	require.NoError(t, err, "names need not be unique")

	assert.Equal(t, "Stimulus", renamed.Type)
	assert.Equal(t, "stimulus_0", ws.Active().Name)
}

func TestWorkspace_GenerateTagsActiveBlockType(t *testing.T) {
	ws := newStimulusWorkspace(t)

	// The initialize block has no discriminator, so the root type is used.
	assert.Equal(t, "Campaign", ws.Generate("")["type"])

	block, err := ws.AddBlock("stimuli", "Stimulus")
	require.NoError(t, err)
	ws.SetValue("amplitude.0", 1)
	ws.SetValue("amplitude.1", 2)

	want := map[string]any{
		"type":       "Stimulus",
		"initialize": map[string]any{},
		"stimuli": map[string]any{
			block.Name: map[string]any{"amplitude": []any{1, 2}, "type": "Stimulus"},
		},
	}
	if diff := cmp.Diff(want, ws.Generate("")); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestWorkspace_SelectSwapsState(t *testing.T) {
	ws := newStimulusWorkspace(t)

	first, err := ws.AddBlock("stimuli", "Stimulus")
	require.NoError(t, err)
	ws.SetValue("amplitude.0", 1.0)

	second, err := ws.AddBlock("stimuli", "Stimulus")
	require.NoError(t, err)
	_, state, err := ws.ActiveForm()
	require.NoError(t, err)
	assert.Equal(t, 0, state.Len(), "new block starts empty")
	ws.SetValue("amplitude.0", 9.0)

	_, err = ws.SelectBlock("stimuli", first.ID)
	require.NoError(t, err)
	_, state, err = ws.ActiveForm()
	require.NoError(t, err)
	value, _ := state.Get("amplitude.0")
	assert.Equal(t, 1.0, value)

	_, err = ws.SelectBlock("stimuli", second.ID)
	require.NoError(t, err)
	_, state, err = ws.ActiveForm()
	require.NoError(t, err)
	value, _ = state.Get("amplitude.0")
	assert.Equal(t, 9.0, value)
}

func TestWorkspace_UpdateValuesCoerces(t *testing.T) {
	ws := newStimulusWorkspace(t)

	require.NoError(t, ws.UpdateValues(map[string]string{"duration": "12.5"}))
	err := ws.UpdateValues(map[string]string{"duration": "soon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duration")

	payload := ws.Generate("")
	assert.Equal(t, map[string]any{"duration": 12.5}, payload["initialize"])
}
