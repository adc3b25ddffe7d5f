package memory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentSearchText(t *testing.T) {
	text := Content{Text: "Mixed CASE Text"}
	assert.Equal(t, "mixed case text", text.SearchText())
	assert.False(t, text.IsStructured())

	structured := Content{Structured: map[string]any{"Outcome": "Success", "count": 3}}
	assert.True(t, structured.IsStructured())
	// Keys are emitted in sorted order so the flattening is deterministic.
	assert.Equal(t, "outcome success count 3", structured.SearchText())
}

func TestContentJSONRoundTrip(t *testing.T) {
	var c Content
	require.NoError(t, json.Unmarshal([]byte(`"plain text"`), &c))
	assert.Equal(t, "plain text", c.Text)
	assert.False(t, c.IsStructured())

	require.NoError(t, json.Unmarshal([]byte(`{"key": "value"}`), &c))
	require.True(t, c.IsStructured())
	assert.Equal(t, "value", c.Structured["key"])
	assert.Empty(t, c.Text)

	out, err := json.Marshal(Content{Text: "hello"})
	require.NoError(t, err)
	assert.JSONEq(t, `"hello"`, string(out))

	out, err = json.Marshal(Content{Structured: map[string]any{"a": 1}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1}`, string(out))

	err = json.Unmarshal([]byte(`[1, 2]`), &c)
	assert.Error(t, err)
}

func TestFragmentThemeLabel(t *testing.T) {
	assert.Equal(t, "climax", Fragment{NarrativeRole: "climax", Type: FragmentEpisodic}.themeLabel())
	assert.Equal(t, "experience", Fragment{Type: FragmentEpisodic}.themeLabel())
	assert.Equal(t, "knowledge", Fragment{Type: FragmentSemantic}.themeLabel())
	assert.Equal(t, "emotional", Fragment{Type: FragmentEmotional}.themeLabel())
	assert.Equal(t, "general", Fragment{Type: "procedural"}.themeLabel())
}

func TestFragmentRichContent(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, Fragment{Content: Content{Text: "short"}}.hasRichContent(cfg))
	long := Fragment{Content: Content{Text: "a recollection long enough to pass the richness bar set in config"}}
	assert.True(t, long.hasRichContent(cfg))

	two := Fragment{Content: Content{Structured: map[string]any{"a": 1, "b": 2}}}
	assert.False(t, two.hasRichContent(cfg))
	three := Fragment{Content: Content{Structured: map[string]any{"a": 1, "b": 2, "c": 3}}}
	assert.True(t, three.hasRichContent(cfg))
}
