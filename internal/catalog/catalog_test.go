package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID(t *testing.T) {
	t.Run("named id", func(t *testing.T) {
		id := NewID("turn_on_light")
		assert.Equal(t, "turn_on_light", id.String())
		assert.False(t, id.IsFallback())
		assert.False(t, id.IsZero())
	})

	t.Run("fallback sentinel", func(t *testing.T) {
		fb := Fallback()
		assert.True(t, fb.IsFallback())
		assert.False(t, fb.IsZero())
		assert.Equal(t, "fallback_intent", fb.String())
	})

	t.Run("zero id", func(t *testing.T) {
		var id ID
		assert.True(t, id.IsZero())
		assert.False(t, id.IsFallback())
	})
}

func TestNew(t *testing.T) {
	t.Run("preserves order", func(t *testing.T) {
		c, err := New([]Intent{
			{ID: NewID("a")},
			{ID: NewID("b")},
			{ID: NewID("c")},
		})
		require.NoError(t, err)
		assert.Equal(t, 3, c.Len())
		assert.Equal(t, 0, c.Order(NewID("a")))
		assert.Equal(t, 2, c.Order(NewID("c")))
		assert.Equal(t, 3, c.Order(NewID("unknown"))) // unknown sorts last
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		_, err := New([]Intent{{ID: NewID("a")}, {ID: NewID("a")}})
		assert.ErrorContains(t, err, "duplicate")
	})

	t.Run("rejects empty id", func(t *testing.T) {
		_, err := New([]Intent{{}})
		assert.Error(t, err)
	})

	t.Run("rejects fallback sentinel as entry", func(t *testing.T) {
		_, err := New([]Intent{{ID: Fallback()}})
		assert.Error(t, err)
	})
}

func TestCatalog_GetAndParse(t *testing.T) {
	c, err := New([]Intent{
		{ID: NewID("turn_on_light"), Meaning: "turn the light on"},
		{ID: NewID("play_music")},
	})
	require.NoError(t, err)

	t.Run("get known", func(t *testing.T) {
		in, ok := c.Get(NewID("turn_on_light"))
		require.True(t, ok)
		assert.Equal(t, "turn the light on", in.Meaning)
	})

	t.Run("get unknown", func(t *testing.T) {
		_, ok := c.Get(NewID("missing"))
		assert.False(t, ok)
	})

	t.Run("get fallback", func(t *testing.T) {
		_, ok := c.Get(Fallback())
		assert.False(t, ok)
	})

	t.Run("parse known", func(t *testing.T) {
		id, err := c.Parse("play_music")
		require.NoError(t, err)
		assert.Equal(t, NewID("play_music"), id)
	})

	t.Run("parse unknown", func(t *testing.T) {
		_, err := c.Parse("no_such_intent")
		assert.ErrorContains(t, err, "unknown intent")
	})

	t.Run("parse refuses fallback name", func(t *testing.T) {
		_, err := c.Parse("fallback_intent")
		assert.Error(t, err)
	})

	t.Run("parse refuses empty name", func(t *testing.T) {
		_, err := c.Parse("")
		assert.Error(t, err)
	})
}

func TestIntent_EmbedTexts(t *testing.T) {
	in := Intent{
		ID:       NewID("x"),
		Meaning:  "turn the light on",
		Examples: []string{"lights on", "switch on the lamp"},
	}
	assert.Equal(t, []string{"turn the light on", "lights on", "switch on the lamp"}, in.EmbedTexts())

	t.Run("no meaning", func(t *testing.T) {
		in := Intent{ID: NewID("x"), Examples: []string{"hi"}}
		assert.Equal(t, []string{"hi"}, in.EmbedTexts())
	})
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := `intents:
  - id: turn_on_light
    meaning: turn the light on
    examples:
      - lights on
      - switch on the lamp
    context:
      action: turn_on
      type: command
      tags: [light, lamp]
      conflict_fatal: true
  - id: ask_weather
    meaning: ask about the weather
    context:
      type: query
      time_window: [morning]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cat, err := Load(FileLoader{Path: path})
	require.NoError(t, err)
	require.Equal(t, 2, cat.Len())

	in, ok := cat.Get(NewID("turn_on_light"))
	require.True(t, ok)
	assert.Equal(t, "turn_on", in.Req.Action)
	assert.Equal(t, TypeCommand, in.Req.Type)
	assert.Equal(t, []string{"light", "lamp"}, in.Req.Tags)
	assert.True(t, in.Req.ConflictFatal)
	assert.Len(t, in.Examples, 2)

	weather, ok := cat.Get(NewID("ask_weather"))
	require.True(t, ok)
	assert.Equal(t, TypeQuery, weather.Req.Type)
	assert.Equal(t, []string{"morning"}, weather.Req.TimeWindow)

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(FileLoader{Path: filepath.Join(dir, "nope.yaml")})
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("intents: {not a list"), 0644))
		_, err := Load(FileLoader{Path: bad})
		assert.Error(t, err)
	})
}
