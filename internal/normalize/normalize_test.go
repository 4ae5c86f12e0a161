package normalize

import (
	"testing"

	"intentd/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestRuleNormalizer_CleanTextUntouched(t *testing.T) {
	n := NewRuleNormalizer()

	clean, fidelity := n.Normalize("turn on the lights")
	assert.Equal(t, "turn on the lights", clean)
	assert.Equal(t, 1.0, fidelity)
}

func TestRuleNormalizer_Slang(t *testing.T) {
	n := NewRuleNormalizer()

	clean, fidelity := n.Normalize("gonna turn it off")
	assert.Equal(t, "going to turn it off", clean)
	assert.InDelta(t, 0.5, fidelity, 1e-9) // 1 fix over 4 words
}

func TestRuleNormalizer_PhoneticFolding(t *testing.T) {
	n := NewRuleNormalizer()

	clean, _ := n.Normalize("turn off the lite in the living room")
	assert.Equal(t, "turn off the light in the living room", clean)
}

func TestRuleNormalizer_RepetitionCollapse(t *testing.T) {
	n := NewRuleNormalizer()

	clean, fidelity := n.Normalize("heyyyy turn on the light")
	assert.Equal(t, "hey turn on the light", clean)
	assert.InDelta(t, 0.6, fidelity, 1e-9) // 1 fix over 5 words
}

func TestRuleNormalizer_PunctuationSurvivesLookup(t *testing.T) {
	n := NewRuleNormalizer()

	clean, _ := n.Normalize("lights off pls!")
	assert.Equal(t, "lights off please!", clean)
}

func TestRuleNormalizer_HeavyDistortionFloorsAtZero(t *testing.T) {
	n := NewRuleNormalizer()

	// Every token needs a fix: fidelity bottoms out instead of going
	// negative.
	_, fidelity := n.Normalize("lemme c ur nite lite")
	assert.Equal(t, 0.0, fidelity)
}

func TestRuleNormalizer_EmptyInput(t *testing.T) {
	n := NewRuleNormalizer()

	clean, fidelity := n.Normalize("   ")
	assert.Equal(t, "   ", clean)
	assert.Equal(t, 1.0, fidelity)
}

func TestPassthrough(t *testing.T) {
	clean, fidelity := Passthrough{}.Normalize("gonna go")
	assert.Equal(t, "gonna go", clean)
	assert.Equal(t, 1.0, fidelity)
}

func TestDetectEmphasis(t *testing.T) {
	t.Run("calm text", func(t *testing.T) {
		e := DetectEmphasis("turn on the light")
		assert.Equal(t, 0.0, e.Intensity)
		assert.Empty(t, e.Cues)
	})

	t.Run("repetition stretch", func(t *testing.T) {
		e := DetectEmphasis("nooooo stop")
		assert.InDelta(t, 1.0/3.0, e.Intensity, 1e-9)
		assert.Contains(t, e.Cues, "repetition")
	})

	t.Run("caps lock", func(t *testing.T) {
		e := DetectEmphasis("STOP THE MUSIC")
		assert.Contains(t, e.Cues, "caps")
	})

	t.Run("stacked punctuation", func(t *testing.T) {
		e := DetectEmphasis("stop!!")
		assert.Contains(t, e.Cues, "punctuation")
	})

	t.Run("all cues stack", func(t *testing.T) {
		e := DetectEmphasis("STOOOOP!!!")
		assert.Equal(t, 1.0, e.Intensity)
		assert.Len(t, e.Cues, 3)
	})
}

func TestInferIntonation(t *testing.T) {
	assert.Equal(t, types.ToneRising, InferIntonation("is the light on?"))
	assert.Equal(t, types.ToneFalling, InferIntonation("TURN IT OFF!!"))
	assert.Equal(t, types.ToneNone, InferIntonation("turn off the light"))
}
