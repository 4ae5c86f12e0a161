package normalize

import (
	"regexp"
	"strings"

	"intentd/internal/types"
)

// Emphasis describes how emphatically a message was typed. Cues from
// the raw text substitute for prosody when no audio signal exists.
type Emphasis struct {
	Intensity float64  // 0 calm .. 1 shouting
	Cues      []string // which signals fired
}

var multiPunctRe = regexp.MustCompile(`[!?]{2,}`)

// hasRepetitionStretch reports whether any rune appears three or more
// times in a row. Go's RE2 regexp has no backreferences, so the
// equivalent of `(.)\1{2,}` is written out by hand.
func hasRepetitionStretch(text string) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
			if run >= 3 {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

// DetectEmphasis inspects raw text for repetition stretch, caps lock
// and stacked punctuation. Each cue adds a third of full intensity.
func DetectEmphasis(text string) Emphasis {
	var e Emphasis

	if hasRepetitionStretch(text) {
		e.Intensity += 1.0 / 3.0
		e.Cues = append(e.Cues, "repetition")
	}

	letters, uppers := 0, 0
	for _, r := range text {
		if r >= 'a' && r <= 'z' {
			letters++
		}
		if r >= 'A' && r <= 'Z' {
			letters++
			uppers++
		}
	}
	if letters >= 3 && float64(uppers)/float64(letters) > 0.6 {
		e.Intensity += 1.0 / 3.0
		e.Cues = append(e.Cues, "caps")
	}

	if multiPunctRe.MatchString(text) {
		e.Intensity += 1.0 / 3.0
		e.Cues = append(e.Cues, "punctuation")
	}

	if e.Intensity > 1.0 {
		e.Intensity = 1.0
	}
	return e
}

// InferIntonation derives a text-based intonation tag when the caller
// supplied no audio signal. Question marks read as rising tone and
// emphatic text as falling. Plain text stays untagged rather than
// defaulting to flat, which would skew scoring toward command intents.
func InferIntonation(text string) types.IntonationTag {
	trimmed := strings.TrimSpace(text)
	if strings.HasSuffix(trimmed, "?") {
		return types.ToneRising
	}
	if DetectEmphasis(trimmed).Intensity > 0.5 {
		return types.ToneFalling
	}
	return types.ToneNone
}
