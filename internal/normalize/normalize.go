// Package normalize cleans slang-heavy, phonetically distorted input
// before embedding. It reports a fidelity score in [0,1] describing how
// much of the original text survived untouched; heavily rewritten input
// scores low and the distortion factor discounts it downstream.
package normalize

import (
	"strings"

	"intentd/internal/logging"
)

// Normalizer turns raw user text into its formal form. Implementations
// must never fail a request: on any internal problem the contract is to
// return the input unchanged with fidelity 1.0.
type Normalizer interface {
	Normalize(text string) (clean string, fidelity float64)
}

// slangToFormal maps informal tokens to their canonical phrasing.
var slangToFormal = map[string]string{
	"gonna":  "going to",
	"wanna":  "want to",
	"gotta":  "have to",
	"lemme":  "let me",
	"gimme":  "give me",
	"kinda":  "kind of",
	"sorta":  "sort of",
	"dunno":  "do not know",
	"ain't":  "is not",
	"aint":   "is not",
	"y'all":  "you all",
	"yall":   "you all",
	"u":      "you",
	"ur":     "your",
	"r":      "are",
	"pls":    "please",
	"plz":    "please",
	"thx":    "thanks",
	"cuz":    "because",
	"coz":    "because",
	"bout":   "about",
	"outta":  "out of",
	"lotta":  "lot of",
	"hafta":  "have to",
	"whatcha": "what are you",
	"imma":   "i am going to",
}

// phoneticClusters groups spellings that collapse to one canonical
// form, e.g. texting-style phonetic shortcuts.
var phoneticClusters = map[string][]string{
	"night":   {"nite", "nyt"},
	"light":   {"lite", "lyt"},
	"right":   {"rite", "ryt"},
	"please":  {"pleez", "pleeze"},
	"though":  {"tho"},
	"through": {"thru"},
	"you":     {"yu", "yuh"},
	"see":     {"c"},
	"okay":    {"ok", "okk", "kk"},
	"what":    {"wat", "wut"},
	"want":    {"wnt"},
	"great":   {"gr8"},
	"later":   {"l8r"},
	"before":  {"b4"},
	"to":      {"2"},
	"for":     {"4"},
}

// collapseRepetition collapses three or more repeats of one character
// down to a single occurrence. Go's RE2 regexp has no backreferences,
// so the equivalent of replacing `(.)\1{2,}` with `$1` is written out
// by hand.
func collapseRepetition(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(runes); {
		j := i
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		if j-i >= 3 {
			b.WriteRune(runes[i])
		} else {
			for k := i; k < j; k++ {
				b.WriteRune(runes[k])
			}
		}
		i = j
	}
	return b.String()
}

// RuleNormalizer applies the slang map, phonetic folding, repetition
// collapse and case normalization, counting transformations as it goes.
type RuleNormalizer struct {
	phoneticReverse map[string]string
}

// NewRuleNormalizer builds the normalizer, precomputing the reverse
// phonetic lookup.
func NewRuleNormalizer() *RuleNormalizer {
	reverse := make(map[string]string)
	for canonical, variants := range phoneticClusters {
		for _, v := range variants {
			reverse[v] = canonical
		}
	}
	return &RuleNormalizer{phoneticReverse: reverse}
}

// Normalize rewrites text into its formal form. Fidelity is
// 1 - min(1, transformations/(words*0.5)): a couple of fixes in a long
// sentence barely registers, while rewriting most short-message tokens
// drives fidelity toward zero.
func (n *RuleNormalizer) Normalize(text string) (string, float64) {
	if strings.TrimSpace(text) == "" {
		return text, 1.0
	}

	words := strings.Fields(text)
	transformations := 0
	out := make([]string, 0, len(words))

	for _, w := range words {
		lower := strings.ToLower(w)
		if lower != w {
			transformations++
		}

		// Collapse character repetition ("heyyyy" -> "hey")
		collapsed := collapseRepetition(lower)
		if collapsed != lower {
			transformations++
			lower = collapsed
		}

		// Strip trailing punctuation for lookup, re-applied after
		trimmed := strings.TrimRight(lower, "!?.,")
		suffix := lower[len(trimmed):]

		if formal, ok := slangToFormal[trimmed]; ok {
			transformations++
			out = append(out, formal+suffix)
			continue
		}
		if canonical, ok := n.phoneticReverse[trimmed]; ok {
			transformations++
			out = append(out, canonical+suffix)
			continue
		}
		out = append(out, trimmed+suffix)
	}

	distortion := float64(transformations) / (float64(len(words)) * 0.5)
	if distortion > 1.0 {
		distortion = 1.0
	}
	fidelity := 1.0 - distortion

	clean := strings.Join(out, " ")
	if transformations > 0 {
		logging.NormalizeDebug("Normalized %q -> %q (%d transformations, fidelity=%.2f)",
			text, clean, transformations, fidelity)
	}
	return clean, fidelity
}

// Passthrough returns input unchanged with fidelity 1.0. Used when
// normalization is disabled or the real normalizer is unavailable.
type Passthrough struct{}

func (Passthrough) Normalize(text string) (string, float64) {
	return text, 1.0
}
