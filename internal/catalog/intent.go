// Package catalog defines the intent registry loaded at startup.
// Intents are immutable after load; the pipeline only reads them.
package catalog

// IntentType classifies the grammatical role an intent expects.
type IntentType string

const (
	TypeQuery     IntentType = "query"
	TypeCommand   IntentType = "command"
	TypeStatement IntentType = "statement"
)

// ID identifies an intent. The zero value is invalid. The reserved
// fallback result is a distinguished variant of this type, not a
// catalog entry, so it can never be persisted back into the catalog.
type ID struct {
	name     string
	fallback bool
}

// NewID returns the identifier for a named catalog intent.
func NewID(name string) ID {
	return ID{name: name}
}

// Fallback returns the reserved fallback identifier.
func Fallback() ID {
	return ID{fallback: true}
}

// IsFallback reports whether this is the reserved fallback identifier.
func (id ID) IsFallback() bool {
	return id.fallback
}

// IsZero reports whether the identifier is unset.
func (id ID) IsZero() bool {
	return !id.fallback && id.name == ""
}

// String renders the identifier for logs and transport. The fallback
// variant renders as "fallback_intent"; Parse refuses that name so the
// sentinel cannot round-trip into a catalog entry.
func (id ID) String() string {
	if id.fallback {
		return "fallback_intent"
	}
	return id.name
}

// Requirements declares the context an intent expects. All fields are
// optional; a zero field means the intent has no opinion on that signal.
type Requirements struct {
	Action           string     `yaml:"action"`            // device action, e.g. "turn_on"
	Tags             []string   `yaml:"tags"`              // association tags matched against history
	GoalAlignment    string     `yaml:"goal_alignment"`    // goal id or "family:<name>"
	ValidScreens     []string   `yaml:"valid_screens"`     // restricted screen set, empty = unrestricted
	Formality        string     `yaml:"formality"`         // casual/formal/neutral
	ContainsSlang    bool       `yaml:"contains_slang"`    // slang-flavored canonical phrasing
	RequiredLocation string     `yaml:"required_location"` // location tag, empty = anywhere
	StrictLocation   bool       `yaml:"strict_location"`   // mismatch excludes instead of penalizing
	ConflictFatal    bool       `yaml:"conflict_fatal"`    // device-state contradiction excludes
	TimeWindow       []string   `yaml:"time_window"`       // allowed time buckets, empty = anytime
	VocabularyLevel  string     `yaml:"vocabulary_level"`  // simple/advanced/neutral
	Audience         []string   `yaml:"audience"`          // allowed profile tags, empty = everyone
	Type             IntentType `yaml:"type"`              // query/command/statement
}

// Intent is one entry of the catalog.
type Intent struct {
	ID       ID
	Meaning  string   // canonical meaning text
	Examples []string // example utterances, embedded at startup
	Req      Requirements
}

// EmbedTexts returns the texts that receive vectors in the semantic
// index: the canonical meaning followed by the examples, in order.
func (in Intent) EmbedTexts() []string {
	texts := make([]string, 0, len(in.Examples)+1)
	if in.Meaning != "" {
		texts = append(texts, in.Meaning)
	}
	texts = append(texts, in.Examples...)
	return texts
}
