// Package matrix implements the context resolution matrix: twelve
// independent scoring factors applied in a fixed order to a Stage-1
// candidate, plus the hard-exclusion rules that remove a candidate from
// ranking outright. Scoring is a pure function of (intent, context,
// base score); the matrix holds no per-request state.
package matrix

import (
	"strings"

	"intentd/internal/catalog"
	"intentd/internal/logging"
	"intentd/internal/types"
)

// Factor names as they appear in the audit trail, in application order.
const (
	FactorAssociation  = "association"
	FactorOpposition   = "opposition"
	FactorPurpose      = "purpose"
	FactorSituation    = "situation"
	FactorIndicator    = "indicator"
	FactorWordCapacity = "word_capacity"
	FactorPropriety    = "propriety"
	FactorPlace        = "place"
	FactorTime         = "time"
	FactorIndividual   = "individual"
	FactorIntonation   = "intonation"
	FactorDistortion   = "distortion"
)

// historyWindow bounds how much command history association considers.
const historyWindow = 3

// Result is the outcome of scoring one candidate.
type Result struct {
	Adjusted float64                    // final score, clamped to [0,1]
	Factors  []types.FactorContribution // factors that fired, in order
	Excluded bool
	Reason   types.ExclusionReason // set only when Excluded
}

// Matrix scores candidates against a context snapshot.
type Matrix struct {
	weights Weights
}

// New creates a matrix with the given weights.
func New(w Weights) (*Matrix, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Matrix{weights: w}, nil
}

// NewDefault creates a matrix with the production weights.
func NewDefault() *Matrix {
	m, _ := New(DefaultWeights())
	return m
}

// Score applies the hard-exclusion rules and then the twelve factors in
// order, starting from the Stage-1 base score. The final score is
// clamped to [0,1] after all factors, regardless of intermediate
// overflow or underflow.
func (m *Matrix) Score(in catalog.Intent, ctx types.ContextSnapshot, base float64) Result {
	if reason, excluded := m.checkExclusions(in, ctx); excluded {
		logging.MatrixDebug("Candidate %s hard-excluded: %s", in.ID, reason)
		return Result{Excluded: true, Reason: reason}
	}

	score := base
	factors := make([]types.FactorContribution, 0, 12)
	record := func(name string, delta, mult float64) {
		factors = append(factors, types.FactorContribution{Factor: name, Delta: delta, Multiplier: mult})
	}

	// 1. Association: overlap of recent history with intent tags.
	// Fires once per candidate, not per history item.
	if m.historyOverlapsTags(ctx, in.Req.Tags) {
		score += m.weights.AssociationBonus
		record(FactorAssociation, m.weights.AssociationBonus, 1)
	}

	// 2. Opposition: action contradicting device state is crushed but
	// not excluded, unless the intent declares the conflict fatal
	// (handled above as an exclusion).
	if actionContradictsState(in.Req.Action, ctx.SystemState) {
		score *= m.weights.OppositionPenalty
		record(FactorOpposition, 0, m.weights.OppositionPenalty)
	}

	// 3. Purpose: active goal vs declared goal alignment.
	switch goalAlignment(ctx.ActiveGoal, in.Req.GoalAlignment) {
	case alignExact:
		score += m.weights.PurposeExact
		record(FactorPurpose, m.weights.PurposeExact, 1)
	case alignPartial:
		score += m.weights.PurposePartial
		record(FactorPurpose, m.weights.PurposePartial, 1)
	}

	// 4. Situation: only intents declaring a restricted screen set are
	// ever judged on the current screen.
	if len(in.Req.ValidScreens) > 0 && ctx.CurrentScreen != "" {
		if containsFold(in.Req.ValidScreens, ctx.CurrentScreen) {
			score += m.weights.SituationValid
			record(FactorSituation, m.weights.SituationValid, 1)
		} else {
			score += m.weights.SituationInvalid
			record(FactorSituation, m.weights.SituationInvalid, 1)
		}
	}

	// 5. Indicator: syntax cue agreeing with the intent type.
	if cueMatchesType(ctx.SyntaxCue, in.Req.Type) {
		score += m.weights.IndicatorBonus
		record(FactorIndicator, m.weights.IndicatorBonus, 1)
	}

	// 6. Word capacity: the Stage-1 similarity itself, recorded so the
	// audit trail shows the foundation the deltas sit on.
	record(FactorWordCapacity, base, 1)

	// 7. Propriety: the block short-circuits everything else.
	switch proprietyJudgement(in.Req, ctx.SocialMode) {
	case proprietyBlock:
		record(FactorPropriety, 0, m.weights.ProprietyBlock)
		logging.MatrixDebug("Candidate %s propriety-blocked (slang in %s register)", in.ID, ctx.SocialMode)
		return Result{Adjusted: 0, Factors: factors}
	case proprietyMismatch:
		score *= m.weights.ProprietyMismatch
		record(FactorPropriety, 0, m.weights.ProprietyMismatch)
	case proprietyMatch:
		score *= m.weights.ProprietyMatch
		record(FactorPropriety, 0, m.weights.ProprietyMatch)
	}

	// 8. Place: strongest single positive adjustment in the matrix.
	if in.Req.RequiredLocation != "" {
		switch {
		case ctx.Location == "":
			score += m.weights.PlaceUnknown
			record(FactorPlace, m.weights.PlaceUnknown, 1)
		case strings.EqualFold(ctx.Location, in.Req.RequiredLocation):
			score += m.weights.PlaceMatch
			record(FactorPlace, m.weights.PlaceMatch, 1)
		default:
			score += m.weights.PlaceMismatch
			record(FactorPlace, m.weights.PlaceMismatch, 1)
		}
	}

	// 9. Time: no adjustment when the intent declares no window, or
	// when the context carries no bucket to judge against.
	if len(in.Req.TimeWindow) > 0 && ctx.TimeOfDay != "" {
		if containsFold(in.Req.TimeWindow, ctx.TimeOfDay) {
			score += m.weights.TimeMatch
			record(FactorTime, m.weights.TimeMatch, 1)
		} else {
			score += m.weights.TimeMismatch
			record(FactorTime, m.weights.TimeMismatch, 1)
		}
	}

	// 10. Individual: profile vs vocabulary level. Neutral vocabulary
	// always earns the partial credit.
	switch individualMatch(ctx.UserProfile, in.Req.VocabularyLevel) {
	case alignExact:
		score += m.weights.IndividualExact
		record(FactorIndividual, m.weights.IndividualExact, 1)
	case alignPartial:
		score += m.weights.IndividualPartial
		record(FactorIndividual, m.weights.IndividualPartial, 1)
	}

	// 11. Intonation: rising favors queries, flat favors commands.
	if toneMatchesType(ctx.Intonation, in.Req.Type) {
		score += m.weights.IntonationBonus
		record(FactorIntonation, m.weights.IntonationBonus, 1)
	}

	// 12. Distortion: clean input amplifies, garbled input discounts.
	distortion := m.weights.DistortionBase + ctx.Fidelity
	score *= distortion
	record(FactorDistortion, 0, distortion)

	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}

	logging.MatrixDebug("Scored %s: base=%.3f adjusted=%.3f (%d factors fired)",
		in.ID, base, score, len(factors))
	return Result{Adjusted: score, Factors: factors}
}

// checkExclusions applies the hard-exclusion rules. These run before
// any additive factor and remove the candidate from ranking entirely.
func (m *Matrix) checkExclusions(in catalog.Intent, ctx types.ContextSnapshot) (types.ExclusionReason, bool) {
	// (a) strict location mismatch. Unknown location is not a mismatch;
	// the place factor penalizes it instead.
	if in.Req.RequiredLocation != "" && in.Req.StrictLocation &&
		ctx.Location != "" && !strings.EqualFold(ctx.Location, in.Req.RequiredLocation) {
		return types.ExcludedLocationStrict, true
	}

	// (b) conflict-fatal device-state contradiction.
	if in.Req.ConflictFatal && actionContradictsState(in.Req.Action, ctx.SystemState) {
		return types.ExcludedStateConflict, true
	}

	// (c) incompatible audience profile.
	if len(in.Req.Audience) > 0 && ctx.UserProfile != "" && !containsFold(in.Req.Audience, ctx.UserProfile) {
		return types.ExcludedAudience, true
	}

	return "", false
}

// historyOverlapsTags reports whether any recent command mentions any
// intent tag.
func (m *Matrix) historyOverlapsTags(ctx types.ContextSnapshot, tags []string) bool {
	if len(tags) == 0 {
		return false
	}
	for _, cmd := range ctx.RecentHistory(historyWindow) {
		lower := strings.ToLower(cmd)
		for _, tag := range tags {
			if tag != "" && strings.Contains(lower, strings.ToLower(tag)) {
				return true
			}
		}
	}
	return false
}

// stateFor maps a device action to the state it produces. A command
// whose target state already holds contradicts the current state.
var stateFor = map[string]string{
	"turn_on":  "on",
	"turn_off": "off",
	"start":    "running",
	"stop":     "stopped",
	"open":     "open",
	"close":    "closed",
	"play":     "playing",
	"pause":    "paused",
	"lock":     "locked",
	"unlock":   "unlocked",
}

func actionContradictsState(action, state string) bool {
	if action == "" || state == "" {
		return false
	}
	target, ok := stateFor[strings.ToLower(action)]
	if !ok {
		return false
	}
	return strings.EqualFold(target, state)
}

type alignment int

const (
	alignNone alignment = iota
	alignPartial
	alignExact
)

// goalAlignment compares the active goal with the intent's declared
// alignment. Goals are dotted paths; sharing the leading segment is a
// family match. A "family:<name>" value declares the family directly
// without naming a concrete goal.
func goalAlignment(active, declared string) alignment {
	if active == "" || declared == "" {
		return alignNone
	}
	if strings.EqualFold(active, declared) {
		return alignExact
	}
	if strings.EqualFold(goalFamily(active), goalFamily(declared)) {
		return alignPartial
	}
	return alignNone
}

func goalFamily(goal string) string {
	if rest, ok := strings.CutPrefix(goal, "family:"); ok {
		return rest
	}
	if i := strings.IndexByte(goal, '.'); i > 0 {
		return goal[:i]
	}
	return goal
}

func cueMatchesType(cue types.SyntaxCue, t catalog.IntentType) bool {
	switch cue {
	case types.CueQuestion:
		return t == catalog.TypeQuery
	case types.CueCommand, types.CueExclamation:
		return t == catalog.TypeCommand
	default:
		return false
	}
}

func toneMatchesType(tone types.IntonationTag, t catalog.IntentType) bool {
	switch tone {
	case types.ToneRising:
		return t == catalog.TypeQuery
	case types.ToneFlat:
		return t == catalog.TypeCommand
	case types.ToneFalling:
		return t == catalog.TypeStatement
	default:
		return false
	}
}

type proprietyResult int

const (
	proprietyNeutral proprietyResult = iota
	proprietyMatch
	proprietyMismatch
	proprietyBlock
)

// proprietyJudgement compares the social register with the intent's
// declared formality. Slang in a business register is blocked outright.
func proprietyJudgement(req catalog.Requirements, socialMode string) proprietyResult {
	mode := strings.ToLower(socialMode)
	formality := strings.ToLower(req.Formality)

	if req.ContainsSlang && mode == "business" {
		return proprietyBlock
	}
	if mode == "" || formality == "" || formality == "neutral" {
		return proprietyNeutral
	}

	switch {
	case formality == "casual" && mode == "casual":
		return proprietyMatch
	case formality == "formal" && mode == "business":
		return proprietyMatch
	default:
		return proprietyMismatch
	}
}

// vocabularyAffinity relates profile tags to vocabulary levels for the
// partial credit branch of the individual factor.
var vocabularyAffinity = map[string][]string{
	"simple":   {"child", "elderly", "beginner"},
	"advanced": {"expert", "professional", "power_user"},
}

func individualMatch(profile, vocabulary string) alignment {
	vocab := strings.ToLower(vocabulary)
	prof := strings.ToLower(profile)

	if vocab == "neutral" {
		return alignPartial
	}
	if vocab == "" {
		return alignNone
	}
	if prof == "" {
		return alignNone
	}
	if prof == vocab {
		return alignExact
	}
	if containsFold(vocabularyAffinity[vocab], prof) {
		return alignPartial
	}
	return alignNone
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
