package matrix

import "fmt"

// Weights holds every tunable delta and multiplier in the matrix.
// The defaults are the calibrated production values; tests and
// experiments may supply their own set, but weight changes are an
// out-of-band reviewed process, never an online adjustment.
type Weights struct {
	AssociationBonus float64 // history tag overlap, fires once

	OppositionPenalty float64 // multiplier for state-contradicting actions

	PurposeExact   float64 // active goal matches declared alignment
	PurposePartial float64 // same goal family, different goal

	SituationValid   float64 // screen in declared valid set
	SituationInvalid float64 // screen outside declared valid set

	IndicatorBonus float64 // syntax cue agrees with intent type

	ProprietyMatch    float64 // register agrees, multiplier
	ProprietyMismatch float64 // register disagrees, multiplier
	ProprietyBlock    float64 // slang intent in business register, multiplier

	PlaceMatch    float64 // location matches requirement
	PlaceMismatch float64 // location contradicts requirement
	PlaceUnknown  float64 // requirement declared, location unknown

	TimeMatch    float64 // bucket inside declared window
	TimeMismatch float64 // bucket outside declared window

	IndividualExact   float64 // profile matches vocabulary level
	IndividualPartial float64 // related profile, or neutral vocabulary

	IntonationBonus float64 // tone agrees with intent type

	DistortionBase float64 // distortion multiplier is Base + fidelity
}

// DefaultWeights returns the production weight set.
func DefaultWeights() Weights {
	return Weights{
		AssociationBonus:  0.15,
		OppositionPenalty: 0.1,
		PurposeExact:      0.20,
		PurposePartial:    0.10,
		SituationValid:    0.15,
		SituationInvalid:  -0.05,
		IndicatorBonus:    0.08,
		ProprietyMatch:    1.1,
		ProprietyMismatch: 0.5,
		ProprietyBlock:    0.0,
		PlaceMatch:        0.18,
		PlaceMismatch:     -0.15,
		PlaceUnknown:      -0.05,
		TimeMatch:         0.15,
		TimeMismatch:      -0.10,
		IndividualExact:   0.12,
		IndividualPartial: 0.06,
		IntonationBonus:   0.08,
		DistortionBase:    0.5,
	}
}

// Validate rejects weight sets that cannot produce sane scores.
func (w Weights) Validate() error {
	if w.OppositionPenalty < 0 || w.OppositionPenalty > 1 {
		return fmt.Errorf("opposition penalty must be in [0,1], got %.3f", w.OppositionPenalty)
	}
	if w.ProprietyBlock != 0 {
		return fmt.Errorf("propriety block multiplier must be 0, got %.3f", w.ProprietyBlock)
	}
	if w.ProprietyMismatch < 0 || w.ProprietyMismatch > 1 {
		return fmt.Errorf("propriety mismatch multiplier must be in [0,1], got %.3f", w.ProprietyMismatch)
	}
	if w.ProprietyMatch < 1 {
		return fmt.Errorf("propriety match multiplier must be >= 1, got %.3f", w.ProprietyMatch)
	}
	if w.DistortionBase < 0 || w.DistortionBase > 1 {
		return fmt.Errorf("distortion base must be in [0,1], got %.3f", w.DistortionBase)
	}
	for name, v := range map[string]float64{
		"association":        w.AssociationBonus,
		"purpose_exact":      w.PurposeExact,
		"purpose_partial":    w.PurposePartial,
		"situation_valid":    w.SituationValid,
		"indicator":          w.IndicatorBonus,
		"place_match":        w.PlaceMatch,
		"time_match":         w.TimeMatch,
		"individual_exact":   w.IndividualExact,
		"individual_partial": w.IndividualPartial,
		"intonation":         w.IntonationBonus,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s bonus must be in [0,1], got %.3f", name, v)
		}
	}
	return nil
}
