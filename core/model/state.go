package model

import "math"

// DegradationState is the evolving condition of a cell. A state is owned by a
// single simulator run; callers receive copies. Retention only decreases and
// the damage fractions only increase; there is no recovery mechanism.
type DegradationState struct {
	CapacityRetention float64 `json:"capacity_retention"` // fraction of initial capacity, in [0,1]
	ResistanceGrowth  float64 `json:"resistance_growth"`  // relative growth, 0 = pristine
	SEIThicknessNm    float64 `json:"sei_thickness_nm"`   // nanometres, >= initial film thickness
	LAMFraction       float64 `json:"lam_fraction"`       // loss of active material, in [0,1]
	PlatedLithium     float64 `json:"plated_lithium"`     // irreversibly plated lithium fraction
	EquivalentAgingT  float64 `json:"equivalent_aging_t"` // equivalent aging time at reference stress, days
	EquivalentCycles  float64 `json:"equivalent_cycles"`  // cumulative (fractional) cycle count
	PlatingActive     bool    `json:"plating_active"`     // accelerated-aging regime latch
}

// NewDegradationState returns a pristine state with the given initial SEI
// film thickness.
func NewDegradationState(seiInitialNm float64) DegradationState {
	return DegradationState{CapacityRetention: 1, SEIThicknessNm: seiInitialNm}
}

// Finite reports whether all numeric fields are finite.
func (s DegradationState) Finite() bool {
	for _, v := range []float64{
		s.CapacityRetention, s.ResistanceGrowth, s.SEIThicknessNm,
		s.LAMFraction, s.PlatedLithium, s.EquivalentAgingT, s.EquivalentCycles,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// DegradedFrom reports whether s is a valid successor of prev: capacity must
// not recover and the damage measures must not shrink.
func (s DegradationState) DegradedFrom(prev DegradationState) bool {
	return s.CapacityRetention <= prev.CapacityRetention &&
		s.ResistanceGrowth >= prev.ResistanceGrowth &&
		s.SEIThicknessNm >= prev.SEIThicknessNm &&
		s.LAMFraction >= prev.LAMFraction &&
		s.PlatedLithium >= prev.PlatedLithium &&
		s.EquivalentAgingT >= prev.EquivalentAgingT
}
