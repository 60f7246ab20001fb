package aging

import (
	"math"

	"github.com/kilianp07/battdegr/core/model"
	"github.com/kilianp07/battdegr/core/stress"
)

// Mechanistic evolves physical degradation state step by step: diffusion
// limited SEI growth, power-law active material loss and lithium plating
// above a temperature-dependent current limit.
//
// The closed forms delta(t) = delta0 + k*sqrt(t) and k_lam*N^alpha hold only
// under constant stress, so the model never re-evaluates them at cumulative
// time with the current step's stress factor. SEI growth instead tracks an
// equivalent aging time tau at reference stress, advanced by s^2*dt for a
// step with combined rate scale s, so that delta = delta0 + k_sei*sqrt(tau)
// reproduces delta0 + k_sei*s*sqrt(t) exactly when conditions are constant.
// LAM integrates the power-law rate exactly over each step's cycle interval
// at the step's stress, which keeps the increment finite at N=0 for
// alpha < 1.
type Mechanistic struct {
	params model.Parameters
	form   stress.SoCForm

	seiInitial, kSEI, eaSEI float64
	lliPerNm                float64
	kLAM, alphaLAM, eaLAM   float64
	iRef, eaCT              float64
	kPlating, platingPen    float64
	wLLI, wLAM              float64
	rSEIPerNm, rLAM         float64
	gammaLAM                float64
	socCoeff, socRef        float64
	dodExp, crateQ          float64
}

var mechanisticCoeffs = []string{
	model.CoefSEIInitialNm, model.CoefKSEI, model.CoefEaSEI, model.CoefSEILLIPerNm,
	model.CoefKLAM, model.CoefAlphaLAM, model.CoefEaLAM,
	model.CoefIRef, model.CoefEaCT, model.CoefKPlating, model.CoefPlatingPen,
	model.CoefWLLI, model.CoefWLAM,
	model.CoefRSEIPerNm, model.CoefRLAM, model.CoefGammaLAM,
	model.CoefSoCRef, model.CoefDoDExp, model.CoefCRateQ,
}

// NewMechanistic validates the coefficient set and returns the model.
func NewMechanistic(params model.Parameters, form stress.SoCForm) (*Mechanistic, error) {
	if err := params.Has(mechanisticCoeffs...); err != nil {
		return nil, err
	}
	coeffName := model.CoefSoCBeta
	if form == stress.SoCQuadratic {
		coeffName = model.CoefSoCAlpha
	}
	if err := params.Has(coeffName); err != nil {
		return nil, err
	}
	m := &Mechanistic{
		params:     params,
		form:       form,
		seiInitial: params.MustValue(model.CoefSEIInitialNm),
		kSEI:       params.MustValue(model.CoefKSEI),
		eaSEI:      params.MustValue(model.CoefEaSEI),
		lliPerNm:   params.MustValue(model.CoefSEILLIPerNm),
		kLAM:       params.MustValue(model.CoefKLAM),
		alphaLAM:   params.MustValue(model.CoefAlphaLAM),
		eaLAM:      params.MustValue(model.CoefEaLAM),
		iRef:       params.MustValue(model.CoefIRef),
		eaCT:       params.MustValue(model.CoefEaCT),
		kPlating:   params.MustValue(model.CoefKPlating),
		platingPen: params.MustValue(model.CoefPlatingPen),
		wLLI:       params.MustValue(model.CoefWLLI),
		wLAM:       params.MustValue(model.CoefWLAM),
		rSEIPerNm:  params.MustValue(model.CoefRSEIPerNm),
		rLAM:       params.MustValue(model.CoefRLAM),
		gammaLAM:   params.MustValue(model.CoefGammaLAM),
		socCoeff:   socCoeff(params, form),
		socRef:     params.MustValue(model.CoefSoCRef),
		dodExp:     params.MustValue(model.CoefDoDExp),
		crateQ:     params.MustValue(model.CoefCRateQ),
	}
	if m.wLLI+m.wLAM <= 0 {
		return nil, &model.InvalidParameterError{
			Name: "w_lli+w_lam", Value: m.wLLI + m.wLAM, Reason: "capacity loss weights must be positive",
		}
	}
	return m, nil
}

// InitialState returns a pristine state with the preset SEI film thickness.
func (m *Mechanistic) InitialState() model.DegradationState {
	return model.NewDegradationState(m.seiInitial)
}

// Params returns the coefficients the model was built with.
func (m *Mechanistic) Params() model.Parameters { return m.params }

// PlatingLimit returns the charge C-rate above which lithium plates at the
// given temperature.
func (m *Mechanistic) PlatingLimit(tempK float64) (float64, error) {
	f, err := stress.Arrhenius(tempK, m.eaCT, stress.TRefK)
	if err != nil {
		return 0, err
	}
	return m.iRef * f, nil
}

// Step advances the physical state by dtDays and dCycles under env.
func (m *Mechanistic) Step(prev model.DegradationState, env model.EnvironmentalState, dtDays, dCycles float64) (model.DegradationState, error) {
	if dtDays < 0 || dCycles < 0 {
		return prev, &model.InvalidParameterError{Name: "step", Value: dtDays, Reason: "time and cycle increments must be non-negative"}
	}
	fT, err := stress.Arrhenius(env.TemperatureK, m.eaSEI, stress.TRefK)
	if err != nil {
		return prev, err
	}
	fSoC, err := stress.SoC(env.StateOfCharge, m.form, m.socCoeff, m.socRef)
	if err != nil {
		return prev, err
	}
	fLAMT, err := stress.Arrhenius(env.TemperatureK, m.eaLAM, stress.TRefK)
	if err != nil {
		return prev, err
	}
	fDoD, err := stress.DoD(env.DepthOfDischarge, m.dodExp)
	if err != nil {
		return prev, err
	}
	fC, err := stress.CRate(env.CRate, m.crateQ)
	if err != nil {
		return prev, err
	}

	// Rates accelerate while the plating regime from an earlier step is
	// still active.
	pen := 1.0
	if prev.PlatingActive {
		pen = m.platingPen
	}

	// SEI: advance equivalent aging time at reference stress, then grow the
	// film along the reference sqrt law.
	sSEI := fT * fSoC
	tau := prev.EquivalentAgingT + pen*sSEI*sSEI*dtDays
	dSEI := m.kSEI * (math.Sqrt(tau) - math.Sqrt(prev.EquivalentAgingT))

	// LAM: integrate d(k*N^alpha)/dN over the step's cycle interval at the
	// step's stress.
	n0 := prev.EquivalentCycles
	n1 := n0 + dCycles
	sLAM := fDoD * fC * fLAMT
	dLAM := pen * m.kLAM * sLAM * (math.Pow(n1, m.alphaLAM) - math.Pow(n0, m.alphaLAM))

	// Plating: charge current above the temperature-dependent limit plates
	// lithium quadratically in the excess.
	iLim, err := m.PlatingLimit(env.TemperatureK)
	if err != nil {
		return prev, err
	}
	excess := env.CRate - iLim
	var dPlated float64
	if excess > 0 && dCycles > 0 {
		dPlated = m.kPlating * excess * excess * dCycles
	}

	next := prev
	next.EquivalentAgingT = tau
	next.EquivalentCycles = n1
	next.SEIThicknessNm = prev.SEIThicknessNm + dSEI
	next.LAMFraction = prev.LAMFraction + dLAM
	if next.LAMFraction > 1 {
		next.LAMFraction = 1
	}
	next.PlatedLithium = prev.PlatedLithium + dPlated
	next.PlatingActive = excess > 0

	lli := m.lliPerNm*(next.SEIThicknessNm-m.seiInitial) + next.PlatedLithium
	loss := m.wLLI*lli + m.wLAM*next.LAMFraction
	next.CapacityRetention = 1 - loss
	if next.CapacityRetention < 0 {
		next.CapacityRetention = 0
	}
	next.ResistanceGrowth = m.rSEIPerNm*(next.SEIThicknessNm-m.seiInitial) +
		m.rLAM*math.Pow(next.LAMFraction, m.gammaLAM)

	if !next.Finite() {
		return prev, &model.NumericalInstabilityError{Reason: "non-finite degradation state", LastValid: prev}
	}
	return next, nil
}
