package aging

import (
	"math"

	"github.com/kilianp07/battdegr/core/model"
	"github.com/kilianp07/battdegr/core/stress"
)

// SemiEmpirical superposes empirical calendar and cycle fade terms with an
// interaction term:
//
//	fade = w_cal*Q_cal + w_cyc*Q_cyc + w_int*Q_cal*Q_cyc
//
// Fade is expressed in percent; retention = 1 - fade/100. The closed forms
// are evaluated at cumulative time and cycle count under the current step's
// stress factors, a documented simplification of this model family. To keep
// retention monotone under time-varying conditions, each step adds the
// difference of the closed form between the previous and current cumulative
// axis values, both taken at the current step's stress.
type SemiEmpirical struct {
	params model.Parameters
	form   stress.SoCForm

	aCal, zCal, eaCal    float64
	bCyc, betaCyc, eaCyc float64
	wCal, wCyc, wInt     float64
	socCoeff, socRef     float64
	dodExp, crateQ       float64
	rFade                float64
	seiInitial           float64
}

var semiEmpiricalCoeffs = []string{
	model.CoefACal, model.CoefZCal, model.CoefEaCal,
	model.CoefBCyc, model.CoefBetaCyc, model.CoefEaCyc,
	model.CoefWCal, model.CoefWCyc, model.CoefWInt,
	model.CoefSoCRef, model.CoefDoDExp, model.CoefCRateQ,
	model.CoefRFade, model.CoefSEIInitialNm,
}

// NewSemiEmpirical validates the coefficient set and the weight sum. The
// weights must sum to exactly 1 within 1e-9.
func NewSemiEmpirical(params model.Parameters, form stress.SoCForm) (*SemiEmpirical, error) {
	if err := params.Has(semiEmpiricalCoeffs...); err != nil {
		return nil, err
	}
	coeffName := model.CoefSoCBeta
	if form == stress.SoCQuadratic {
		coeffName = model.CoefSoCAlpha
	}
	if err := params.Has(coeffName); err != nil {
		return nil, err
	}
	m := &SemiEmpirical{
		params:     params,
		form:       form,
		aCal:       params.MustValue(model.CoefACal),
		zCal:       params.MustValue(model.CoefZCal),
		eaCal:      params.MustValue(model.CoefEaCal),
		bCyc:       params.MustValue(model.CoefBCyc),
		betaCyc:    params.MustValue(model.CoefBetaCyc),
		eaCyc:      params.MustValue(model.CoefEaCyc),
		wCal:       params.MustValue(model.CoefWCal),
		wCyc:       params.MustValue(model.CoefWCyc),
		wInt:       params.MustValue(model.CoefWInt),
		socCoeff:   socCoeff(params, form),
		socRef:     params.MustValue(model.CoefSoCRef),
		dodExp:     params.MustValue(model.CoefDoDExp),
		crateQ:     params.MustValue(model.CoefCRateQ),
		rFade:      params.MustValue(model.CoefRFade),
		seiInitial: params.MustValue(model.CoefSEIInitialNm),
	}
	wSum := m.wCal + m.wCyc + m.wInt
	if math.Abs(wSum-1) > 1e-9 {
		return nil, &model.InvalidParameterError{
			Name: "w_cal+w_cyc+w_int", Value: wSum, Reason: "superposition weights must sum to 1",
		}
	}
	return m, nil
}

// InitialState returns the pristine state.
func (m *SemiEmpirical) InitialState() model.DegradationState {
	return model.NewDegradationState(m.seiInitial)
}

// Params returns the coefficients the model was built with.
func (m *SemiEmpirical) Params() model.Parameters { return m.params }

// FadePercent evaluates the closed-form total fade at cumulative time t
// (days) and cycle count n under the given conditions.
func (m *SemiEmpirical) FadePercent(tDays, n float64, env model.EnvironmentalState) (float64, error) {
	if tDays < 0 || n < 0 {
		return 0, &model.InvalidParameterError{Name: "elapsed", Value: tDays, Reason: "time and cycles must be non-negative"}
	}
	fCal, err := stress.Arrhenius(env.TemperatureK, m.eaCal, stress.TRefK)
	if err != nil {
		return 0, err
	}
	fSoC, err := stress.SoC(env.StateOfCharge, m.form, m.socCoeff, m.socRef)
	if err != nil {
		return 0, err
	}
	fCyc, err := stress.Arrhenius(env.TemperatureK, m.eaCyc, stress.TRefK)
	if err != nil {
		return 0, err
	}
	fDoD, err := stress.DoD(env.DepthOfDischarge, m.dodExp)
	if err != nil {
		return 0, err
	}
	fC, err := stress.CRate(env.CRate, m.crateQ)
	if err != nil {
		return 0, err
	}

	qCal := m.aCal * math.Pow(tDays, m.zCal) * fCal * fSoC
	qCyc := m.bCyc * math.Pow(n, m.betaCyc) * fDoD * fCyc * fC
	return m.wCal*qCal + m.wCyc*qCyc + m.wInt*qCal*qCyc, nil
}

// Step advances the state. The cumulative axes live in EquivalentAgingT and
// EquivalentCycles; for this model equivalent time is plain elapsed time.
func (m *SemiEmpirical) Step(prev model.DegradationState, env model.EnvironmentalState, dtDays, dCycles float64) (model.DegradationState, error) {
	if dtDays < 0 || dCycles < 0 {
		return prev, &model.InvalidParameterError{Name: "step", Value: dtDays, Reason: "time and cycle increments must be non-negative"}
	}
	t0, n0 := prev.EquivalentAgingT, prev.EquivalentCycles
	fadeBefore, err := m.FadePercent(t0, n0, env)
	if err != nil {
		return prev, err
	}
	fadeAfter, err := m.FadePercent(t0+dtDays, n0+dCycles, env)
	if err != nil {
		return prev, err
	}
	dFade := fadeAfter - fadeBefore
	if dFade < 0 {
		dFade = 0
	}

	next := prev
	next.EquivalentAgingT = t0 + dtDays
	next.EquivalentCycles = n0 + dCycles
	next.CapacityRetention = prev.CapacityRetention - dFade/100
	if next.CapacityRetention < 0 {
		next.CapacityRetention = 0
	}
	next.ResistanceGrowth = prev.ResistanceGrowth + m.rFade*dFade/100
	if !next.Finite() {
		return prev, &model.NumericalInstabilityError{Reason: "non-finite fade increment", LastValid: prev}
	}
	return next, nil
}
