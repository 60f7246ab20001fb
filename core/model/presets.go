package model

// Coefficient names shared by the aging models and the calibrator. Presets
// populate all of them; model constructors check the subset they need.
const (
	// Semi-empirical superposition model.
	CoefACal    = "a_cal"    // calendar fade prefactor, percent/day^z
	CoefZCal    = "z_cal"    // calendar time exponent
	CoefEaCal   = "ea_cal"   // calendar activation energy, eV
	CoefBCyc    = "b_cyc"    // cycle fade prefactor, percent/cycle^beta
	CoefBetaCyc = "beta_cyc" // cycle count exponent
	CoefEaCyc   = "ea_cyc"   // cycle activation energy, eV
	CoefWCal    = "w_cal"    // calendar weight
	CoefWCyc    = "w_cyc"    // cycle weight
	CoefWInt    = "w_int"    // interaction weight
	CoefRFade   = "r_fade"   // relative resistance growth per unit capacity fade

	// Stress factors.
	CoefSoCBeta  = "soc_beta"  // exponential SoC stress slope
	CoefSoCAlpha = "soc_alpha" // quadratic SoC stress curvature
	CoefSoCRef   = "soc_ref"   // reference SoC
	CoefDoDExp   = "dod_exp"   // DoD power-law exponent
	CoefCRateQ   = "crate_q"   // C-rate stress slope above 1C

	// Mechanistic model.
	CoefSEIInitialNm = "sei_initial_nm" // pristine SEI film thickness, nm
	CoefKSEI         = "k_sei"          // SEI growth constant, nm/sqrt(day)
	CoefEaSEI        = "ea_sei"         // SEI activation energy, eV
	CoefSEILLIPerNm  = "sei_lli_per_nm" // lithium inventory consumed per nm of SEI
	CoefKLAM         = "k_lam"          // LAM power-law prefactor, fraction/cycle^alpha
	CoefAlphaLAM     = "alpha_lam"      // LAM cycle exponent
	CoefEaLAM        = "ea_lam"         // LAM activation energy, eV
	CoefIRef         = "i_ref"          // plating onset C-rate at reference temperature
	CoefEaCT         = "ea_ct"          // charge-transfer activation energy, eV
	CoefKPlating     = "k_plating"      // plating increment per cycle per (excess C)^2
	CoefPlatingPen   = "plating_pen"    // rate multiplier while plating is active
	CoefWLLI         = "w_lli"          // capacity-loss weight of lithium inventory loss
	CoefWLAM         = "w_lam"          // capacity-loss weight of active-material loss
	CoefRSEIPerNm    = "r_sei_per_nm"   // relative resistance growth per nm of SEI
	CoefRLAM         = "r_lam"          // LAM contact-resistance prefactor
	CoefGammaLAM     = "gamma_lam"      // LAM contact-resistance exponent
)

// Bound presets shared across chemistries.
var (
	boundEa       = Bound{Min: 0, Max: 2}     // activation energies, eV
	boundExponent = Bound{Min: 0.01, Max: 5}  // power-law exponents
	boundWeight   = Bound{Min: 0, Max: 1}     // superposition weights
	boundRate     = Bound{Min: 0, Max: 10}    // dimensionless rate prefactors
	boundSmall    = Bound{Min: 0, Max: 0.1}   // per-unit loss coefficients
	boundSoC      = Bound{Min: 0, Max: 1}     // SoC reference
	boundSlope    = Bound{Min: -5, Max: 5}    // signed stress slopes
	boundThick    = Bound{Min: 0.1, Max: 100} // film thickness, nm
	boundPenalty  = Bound{Min: 1, Max: 20}    // plating penalty multiplier
	boundCRate    = Bound{Min: 0.1, Max: 10}  // plating onset C-rate
)

// PresetParameters returns the built-in coefficient set for a chemistry. The
// returned Parameters carry every coefficient both aging models recognise.
func PresetParameters(ch Chemistry) (Parameters, error) {
	coeffs := map[string]Coefficient{
		// Cycle-dominated fade with a weakly thermal cycling path and a
		// strongly thermal calendar path; the split reproduces the observed
		// fade ratios of roughly 1.3x at 40C and 5x at 55C against 25C.
		CoefACal:    {Value: 0.0132, Bound: boundRate},
		CoefZCal:    {Value: 0.5, Bound: boundExponent},
		CoefEaCal:   {Value: 1.66, Bound: boundEa},
		CoefBCyc:    {Value: 0.12, Bound: boundRate},
		CoefBetaCyc: {Value: 0.65, Bound: boundExponent},
		CoefEaCyc:   {Value: 0.06, Bound: boundEa},
		CoefWCal:    {Value: 0.2, Bound: boundWeight},
		CoefWCyc:    {Value: 0.8, Bound: boundWeight},
		CoefWInt:    {Value: 0, Bound: boundWeight},
		CoefRFade:   {Value: 1.5, Bound: boundRate},

		CoefSoCBeta:  {Value: 0.5, Bound: boundSlope},
		CoefSoCAlpha: {Value: 1.0, Bound: boundSlope},
		CoefSoCRef:   {Value: 0.5, Bound: boundSoC},
		CoefDoDExp:   {Value: 1.1, Bound: boundExponent},
		CoefCRateQ:   {Value: 0.3, Bound: boundRate},

		CoefSEIInitialNm: {Value: 5, Bound: boundThick},
		CoefKSEI:         {Value: 1.2, Bound: boundRate},
		CoefEaSEI:        {Value: 0.55, Bound: boundEa},
		CoefSEILLIPerNm:  {Value: 0.001, Bound: boundSmall},
		CoefKLAM:         {Value: 1e-4, Bound: boundSmall},
		CoefAlphaLAM:     {Value: 0.8, Bound: boundExponent},
		CoefEaLAM:        {Value: 0.2, Bound: boundEa},
		CoefIRef:         {Value: 2.0, Bound: boundCRate},
		CoefEaCT:         {Value: 0.45, Bound: boundEa},
		CoefKPlating:     {Value: 1e-3, Bound: boundSmall},
		CoefPlatingPen:   {Value: 2.0, Bound: boundPenalty},
		CoefWLLI:         {Value: 0.6, Bound: boundWeight},
		CoefWLAM:         {Value: 0.4, Bound: boundWeight},
		CoefRSEIPerNm:    {Value: 0.002, Bound: boundSmall},
		CoefRLAM:         {Value: 0.5, Bound: boundRate},
		CoefGammaLAM:     {Value: 1.0, Bound: boundExponent},
	}

	switch ch {
	case ChemistryGeneric:
		// defaults above
	case ChemistryLFP:
		// Long calendar life, flat voltage curve; strongly calendar-weighted
		// empirical fit.
		override(coeffs, map[string]float64{
			CoefACal: 0.08, CoefZCal: 0.6, CoefEaCal: 0.65,
			CoefBCyc: 5e-5, CoefBetaCyc: 0.6, CoefEaCyc: 0.25,
			CoefWCal: 0.5, CoefWCyc: 0.4, CoefWInt: 0.1,
			CoefSoCBeta: 0.3, CoefKSEI: 0.9, CoefKLAM: 6e-5,
			CoefIRef: 1.5, CoefDoDExp: 0.9,
		})
	case ChemistryNMC:
		override(coeffs, map[string]float64{
			CoefACal: 0.11, CoefZCal: 0.55, CoefEaCal: 0.55,
			CoefBCyc: 9e-5, CoefBetaCyc: 0.7, CoefEaCyc: 0.3,
			CoefWCal: 0.45, CoefWCyc: 0.45, CoefWInt: 0.1,
			CoefSoCBeta: 0.8, CoefKSEI: 1.4, CoefKLAM: 1.6e-4,
			CoefIRef: 2.5, CoefDoDExp: 1.3,
		})
	case ChemistryNCA:
		override(coeffs, map[string]float64{
			CoefACal: 0.13, CoefZCal: 0.55, CoefEaCal: 0.5,
			CoefBCyc: 1.2e-4, CoefBetaCyc: 0.7, CoefEaCyc: 0.3,
			CoefWCal: 0.4, CoefWCyc: 0.5, CoefWInt: 0.1,
			CoefSoCBeta: 1.0, CoefKSEI: 1.6, CoefKLAM: 2e-4,
			CoefIRef: 2.5, CoefDoDExp: 1.4,
		})
	default:
		return Parameters{}, &InvalidParameterError{Name: "chemistry", Value: float64(ch), Reason: "unknown chemistry tag"}
	}

	return NewParameters(ch, coeffs)
}

func override(coeffs map[string]Coefficient, values map[string]float64) {
	for name, v := range values {
		c := coeffs[name]
		c.Value = v
		coeffs[name] = c
	}
}
