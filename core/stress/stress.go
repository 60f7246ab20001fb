// Package stress provides the pure stress-factor functions shared by the
// aging models: Arrhenius temperature scaling, SoC stress, DoD stress and
// C-rate stress. Out-of-range inputs are caller contract violations and are
// rejected, never clamped.
package stress

import (
	"math"

	"github.com/kilianp07/battdegr/core/model"
)

// BoltzmannEV is the Boltzmann constant in eV/K.
const BoltzmannEV = 8.617333262e-5

// TRefK is the reference temperature (25 degrees Celsius) at which every
// rate constant is defined.
const TRefK = 298.15

// Arrhenius returns the temperature scaling exp(-Ea/k * (1/T - 1/TRef)).
// It is exactly 1 when tempK == refK.
func Arrhenius(tempK, eaEV, refK float64) (float64, error) {
	if tempK <= 0 || refK <= 0 {
		return 0, &model.InvalidParameterError{Name: "temperature", Value: tempK, Reason: "must be positive Kelvin"}
	}
	if eaEV < 0 {
		return 0, &model.InvalidParameterError{Name: "activation_energy", Value: eaEV, Reason: "must be non-negative"}
	}
	if tempK == refK {
		return 1, nil
	}
	return math.Exp(-eaEV / BoltzmannEV * (1/tempK - 1/refK)), nil
}

// SoCForm selects the functional form of the SoC stress multiplier.
type SoCForm int

const (
	// SoCExponential is exp(beta * (SoC - SoCRef)).
	SoCExponential SoCForm = iota
	// SoCQuadratic is 1 + alpha * (SoC - 0.5)^2.
	SoCQuadratic
)

// String returns the configuration tag of the form.
func (f SoCForm) String() string {
	switch f {
	case SoCExponential:
		return "exponential"
	case SoCQuadratic:
		return "quadratic"
	default:
		return "unknown"
	}
}

// ParseSoCForm maps a configuration tag to a SoCForm.
func ParseSoCForm(s string) (SoCForm, error) {
	switch s {
	case "exponential", "":
		return SoCExponential, nil
	case "quadratic":
		return SoCQuadratic, nil
	default:
		return SoCExponential, &model.InvalidParameterError{Name: "soc_form", Reason: "unknown form " + s}
	}
}

// SoC returns the state-of-charge stress multiplier for the given form.
// coeff is beta for the exponential form and alpha for the quadratic form.
func SoC(soc float64, form SoCForm, coeff, socRef float64) (float64, error) {
	if soc < 0 || soc > 1 {
		return 0, &model.InvalidParameterError{Name: "state_of_charge", Value: soc, Reason: "must be in [0,1]"}
	}
	switch form {
	case SoCExponential:
		return math.Exp(coeff * (soc - socRef)), nil
	case SoCQuadratic:
		return 1 + coeff*(soc-0.5)*(soc-0.5), nil
	default:
		return 0, &model.InvalidParameterError{Name: "soc_form", Value: float64(form), Reason: "unknown form"}
	}
}

// DoD returns the depth-of-discharge stress DoD^p.
func DoD(dod, p float64) (float64, error) {
	if dod < 0 || dod > 1 {
		return 0, &model.InvalidParameterError{Name: "depth_of_discharge", Value: dod, Reason: "must be in [0,1]"}
	}
	if p <= 0 {
		return 0, &model.InvalidParameterError{Name: "dod_exp", Value: p, Reason: "must be positive"}
	}
	return math.Pow(dod, p), nil
}

// CRate returns the current stress 1 + q*max(0, C-1). Rates at or below 1C
// are unpenalised.
func CRate(c, q float64) (float64, error) {
	if c < 0 {
		return 0, &model.InvalidParameterError{Name: "c_rate", Value: c, Reason: "must be non-negative"}
	}
	if q < 0 {
		return 0, &model.InvalidParameterError{Name: "crate_q", Value: q, Reason: "must be non-negative"}
	}
	return 1 + q*math.Max(0, c-1), nil
}
