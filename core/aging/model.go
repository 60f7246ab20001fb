// Package aging implements the degradation mechanisms. Two model kinds share
// one step contract: the mechanistic model integrates SEI growth, active
// material loss and lithium plating through internal equivalent-time state,
// while the semi-empirical model superposes closed-form calendar and cycle
// fade terms. The simulator drives either through the Model interface.
package aging

import (
	"fmt"

	"github.com/kilianp07/battdegr/core/model"
	"github.com/kilianp07/battdegr/core/stress"
)

// Kind identifies an aging model implementation.
type Kind int

const (
	KindSemiEmpirical Kind = iota
	KindMechanistic
)

// String returns the configuration tag of the kind.
func (k Kind) String() string {
	switch k {
	case KindSemiEmpirical:
		return "semi-empirical"
	case KindMechanistic:
		return "mechanistic"
	default:
		return "unknown"
	}
}

// ParseKind maps a configuration tag to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "semi-empirical", "semiempirical", "":
		return KindSemiEmpirical, nil
	case "mechanistic":
		return KindMechanistic, nil
	default:
		return KindSemiEmpirical, fmt.Errorf("unknown aging model kind %q", s)
	}
}

// Model advances a degradation state one step at a time. Implementations are
// stateless between calls: all evolving quantities live in DegradationState,
// so a single model value can serve concurrent simulations.
type Model interface {
	// Step advances prev by dtDays and dCycles under env and returns the new
	// state. dCycles may be fractional. A step that would produce non-finite
	// state returns a *model.NumericalInstabilityError with prev preserved.
	Step(prev model.DegradationState, env model.EnvironmentalState, dtDays, dCycles float64) (model.DegradationState, error)

	// InitialState returns the pristine state this model evolves from.
	InitialState() model.DegradationState

	// Params returns the immutable coefficients the model was built with.
	Params() model.Parameters
}

// Config is the typed construction configuration shared by both model kinds.
// Every recognised option is enumerated here with its default; validation is
// eager at construction.
type Config struct {
	Kind      string `json:"kind" yaml:"kind"`           // "semi-empirical" or "mechanistic"
	Chemistry string `json:"chemistry" yaml:"chemistry"` // preset tag, default "generic"
	SoCForm   string `json:"soc_form" yaml:"soc_form"`   // "exponential" (default) or "quadratic"
}

// SetDefaults applies the documented defaults.
func (c *Config) SetDefaults() {
	if c.Kind == "" {
		c.Kind = KindSemiEmpirical.String()
	}
	if c.Chemistry == "" {
		c.Chemistry = model.ChemistryGeneric.String()
	}
	if c.SoCForm == "" {
		c.SoCForm = stress.SoCExponential.String()
	}
}

// New constructs a model from the configuration using the chemistry preset
// coefficients.
func New(cfg Config) (Model, error) {
	cfg.SetDefaults()
	ch, err := model.ParseChemistry(cfg.Chemistry)
	if err != nil {
		return nil, err
	}
	params, err := model.PresetParameters(ch)
	if err != nil {
		return nil, err
	}
	return NewFromParams(cfg, params)
}

// NewFromParams constructs a model from explicit coefficients, e.g. a
// calibration result.
func NewFromParams(cfg Config, params model.Parameters) (Model, error) {
	cfg.SetDefaults()
	kind, err := ParseKind(cfg.Kind)
	if err != nil {
		return nil, err
	}
	form, err := stress.ParseSoCForm(cfg.SoCForm)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindMechanistic:
		return NewMechanistic(params, form)
	default:
		return NewSemiEmpirical(params, form)
	}
}

// socCoeff returns the stress coefficient matching the configured SoC form.
func socCoeff(p model.Parameters, form stress.SoCForm) float64 {
	if form == stress.SoCQuadratic {
		return p.MustValue(model.CoefSoCAlpha)
	}
	return p.MustValue(model.CoefSoCBeta)
}
