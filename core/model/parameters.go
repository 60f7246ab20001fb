package model

import (
	"fmt"
	"sort"
)

// Chemistry identifies a cell chemistry with its own preset coefficients.
type Chemistry int

const (
	ChemistryGeneric Chemistry = iota
	ChemistryLFP
	ChemistryNMC
	ChemistryNCA
)

// String returns a human-readable chemistry tag.
func (c Chemistry) String() string {
	switch c {
	case ChemistryLFP:
		return "LFP"
	case ChemistryNMC:
		return "NMC"
	case ChemistryNCA:
		return "NCA"
	case ChemistryGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// ParseChemistry maps a tag to its Chemistry value.
func ParseChemistry(s string) (Chemistry, error) {
	switch s {
	case "LFP", "lfp":
		return ChemistryLFP, nil
	case "NMC", "nmc":
		return ChemistryNMC, nil
	case "NCA", "nca":
		return ChemistryNCA, nil
	case "generic", "":
		return ChemistryGeneric, nil
	default:
		return ChemistryGeneric, fmt.Errorf("unknown chemistry %q", s)
	}
}

// Bound is the closed validity interval for one coefficient.
type Bound struct {
	Min float64
	Max float64
}

// Contains reports whether v lies within the bound.
func (b Bound) Contains(v float64) bool { return v >= b.Min && v <= b.Max }

// Coefficient couples a value with its validity bound.
type Coefficient struct {
	Value float64
	Bound Bound
}

// Parameters is an immutable record of named model coefficients keyed by a
// chemistry tag. Instances are created from presets or calibration results
// and never mutated; With produces a new instance.
type Parameters struct {
	chemistry Chemistry
	coeffs    map[string]Coefficient
}

// NewParameters validates every coefficient against its bound and returns an
// immutable record. The input map is copied.
func NewParameters(chemistry Chemistry, coeffs map[string]Coefficient) (Parameters, error) {
	cp := make(map[string]Coefficient, len(coeffs))
	for name, c := range coeffs {
		if c.Bound.Min > c.Bound.Max {
			return Parameters{}, &InvalidParameterError{Name: name, Value: c.Value, Reason: "bound min exceeds max"}
		}
		if !c.Bound.Contains(c.Value) {
			return Parameters{}, &InvalidParameterError{
				Name: name, Value: c.Value,
				Reason: fmt.Sprintf("outside bound [%g, %g]", c.Bound.Min, c.Bound.Max),
			}
		}
		cp[name] = c
	}
	return Parameters{chemistry: chemistry, coeffs: cp}, nil
}

// Chemistry returns the chemistry tag the coefficients belong to.
func (p Parameters) Chemistry() Chemistry { return p.chemistry }

// Value returns the named coefficient value. ok is false if absent.
func (p Parameters) Value(name string) (v float64, ok bool) {
	c, ok := p.coeffs[name]
	return c.Value, ok
}

// MustValue returns the named coefficient and panics if it is missing. Model
// constructors validate presence up front, so lookups after construction use
// this form.
func (p Parameters) MustValue(name string) float64 {
	c, ok := p.coeffs[name]
	if !ok {
		panic(fmt.Sprintf("model: coefficient %s missing", name))
	}
	return c.Value
}

// BoundOf returns the validity bound of the named coefficient.
func (p Parameters) BoundOf(name string) (Bound, bool) {
	c, ok := p.coeffs[name]
	return c.Bound, ok
}

// Names returns the coefficient names in sorted order.
func (p Parameters) Names() []string {
	names := make([]string, 0, len(p.coeffs))
	for n := range p.coeffs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has reports whether every given coefficient is present.
func (p Parameters) Has(names ...string) error {
	for _, n := range names {
		if _, ok := p.coeffs[n]; !ok {
			return &InvalidParameterError{Name: n, Reason: "coefficient missing"}
		}
	}
	return nil
}

// With returns a new Parameters with the given values replaced. Each new
// value is validated against the existing bound; unknown names are rejected.
func (p Parameters) With(values map[string]float64) (Parameters, error) {
	cp := make(map[string]Coefficient, len(p.coeffs))
	for name, c := range p.coeffs {
		cp[name] = c
	}
	for name, v := range values {
		c, ok := cp[name]
		if !ok {
			return Parameters{}, &InvalidParameterError{Name: name, Value: v, Reason: "unknown coefficient"}
		}
		if !c.Bound.Contains(v) {
			return Parameters{}, &InvalidParameterError{
				Name: name, Value: v,
				Reason: fmt.Sprintf("outside bound [%g, %g]", c.Bound.Min, c.Bound.Max),
			}
		}
		c.Value = v
		cp[name] = c
	}
	return Parameters{chemistry: p.chemistry, coeffs: cp}, nil
}

// Values returns a copy of all coefficient values keyed by name.
func (p Parameters) Values() map[string]float64 {
	out := make(map[string]float64, len(p.coeffs))
	for name, c := range p.coeffs {
		out[name] = c.Value
	}
	return out
}
