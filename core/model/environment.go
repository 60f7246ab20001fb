package model

import "fmt"

// EnvironmentalState is a single sample of the operating conditions seen by a
// cell. Temperatures are absolute (Kelvin); SoC and DoD are fractions.
type EnvironmentalState struct {
	TemperatureK     float64 `json:"temperature_k"`
	StateOfCharge    float64 `json:"state_of_charge"`
	DepthOfDischarge float64 `json:"depth_of_discharge"`
	CRate            float64 `json:"c_rate"`
}

// CelsiusToKelvin converts a temperature in degrees Celsius to Kelvin.
func CelsiusToKelvin(c float64) float64 { return c + 273.15 }

// Validate checks that every field is physically meaningful.
func (e EnvironmentalState) Validate() error {
	if e.TemperatureK <= 0 {
		return &InvalidParameterError{Name: "temperature", Value: e.TemperatureK, Reason: "must be positive Kelvin"}
	}
	if e.StateOfCharge < 0 || e.StateOfCharge > 1 {
		return &InvalidParameterError{Name: "state_of_charge", Value: e.StateOfCharge, Reason: "must be in [0,1]"}
	}
	if e.DepthOfDischarge < 0 || e.DepthOfDischarge > 1 {
		return &InvalidParameterError{Name: "depth_of_discharge", Value: e.DepthOfDischarge, Reason: "must be in [0,1]"}
	}
	if e.CRate < 0 {
		return &InvalidParameterError{Name: "c_rate", Value: e.CRate, Reason: "must be non-negative"}
	}
	return nil
}

// TrajectoryPoint couples elapsed time and cycle count with the conditions
// observed at that point. Cycle counts may be fractional.
type TrajectoryPoint struct {
	TimeDays float64
	Cycles   float64
	Env      EnvironmentalState
}

// Trajectory is an ordered sequence of samples. Time and cycle axes must be
// non-decreasing; irregular step sizes are allowed.
type Trajectory []TrajectoryPoint

// Validate checks ordering and every environmental sample.
func (tr Trajectory) Validate() error {
	for i, p := range tr {
		if err := p.Env.Validate(); err != nil {
			return fmt.Errorf("trajectory point %d: %w", i, err)
		}
		if p.TimeDays < 0 || p.Cycles < 0 {
			return fmt.Errorf("trajectory point %d: negative time or cycle count", i)
		}
		if i > 0 {
			prev := tr[i-1]
			if p.TimeDays < prev.TimeDays {
				return fmt.Errorf("trajectory point %d: time decreases (%g < %g)", i, p.TimeDays, prev.TimeDays)
			}
			if p.Cycles < prev.Cycles {
				return fmt.Errorf("trajectory point %d: cycle count decreases (%g < %g)", i, p.Cycles, prev.Cycles)
			}
		}
	}
	return nil
}

// ConstantTrajectory builds a trajectory holding env fixed over horizonDays
// with the given number of samples and cycles accumulated per day.
func ConstantTrajectory(env EnvironmentalState, horizonDays, cyclesPerDay float64, samples int) Trajectory {
	if samples < 2 {
		samples = 2
	}
	tr := make(Trajectory, samples)
	step := horizonDays / float64(samples-1)
	for i := range tr {
		t := float64(i) * step
		tr[i] = TrajectoryPoint{TimeDays: t, Cycles: t * cyclesPerDay, Env: env}
	}
	return tr
}
