// Package lifetime locates the end-of-life crossing of a degradation
// trajectory, either precomputed or simulated on demand.
package lifetime

import (
	"fmt"
	"sort"

	"github.com/kilianp07/battdegr/core/aging"
	"github.com/kilianp07/battdegr/core/model"
	"github.com/kilianp07/battdegr/core/sim"
)

// Prediction is the outcome of a lifetime estimate. Crossed=false is the
// EOLNotReached case: informational, not an error.
type Prediction struct {
	Crossed        bool
	TimeDays       float64
	Cycles         float64
	FinalRetention float64
}

// FromTrajectory locates the first threshold crossing in a precomputed
// degradation trajectory. Retention is non-increasing by the simulator
// invariant, so a binary search brackets the crossing; the exact point is
// interpolated linearly between the bracketing samples.
func FromTrajectory(states []model.DegradationState, points model.Trajectory, threshold float64) (Prediction, error) {
	if threshold <= 0 || threshold >= 1 {
		return Prediction{}, &model.InvalidParameterError{Name: "eol_threshold", Value: threshold, Reason: "must be in (0,1)"}
	}
	if len(states) == 0 || len(states) != len(points) {
		return Prediction{}, fmt.Errorf("degradation trajectory has %d states for %d points", len(states), len(points))
	}

	last := states[len(states)-1].CapacityRetention
	if last > threshold {
		return Prediction{FinalRetention: last}, nil
	}

	// First index at or below the threshold.
	i := sort.Search(len(states), func(k int) bool {
		return states[k].CapacityRetention <= threshold
	})
	p := Prediction{Crossed: true, FinalRetention: last}
	if i == 0 {
		p.TimeDays = points[0].TimeDays
		p.Cycles = points[0].Cycles
		return p, nil
	}

	r0, r1 := states[i-1].CapacityRetention, states[i].CapacityRetention
	frac := 0.0
	if r0 > r1 {
		frac = (r0 - threshold) / (r0 - r1)
	}
	p.TimeDays = points[i-1].TimeDays + frac*(points[i].TimeDays-points[i-1].TimeDays)
	p.Cycles = points[i-1].Cycles + frac*(points[i].Cycles-points[i-1].Cycles)
	return p, nil
}

// Predict simulates the model over tr and locates the crossing.
func Predict(m aging.Model, tr model.Trajectory, threshold float64) (Prediction, error) {
	res, err := sim.Simulate(m, tr, threshold)
	if err != nil {
		return Prediction{}, err
	}
	return FromTrajectory(res.States, res.Points, threshold)
}

// EstimateConstant synthesises a constant-condition trajectory (daily
// samples over maxYears, cyclesPerDay cycles accumulated per day) and
// predicts the lifetime under it.
func EstimateConstant(m aging.Model, env model.EnvironmentalState, cyclesPerDay, threshold float64, maxYears int) (Prediction, error) {
	if maxYears <= 0 {
		return Prediction{}, &model.InvalidParameterError{Name: "max_years", Value: float64(maxYears), Reason: "must be positive"}
	}
	if cyclesPerDay < 0 {
		return Prediction{}, &model.InvalidParameterError{Name: "cycles_per_day", Value: cyclesPerDay, Reason: "must be non-negative"}
	}
	days := float64(maxYears) * 365
	tr := model.ConstantTrajectory(env, days, cyclesPerDay, maxYears*365+1)
	return Predict(m, tr, threshold)
}

// Scenario is a named constant operating point for lifetime comparison.
type Scenario struct {
	Name         string
	Env          model.EnvironmentalState
	CyclesPerDay float64
}

// ScenarioResult pairs a scenario with its lifetime prediction.
type ScenarioResult struct {
	Scenario   Scenario
	Prediction Prediction
}

// CompareScenarios estimates the lifetime under each scenario with the same
// model, threshold and horizon.
func CompareScenarios(m aging.Model, scenarios []Scenario, threshold float64, maxYears int) ([]ScenarioResult, error) {
	out := make([]ScenarioResult, len(scenarios))
	for i, sc := range scenarios {
		p, err := EstimateConstant(m, sc.Env, sc.CyclesPerDay, threshold, maxYears)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		out[i] = ScenarioResult{Scenario: sc, Prediction: p}
	}
	return out, nil
}
