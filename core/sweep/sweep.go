// Package sweep repeats degradation simulations over stress grids
// (temperature, depth of discharge, C-rate). Grid points are independent and
// run in parallel; individual failures are carried per point so a batch
// continues past them.
package sweep

import (
	"runtime"
	"sync"

	"github.com/kilianp07/battdegr/core/aging"
	"github.com/kilianp07/battdegr/core/model"
	"github.com/kilianp07/battdegr/core/sim"
)

// Axis identifies the swept stress variable.
type Axis int

const (
	AxisTemperature Axis = iota // grid values in degrees Celsius
	AxisDoD                     // grid values as fractions in [0,1]
	AxisCRate                   // grid values as C-rates
)

// String returns the axis tag used in exports and metrics.
func (a Axis) String() string {
	switch a {
	case AxisTemperature:
		return "temperature"
	case AxisDoD:
		return "dod"
	case AxisCRate:
		return "c_rate"
	default:
		return "unknown"
	}
}

// Request describes the fixed part of a sweep: the operating point, the
// horizon and the sampling density.
type Request struct {
	Base         model.EnvironmentalState
	HorizonDays  float64
	CyclesPerDay float64
	Samples      int
	EOLThreshold float64
}

// Point is the outcome at one grid value. Err is set when that simulation
// failed; the rest of the grid is unaffected.
type Point struct {
	Value       float64
	Result      sim.Result
	FadePercent float64
	Err         error
}

// Run sweeps the axis over the grid values, one independent simulation per
// value, fanned out over a bounded worker pool. The returned slice is
// ordered like the grid.
func Run(m aging.Model, axis Axis, grid []float64, req Request) []Point {
	points := make([]Point, len(grid))
	workers := runtime.GOMAXPROCS(0)
	if workers > len(grid) {
		workers = len(grid)
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, v := range grid {
		wg.Add(1)
		go func(i int, v float64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			points[i] = runPoint(m, axis, v, req)
		}(i, v)
	}
	wg.Wait()
	return points
}

func runPoint(m aging.Model, axis Axis, v float64, req Request) Point {
	env := req.Base
	switch axis {
	case AxisTemperature:
		env.TemperatureK = model.CelsiusToKelvin(v)
	case AxisDoD:
		env.DepthOfDischarge = v
	case AxisCRate:
		env.CRate = v
	}
	p := Point{Value: v}
	if err := env.Validate(); err != nil {
		p.Err = err
		return p
	}
	tr := model.ConstantTrajectory(env, req.HorizonDays, req.CyclesPerDay, req.Samples)
	res, err := sim.Simulate(m, tr, req.EOLThreshold)
	if err != nil {
		p.Err = err
		return p
	}
	p.Result = res
	if n := len(res.States); n > 0 {
		p.FadePercent = (1 - res.States[n-1].CapacityRetention) * 100
	}
	return p
}

// Temperatures sweeps operating temperature in degrees Celsius.
func Temperatures(m aging.Model, tempsC []float64, req Request) []Point {
	return Run(m, AxisTemperature, tempsC, req)
}

// DoDs sweeps depth of discharge.
func DoDs(m aging.Model, dods []float64, req Request) []Point {
	return Run(m, AxisDoD, dods, req)
}

// CRates sweeps the charge/discharge rate.
func CRates(m aging.Model, rates []float64, req Request) []Point {
	return Run(m, AxisCRate, rates, req)
}
