// Package metrics defines the observability interfaces for simulation runs,
// calibration fits and stress sweeps. Sinks like the Prometheus and InfluxDB
// implementations in infra/metrics record these events and can be combined
// with NewMultiSink; the factory helpers build the configured sink set.
package metrics

import (
	"time"

	"github.com/kilianp07/battdegr/core/model"
)

// SimulationEvent summarises one completed (or aborted) simulator run.
type SimulationEvent struct {
	RunID          string
	ModelKind      string
	Chemistry      string
	Steps          int
	EOLReached     bool
	FinalRetention float64
	Aborted        bool
	Duration       time.Duration
	Time           time.Time
}

// MetricsSink records simulation runs. Additional event kinds are optional
// capabilities detected by interface assertion; sinks implement what they
// can.
type MetricsSink interface {
	RecordSimulation(ev SimulationEvent) error
}

// StateSample is one degradation state along a run, for time-series sinks.
type StateSample struct {
	RunID     string
	Chemistry string
	TimeDays  float64
	Cycles    float64
	State     model.DegradationState
	Time      time.Time
}

// StateRecorder is implemented by sinks able to store full trajectories.
type StateRecorder interface {
	RecordStateSamples(samples []StateSample) error
}

// FitEvent summarises one calibration fit.
type FitEvent struct {
	FitID          string
	ModelKind      string
	Chemistry      string
	Converged      bool
	IllConditioned bool
	Iterations     int
	RMSE           float64
	MAPE           float64
	R2             float64
	ResidualNorm   float64
	Duration       time.Duration
	Time           time.Time
}

// FitRecorder records calibration fits.
type FitRecorder interface {
	RecordFit(ev FitEvent) error
}

// SweepEvent summarises one stress sweep.
type SweepEvent struct {
	Axis     string
	Points   int
	Failures int
	Duration time.Duration
	Time     time.Time
}

// SweepRecorder records stress sweeps.
type SweepRecorder interface {
	RecordSweep(ev SweepEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordSimulation(SimulationEvent) error { return nil }
func (NopSink) RecordStateSamples([]StateSample) error { return nil }
func (NopSink) RecordFit(FitEvent) error               { return nil }
func (NopSink) RecordSweep(SweepEvent) error           { return nil }
