// Package metrics provides the Prometheus and InfluxDB implementations of
// the core metrics sinks.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/battdegr/core/metrics"
)

// PromSink records run, fit and sweep events in Prometheus metrics.
type PromSink struct {
	runs      *prometheus.CounterVec
	retention *prometheus.HistogramVec
	fits      *prometheus.CounterVec
	fitIters  prometheus.Histogram
	sweeps    *prometheus.CounterVec
}

// NewPromSink registers the toolkit metrics on the default registerer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer. A
// nil registerer defaults to the global one.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "degradation_runs_total",
		Help: "Total number of degradation simulation runs",
	}, []string{"model_kind", "chemistry", "eol_reached", "aborted"})
	retention := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "degradation_final_retention",
		Help:    "Final capacity retention per run",
		Buckets: prometheus.LinearBuckets(0.5, 0.05, 11),
	}, []string{"model_kind", "chemistry"})
	fits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calibration_fits_total",
		Help: "Total number of calibration fits",
	}, []string{"model_kind", "chemistry", "converged", "ill_conditioned"})
	fitIters := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "calibration_fit_iterations",
		Help:    "Solver iterations per calibration fit",
		Buckets: prometheus.ExponentialBuckets(1, 2, 11),
	})
	sweeps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stress_sweeps_total",
		Help: "Total number of stress sweeps",
	}, []string{"axis"})

	collectors := map[string]prometheus.Collector{
		"runs": runs, "retention": retention, "fits": fits, "fit_iters": fitIters, "sweeps": sweeps,
	}
	for name, c := range collectors {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			switch name {
			case "runs":
				runs = are.ExistingCollector.(*prometheus.CounterVec)
			case "retention":
				retention = are.ExistingCollector.(*prometheus.HistogramVec)
			case "fits":
				fits = are.ExistingCollector.(*prometheus.CounterVec)
			case "fit_iters":
				fitIters = are.ExistingCollector.(prometheus.Histogram)
			case "sweeps":
				sweeps = are.ExistingCollector.(*prometheus.CounterVec)
			}
		}
	}
	return &PromSink{runs: runs, retention: retention, fits: fits, fitIters: fitIters, sweeps: sweeps}, nil
}

// RecordSimulation counts the run and observes its final retention.
func (s *PromSink) RecordSimulation(ev coremetrics.SimulationEvent) error {
	s.runs.WithLabelValues(
		ev.ModelKind, ev.Chemistry,
		strconv.FormatBool(ev.EOLReached), strconv.FormatBool(ev.Aborted),
	).Inc()
	if !ev.Aborted {
		s.retention.WithLabelValues(ev.ModelKind, ev.Chemistry).Observe(ev.FinalRetention)
	}
	return nil
}

// RecordFit counts the fit and observes its iteration count.
func (s *PromSink) RecordFit(ev coremetrics.FitEvent) error {
	s.fits.WithLabelValues(
		ev.ModelKind, ev.Chemistry,
		strconv.FormatBool(ev.Converged), strconv.FormatBool(ev.IllConditioned),
	).Inc()
	s.fitIters.Observe(float64(ev.Iterations))
	return nil
}

// RecordSweep counts the sweep per axis.
func (s *PromSink) RecordSweep(ev coremetrics.SweepEvent) error {
	s.sweeps.WithLabelValues(ev.Axis).Inc()
	return nil
}
