// Package app wires the configuration, logging, metric sinks and the aging
// model into a ready-to-use service consumed by the CLI commands.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/battdegr/config"
	"github.com/kilianp07/battdegr/core/aging"
	"github.com/kilianp07/battdegr/core/calib"
	"github.com/kilianp07/battdegr/core/lifetime"
	coremetrics "github.com/kilianp07/battdegr/core/metrics"
	"github.com/kilianp07/battdegr/core/model"
	"github.com/kilianp07/battdegr/core/sim"
	"github.com/kilianp07/battdegr/core/sweep"
	"github.com/kilianp07/battdegr/infra/logger"
	_ "github.com/kilianp07/battdegr/infra/metrics" // sink registration
	"github.com/kilianp07/battdegr/ingest"
	"github.com/kilianp07/battdegr/internal/eventbus"
)

// sampleBatch bounds how many state samples are buffered before a flush to
// time-series sinks.
const sampleBatch = 512

// Service holds the configured model and observability plumbing.
type Service struct {
	cfg    *config.Config
	params model.Parameters
	model  aging.Model
	sink   coremetrics.MetricsSink
	bus    *eventbus.Bus[sim.Snapshot]
	log    logger.Logger
	wg     sync.WaitGroup
}

// New creates a Service from the configuration. Presets from
// cfg.PresetsPath, when set, override the built-in chemistry coefficients.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var params model.Parameters
	var err error
	if cfg.PresetsPath != "" {
		params, err = ingest.LoadPresets(cfg.PresetsPath)
		if err != nil {
			return nil, fmt.Errorf("load presets: %w", err)
		}
	} else {
		ch, perr := model.ParseChemistry(cfg.Model.Chemistry)
		if perr != nil {
			return nil, perr
		}
		params, err = model.PresetParameters(ch)
		if err != nil {
			return nil, err
		}
	}

	m, err := aging.NewFromParams(cfg.Model, params)
	if err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	svc := &Service{
		cfg:    cfg,
		params: params,
		model:  m,
		sink:   sink,
		bus:    eventbus.New[sim.Snapshot](),
		log:    logg,
	}
	svc.startRecorder()
	return svc, nil
}

// Model returns the configured aging model.
func (s *Service) Model() aging.Model { return s.model }

// Params returns the coefficient set the model was built with.
func (s *Service) Params() model.Parameters { return s.params }

// startRecorder bridges run snapshots from the bus to sinks able to store
// trajectories. Samples are batched; slow sinks drop events at the bus, not
// here.
func (s *Service) startRecorder() {
	rec, ok := s.sink.(coremetrics.StateRecorder)
	if !ok {
		return
	}
	sub := s.bus.Subscribe()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		batch := make([]coremetrics.StateSample, 0, sampleBatch)
		flush := func() {
			if len(batch) == 0 {
				return
			}
			if err := rec.RecordStateSamples(batch); err != nil {
				s.log.Warnf("record state samples: %v", err)
			}
			batch = batch[:0]
		}
		for snap := range sub {
			batch = append(batch, coremetrics.StateSample{
				RunID:     snap.RunID,
				Chemistry: s.params.Chemistry().String(),
				TimeDays:  snap.Point.TimeDays,
				Cycles:    snap.Point.Cycles,
				State:     snap.State,
				Time:      time.Now(),
			})
			if len(batch) >= sampleBatch {
				flush()
			}
		}
		flush()
	}()
}

// Environment returns the constant operating point from the configuration.
func (s *Service) Environment() model.EnvironmentalState {
	return model.EnvironmentalState{
		TemperatureK:     model.CelsiusToKelvin(s.cfg.Simulation.TemperatureC),
		StateOfCharge:    s.cfg.Simulation.SoC,
		DepthOfDischarge: s.cfg.Simulation.DoD,
		CRate:            s.cfg.Simulation.CRate,
	}
}

// ConstantTrajectory synthesises the configured constant-condition
// trajectory.
func (s *Service) ConstantTrajectory() model.Trajectory {
	simCfg := s.cfg.Simulation
	days := float64(simCfg.HorizonYears) * 365
	samples := simCfg.HorizonYears*simCfg.SamplesPerYear + 1
	return model.ConstantTrajectory(s.Environment(), days, simCfg.CyclesPerDay, samples)
}

// Simulate runs the model over the trajectory and records the run with the
// configured sinks.
func (s *Service) Simulate(tr model.Trajectory) (sim.Result, error) {
	simulator, err := sim.New(s.cfg.Simulation.EOLThreshold)
	if err != nil {
		return sim.Result{}, err
	}
	simulator.Log = s.log
	simulator.Observer = s.bus.Publish

	start := time.Now()
	res, runErr := simulator.Run(s.model, s.model.InitialState(), tr)

	ev := coremetrics.SimulationEvent{
		RunID:      res.RunID,
		ModelKind:  s.cfg.Model.Kind,
		Chemistry:  s.params.Chemistry().String(),
		Steps:      len(res.States),
		EOLReached: res.EOLIndex >= 0,
		Aborted:    runErr != nil,
		Duration:   time.Since(start),
		Time:       time.Now(),
	}
	if n := len(res.States); n > 0 {
		ev.FinalRetention = res.States[n-1].CapacityRetention
	}
	if err := s.sink.RecordSimulation(ev); err != nil {
		s.log.Warnf("record simulation: %v", err)
	}
	return res, runErr
}

// Calibrate fits the configured free coefficients against the datasets and
// records the fit.
func (s *Service) Calibrate(ctx context.Context, datasets []model.CalibrationDataset) (model.FitResult, error) {
	calCfg := s.cfg.Calibration
	factory := func(p model.Parameters) (aging.Model, error) {
		return aging.NewFromParams(s.cfg.Model, p)
	}
	cal := calib.New(factory, s.params, s.log)
	opts := calib.Options{
		FreeParams:    calCfg.FreeParams,
		MultiStart:    calCfg.MultiStart,
		KFold:         calCfg.KFold,
		MaxIterations: calCfg.MaxIterations,
		Tolerance:     calCfg.Tolerance,
		Seed:          calCfg.Seed,
	}

	start := time.Now()
	fit, err := cal.Calibrate(ctx, datasets, opts)
	if err != nil {
		return fit, err
	}
	ev := coremetrics.FitEvent{
		FitID:          fit.FitID,
		ModelKind:      s.cfg.Model.Kind,
		Chemistry:      s.params.Chemistry().String(),
		Converged:      fit.Converged,
		IllConditioned: fit.IllConditioned,
		Iterations:     fit.Iterations,
		RMSE:           fit.RMSE,
		MAPE:           fit.MAPE,
		R2:             fit.R2,
		ResidualNorm:   fit.ResidualNorm,
		Duration:       time.Since(start),
		Time:           time.Now(),
	}
	if rec, ok := s.sink.(coremetrics.FitRecorder); ok {
		if rerr := rec.RecordFit(ev); rerr != nil {
			s.log.Warnf("record fit: %v", rerr)
		}
	}
	return fit, nil
}

// Sweep runs one independent simulation per grid value along the axis and
// records the sweep.
func (s *Service) Sweep(axis sweep.Axis, grid []float64) []sweep.Point {
	simCfg := s.cfg.Simulation
	req := sweep.Request{
		Base:         s.Environment(),
		HorizonDays:  float64(simCfg.HorizonYears) * 365,
		CyclesPerDay: simCfg.CyclesPerDay,
		Samples:      simCfg.HorizonYears*simCfg.SamplesPerYear + 1,
		EOLThreshold: simCfg.EOLThreshold,
	}

	start := time.Now()
	points := sweep.Run(s.model, axis, grid, req)

	failures := 0
	for _, p := range points {
		if p.Err != nil {
			failures++
		}
	}
	ev := coremetrics.SweepEvent{
		Axis:     axis.String(),
		Points:   len(points),
		Failures: failures,
		Duration: time.Since(start),
		Time:     time.Now(),
	}
	if rec, ok := s.sink.(coremetrics.SweepRecorder); ok {
		if err := rec.RecordSweep(ev); err != nil {
			s.log.Warnf("record sweep: %v", err)
		}
	}
	return points
}

// PredictLifetime estimates when the configured operating point crosses the
// end-of-life threshold.
func (s *Service) PredictLifetime() (lifetime.Prediction, error) {
	simCfg := s.cfg.Simulation
	return lifetime.EstimateConstant(s.model, s.Environment(), simCfg.CyclesPerDay, simCfg.EOLThreshold, simCfg.HorizonYears)
}

// CompareScenarios predicts the lifetime under each named scenario.
func (s *Service) CompareScenarios(scenarios []lifetime.Scenario) ([]lifetime.ScenarioResult, error) {
	simCfg := s.cfg.Simulation
	return lifetime.CompareScenarios(s.model, scenarios, simCfg.EOLThreshold, simCfg.HorizonYears)
}

// Close drains the recorder bridge and releases sink resources.
func (s *Service) Close() error {
	s.bus.Close()
	s.wg.Wait()
	if c, ok := s.sink.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
