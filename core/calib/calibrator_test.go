package calib

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/kilianp07/battdegr/core/aging"
	"github.com/kilianp07/battdegr/core/model"
	"github.com/kilianp07/battdegr/core/stress"
)

func lfpFactory(t *testing.T) (ModelFactory, model.Parameters) {
	t.Helper()
	base, err := model.PresetParameters(model.ChemistryLFP)
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	factory := func(p model.Parameters) (aging.Model, error) {
		return aging.NewSemiEmpirical(p, stress.SoCExponential)
	}
	return factory, base
}

// syntheticDataset simulates the model built from truth along a constant
// operating point and returns noiseless measurements.
func syntheticDataset(t *testing.T, factory ModelFactory, truth model.Parameters, id string, days, stepDays float64) model.CalibrationDataset {
	t.Helper()
	m, err := factory(truth)
	if err != nil {
		t.Fatalf("truth model: %v", err)
	}
	env := model.EnvironmentalState{
		TemperatureK:     model.CelsiusToKelvin(35),
		StateOfCharge:    0.6,
		DepthOfDischarge: 0.8,
		CRate:            1,
	}
	ds := model.CalibrationDataset{ExperimentID: id}
	state := m.InitialState()
	for d := stepDays; d <= days; d += stepDays {
		next, err := m.Step(state, env, stepDays, stepDays)
		if err != nil {
			t.Fatalf("truth step: %v", err)
		}
		state = next
		ds.Records = append(ds.Records, model.CalibrationRecord{
			TimeDays:          d,
			Cycles:            d,
			Env:               env,
			MeasuredRetention: state.CapacityRetention,
		})
	}
	return ds
}

func TestCalibrateRecoversKnownCoefficient(t *testing.T) {
	factory, base := lfpFactory(t)
	trueACal := 0.11
	truth, err := base.With(map[string]float64{model.CoefACal: trueACal})
	if err != nil {
		t.Fatalf("truth: %v", err)
	}
	ds := syntheticDataset(t, factory, truth, "exp-1", 1000, 25)

	cal := New(factory, base, nil)
	fit, err := cal.Calibrate(context.Background(), []model.CalibrationDataset{ds}, Options{
		FreeParams: []string{model.CoefACal},
	})
	if err != nil {
		t.Fatalf("calibrate: %v", err)
	}
	if !fit.Converged {
		t.Fatalf("fit did not converge: %s", fit.Message)
	}
	got := fit.Params.MustValue(model.CoefACal)
	if rel := math.Abs(got-trueACal) / trueACal; rel > 0.01 {
		t.Fatalf("recovered a_cal %g, want %g (rel %g)", got, trueACal, rel)
	}
	if fit.RMSE > 1e-4 {
		t.Fatalf("noiseless fit RMSE too large: %g", fit.RMSE)
	}
	if fit.FitID == "" {
		t.Fatal("missing fit id")
	}
	if se, ok := fit.StdErr[model.CoefACal]; !ok || math.IsNaN(se) {
		t.Fatalf("missing standard error for a_cal: %v", fit.StdErr)
	}
}

func TestCalibrateTwoParameters(t *testing.T) {
	factory, base := lfpFactory(t)
	truth, err := base.With(map[string]float64{
		model.CoefACal: 0.1,
		model.CoefZCal: 0.65,
	})
	if err != nil {
		t.Fatalf("truth: %v", err)
	}
	ds := syntheticDataset(t, factory, truth, "exp-2", 2000, 20)

	cal := New(factory, base, nil)
	fit, err := cal.Calibrate(context.Background(), []model.CalibrationDataset{ds}, Options{
		FreeParams: []string{model.CoefACal, model.CoefZCal},
	})
	if err != nil {
		t.Fatalf("calibrate: %v", err)
	}
	if !fit.Converged {
		t.Fatalf("fit did not converge: %s", fit.Message)
	}
	for name, want := range map[string]float64{model.CoefACal: 0.1, model.CoefZCal: 0.65} {
		got := fit.Params.MustValue(name)
		if rel := math.Abs(got-want) / want; rel > 0.02 {
			t.Fatalf("recovered %s=%g, want %g (rel %g)", name, got, want, rel)
		}
	}
	if len(fit.ResidualHistory) < 2 {
		t.Fatal("expected residual history from the solver")
	}
	for i := 1; i < len(fit.ResidualHistory); i++ {
		if fit.ResidualHistory[i] > fit.ResidualHistory[i-1]+1e-12 {
			t.Fatalf("residual history not non-increasing at %d", i)
		}
	}
}

func TestCalibrateJointDatasets(t *testing.T) {
	factory, base := lfpFactory(t)
	truth, err := base.With(map[string]float64{model.CoefACal: 0.095})
	if err != nil {
		t.Fatalf("truth: %v", err)
	}
	d1 := syntheticDataset(t, factory, truth, "cell-a", 800, 40)
	d2 := syntheticDataset(t, factory, truth, "cell-b", 1200, 30)

	cal := New(factory, base, nil)
	fit, err := cal.Calibrate(context.Background(), []model.CalibrationDataset{d1, d2}, Options{
		FreeParams: []string{model.CoefACal},
	})
	if err != nil {
		t.Fatalf("calibrate: %v", err)
	}
	got := fit.Params.MustValue(model.CoefACal)
	if rel := math.Abs(got-0.095) / 0.095; rel > 0.01 {
		t.Fatalf("joint fit recovered %g, want 0.095", got)
	}
}

func TestCalibrateInsufficientData(t *testing.T) {
	factory, base := lfpFactory(t)
	ds := model.CalibrationDataset{
		ExperimentID: "tiny",
		Records: []model.CalibrationRecord{{
			TimeDays: 10, Cycles: 10,
			Env:               model.EnvironmentalState{TemperatureK: 298.15, StateOfCharge: 0.5, DepthOfDischarge: 0.8, CRate: 1},
			MeasuredRetention: 0.99,
		}},
	}
	cal := New(factory, base, nil)
	_, err := cal.Calibrate(context.Background(), []model.CalibrationDataset{ds}, Options{
		FreeParams: []string{model.CoefACal, model.CoefZCal},
	})
	var ide *model.InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if ide.Dataset != "tiny" || ide.Records != 1 || ide.Free != 2 {
		t.Fatalf("unexpected error detail: %+v", ide)
	}
}

func TestCalibrateCancellation(t *testing.T) {
	factory, base := lfpFactory(t)
	truth, err := base.With(map[string]float64{model.CoefACal: 0.11})
	if err != nil {
		t.Fatalf("truth: %v", err)
	}
	ds := syntheticDataset(t, factory, truth, "exp-c", 1000, 25)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cal := New(factory, base, nil)
	fit, err := cal.Calibrate(ctx, []model.CalibrationDataset{ds}, Options{
		FreeParams: []string{model.CoefACal},
	})
	if err != nil {
		t.Fatalf("cancellation must not be an error: %v", err)
	}
	if fit.Converged {
		t.Fatal("cancelled fit must not report convergence")
	}
	if fit.Message == "" {
		t.Fatal("cancelled fit must carry a message")
	}
}

func TestCalibrateMultiStart(t *testing.T) {
	factory, base := lfpFactory(t)
	truth, err := base.With(map[string]float64{model.CoefACal: 0.12})
	if err != nil {
		t.Fatalf("truth: %v", err)
	}
	ds := syntheticDataset(t, factory, truth, "exp-ms", 1000, 25)

	cal := New(factory, base, nil)
	fit, err := cal.Calibrate(context.Background(), []model.CalibrationDataset{ds}, Options{
		FreeParams: []string{model.CoefACal},
		MultiStart: 4,
		Seed:       42,
	})
	if err != nil {
		t.Fatalf("calibrate: %v", err)
	}
	got := fit.Params.MustValue(model.CoefACal)
	if rel := math.Abs(got-0.12) / 0.12; rel > 0.01 {
		t.Fatalf("multi-start fit recovered %g, want 0.12", got)
	}
}

func TestCalibrateCrossValidation(t *testing.T) {
	factory, base := lfpFactory(t)
	truth, err := base.With(map[string]float64{model.CoefACal: 0.1})
	if err != nil {
		t.Fatalf("truth: %v", err)
	}
	ds := syntheticDataset(t, factory, truth, "exp-cv", 1500, 25)

	cal := New(factory, base, nil)
	fit, err := cal.Calibrate(context.Background(), []model.CalibrationDataset{ds}, Options{
		FreeParams: []string{model.CoefACal},
		KFold:      3,
	})
	if err != nil {
		t.Fatalf("calibrate: %v", err)
	}
	if math.IsNaN(fit.RMSE) || math.IsNaN(fit.MAPE) {
		t.Fatal("cross-validated metrics missing")
	}
	if fit.RMSE > 1e-3 {
		t.Fatalf("held-out RMSE too large for a noiseless fit: %g", fit.RMSE)
	}
}

func TestCalibrateInvalidOptions(t *testing.T) {
	factory, base := lfpFactory(t)
	cal := New(factory, base, nil)
	if _, err := cal.Calibrate(context.Background(), nil, Options{FreeParams: []string{model.CoefACal}}); err == nil {
		t.Fatal("expected error for empty dataset list")
	}
	truth := base
	ds := syntheticDataset(t, factory, truth, "exp-x", 200, 20)
	if _, err := cal.Calibrate(context.Background(), []model.CalibrationDataset{ds}, Options{}); err == nil {
		t.Fatal("expected error for no free parameters")
	}
	if _, err := cal.Calibrate(context.Background(), []model.CalibrationDataset{ds}, Options{
		FreeParams: []string{"bogus"},
	}); err == nil {
		t.Fatal("expected error for unknown coefficient")
	}
}

func TestBoundTransformRoundTrip(t *testing.T) {
	tf := boundTransform{lo: []float64{0, -5}, hi: []float64{10, 5}}
	x := []float64{2.5, 1.25}
	got := tf.decode(tf.encode(x))
	for i := range x {
		if math.Abs(got[i]-x[i]) > 1e-9 {
			t.Fatalf("round trip %d: %g != %g", i, got[i], x[i])
		}
	}
	// Decoded points always satisfy the bounds, even for extreme u.
	for _, u := range [][]float64{{100, -100}, {1e6, 1e6}} {
		x := tf.decode(u)
		for i := range x {
			if x[i] < tf.lo[i] || x[i] > tf.hi[i] {
				t.Fatalf("decoded value %g escapes bound [%g,%g]", x[i], tf.lo[i], tf.hi[i])
			}
		}
	}
}

func TestFitMetrics(t *testing.T) {
	pred := []float64{1, 0.95, 0.9}
	rmse, mape, r2 := fitMetrics(pred, pred)
	if rmse != 0 || mape != 0 {
		t.Fatalf("perfect fit must have zero error: rmse=%g mape=%g", rmse, mape)
	}
	if math.Abs(r2-1) > 1e-12 {
		t.Fatalf("perfect fit must have R2=1, got %g", r2)
	}
	rmse, _, _ = fitMetrics([]float64{1, 1}, []float64{0.9, 1.1})
	if math.Abs(rmse-0.1) > 1e-12 {
		t.Fatalf("expected RMSE 0.1, got %g", rmse)
	}
}

func TestFitMetricsMAPESkipsZeroMeasurements(t *testing.T) {
	// Only the non-zero measurement contributes; the zero record must not
	// dilute the average.
	_, mape, _ := fitMetrics([]float64{1.1, 0.5}, []float64{1, 0})
	if math.Abs(mape-10) > 1e-9 {
		t.Fatalf("expected MAPE 10%%, got %g", mape)
	}
	_, mape, _ = fitMetrics([]float64{1, 2}, []float64{0, 0})
	if !math.IsNaN(mape) {
		t.Fatalf("all-zero measurements must yield NaN MAPE, got %g", mape)
	}
}

func TestLevenbergMarquardtStallMessage(t *testing.T) {
	// A constant residual admits no improving step; the solver must stop at
	// the start point and say the search stalled.
	f := func(u []float64) ([]float64, error) { return []float64{1}, nil }
	out := levenbergMarquardt(context.Background(), f, []float64{0.5}, 100, 1e-9)
	if !out.converged {
		t.Fatal("stalled search must still terminate as converged")
	}
	if !strings.Contains(out.message, "stalled") {
		t.Fatalf("expected stall message, got %q", out.message)
	}
	if out.iterations != 1 {
		t.Fatalf("expected stall on the first iteration, got %d", out.iterations)
	}
}
