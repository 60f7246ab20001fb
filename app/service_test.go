package app

import (
	"testing"

	"github.com/kilianp07/battdegr/config"
	"github.com/kilianp07/battdegr/core/sim"
	"github.com/kilianp07/battdegr/core/sweep"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := config.Default()
	cfg.Simulation.HorizonYears = 1
	cfg.Simulation.SamplesPerYear = 52
	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() {
		if err := svc.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	})
	return svc
}

func TestService_Simulate(t *testing.T) {
	svc := newTestService(t)

	tr := svc.ConstantTrajectory()
	if len(tr) != 53 {
		t.Fatalf("trajectory points: %d", len(tr))
	}
	res, err := svc.Simulate(tr)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if res.Phase != sim.PhaseComplete {
		t.Fatalf("phase: %v", res.Phase)
	}
	if len(res.States) != len(tr) {
		t.Fatalf("states: %d", len(res.States))
	}
	final := res.States[len(res.States)-1].CapacityRetention
	if final >= 1 || final <= 0 {
		t.Fatalf("final retention: %g", final)
	}
}

func TestService_PredictLifetime(t *testing.T) {
	svc := newTestService(t)

	pred, err := svc.PredictLifetime()
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	// One year at the default mild operating point must not reach EOL.
	if pred.Crossed {
		t.Fatalf("unexpected EOL at %.1f days", pred.TimeDays)
	}
	if pred.FinalRetention <= 0 || pred.FinalRetention >= 1 {
		t.Fatalf("final retention: %g", pred.FinalRetention)
	}
}

func TestService_Sweep(t *testing.T) {
	svc := newTestService(t)

	points := svc.Sweep(sweep.AxisTemperature, []float64{25, 45})
	if len(points) != 2 {
		t.Fatalf("points: %d", len(points))
	}
	for i, p := range points {
		if p.Err != nil {
			t.Fatalf("point %d: %v", i, p.Err)
		}
	}
	if points[1].FadePercent <= points[0].FadePercent {
		t.Fatalf("45C fade %g not above 25C fade %g", points[1].FadePercent, points[0].FadePercent)
	}
}

func TestNew_RejectsUnknownChemistry(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Chemistry = "unobtainium"
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for unknown chemistry")
	}
}
