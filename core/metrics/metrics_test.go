package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/kilianp07/battdegr/core/factory"
)

// captureSink records everything and counts calls.
type captureSink struct {
	sims, states, fits, sweeps int
	err                        error
}

func (c *captureSink) RecordSimulation(SimulationEvent) error { c.sims++; return c.err }
func (c *captureSink) RecordStateSamples([]StateSample) error { c.states++; return c.err }
func (c *captureSink) RecordFit(FitEvent) error               { c.fits++; return c.err }
func (c *captureSink) RecordSweep(SweepEvent) error           { c.sweeps++; return c.err }

// simOnlySink implements only the mandatory interface.
type simOnlySink struct{ sims int }

func (s *simOnlySink) RecordSimulation(SimulationEvent) error { s.sims++; return nil }

func TestMultiSinkForwardsByCapability(t *testing.T) {
	full := &captureSink{}
	partial := &simOnlySink{}
	m := NewMultiSink(full, partial)

	if err := m.RecordSimulation(SimulationEvent{RunID: "r", Time: time.Now()}); err != nil {
		t.Fatalf("simulation: %v", err)
	}
	if err := m.RecordStateSamples([]StateSample{{RunID: "r"}}); err != nil {
		t.Fatalf("states: %v", err)
	}
	if err := m.RecordFit(FitEvent{FitID: "f"}); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if err := m.RecordSweep(SweepEvent{Axis: "temperature"}); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if full.sims != 1 || full.states != 1 || full.fits != 1 || full.sweeps != 1 {
		t.Fatalf("full sink missed events: %+v", full)
	}
	if partial.sims != 1 {
		t.Fatalf("partial sink missed the simulation event: %d", partial.sims)
	}
}

func TestMultiSinkPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	m := NewMultiSink(&captureSink{err: boom})
	if err := m.RecordSimulation(SimulationEvent{}); !errors.Is(err, boom) {
		t.Fatalf("expected forwarded error, got %v", err)
	}
}

func TestNewMetricsSinkEmptyIsNop(t *testing.T) {
	sink, err := NewMetricsSink(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := sink.(NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", sink)
	}
}

func TestNewMetricsSinkUnknownType(t *testing.T) {
	_, err := NewMetricsSink([]factory.ModuleConfig{{Type: "does-not-exist"}})
	if err == nil {
		t.Fatal("expected error for unknown sink type")
	}
}

func TestRegisterMetricsSinkDuplicate(t *testing.T) {
	f := func(map[string]any) (MetricsSink, error) { return NopSink{}, nil }
	if err := RegisterMetricsSink("dup-test", f); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := RegisterMetricsSink("dup-test", f); err == nil {
		t.Fatal("expected error for duplicate registration")
	}
}
