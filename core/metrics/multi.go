package metrics

// MultiSink fans events out to multiple sinks, returning the first error.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSimulation forwards the run summary to all sinks.
func (m *MultiSink) RecordSimulation(ev SimulationEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordSimulation(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordStateSamples forwards trajectory samples to sinks that store them.
func (m *MultiSink) RecordStateSamples(samples []StateSample) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(StateRecorder); ok {
			if err := rec.RecordStateSamples(samples); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordFit forwards fit summaries.
func (m *MultiSink) RecordFit(ev FitEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(FitRecorder); ok {
			if err := rec.RecordFit(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSweep forwards sweep summaries.
func (m *MultiSink) RecordSweep(ev SweepEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(SweepRecorder); ok {
			if err := rec.RecordSweep(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
