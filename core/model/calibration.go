package model

import "fmt"

// CalibrationRecord is one measured sample from a cycling experiment.
// MeasuredResistance is optional; HasResistance marks its presence.
type CalibrationRecord struct {
	TimeDays           float64
	Cycles             float64
	Env                EnvironmentalState
	MeasuredRetention  float64
	MeasuredResistance float64
	HasResistance      bool
}

// CalibrationDataset is an ordered sequence of records from one experiment.
// Multiple datasets may be fit jointly.
type CalibrationDataset struct {
	ExperimentID string
	Records      []CalibrationRecord
}

// Validate checks record ordering and value ranges.
func (d CalibrationDataset) Validate() error {
	for i, r := range d.Records {
		if err := r.Env.Validate(); err != nil {
			return fmt.Errorf("dataset %s record %d: %w", d.ExperimentID, i, err)
		}
		if r.MeasuredRetention < 0 || r.MeasuredRetention > 1 {
			return fmt.Errorf("dataset %s record %d: retention %g outside [0,1]", d.ExperimentID, i, r.MeasuredRetention)
		}
		if i > 0 && (r.TimeDays < d.Records[i-1].TimeDays || r.Cycles < d.Records[i-1].Cycles) {
			return fmt.Errorf("dataset %s record %d: time or cycle axis decreases", d.ExperimentID, i)
		}
	}
	return nil
}

// Trajectory converts the dataset's sampling axis into a simulation
// trajectory so predictions can be generated at the measured points.
func (d CalibrationDataset) Trajectory() Trajectory {
	tr := make(Trajectory, len(d.Records))
	for i, r := range d.Records {
		tr[i] = TrajectoryPoint{TimeDays: r.TimeDays, Cycles: r.Cycles, Env: r.Env}
	}
	return tr
}

// FitResult is the outcome of one calibration. Non-convergence is reported
// here rather than as an error so multi-start batches can continue.
type FitResult struct {
	FitID           string
	Params          Parameters
	StdErr          map[string]float64
	RMSE            float64
	MAPE            float64
	R2              float64
	Converged       bool
	IllConditioned  bool
	Iterations      int
	ResidualNorm    float64
	ResidualHistory []float64
	Message         string
}
