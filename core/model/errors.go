package model

import "fmt"

// InvalidParameterError reports a non-physical or out-of-bounds value at
// construction time. It is fatal and never partially applied.
type InvalidParameterError struct {
	Name   string
	Value  float64
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%g: %s", e.Name, e.Value, e.Reason)
}

// NumericalInstabilityError reports a step that produced a non-finite or
// invariant-violating state. The simulation aborts; LastValid is the state
// before the failing step.
type NumericalInstabilityError struct {
	Step      int
	Reason    string
	LastValid DegradationState
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf("numerical instability at step %d: %s", e.Step, e.Reason)
}

// InsufficientDataError reports a calibration dataset with fewer records than
// free parameters. It is fatal for that calibration call only.
type InsufficientDataError struct {
	Dataset string
	Records int
	Free    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("dataset %s has %d records for %d free parameters", e.Dataset, e.Records, e.Free)
}
