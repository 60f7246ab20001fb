// Package sim drives an aging model across a trajectory of environmental
// conditions, producing a time- and cycle-indexed degradation trajectory.
package sim

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kilianp07/battdegr/core/aging"
	"github.com/kilianp07/battdegr/core/logger"
	"github.com/kilianp07/battdegr/core/model"
)

// Phase is the simulator's lifecycle state.
type Phase int

const (
	PhaseReady Phase = iota
	PhaseStepping
	PhaseEOLReached
	PhaseComplete
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	case PhaseStepping:
		return "stepping"
	case PhaseEOLReached:
		return "eol_reached"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Result is the output of one simulator run: one state per trajectory point.
// EOLIndex is the first index whose retention is at or below the threshold,
// or -1 when the threshold was never crossed. When a step fails the states
// up to the last valid one are returned together with the error.
type Result struct {
	RunID    string
	States   []model.DegradationState
	Points   model.Trajectory
	EOLIndex int
	Phase    Phase
}

// Snapshot is published after every step for observers (metric sinks,
// progress reporting).
type Snapshot struct {
	RunID string
	Index int
	Point model.TrajectoryPoint
	State model.DegradationState
}

// Simulator runs aging models over trajectories. A single Simulator is safe
// for concurrent runs: each run owns its state and result.
type Simulator struct {
	EOLThreshold float64 // retention at end of life, e.g. 0.8
	Observer     func(Snapshot)
	Log          logger.Logger
}

// New returns a Simulator with the given EOL threshold.
func New(eolThreshold float64) (*Simulator, error) {
	if eolThreshold <= 0 || eolThreshold >= 1 {
		return nil, &model.InvalidParameterError{Name: "eol_threshold", Value: eolThreshold, Reason: "must be in (0,1)"}
	}
	return &Simulator{EOLThreshold: eolThreshold, Log: logger.Nop{}}, nil
}

// Run drives m across tr starting from initial. The first trajectory point
// anchors the axes; its state is the initial state evaluated at that point's
// elapsed time and cycles (zero deltas when the trajectory starts at the
// origin). Monotonicity of retention and resistance is enforced after every
// step; a violation or non-finite state aborts with the last valid state and
// the failing step index.
func (s *Simulator) Run(m aging.Model, initial model.DegradationState, tr model.Trajectory) (Result, error) {
	res := Result{RunID: uuid.NewString(), EOLIndex: -1, Phase: PhaseReady}
	if len(tr) == 0 {
		return res, fmt.Errorf("trajectory is empty")
	}
	if err := tr.Validate(); err != nil {
		return res, err
	}
	if !initial.Finite() {
		return res, fmt.Errorf("initial state is not finite")
	}

	res.States = make([]model.DegradationState, 0, len(tr))
	res.Points = tr
	res.Phase = PhaseStepping

	state := initial
	prevT, prevN := 0.0, 0.0
	for i, p := range tr {
		next, err := m.Step(state, p.Env, p.TimeDays-prevT, p.Cycles-prevN)
		if err != nil {
			if inst, ok := err.(*model.NumericalInstabilityError); ok {
				inst.Step = i
				inst.LastValid = state
			}
			return res, err
		}
		if !next.Finite() {
			return res, &model.NumericalInstabilityError{Step: i, Reason: "model produced non-finite state", LastValid: state}
		}
		if !next.DegradedFrom(state) {
			return res, &model.NumericalInstabilityError{Step: i, Reason: "monotonicity violated: state recovered", LastValid: state}
		}

		state = next
		prevT, prevN = p.TimeDays, p.Cycles
		res.States = append(res.States, state)
		if s.Observer != nil {
			s.Observer(Snapshot{RunID: res.RunID, Index: i, Point: p, State: state})
		}
		if res.EOLIndex < 0 && state.CapacityRetention <= s.EOLThreshold {
			res.EOLIndex = i
			res.Phase = PhaseEOLReached
			s.Log.Debugf("run %s crossed EOL threshold %.3f at step %d", res.RunID, s.EOLThreshold, i)
		}
	}
	// A crossing is recorded but the run continues to exhaustion; the caller
	// decides whether the crossing ends the analysis.
	res.Phase = PhaseComplete
	return res, nil
}

// Simulate is the package-level convenience used by the CLI: it builds a
// simulator and runs the model from its own initial state.
func Simulate(m aging.Model, tr model.Trajectory, eolThreshold float64) (Result, error) {
	s, err := New(eolThreshold)
	if err != nil {
		return Result{}, err
	}
	return s.Run(m, m.InitialState(), tr)
}
