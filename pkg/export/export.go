// Package export serializes simulation, calibration and sweep results for
// downstream analysis tooling.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/kilianp07/battdegr/core/lifetime"
	"github.com/kilianp07/battdegr/core/model"
	"github.com/kilianp07/battdegr/core/sim"
	"github.com/kilianp07/battdegr/core/sweep"
)

func f(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// WriteTrajectoryCSV writes one simulated run as a CSV table, one row per
// trajectory point.
func WriteTrajectoryCSV(w io.Writer, res sim.Result) error {
	cw := csv.NewWriter(w)
	header := []string{
		"time_days", "cycles", "temperature_c", "soc", "dod", "c_rate",
		"capacity_retention", "resistance_growth",
		"sei_thickness_nm", "lam_fraction", "plated_lithium",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, st := range res.States {
		p := res.Points[i]
		rec := []string{
			f(p.TimeDays), f(p.Cycles),
			f(p.Env.TemperatureK - 273.15), f(p.Env.StateOfCharge),
			f(p.Env.DepthOfDischarge), f(p.Env.CRate),
			f(st.CapacityRetention), f(st.ResistanceGrowth),
			f(st.SEIThicknessNm), f(st.LAMFraction), f(st.PlatedLithium),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// trajectoryRow is the JSON shape of one simulated sample.
type trajectoryRow struct {
	TimeDays float64                  `json:"time_days"`
	Cycles   float64                  `json:"cycles"`
	Env      model.EnvironmentalState `json:"environment"`
	State    model.DegradationState   `json:"state"`
}

type runDocument struct {
	RunID    string          `json:"run_id"`
	EOLIndex int             `json:"eol_index"`
	Phase    string          `json:"phase"`
	Samples  []trajectoryRow `json:"samples"`
}

// WriteTrajectoryJSON writes one simulated run as a JSON document.
func WriteTrajectoryJSON(w io.Writer, res sim.Result) error {
	doc := runDocument{
		RunID:    res.RunID,
		EOLIndex: res.EOLIndex,
		Phase:    res.Phase.String(),
		Samples:  make([]trajectoryRow, len(res.States)),
	}
	for i, st := range res.States {
		p := res.Points[i]
		doc.Samples[i] = trajectoryRow{TimeDays: p.TimeDays, Cycles: p.Cycles, Env: p.Env, State: st}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// fitDocument flattens a FitResult for JSON output; Parameters hides its
// coefficient map so values are extracted explicitly.
type fitDocument struct {
	FitID           string             `json:"fit_id"`
	Chemistry       string             `json:"chemistry"`
	Coefficients    map[string]float64 `json:"coefficients"`
	StdErr          map[string]float64 `json:"std_err,omitempty"`
	RMSE            float64            `json:"rmse"`
	MAPE            float64            `json:"mape"`
	R2              float64            `json:"r2"`
	Converged       bool               `json:"converged"`
	IllConditioned  bool               `json:"ill_conditioned"`
	Iterations      int                `json:"iterations"`
	ResidualNorm    float64            `json:"residual_norm"`
	ResidualHistory []float64          `json:"residual_history,omitempty"`
	Message         string             `json:"message,omitempty"`
}

// WriteFitJSON writes a calibration result as an indented JSON document.
func WriteFitJSON(w io.Writer, fit model.FitResult) error {
	doc := fitDocument{
		FitID:           fit.FitID,
		Chemistry:       fit.Params.Chemistry().String(),
		Coefficients:    fit.Params.Values(),
		StdErr:          fit.StdErr,
		RMSE:            fit.RMSE,
		MAPE:            fit.MAPE,
		R2:              fit.R2,
		Converged:       fit.Converged,
		IllConditioned:  fit.IllConditioned,
		Iterations:      fit.Iterations,
		ResidualNorm:    fit.ResidualNorm,
		ResidualHistory: fit.ResidualHistory,
		Message:         fit.Message,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteSweepCSV writes sweep points as a CSV table. Failed points carry
// their error message in the last column.
func WriteSweepCSV(w io.Writer, axis sweep.Axis, points []sweep.Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{axis.String(), "fade_percent", "error"}); err != nil {
		return err
	}
	for _, p := range points {
		msg := ""
		if p.Err != nil {
			msg = p.Err.Error()
		}
		if err := cw.Write([]string{f(p.Value), f(p.FadePercent), msg}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteScenarioTable writes a plain-text comparison of lifetime scenarios.
func WriteScenarioTable(w io.Writer, results []lifetime.ScenarioResult) error {
	for _, r := range results {
		if !r.Prediction.Crossed {
			if _, err := fmt.Fprintf(w, "%-24s no EOL within horizon (final retention %.4f)\n",
				r.Scenario.Name, r.Prediction.FinalRetention); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%-24s EOL at %.1f days (%.0f cycles, %.2f years)\n",
			r.Scenario.Name, r.Prediction.TimeDays, r.Prediction.Cycles, r.Prediction.TimeDays/365.25); err != nil {
			return err
		}
	}
	return nil
}
