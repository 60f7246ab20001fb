package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/kilianp07/battdegr/core/aging"
	"github.com/kilianp07/battdegr/core/lifetime"
	"github.com/kilianp07/battdegr/core/model"
	"github.com/kilianp07/battdegr/core/sim"
	"github.com/kilianp07/battdegr/core/sweep"
)

func shortRun(t *testing.T) sim.Result {
	t.Helper()
	m, err := aging.New(aging.Config{Kind: "semi-empirical", Chemistry: "lfp"})
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	env := model.EnvironmentalState{TemperatureK: 298.15, StateOfCharge: 0.5, DepthOfDischarge: 0.8, CRate: 1}
	res, err := sim.Simulate(m, model.ConstantTrajectory(env, 100, 1, 11), 0.8)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	return res
}

func TestWriteTrajectoryCSV(t *testing.T) {
	res := shortRun(t)
	var buf bytes.Buffer
	if err := WriteTrajectoryCSV(&buf, res); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != len(res.States)+1 {
		t.Fatalf("expected %d rows, got %d", len(res.States)+1, len(rows))
	}
	if rows[0][0] != "time_days" || rows[0][6] != "capacity_retention" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][6] != "1" {
		t.Fatalf("first sample retention should be 1, got %s", rows[1][6])
	}
}

func TestWriteTrajectoryJSON(t *testing.T) {
	res := shortRun(t)
	var buf bytes.Buffer
	if err := WriteTrajectoryJSON(&buf, res); err != nil {
		t.Fatalf("write: %v", err)
	}
	var doc struct {
		RunID    string `json:"run_id"`
		EOLIndex int    `json:"eol_index"`
		Phase    string `json:"phase"`
		Samples  []struct {
			TimeDays float64 `json:"time_days"`
			State    struct {
				CapacityRetention float64 `json:"capacity_retention"`
			} `json:"state"`
		} `json:"samples"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.RunID != res.RunID || doc.EOLIndex != -1 {
		t.Fatalf("document header mismatch: %+v", doc)
	}
	if len(doc.Samples) != len(res.States) {
		t.Fatalf("expected %d samples, got %d", len(res.States), len(doc.Samples))
	}
	if doc.Samples[0].State.CapacityRetention != 1 {
		t.Fatalf("first sample retention should be 1, got %g", doc.Samples[0].State.CapacityRetention)
	}
}

func TestWriteFitJSON(t *testing.T) {
	params, err := model.PresetParameters(model.ChemistryLFP)
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	fit := model.FitResult{
		FitID:     "fit-1",
		Params:    params,
		StdErr:    map[string]float64{"a_cal": 0.001},
		RMSE:      0.002,
		Converged: true,
	}
	var buf bytes.Buffer
	if err := WriteFitJSON(&buf, fit); err != nil {
		t.Fatalf("write: %v", err)
	}
	var doc struct {
		FitID        string             `json:"fit_id"`
		Chemistry    string             `json:"chemistry"`
		Coefficients map[string]float64 `json:"coefficients"`
		Converged    bool               `json:"converged"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.FitID != "fit-1" || doc.Chemistry != "lfp" || !doc.Converged {
		t.Fatalf("document mismatch: %+v", doc)
	}
	if doc.Coefficients["a_cal"] != params.MustValue(model.CoefACal) {
		t.Fatal("coefficients not exported")
	}
}

func TestWriteSweepCSV(t *testing.T) {
	points := []sweep.Point{
		{Value: 25, FadePercent: 5.5},
		{Value: 55, Err: &model.InvalidParameterError{Name: "x", Reason: "boom"}},
	}
	var buf bytes.Buffer
	if err := WriteSweepCSV(&buf, sweep.AxisTemperature, points); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rows[0][0] != "temperature" {
		t.Fatalf("header axis: %v", rows[0])
	}
	if rows[1][1] != "5.5" || rows[1][2] != "" {
		t.Fatalf("value row: %v", rows[1])
	}
	if rows[2][2] == "" {
		t.Fatal("failed point must carry its error message")
	}
}

func TestWriteScenarioTable(t *testing.T) {
	results := []lifetime.ScenarioResult{
		{
			Scenario:   lifetime.Scenario{Name: "fleet"},
			Prediction: lifetime.Prediction{Crossed: true, TimeDays: 1460, Cycles: 1460},
		},
		{
			Scenario:   lifetime.Scenario{Name: "storage"},
			Prediction: lifetime.Prediction{FinalRetention: 0.91},
		},
	}
	var buf bytes.Buffer
	if err := WriteScenarioTable(&buf, results); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "fleet") || !strings.Contains(out, "1460.0 days") {
		t.Fatalf("crossed scenario missing: %q", out)
	}
	if !strings.Contains(out, "storage") || !strings.Contains(out, "no EOL") {
		t.Fatalf("uncrossed scenario missing: %q", out)
	}
}
