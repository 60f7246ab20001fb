package aging

import (
	"math"
	"testing"

	"github.com/kilianp07/battdegr/core/model"
	"github.com/kilianp07/battdegr/core/stress"
)

func lfpModel(t *testing.T) *SemiEmpirical {
	t.Helper()
	params, err := model.PresetParameters(model.ChemistryLFP)
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	m, err := NewSemiEmpirical(params, stress.SoCExponential)
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	return m
}

func referenceEnv() model.EnvironmentalState {
	return model.EnvironmentalState{
		TemperatureK:     model.CelsiusToKelvin(25),
		StateOfCharge:    0.5,
		DepthOfDischarge: 1,
		CRate:            1,
	}
}

func TestSemiEmpiricalPristine(t *testing.T) {
	m := lfpModel(t)
	st := m.InitialState()
	if st.CapacityRetention != 1 {
		t.Fatalf("pristine retention must be exactly 1, got %g", st.CapacityRetention)
	}
	fade, err := m.FadePercent(0, 0, referenceEnv())
	if err != nil {
		t.Fatalf("fade at origin: %v", err)
	}
	if fade != 0 {
		t.Fatalf("fade at t=0, n=0 must be zero, got %g", fade)
	}
}

func TestSemiEmpiricalTenYearScenario(t *testing.T) {
	m := lfpModel(t)
	env := referenceEnv()
	st := m.InitialState()
	var atFiveYears float64
	for day := 1; day <= 3650; day++ {
		next, err := m.Step(st, env, 1, 1)
		if err != nil {
			t.Fatalf("day %d: %v", day, err)
		}
		if next.CapacityRetention > st.CapacityRetention {
			t.Fatalf("day %d: retention recovered %g -> %g", day, st.CapacityRetention, next.CapacityRetention)
		}
		st = next
		if day == 1825 {
			atFiveYears = st.CapacityRetention
		}
	}
	if st.CapacityRetention <= 0 || st.CapacityRetention >= 1 {
		t.Fatalf("ten-year retention outside (0,1): %g", st.CapacityRetention)
	}
	if st.CapacityRetention >= atFiveYears {
		t.Fatalf("retention at ten years (%g) not below five years (%g)", st.CapacityRetention, atFiveYears)
	}
}

func TestSemiEmpiricalStepsMatchClosedForm(t *testing.T) {
	// Under constant conditions the per-step differences telescope back to
	// the closed form evaluated at the cumulative axes.
	m := lfpModel(t)
	env := referenceEnv()
	st := m.InitialState()
	steps := 400
	for i := 0; i < steps; i++ {
		next, err := m.Step(st, env, 2.5, 1.25)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		st = next
	}
	fade, err := m.FadePercent(st.EquivalentAgingT, st.EquivalentCycles, env)
	if err != nil {
		t.Fatalf("closed form: %v", err)
	}
	want := 1 - fade/100
	if math.Abs(st.CapacityRetention-want) > 1e-9 {
		t.Fatalf("stepped retention %g diverges from closed form %g", st.CapacityRetention, want)
	}
}

func TestSemiEmpiricalResistanceTracksFade(t *testing.T) {
	m := lfpModel(t)
	env := referenceEnv()
	st := m.InitialState()
	for i := 0; i < 100; i++ {
		next, err := m.Step(st, env, 5, 5)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		st = next
	}
	rFade := m.Params().MustValue(model.CoefRFade)
	fade := 1 - st.CapacityRetention
	if math.Abs(st.ResistanceGrowth-rFade*fade) > 1e-9 {
		t.Fatalf("resistance %g does not track fade %g with r_fade %g", st.ResistanceGrowth, fade, rFade)
	}
}

func TestSemiEmpiricalWeightSum(t *testing.T) {
	params, err := model.PresetParameters(model.ChemistryLFP)
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	bad, err := params.With(map[string]float64{model.CoefWCal: 0.9})
	if err != nil {
		t.Fatalf("with: %v", err)
	}
	if _, err := NewSemiEmpirical(bad, stress.SoCExponential); err == nil {
		t.Fatal("expected error when superposition weights do not sum to 1")
	}
}

func TestSemiEmpiricalNegativeStep(t *testing.T) {
	m := lfpModel(t)
	if _, err := m.Step(m.InitialState(), referenceEnv(), -1, 0); err == nil {
		t.Fatal("expected error for negative time increment")
	}
	if _, err := m.Step(m.InitialState(), referenceEnv(), 0, -1); err == nil {
		t.Fatal("expected error for negative cycle increment")
	}
}
