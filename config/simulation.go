package config

import "fmt"

// SimulationConfig defines the default operating point and horizon used by
// the simulate, predict and sweep commands when no trajectory file is given.
type SimulationConfig struct {
	// EOLThreshold is the capacity retention defining end of life.
	EOLThreshold float64 `json:"eol_threshold"`
	// TemperatureC is the constant cell temperature in degrees Celsius.
	TemperatureC float64 `json:"temperature_c"`
	// SoC is the average state of charge.
	SoC float64 `json:"soc"`
	// DoD is the depth of discharge per cycle.
	DoD float64 `json:"dod"`
	// CRate is the charge/discharge rate.
	CRate float64 `json:"c_rate"`
	// HorizonYears bounds the simulated period.
	HorizonYears int `json:"horizon_years"`
	// CyclesPerDay is the cycle accumulation rate.
	CyclesPerDay float64 `json:"cycles_per_day"`
	// SamplesPerYear sets the trajectory sampling density.
	SamplesPerYear int `json:"samples_per_year"`
}

// SetDefaults applies the documented defaults.
func (c *SimulationConfig) SetDefaults() {
	if c.EOLThreshold == 0 {
		c.EOLThreshold = 0.8
	}
	if c.TemperatureC == 0 {
		c.TemperatureC = 25
	}
	if c.SoC == 0 {
		c.SoC = 0.5
	}
	if c.DoD == 0 {
		c.DoD = 0.8
	}
	if c.CRate == 0 {
		c.CRate = 1
	}
	if c.HorizonYears == 0 {
		c.HorizonYears = 10
	}
	if c.CyclesPerDay == 0 {
		c.CyclesPerDay = 1
	}
	if c.SamplesPerYear == 0 {
		c.SamplesPerYear = 365
	}
}

// Validate checks mandatory ranges.
func (c SimulationConfig) Validate() error {
	if c.EOLThreshold <= 0 || c.EOLThreshold >= 1 {
		return fmt.Errorf("eol_threshold must be in (0,1), got %g", c.EOLThreshold)
	}
	if c.SoC < 0 || c.SoC > 1 {
		return fmt.Errorf("soc must be in [0,1], got %g", c.SoC)
	}
	if c.DoD < 0 || c.DoD > 1 {
		return fmt.Errorf("dod must be in [0,1], got %g", c.DoD)
	}
	if c.CRate < 0 {
		return fmt.Errorf("c_rate must be non-negative, got %g", c.CRate)
	}
	if c.HorizonYears < 1 {
		return fmt.Errorf("horizon_years must be at least 1, got %d", c.HorizonYears)
	}
	if c.CyclesPerDay < 0 {
		return fmt.Errorf("cycles_per_day must be non-negative, got %g", c.CyclesPerDay)
	}
	if c.SamplesPerYear < 2 {
		return fmt.Errorf("samples_per_year must be at least 2, got %d", c.SamplesPerYear)
	}
	return nil
}

// CalibrationConfig defines solver settings for the calibrate command.
type CalibrationConfig struct {
	// FreeParams names the coefficients to fit.
	FreeParams []string `json:"free_params"`
	// MultiStart is the number of independent solver starts.
	MultiStart int `json:"multi_start"`
	// KFold enables time-ordered cross-validation when >= 2.
	KFold int `json:"k_fold"`
	// MaxIterations caps the solver.
	MaxIterations int `json:"max_iterations"`
	// Tolerance is the relative residual improvement threshold.
	Tolerance float64 `json:"tolerance"`
	// Seed seeds multi-start perturbations.
	Seed int64 `json:"seed"`
}

// SetDefaults applies the documented defaults.
func (c *CalibrationConfig) SetDefaults() {
	if c.MultiStart == 0 {
		c.MultiStart = 1
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 1000
	}
	if c.Tolerance == 0 {
		c.Tolerance = 1e-6
	}
}

// Validate checks mandatory ranges.
func (c CalibrationConfig) Validate() error {
	if c.MultiStart < 1 {
		return fmt.Errorf("multi_start must be at least 1, got %d", c.MultiStart)
	}
	if c.KFold == 1 || c.KFold < 0 {
		return fmt.Errorf("k_fold must be 0 or at least 2, got %d", c.KFold)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %g", c.Tolerance)
	}
	return nil
}
