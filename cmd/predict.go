package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilianp07/battdegr/app"
	"github.com/kilianp07/battdegr/core/lifetime"
	"github.com/kilianp07/battdegr/core/model"
	"github.com/kilianp07/battdegr/infra/logger"
	"github.com/kilianp07/battdegr/pkg/export"
)

var predictScenarios []string

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict time and cycles to end of life",
	Long: `Predict estimates when capacity retention crosses the end-of-life
threshold under the configured constant operating point. With --scenario
flags it compares several named operating points instead; each scenario is
name=tempC,soc,dod,c_rate,cycles_per_day.`,
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().StringArrayVar(&predictScenarios, "scenario", nil, "named scenario to compare (repeatable)")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil {
			logger.New("predict").Errorf("service close: %v", cerr)
		}
	}()

	if len(predictScenarios) > 0 {
		scenarios := make([]lifetime.Scenario, len(predictScenarios))
		for i, spec := range predictScenarios {
			sc, err := parseScenario(spec)
			if err != nil {
				return err
			}
			scenarios[i] = sc
		}
		results, err := svc.CompareScenarios(scenarios)
		if err != nil {
			return err
		}
		return export.WriteScenarioTable(cmd.OutOrStdout(), results)
	}

	pred, err := svc.PredictLifetime()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !pred.Crossed {
		_, err = fmt.Fprintf(out, "no EOL within %d years (final retention %.4f)\n",
			cfg.Simulation.HorizonYears, pred.FinalRetention)
		return err
	}
	_, err = fmt.Fprintf(out, "EOL at %.1f days (%.0f cycles, %.2f years)\n",
		pred.TimeDays, pred.Cycles, pred.TimeDays/365.25)
	return err
}

// parseScenario decodes "name=tempC,soc,dod,c_rate,cycles_per_day".
func parseScenario(spec string) (lifetime.Scenario, error) {
	name, rest, ok := strings.Cut(spec, "=")
	if !ok {
		return lifetime.Scenario{}, fmt.Errorf("scenario %q: expected name=values", spec)
	}
	parts := strings.Split(rest, ",")
	if len(parts) != 5 {
		return lifetime.Scenario{}, fmt.Errorf("scenario %q: expected 5 comma-separated values", spec)
	}
	vals := make([]float64, 5)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return lifetime.Scenario{}, fmt.Errorf("scenario %q value %d: %w", spec, i+1, err)
		}
		vals[i] = v
	}
	return lifetime.Scenario{
		Name: name,
		Env: model.EnvironmentalState{
			TemperatureK:     model.CelsiusToKelvin(vals[0]),
			StateOfCharge:    vals[1],
			DepthOfDischarge: vals[2],
			CRate:            vals[3],
		},
		CyclesPerDay: vals[4],
	}, nil
}
