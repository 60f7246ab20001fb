package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/battdegr/app"
	"github.com/kilianp07/battdegr/infra/logger"
	"github.com/kilianp07/battdegr/pkg/export"
)

var (
	simOutput string
	simFormat string
	simTempC  float64
	simSoC    float64
	simDoD    float64
	simCRate  float64
	simYears  int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate degradation under constant operating conditions",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().StringVarP(&simOutput, "output", "o", "", "output file (default stdout)")
	simulateCmd.Flags().StringVarP(&simFormat, "format", "f", "csv", "output format: csv or json")
	simulateCmd.Flags().Float64Var(&simTempC, "temperature", 25, "cell temperature in Celsius")
	simulateCmd.Flags().Float64Var(&simSoC, "soc", 0.5, "average state of charge")
	simulateCmd.Flags().Float64Var(&simDoD, "dod", 0.8, "depth of discharge per cycle")
	simulateCmd.Flags().Float64Var(&simCRate, "c-rate", 1, "charge/discharge rate")
	simulateCmd.Flags().IntVar(&simYears, "years", 10, "simulated horizon in years")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Flags override the config file only when set on the command line.
	if cmd.Flags().Changed("temperature") {
		cfg.Simulation.TemperatureC = simTempC
	}
	if cmd.Flags().Changed("soc") {
		cfg.Simulation.SoC = simSoC
	}
	if cmd.Flags().Changed("dod") {
		cfg.Simulation.DoD = simDoD
	}
	if cmd.Flags().Changed("c-rate") {
		cfg.Simulation.CRate = simCRate
	}
	if cmd.Flags().Changed("years") {
		cfg.Simulation.HorizonYears = simYears
	}
	if err := cfg.Simulation.Validate(); err != nil {
		return err
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil {
			logger.New("simulate").Errorf("service close: %v", cerr)
		}
	}()

	res, err := svc.Simulate(svc.ConstantTrajectory())
	if err != nil {
		return err
	}

	w, closeFn, err := openOutput(simOutput)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	switch simFormat {
	case "csv":
		return export.WriteTrajectoryCSV(w, res)
	case "json":
		return export.WriteTrajectoryJSON(w, res)
	default:
		return fmt.Errorf("unknown format %q", simFormat)
	}
}
