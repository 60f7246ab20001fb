package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilianp07/battdegr/app"
	"github.com/kilianp07/battdegr/core/sweep"
	"github.com/kilianp07/battdegr/infra/logger"
	"github.com/kilianp07/battdegr/pkg/export"
)

var (
	sweepAxis   string
	sweepValues string
	sweepOutput string
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Sweep one stress axis and report capacity fade per value",
	RunE:  runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepAxis, "axis", "temperature", "axis to sweep: temperature, dod or c_rate")
	sweepCmd.Flags().StringVar(&sweepValues, "values", "", "comma-separated grid values (temperature in Celsius)")
	sweepCmd.Flags().StringVarP(&sweepOutput, "output", "o", "", "output CSV file (default stdout)")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	axis, err := parseAxis(sweepAxis)
	if err != nil {
		return err
	}
	grid, err := parseGrid(sweepValues)
	if err != nil {
		return err
	}

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
			logger.New("sweep").Errorf("service close: %v", cerr)
		}
	}()

	points := svc.Sweep(axis, grid)

	w, closeFn, err := openOutput(sweepOutput)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()
	return export.WriteSweepCSV(w, axis, points)
}

func parseAxis(s string) (sweep.Axis, error) {
	switch strings.ToLower(s) {
	case "temperature":
		return sweep.AxisTemperature, nil
	case "dod":
		return sweep.AxisDoD, nil
	case "c_rate", "c-rate":
		return sweep.AxisCRate, nil
	default:
		return 0, fmt.Errorf("unknown axis %q", s)
	}
}

func parseGrid(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("--values is required")
	}
	parts := strings.Split(s, ",")
	grid := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("grid value %d: %w", i+1, err)
		}
		grid[i] = v
	}
	return grid, nil
}
