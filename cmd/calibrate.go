package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/battdegr/app"
	"github.com/kilianp07/battdegr/core/model"
	"github.com/kilianp07/battdegr/infra/logger"
	"github.com/kilianp07/battdegr/ingest"
	"github.com/kilianp07/battdegr/pkg/export"
)

var (
	calOutput string
	calFree   []string
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate dataset.csv [dataset.csv...]",
	Short: "Fit model coefficients against measured aging data",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCalibrate,
}

func init() {
	calibrateCmd.Flags().StringVarP(&calOutput, "output", "o", "", "fit result file (default stdout)")
	calibrateCmd.Flags().StringSliceVar(&calFree, "free", nil, "coefficients to fit (overrides config)")
	rootCmd.AddCommand(calibrateCmd)
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(calFree) > 0 {
		cfg.Calibration.FreeParams = calFree
	}
	if len(cfg.Calibration.FreeParams) == 0 {
		return fmt.Errorf("no free coefficients: set calibration.free_params or --free")
	}

	datasets := make([]model.CalibrationDataset, len(args))
	for i, path := range args {
		ds, err := ingest.LoadDataset(path, "")
		if err != nil {
			return fmt.Errorf("dataset %s: %w", path, err)
		}
		datasets[i] = ds
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	logg := logger.New("calibrate")
	defer func() {
		if cerr := svc.Close(); cerr != nil {
			logg.Errorf("service close: %v", cerr)
		}
	}()

	fit, err := svc.Calibrate(ctx, datasets)
	if err != nil {
		return err
	}
	if !fit.Converged {
		logg.Warnf("fit %s did not converge: %s", fit.FitID, fit.Message)
	}

	w, closeFn, err := openOutput(calOutput)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()
	return export.WriteFitJSON(w, fit)
}
