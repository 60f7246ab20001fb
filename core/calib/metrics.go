package calib

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// fitMetrics returns RMSE, MAPE (percent) and R-squared of predictions
// against measurements.
func fitMetrics(pred, meas []float64) (rmse, mape, r2 float64) {
	if len(pred) == 0 || len(pred) != len(meas) {
		return math.NaN(), math.NaN(), math.NaN()
	}
	var sse, ape float64
	apeN := 0
	for i := range pred {
		d := pred[i] - meas[i]
		sse += d * d
		if meas[i] != 0 {
			ape += math.Abs(d / meas[i])
			apeN++
		}
	}
	rmse = math.Sqrt(sse / float64(len(pred)))
	if apeN > 0 {
		mape = ape / float64(apeN) * 100
	} else {
		mape = math.NaN()
	}
	r2 = stat.RSquaredFrom(pred, meas, nil)
	return rmse, mape, r2
}
