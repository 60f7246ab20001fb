// Package calib fits aging-model coefficients to measured cycling data via
// bounded nonlinear least squares, with optional multi-start and time-ordered
// k-fold cross-validation.
package calib

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/battdegr/core/aging"
	"github.com/kilianp07/battdegr/core/logger"
	"github.com/kilianp07/battdegr/core/model"
)

// condLimit is the Jacobian condition number above which the fit is flagged
// as near-rank-deficient (non-identifiable parameter combinations).
const condLimit = 1e8

// ModelFactory builds an aging model from a candidate coefficient set.
type ModelFactory func(model.Parameters) (aging.Model, error)

// Options configure one calibration call.
type Options struct {
	// FreeParams names the coefficients to fit. Mandatory.
	FreeParams []string
	// Bounds optionally narrow the search interval per coefficient; the
	// coefficient's own validity bound is used otherwise.
	Bounds map[string]model.Bound
	// InitialGuess optionally overrides the starting value per coefficient.
	InitialGuess map[string]float64
	// MultiStart runs this many independent starts (the guess plus random
	// points inside the bounds) and keeps the best. Minimum 1.
	MultiStart int
	// KFold enables time-ordered k-fold cross-validation when >= 2. Fit
	// quality is then reported against held-out folds.
	KFold int
	// MaxIterations caps the solver. Default 1000.
	MaxIterations int
	// Tolerance is the relative residual-norm improvement threshold.
	// Default 1e-6.
	Tolerance float64
	// Seed makes multi-start perturbations reproducible.
	Seed int64
}

func (o *Options) setDefaults() {
	if o.MultiStart < 1 {
		o.MultiStart = 1
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = 1000
	}
	if o.Tolerance <= 0 {
		o.Tolerance = 1e-6
	}
}

// Calibrator fits model coefficients against calibration datasets.
type Calibrator struct {
	factory ModelFactory
	base    model.Parameters
	log     logger.Logger
}

// New returns a Calibrator for the given model factory and base coefficient
// set. base supplies the values of every coefficient not being fitted.
func New(factory ModelFactory, base model.Parameters, log logger.Logger) *Calibrator {
	if log == nil {
		log = logger.Nop{}
	}
	return &Calibrator{factory: factory, base: base, log: log}
}

// Calibrate fits the free coefficients to all records of all datasets
// jointly. Non-convergence is reported inside the FitResult; only invalid
// inputs return an error.
func (c *Calibrator) Calibrate(ctx context.Context, datasets []model.CalibrationDataset, opts Options) (model.FitResult, error) {
	opts.setDefaults()
	if len(datasets) == 0 {
		return model.FitResult{}, fmt.Errorf("no calibration datasets")
	}
	if len(opts.FreeParams) == 0 {
		return model.FitResult{}, fmt.Errorf("no free parameters named")
	}
	for _, d := range datasets {
		if err := d.Validate(); err != nil {
			return model.FitResult{}, err
		}
		if len(d.Records) < len(opts.FreeParams) {
			return model.FitResult{}, &model.InsufficientDataError{
				Dataset: d.ExperimentID, Records: len(d.Records), Free: len(opts.FreeParams),
			}
		}
	}

	names := make([]string, len(opts.FreeParams))
	copy(names, opts.FreeParams)
	sort.Strings(names)

	tf, x0, err := c.searchSpace(names, opts)
	if err != nil {
		return model.FitResult{}, err
	}

	allIdx := allIndices(datasets)
	fit := c.fitIndices(ctx, datasets, names, tf, x0, allIdx, opts)

	result := model.FitResult{
		FitID:           uuid.NewString(),
		Converged:       fit.converged,
		Iterations:      fit.iterations,
		ResidualNorm:    math.Sqrt(fit.cost),
		ResidualHistory: fit.history,
		Message:         fit.message,
	}
	if math.IsInf(fit.cost, 1) {
		result.Message = "no feasible start point: " + fit.message
		return result, nil
	}

	values := decodeNamed(names, tf, fit.u)
	params, err := c.base.With(values)
	if err != nil {
		return model.FitResult{}, err
	}
	result.Params = params

	// Diagnostics at the solution on the full residual set.
	resFn := c.residualFunc(datasets, names, tf, allIdx)
	residuals, err := resFn(fit.u)
	if err == nil {
		stdErr, cond := c.diagnostics(resFn, fit.u, tf, len(residuals), fit.cost)
		result.IllConditioned = cond > condLimit || math.IsInf(cond, 1)
		result.StdErr = make(map[string]float64, len(names))
		for i, n := range names {
			result.StdErr[n] = stdErr[i]
		}
		if result.IllConditioned {
			c.log.Warnf("fit %s: ill-conditioned Jacobian (cond %.3g), parameters may not be identifiable", result.FitID, cond)
		}
	}

	if opts.KFold >= 2 {
		rmse, mape, r2, cvErr := c.crossValidate(ctx, datasets, names, tf, x0, opts)
		if cvErr != nil {
			return model.FitResult{}, cvErr
		}
		result.RMSE, result.MAPE, result.R2 = rmse, mape, r2
	} else {
		pred, meas, mErr := c.predictions(datasets, params, allIdx)
		if mErr != nil {
			result.Message = appendMsg(result.Message, "metrics unavailable: "+mErr.Error())
		} else {
			result.RMSE, result.MAPE, result.R2 = fitMetrics(pred, meas)
		}
	}
	return result, nil
}

// searchSpace resolves bounds and the start point for the free coefficients.
func (c *Calibrator) searchSpace(names []string, opts Options) (boundTransform, []float64, error) {
	tf := boundTransform{lo: make([]float64, len(names)), hi: make([]float64, len(names))}
	x0 := make([]float64, len(names))
	for i, n := range names {
		b, ok := c.base.BoundOf(n)
		if !ok {
			return tf, nil, &model.InvalidParameterError{Name: n, Reason: "unknown coefficient"}
		}
		if override, ok := opts.Bounds[n]; ok {
			if override.Min < b.Min || override.Max > b.Max || override.Min >= override.Max {
				return tf, nil, &model.InvalidParameterError{Name: n, Value: override.Min, Reason: "bound override outside validity interval"}
			}
			b = override
		}
		if b.Min >= b.Max {
			return tf, nil, &model.InvalidParameterError{Name: n, Value: b.Min, Reason: "degenerate bound, coefficient cannot be fitted"}
		}
		tf.lo[i], tf.hi[i] = b.Min, b.Max
		v, _ := c.base.Value(n)
		if g, ok := opts.InitialGuess[n]; ok {
			v = g
		}
		if !b.Contains(v) {
			return tf, nil, &model.InvalidParameterError{Name: n, Value: v, Reason: "initial guess outside bounds"}
		}
		x0[i] = v
	}
	return tf, x0, nil
}

// fitIndices runs the (multi-start) solver against the residuals at the
// selected record indices.
func (c *Calibrator) fitIndices(ctx context.Context, datasets []model.CalibrationDataset, names []string, tf boundTransform, x0 []float64, idx [][]int, opts Options) lmOutcome {
	f := c.residualFunc(datasets, names, tf, idx)

	starts := make([][]float64, 0, opts.MultiStart)
	starts = append(starts, tf.encode(x0))
	rng := rand.New(rand.NewSource(opts.Seed))
	for len(starts) < opts.MultiStart {
		x := make([]float64, len(x0))
		for i := range x {
			x[i] = tf.lo[i] + rng.Float64()*(tf.hi[i]-tf.lo[i])
		}
		starts = append(starts, tf.encode(x))
	}

	// Starts are independent: immutable inputs, per-start outputs.
	outcomes := make([]lmOutcome, len(starts))
	var wg sync.WaitGroup
	for i, u0 := range starts {
		wg.Add(1)
		go func(i int, u0 []float64) {
			defer wg.Done()
			outcomes[i] = levenbergMarquardt(ctx, f, u0, opts.MaxIterations, opts.Tolerance)
		}(i, u0)
	}
	wg.Wait()

	best := outcomes[0]
	for _, o := range outcomes[1:] {
		if o.cost < best.cost {
			best = o
		}
	}
	return best
}

// residualFunc builds the joint residual over the selected record indices
// (one index slice per dataset). Predictions come from simulating the model
// over each dataset's full sampling axis so path dependence is honoured.
func (c *Calibrator) residualFunc(datasets []model.CalibrationDataset, names []string, tf boundTransform, idx [][]int) residualFunc {
	return func(u []float64) ([]float64, error) {
		params, err := c.base.With(decodeNamed(names, tf, u))
		if err != nil {
			return nil, err
		}
		m, err := c.factory(params)
		if err != nil {
			return nil, err
		}
		var residuals []float64
		for di, d := range datasets {
			states, err := runOverDataset(m, d)
			if err != nil {
				return nil, err
			}
			for _, ri := range idx[di] {
				rec := d.Records[ri]
				residuals = append(residuals, states[ri].CapacityRetention-rec.MeasuredRetention)
				if rec.HasResistance {
					residuals = append(residuals, states[ri].ResistanceGrowth-rec.MeasuredResistance)
				}
			}
		}
		return residuals, nil
	}
}

// runOverDataset steps the model along the dataset's sampling axis.
func runOverDataset(m aging.Model, d model.CalibrationDataset) ([]model.DegradationState, error) {
	states := make([]model.DegradationState, len(d.Records))
	state := m.InitialState()
	prevT, prevN := 0.0, 0.0
	for i, rec := range d.Records {
		next, err := m.Step(state, rec.Env, rec.TimeDays-prevT, rec.Cycles-prevN)
		if err != nil {
			return nil, err
		}
		state = next
		prevT, prevN = rec.TimeDays, rec.Cycles
		states[i] = state
	}
	return states, nil
}

// predictions simulates with the fitted parameters and pairs predicted and
// measured retention at the selected indices.
func (c *Calibrator) predictions(datasets []model.CalibrationDataset, params model.Parameters, idx [][]int) (pred, meas []float64, err error) {
	m, err := c.factory(params)
	if err != nil {
		return nil, nil, err
	}
	for di, d := range datasets {
		states, err := runOverDataset(m, d)
		if err != nil {
			return nil, nil, err
		}
		for _, ri := range idx[di] {
			pred = append(pred, states[ri].CapacityRetention)
			meas = append(meas, d.Records[ri].MeasuredRetention)
		}
	}
	return pred, meas, nil
}

// diagnostics computes per-parameter standard errors and the Jacobian
// condition number in the external coefficient space.
func (c *Calibrator) diagnostics(f residualFunc, u []float64, tf boundTransform, m int, ssr float64) ([]float64, float64) {
	n := len(u)
	ju := jacobianAt(f, u, m)

	// Chain rule back to the bounded space: dx/du = (hi-lo)/2 * cos(u).
	jx := mat.NewDense(m, n, nil)
	degenerate := false
	for j := 0; j < n; j++ {
		dxdu := (tf.hi[j] - tf.lo[j]) / 2 * math.Cos(u[j])
		if math.Abs(dxdu) < 1e-12 {
			// Parameter pinned at a bound; sensitivity is unavailable.
			degenerate = true
			dxdu = math.Copysign(1e-12, dxdu)
		}
		for i := 0; i < m; i++ {
			jx.Set(i, j, ju.At(i, j)/dxdu)
		}
	}

	var svd mat.SVD
	if !svd.Factorize(jx, mat.SVDThin) {
		return nanSlice(n), math.Inf(1)
	}
	sv := svd.Values(nil)
	cond := math.Inf(1)
	if sv[len(sv)-1] > 0 {
		cond = sv[0] / sv[len(sv)-1]
	}
	if degenerate {
		cond = math.Inf(1)
	}

	stdErr := nanSlice(n)
	dof := m - n
	if dof > 0 && !math.IsInf(cond, 1) {
		sigma2 := ssr / float64(dof)
		var v mat.Dense
		svd.VTo(&v)
		for i := 0; i < n; i++ {
			var s float64
			for k := 0; k < len(sv); k++ {
				vi := v.At(i, k)
				s += vi * vi / (sv[k] * sv[k])
			}
			stdErr[i] = math.Sqrt(sigma2 * s)
		}
	}
	return stdErr, cond
}

// crossValidate fits on k-1 contiguous, time-ordered folds and evaluates on
// the held-out fold, averaging the metrics across folds.
func (c *Calibrator) crossValidate(ctx context.Context, datasets []model.CalibrationDataset, names []string, tf boundTransform, x0 []float64, opts Options) (rmse, mape, r2 float64, err error) {
	k := opts.KFold
	for _, d := range datasets {
		if len(d.Records) < k {
			return 0, 0, 0, &model.InsufficientDataError{Dataset: d.ExperimentID, Records: len(d.Records), Free: k}
		}
	}

	var rmses, mapes, r2s []float64
	for fold := 0; fold < k; fold++ {
		train := make([][]int, len(datasets))
		test := make([][]int, len(datasets))
		for di, d := range datasets {
			lo := fold * len(d.Records) / k
			hi := (fold + 1) * len(d.Records) / k
			for ri := range d.Records {
				if ri >= lo && ri < hi {
					test[di] = append(test[di], ri)
				} else {
					train[di] = append(train[di], ri)
				}
			}
		}
		fit := c.fitIndices(ctx, datasets, names, tf, x0, train, opts)
		if math.IsInf(fit.cost, 1) {
			continue
		}
		params, pErr := c.base.With(decodeNamed(names, tf, fit.u))
		if pErr != nil {
			return 0, 0, 0, pErr
		}
		pred, meas, mErr := c.predictions(datasets, params, test)
		if mErr != nil {
			continue
		}
		fr, fm, f2 := fitMetrics(pred, meas)
		rmses = append(rmses, fr)
		mapes = append(mapes, fm)
		r2s = append(r2s, f2)
	}
	if len(rmses) == 0 {
		return math.NaN(), math.NaN(), math.NaN(), nil
	}
	return mean(rmses), mean(mapes), mean(r2s), nil
}

func decodeNamed(names []string, tf boundTransform, u []float64) map[string]float64 {
	x := tf.decode(u)
	values := make(map[string]float64, len(names))
	for i, n := range names {
		values[n] = x[i]
	}
	return values
}

func allIndices(datasets []model.CalibrationDataset) [][]int {
	idx := make([][]int, len(datasets))
	for di, d := range datasets {
		idx[di] = make([]int, len(d.Records))
		for ri := range d.Records {
			idx[di][ri] = ri
		}
	}
	return idx
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func mean(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

func appendMsg(msg, extra string) string {
	if msg == "" {
		return extra
	}
	return msg + "; " + extra
}
