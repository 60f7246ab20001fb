package calib

import (
	"context"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// residualFunc evaluates the residual vector at a point in the unbounded
// internal coordinate space.
type residualFunc func(u []float64) ([]float64, error)

// lmOutcome is the raw solver output before fit diagnostics are attached.
type lmOutcome struct {
	u          []float64
	cost       float64 // sum of squared residuals
	iterations int
	converged  bool
	history    []float64
	message    string
}

// boundTransform maps between the bounded external coefficient space and the
// unbounded space the solver works in, using the sine transform
// x = lo + (hi-lo)*(sin(u)+1)/2. Candidate points therefore always satisfy
// the bounds and the solver needs no projection step.
type boundTransform struct {
	lo, hi []float64
}

func (t boundTransform) encode(x []float64) []float64 {
	u := make([]float64, len(x))
	for i := range x {
		span := t.hi[i] - t.lo[i]
		frac := 2*(x[i]-t.lo[i])/span - 1
		// Keep the start strictly inside the bound so the Jacobian is
		// non-degenerate at the first iteration.
		frac = math.Max(-0.999, math.Min(0.999, frac))
		u[i] = math.Asin(frac)
	}
	return u
}

func (t boundTransform) decode(u []float64) []float64 {
	x := make([]float64, len(u))
	for i := range u {
		x[i] = t.lo[i] + (t.hi[i]-t.lo[i])*(math.Sin(u[i])+1)/2
	}
	return x
}

// levenbergMarquardt minimises the sum of squared residuals of f starting at
// u0. The Jacobian is approximated by central finite differences; the damped
// normal equations are solved with gonum's dense solver. Iteration stops on
// relative cost improvement below tol, the iteration cap, or context
// cancellation (which returns the best point found so far).
func levenbergMarquardt(ctx context.Context, f residualFunc, u0 []float64, maxIter int, tol float64) lmOutcome {
	n := len(u0)
	u := make([]float64, n)
	copy(u, u0)

	res, err := f(u)
	if err != nil {
		return lmOutcome{u: u, cost: math.Inf(1), message: "initial point infeasible: " + err.Error()}
	}
	cost := floats.Dot(res, res)
	out := lmOutcome{u: u, cost: cost, history: []float64{math.Sqrt(cost)}}

	lambda := 1e-3
	jac := mat.NewDense(len(res), n, nil)
	for iter := 1; iter <= maxIter; iter++ {
		out.iterations = iter
		if ctx.Err() != nil {
			out.message = "cancelled: " + ctx.Err().Error()
			return out
		}

		fd.Jacobian(jac, func(y, x []float64) {
			r, ferr := f(x)
			if ferr != nil {
				// An infeasible probe point: steer the solver away.
				for i := range y {
					y[i] = 1e6
				}
				return
			}
			copy(y, r)
		}, u, &fd.JacobianSettings{Formula: fd.Central})

		// Normal equations with Marquardt damping on the diagonal.
		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		g := mat.NewVecDense(n, nil)
		g.MulVec(jac.T(), mat.NewVecDense(len(res), res))

		improved := false
		for try := 0; try < 8; try++ {
			a := mat.NewDense(n, n, nil)
			a.CloneFrom(&jtj)
			for i := 0; i < n; i++ {
				d := jtj.At(i, i)
				if d <= 0 {
					d = 1
				}
				a.Set(i, i, jtj.At(i, i)+lambda*d)
			}
			delta := mat.NewVecDense(n, nil)
			if err := delta.SolveVec(a, g); err != nil {
				lambda *= 10
				continue
			}

			trial := make([]float64, n)
			for i := range trial {
				trial[i] = u[i] - delta.AtVec(i)
			}
			trialRes, ferr := f(trial)
			if ferr != nil {
				lambda *= 10
				continue
			}
			trialCost := floats.Dot(trialRes, trialRes)
			if trialCost < cost {
				rel := (cost - trialCost) / math.Max(cost, 1e-300)
				copy(u, trial)
				res = trialRes
				cost = trialCost
				out.u = u
				out.cost = cost
				out.history = append(out.history, math.Sqrt(cost))
				lambda = math.Max(lambda/3, 1e-12)
				improved = true
				if rel < tol {
					out.converged = true
					return out
				}
				break
			}
			lambda *= 2
		}
		if !improved {
			// The damped step cannot reduce the cost any further; treat the
			// point as a (possibly local) minimum but say so.
			out.converged = true
			out.message = "stalled: damping exhausted without cost reduction"
			out.history = append(out.history, math.Sqrt(cost))
			return out
		}
	}
	out.message = "iteration cap reached"
	return out
}

// jacobianAt computes the residual Jacobian at u for diagnostics.
func jacobianAt(f residualFunc, u []float64, m int) *mat.Dense {
	jac := mat.NewDense(m, len(u), nil)
	fd.Jacobian(jac, func(y, x []float64) {
		r, err := f(x)
		if err != nil {
			for i := range y {
				y[i] = 1e6
			}
			return
		}
		copy(y, r)
	}, u, &fd.JacobianSettings{Formula: fd.Central})
	return jac
}
