package bs

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoConvergence is the base failure for the implied volatility solver.
// Non-convergence is an expected outcome on illiquid or stale quotes, so
// callers must check it rather than the returned sigma.
var ErrNoConvergence = errors.New("bs: implied volatility did not converge")

var (
	// ErrIVStalled means vega collapsed below MinVega before the price
	// difference closed, typically deep out of the money or near expiry.
	ErrIVStalled = fmt.Errorf("%w: vega too small to make progress", ErrNoConvergence)
	// ErrIVDiverged means the Newton-Raphson update left the (0, MaxVol] range.
	ErrIVDiverged = fmt.Errorf("%w: sigma left sane bounds", ErrNoConvergence)
	// ErrIVMaxIterations means the iteration budget ran out.
	ErrIVMaxIterations = fmt.Errorf("%w: max iterations exceeded", ErrNoConvergence)
)

// IVSolver finds the volatility that reproduces an observed market price via
// Newton-Raphson, using the model's own vega as the derivative.
type IVSolver struct {
	InitialGuess float64 // starting sigma, a market-wide prior
	Tol          float64 // convergence tolerance in price units
	MaxIter      int     // iteration cap
	MinVega      float64 // below this the derivative is too flat to trust
	MaxVol       float64 // sanity ceiling on sigma
}

// DefaultIVSolver returns the production configuration: 30% initial guess,
// 1e-6 price tolerance, 100 iterations, 500% volatility ceiling.
func DefaultIVSolver() IVSolver {
	return IVSolver{
		InitialGuess: 0.3,
		Tol:          1e-6,
		MaxIter:      100,
		MinVega:      1e-8,
		MaxVol:       5.0,
	}
}

// Solve returns sigma such that Price(p, sigma, typ) matches marketPrice within
// Tol. On failure the returned error wraps ErrNoConvergence and sigma is zero.
func (s IVSolver) Solve(p Params, typ OptionType, marketPrice float64) (float64, error) {
	sigma := s.InitialGuess
	for i := 0; i < s.MaxIter; i++ {
		model, err := Price(p, sigma, typ)
		if err != nil {
			return 0, err
		}
		diff := model - marketPrice
		if math.Abs(diff) < s.Tol {
			return sigma, nil
		}
		vega, err := Vega(p, sigma)
		if err != nil {
			return 0, err
		}
		if vega < s.MinVega {
			return 0, ErrIVStalled
		}
		sigma -= diff / vega
		if sigma <= 0 || sigma > s.MaxVol {
			return 0, ErrIVDiverged
		}
	}
	return 0, ErrIVMaxIterations
}
