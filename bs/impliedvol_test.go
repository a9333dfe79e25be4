package bs_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souvik131/options-tracker/bs"
)

func TestIVSolverRoundTrip(t *testing.T) {
	solver := bs.DefaultIVSolver()
	p := bs.Params{S: 100, K: 105, T: 0.5, R: 0.03, Q: 0.01}

	for sigma := 0.05; sigma <= 2.0; sigma += 0.15 {
		for _, typ := range []bs.OptionType{bs.Call, bs.Put} {
			price, err := bs.Price(p, sigma, typ)
			require.NoError(t, err)

			solved, err := solver.Solve(p, typ, price)
			require.NoError(t, err, "sigma=%v type=%v", sigma, typ)
			assert.InDelta(t, sigma, solved, 1e-4, "sigma=%v type=%v", sigma, typ)
		}
	}
}

func TestIVSolverATM(t *testing.T) {
	solver := bs.DefaultIVSolver()
	p := bs.Params{S: 100, K: 100, T: 1, R: 0.05}

	t.Run("Call", func(t *testing.T) {
		iv, err := solver.Solve(p, bs.Call, 10.4506)
		require.NoError(t, err)
		assert.InDelta(t, 0.20, iv, 1e-4)
	})

	t.Run("Put", func(t *testing.T) {
		iv, err := solver.Solve(p, bs.Put, 5.5735)
		require.NoError(t, err)
		assert.InDelta(t, 0.20, iv, 1e-4)
	})
}

func TestIVSolverScenario(t *testing.T) {
	// Near ATM call on a 36.84 spot, 29 days out, quoted at 0.85.
	solver := bs.DefaultIVSolver()
	p := bs.Params{S: 36.84, K: 37, T: 29.0 / 365, R: 0.02}

	iv, err := solver.Solve(p, bs.Call, 0.85)
	require.NoError(t, err)
	assert.Greater(t, iv, 0.20)
	assert.Less(t, iv, 0.23)

	delta, err := bs.Delta(p, iv, bs.Call)
	require.NoError(t, err)
	assert.Greater(t, delta, 0.40)
	assert.Less(t, delta, 0.55)

	// The put priced off put-call parity must imply the same volatility.
	call, err := bs.Price(p, iv, bs.Call)
	require.NoError(t, err)
	putPrice := call - (p.S - p.K*math.Exp(-p.R*p.T))

	putIV, err := solver.Solve(p, bs.Put, putPrice)
	require.NoError(t, err)
	assert.InDelta(t, iv, putIV, 1e-4)
}

func TestIVSolverDeepOTM(t *testing.T) {
	// Far out of the money with a price below the minimum tick: the solver
	// must report non-convergence, not a wild extrapolated volatility.
	solver := bs.DefaultIVSolver()
	p := bs.Params{S: 36, K: 60, T: 0.05, R: 0.02}

	_, err := solver.Solve(p, bs.Call, 0.001)
	require.Error(t, err)
	assert.ErrorIs(t, err, bs.ErrNoConvergence)
}

func TestIVSolverUnrealisticPrice(t *testing.T) {
	solver := bs.DefaultIVSolver()
	p := bs.Params{S: 100, K: 100, T: 1, R: 0.05}

	_, err := solver.Solve(p, bs.Call, 0.00001)
	require.Error(t, err)
	assert.ErrorIs(t, err, bs.ErrNoConvergence)
}

func TestIVSolverTunables(t *testing.T) {
	// A one-iteration budget cannot converge from the default guess.
	solver := bs.DefaultIVSolver()
	solver.MaxIter = 1
	p := bs.Params{S: 100, K: 100, T: 1, R: 0.05}

	_, err := solver.Solve(p, bs.Call, 10.4506)
	assert.ErrorIs(t, err, bs.ErrIVMaxIterations)
}
