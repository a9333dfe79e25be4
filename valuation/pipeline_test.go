package valuation_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souvik131/options-tracker/bs"
	"github.com/souvik131/options-tracker/valuation"
)

var valuationDate = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func fixedRate(r float64) valuation.RateFunc {
	return func(int) float64 { return r }
}

func marketContext() valuation.MarketContext {
	return valuation.MarketContext{
		Spot:          36.84,
		ValuationDate: valuationDate,
		RiskFreeRate:  fixedRate(0.02),
	}
}

// quoteAt builds a quote priced exactly at the model value for sigma, so the
// solver is guaranteed a root.
func quoteAt(t *testing.T, id int64, strike float64, days int, typ bs.OptionType, sigma float64) valuation.ContractQuote {
	t.Helper()
	p := bs.Params{S: 36.84, K: strike, T: float64(days) / 365, R: 0.02}
	price, err := bs.Price(p, sigma, typ)
	require.NoError(t, err)
	return valuation.ContractQuote{
		ID:     id,
		Strike: strike,
		Expiry: valuationDate.AddDate(0, 0, days),
		Type:   typ,
		Last:   price,
	}
}

func TestRunPricesBatch(t *testing.T) {
	pl := valuation.NewPipeline()
	quotes := []valuation.ContractQuote{
		quoteAt(t, 1, 37, 29, bs.Call, 0.21),
		quoteAt(t, 2, 37, 29, bs.Put, 0.21),
		quoteAt(t, 3, 40, 92, bs.Call, 0.25),
	}

	report, err := pl.Run(marketContext(), quotes)
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	assert.Equal(t, 3, report.Priced)

	for _, res := range report.Results {
		assert.InDelta(t, map[int64]float64{1: 0.21, 2: 0.21, 3: 0.25}[res.ContractID], res.ImpliedVol, 1e-4)
		for name, g := range map[string]float64{
			"delta": res.Delta, "gamma": res.Gamma, "vega": res.Vega, "theta": res.Theta,
		} {
			assert.False(t, math.IsNaN(g) || math.IsInf(g, 0), "contract %d %s", res.ContractID, name)
		}
	}
}

func TestRunSkipAccounting(t *testing.T) {
	pl := valuation.NewPipeline()
	quotes := []valuation.ContractQuote{
		// No bid, ask or last: no price signal.
		{ID: 1, Strike: 37, Expiry: valuationDate.AddDate(0, 0, 30), Type: bs.Call},
		// Expires on the valuation date itself.
		{ID: 2, Strike: 37, Expiry: valuationDate, Type: bs.Put, Last: 0.55},
	}

	report, err := pl.Run(marketContext(), quotes)
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Equal(t, 0, report.Priced)
	assert.Equal(t, 1, report.SkippedNoPrice)
	assert.Equal(t, 1, report.SkippedExpired)
}

func TestRunInvalidSpotAbortsBatch(t *testing.T) {
	pl := valuation.NewPipeline()
	ctx := marketContext()
	ctx.Spot = 0

	_, err := pl.Run(ctx, []valuation.ContractQuote{quoteAt(t, 1, 37, 29, bs.Call, 0.21)})
	assert.ErrorIs(t, err, valuation.ErrInvalidSpot)
}

func TestRunMidPreferredOverLast(t *testing.T) {
	pl := valuation.NewPipeline()
	p := bs.Params{S: 36.84, K: 37, T: 29.0 / 365, R: 0.02}
	mid, err := bs.Price(p, 0.21, bs.Call)
	require.NoError(t, err)

	q := valuation.ContractQuote{
		ID:     1,
		Strike: 37,
		Expiry: valuationDate.AddDate(0, 0, 29),
		Type:   bs.Call,
		Bid:    mid - 0.02,
		Ask:    mid + 0.02,
		Last:   9.99, // stale, must be ignored when both sides are live
	}

	report, err := pl.Run(marketContext(), []valuation.ContractQuote{q})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	res := report.Results[0]
	assert.InDelta(t, mid, res.Price, 1e-9)
	assert.InDelta(t, 0.21, res.ImpliedVol, 1e-4)
	// Both legs quoted, so bid/ask vols bracket the mid vol.
	assert.Greater(t, res.AskIV, res.ImpliedVol)
	assert.Less(t, res.BidIV, res.ImpliedVol)
}

func TestRunSkipsNonConvergent(t *testing.T) {
	pl := valuation.NewPipeline()
	quotes := []valuation.ContractQuote{
		// Deep OTM priced below any reachable model value.
		{ID: 1, Strike: 60, Expiry: valuationDate.AddDate(0, 0, 18), Type: bs.Call, Last: 0.001},
		quoteAt(t, 2, 37, 29, bs.Call, 0.21),
	}

	report, err := pl.Run(marketContext(), quotes)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, int64(2), report.Results[0].ContractID)
	assert.Equal(t, 1, report.SkippedNoIV)
}

func TestRunNonFiniteGreekSkipped(t *testing.T) {
	pl := valuation.NewPipeline()

	// A denormal-scale underlying keeps the price solvable (the quote sits
	// exactly on the model value at the solver's initial guess) while gamma's
	// 1/(S*sigma*sqrt(T)) factor overflows to +Inf.
	const scale = 1e-308
	ctx := valuation.MarketContext{
		Spot:          scale,
		ValuationDate: valuationDate,
		RiskFreeRate:  fixedRate(0.02),
	}
	p := bs.Params{S: scale, K: scale, T: 1.0 / 365, R: 0.02}
	price, err := bs.Price(p, 0.3, bs.Call)
	require.NoError(t, err)
	require.Greater(t, price, 0.0)

	gamma, err := bs.Gamma(p, 0.3)
	require.NoError(t, err)
	require.True(t, math.IsInf(gamma, 1))

	report, err := pl.Run(ctx, []valuation.ContractQuote{{
		ID:     1,
		Strike: scale,
		Expiry: valuationDate.AddDate(0, 0, 1),
		Type:   bs.Call,
		Last:   price,
	}})
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Equal(t, 1, report.SkippedBadGreek)
}

func TestRunExpiredContract(t *testing.T) {
	pl := valuation.NewPipeline()
	quotes := []valuation.ContractQuote{
		{ID: 1, Strike: 37, Expiry: valuationDate.AddDate(0, 0, -7), Type: bs.Call, Last: 1.5},
	}

	report, err := pl.Run(marketContext(), quotes)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SkippedExpired)
	assert.Empty(t, report.Results)
}
