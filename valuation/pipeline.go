package valuation

import (
	"errors"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/souvik131/options-tracker/bs"
)

// ErrInvalidSpot aborts a whole batch: nothing is priceable without a valid
// underlying price.
var ErrInvalidSpot = errors.New("valuation: market context has non-positive spot")

// minTimeToExpiry floors t at roughly 8.7 hours of time value so same-day
// expiries that slip through never divide by zero.
const minTimeToExpiry = 0.001

// RateFunc maps days-to-expiry to an annualized risk-free rate. The pipeline
// treats it as an injected dependency; see the rates package for the Euribor
// implementation.
type RateFunc func(daysToExpiry int) float64

// ContractQuote is one option instance to be priced. Bid, Ask and Last are
// zero when the source had no usable value, matching the scraped data.
type ContractQuote struct {
	ID     int64
	Strike float64
	Expiry time.Time
	Type   bs.OptionType
	Bid    float64
	Ask    float64
	Last   float64
}

// MarketContext holds the inputs shared across a batch of contracts.
type MarketContext struct {
	Spot          float64
	ValuationDate time.Time
	DividendYield float64
	RiskFreeRate  RateFunc
}

// Result is the per-contract output. The invariant is all-or-nothing: a Result
// exists only when the implied vol converged and every Greek is finite.
// BidIV/AskIV are best-effort extras and stay zero when their leg is missing
// or did not converge.
type Result struct {
	ContractID   int64
	Strike       float64
	Expiry       time.Time
	Type         bs.OptionType
	DaysToExpiry int
	Price        float64
	ImpliedVol   float64
	BidIV        float64
	AskIV        float64
	Delta        float64
	Gamma        float64
	Vega         float64
	Theta        float64
}

// Report aggregates a batch run: the priced results plus skip counts for
// observability. Skips are fully local, a bad quote never aborts the batch.
type Report struct {
	Results []Result

	Priced          int
	SkippedNoPrice  int
	SkippedExpired  int
	SkippedNoIV     int
	SkippedBadGreek int
}

// Pipeline computes implied volatility and Greeks across a batch of quotes
// sharing one market context.
type Pipeline struct {
	Solver bs.IVSolver
}

// NewPipeline returns a pipeline with the default solver configuration.
func NewPipeline() *Pipeline {
	return &Pipeline{Solver: bs.DefaultIVSolver()}
}

// usablePrice picks the mid of bid/ask when both sides are live, otherwise the
// last trade. Zero means no price signal at all.
func usablePrice(q ContractQuote) float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return 0.5 * (q.Bid + q.Ask)
	}
	if q.Last > 0 {
		return q.Last
	}
	return 0
}

// Run prices every quote in the batch. It returns an error only for an invalid
// market context; per-contract failures are counted on the report instead.
func (pl *Pipeline) Run(ctx MarketContext, quotes []ContractQuote) (*Report, error) {
	if ctx.Spot <= 0 {
		return nil, ErrInvalidSpot
	}
	if ctx.RiskFreeRate == nil {
		return nil, errors.New("valuation: market context has no rate function")
	}

	report := &Report{}
	for _, q := range quotes {
		pl.priceContract(ctx, q, report)
	}

	log.WithFields(log.Fields{
		"priced":     report.Priced,
		"no_price":   report.SkippedNoPrice,
		"expired":    report.SkippedExpired,
		"no_iv":      report.SkippedNoIV,
		"bad_greeks": report.SkippedBadGreek,
	}).Info("valuation batch finished")

	return report, nil
}

func (pl *Pipeline) priceContract(ctx MarketContext, q ContractQuote, report *Report) {
	price := usablePrice(q)
	if price <= 0 {
		report.SkippedNoPrice++
		return
	}

	days := daysBetween(ctx.ValuationDate, q.Expiry)
	if days <= 0 || q.Strike <= 0 {
		report.SkippedExpired++
		return
	}

	p := bs.Params{
		S: ctx.Spot,
		K: q.Strike,
		T: math.Max(float64(days)/365, minTimeToExpiry),
		R: ctx.RiskFreeRate(days),
		Q: ctx.DividendYield,
	}

	sigma, err := pl.Solver.Solve(p, q.Type, price)
	if err != nil {
		report.SkippedNoIV++
		log.WithFields(log.Fields{
			"contract": q.ID,
			"strike":   q.Strike,
			"type":     q.Type,
		}).Debug("no implied vol: ", err)
		return
	}

	delta, err := bs.Delta(p, sigma, q.Type)
	if err != nil {
		report.SkippedBadGreek++
		return
	}
	gamma, err := bs.Gamma(p, sigma)
	if err != nil {
		report.SkippedBadGreek++
		return
	}
	vega, err := bs.Vega(p, sigma)
	if err != nil {
		report.SkippedBadGreek++
		return
	}
	theta, err := bs.Theta(p, sigma, q.Type)
	if err != nil {
		report.SkippedBadGreek++
		return
	}
	if !allFinite(sigma, delta, gamma, vega, theta) {
		report.SkippedBadGreek++
		return
	}

	res := Result{
		ContractID:   q.ID,
		Strike:       q.Strike,
		Expiry:       q.Expiry,
		Type:         q.Type,
		DaysToExpiry: days,
		Price:        price,
		ImpliedVol:   sigma,
		Delta:        delta,
		Gamma:        gamma,
		Vega:         vega,
		Theta:        theta,
	}

	// Bid and ask imply their own vols when both legs are quoted; these are
	// extra diagnostics from the same solver, never separate model variants.
	if q.Bid > 0 && q.Ask > 0 {
		if iv, err := pl.Solver.Solve(p, q.Type, q.Bid); err == nil {
			res.BidIV = iv
		}
		if iv, err := pl.Solver.Solve(p, q.Type, q.Ask); err == nil {
			res.AskIV = iv
		}
	}

	report.Results = append(report.Results, res)
	report.Priced++
}

// daysBetween returns whole calendar days from valuation date to expiry,
// ignoring the time-of-day component of either date.
func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}

func allFinite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
