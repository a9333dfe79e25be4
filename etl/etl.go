package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/souvik131/options-tracker/bs"
	"github.com/souvik131/options-tracker/notify"
	"github.com/souvik131/options-tracker/rates"
	"github.com/souvik131/options-tracker/scraper"
	"github.com/souvik131/options-tracker/score"
	"github.com/souvik131/options-tracker/snapshot"
	"github.com/souvik131/options-tracker/store"
	"github.com/souvik131/options-tracker/valuation"
)

// Source provides the day's scraped inputs.
type Source interface {
	FetchOverview(ctx context.Context) (*scraper.Overview, error)
	FetchAllChains(ctx context.Context) ([]scraper.Contract, error)
}

// Storage is the slice of the store the run needs. *store.Store satisfies
// it.
type Storage interface {
	SaveOverview(ctx context.Context, ov *store.OptionOverview) error
	OverviewExists(ctx context.Context, ticker string, asOf time.Time) (bool, error)
	SaveContracts(ctx context.Context, contracts []store.OptionContract) error
	ContractsForDay(ctx context.Context, ticker string, asOf time.Time) ([]store.OptionContract, error)
	SpotForDay(ctx context.Context, ticker string, asOf time.Time) (float64, error)
	SaveGreeks(ctx context.Context, greeks []store.OptionGreeks) error
	SaveScore(ctx context.Context, s *store.OptionScore) error
	OverviewForDay(ctx context.Context, ticker string, asOf time.Time) (*store.OptionOverview, error)
	GreeksForDay(ctx context.Context, ticker string, asOf time.Time) ([]store.OptionGreeks, error)
	ScoreMissingDays(ctx context.Context, ticker string) ([]time.Time, error)
}

// Publisher pushes the day's greeks onto a message bus. *nats.Conn
// satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Runner executes one end-to-end daily run: scrape, persist, value, score,
// archive, publish, notify. Failures after the contracts are stored are
// logged but do not fail the run, the raw data is already safe.
type Runner struct {
	Ticker        string
	SymbolCode    string
	DividendYield float64
	// Force reprocesses a reference date that is already stored.
	Force bool

	Source    Source
	Store     Storage
	Rates     rates.Provider
	Pipeline  *valuation.Pipeline
	Archive   *snapshot.Archive
	Uploader  *snapshot.Uploader
	Publisher Publisher
	Notifier  notify.Notifier
}

// Run processes one trading day.
func (r *Runner) Run(ctx context.Context) error {
	start := time.Now()

	ov, err := r.Source.FetchOverview(ctx)
	if err != nil {
		return fmt.Errorf("etl: overview: %w", err)
	}
	if ov.AsOfDate.IsZero() {
		log.Info("overview carries no reference date, market likely closed")
		return nil
	}
	asOf := ov.AsOfDate

	if !r.Force {
		exists, err := r.Store.OverviewExists(ctx, r.Ticker, asOf)
		if err != nil {
			return fmt.Errorf("etl: check reference date: %w", err)
		}
		if exists {
			log.WithField("as_of", asOf.Format("2006-01-02")).Info("reference date already processed, skipping")
			return nil
		}
	}

	if err := r.Store.SaveOverview(ctx, store.OverviewFromScrape(ov)); err != nil {
		return fmt.Errorf("etl: save overview: %w", err)
	}

	chain, err := r.Source.FetchAllChains(ctx)
	if err != nil {
		return fmt.Errorf("etl: chains: %w", err)
	}
	if len(chain) == 0 {
		log.Warn("no contracts scraped, stopping after overview")
		return nil
	}

	scrapedAt := time.Now().UTC()
	rows := make([]store.OptionContract, 0, len(chain))
	for _, c := range chain {
		rows = append(rows, store.ContractFromScrape(c, r.Ticker, r.SymbolCode, ov.Source, asOf, scrapedAt))
	}
	if err := r.Store.SaveContracts(ctx, rows); err != nil {
		return fmt.Errorf("etl: save contracts: %w", err)
	}

	contracts, err := r.Store.ContractsForDay(ctx, r.Ticker, asOf)
	if err != nil {
		return fmt.Errorf("etl: load contracts: %w", err)
	}
	spot, err := r.Store.SpotForDay(ctx, r.Ticker, asOf)
	if err != nil {
		return fmt.Errorf("etl: resolve spot: %w", err)
	}

	quotes := make([]valuation.ContractQuote, 0, len(contracts))
	for _, c := range contracts {
		quotes = append(quotes, store.QuoteFromContract(c))
	}
	// The raw chain is stored at this point; everything below is derived data
	// and must not fail the run.
	report, err := r.Pipeline.Run(valuation.MarketContext{
		Spot:          spot,
		ValuationDate: asOf,
		DividendYield: r.DividendYield,
		RiskFreeRate: func(days int) float64 {
			return r.Rates.RateForDays(ctx, days)
		},
	}, quotes)
	if err != nil {
		log.Warnf("valuation failed, continuing without greeks: %v", err)
		report = &valuation.Report{}
	}

	greeks := make([]store.OptionGreeks, 0, len(report.Results))
	for _, res := range report.Results {
		greeks = append(greeks, store.GreeksFromResult(res, r.Ticker, asOf))
	}
	if err := r.Store.SaveGreeks(ctx, greeks); err != nil {
		log.Warnf("save greeks failed: %v", err)
	}

	card := r.computeScore(ctx, score.Macro{
		Spot:         ov.Spot,
		Change:       ov.Change,
		CallPutRatio: ov.CallPutRatio,
	}, asOf, contracts, greeks)
	r.archive(ctx, asOf, greeks)
	r.publish(greeks)
	r.notifySummary(ctx, asOf, len(contracts), report, card)

	log.WithFields(log.Fields{
		"ticker":    r.Ticker,
		"as_of":     asOf.Format("2006-01-02"),
		"contracts": len(contracts),
		"priced":    report.Priced,
		"took":      time.Since(start).Round(time.Millisecond),
	}).Info("run finished")
	return nil
}

// BackfillScores scores stored days that have greeks but no score row yet,
// for example after the scoring logic changed.
func (r *Runner) BackfillScores(ctx context.Context) error {
	days, err := r.Store.ScoreMissingDays(ctx, r.Ticker)
	if err != nil {
		return fmt.Errorf("etl: missing score days: %w", err)
	}
	for _, day := range days {
		ov, err := r.Store.OverviewForDay(ctx, r.Ticker, day)
		if err != nil {
			log.Warnf("backfill %s: overview: %v", day.Format("2006-01-02"), err)
			continue
		}
		contracts, err := r.Store.ContractsForDay(ctx, r.Ticker, day)
		if err != nil {
			log.Warnf("backfill %s: contracts: %v", day.Format("2006-01-02"), err)
			continue
		}
		greeks, err := r.Store.GreeksForDay(ctx, r.Ticker, day)
		if err != nil {
			log.Warnf("backfill %s: greeks: %v", day.Format("2006-01-02"), err)
			continue
		}
		r.computeScore(ctx, score.Macro{
			Spot:         ov.Spot,
			Change:       ov.Change,
			CallPutRatio: ov.CPRatio,
		}, day, contracts, greeks)
	}
	if len(days) > 0 {
		log.WithField("days", len(days)).Info("score backfill finished")
	}
	return nil
}

func (r *Runner) computeScore(ctx context.Context, macro score.Macro, asOf time.Time, contracts []store.OptionContract, greeks []store.OptionGreeks) *score.Card {
	lastByID := make(map[int64]float64, len(contracts))
	for _, c := range contracts {
		lastByID[c.ID] = c.Last
	}

	scoreRows := make([]score.GreekRow, 0, len(greeks))
	for _, g := range greeks {
		scoreRows = append(scoreRows, score.GreekRow{
			Type:   bs.OptionType(g.Type),
			Strike: g.Strike,
			IV:     g.IV,
			Delta:  g.Delta,
			Gamma:  g.Gamma,
			Vega:   g.Vega,
			Last:   lastByID[g.ContractID],
		})
	}

	card, err := score.Compute(macro, scoreRows)
	if err != nil {
		log.Warnf("score skipped: %v", err)
		return nil
	}
	if err := r.Store.SaveScore(ctx, store.ScoreFromCard(card, r.Ticker, asOf)); err != nil {
		log.Warnf("save score failed: %v", err)
	}
	return card
}

func (r *Runner) archive(ctx context.Context, asOf time.Time, greeks []store.OptionGreeks) {
	if r.Archive == nil || len(greeks) == 0 {
		return
	}
	path, err := r.Archive.Append(r.Ticker, asOf, greeks)
	if err != nil {
		log.Warnf("archive failed: %v", err)
		return
	}
	if r.Uploader != nil {
		if _, err := r.Uploader.Upload(ctx, path); err != nil {
			log.Warnf("archive upload failed: %v", err)
		}
	}
}

func (r *Runner) publish(greeks []store.OptionGreeks) {
	if r.Publisher == nil || len(greeks) == 0 {
		return
	}
	payload, err := json.Marshal(greeks)
	if err != nil {
		log.Warnf("marshal greeks for publish: %v", err)
		return
	}
	if err := r.Publisher.Publish("greeks."+r.Ticker, payload); err != nil {
		log.Warnf("publish failed: %v", err)
	}
}

func (r *Runner) notifySummary(ctx context.Context, asOf time.Time, contracts int, report *valuation.Report, card *score.Card) {
	if r.Notifier == nil {
		return
	}
	text := fmt.Sprintf("%s %s: %d contracts, %d priced (skipped %d no price, %d expired, %d no IV)",
		r.Ticker, asOf.Format("2006-01-02"), contracts,
		report.Priced, report.SkippedNoPrice, report.SkippedExpired, report.SkippedNoIV)
	if card != nil {
		text += fmt.Sprintf(", signal %s (%.2f)", card.Signal, card.TotalScore)
	}
	if err := r.Notifier.Send(ctx, text); err != nil {
		log.Warnf("notify failed: %v", err)
	}
}
