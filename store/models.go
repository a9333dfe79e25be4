package store

import (
	"time"

	"github.com/souvik131/options-tracker/bs"
	"github.com/souvik131/options-tracker/scraper"
	"github.com/souvik131/options-tracker/score"
	"github.com/souvik131/options-tracker/valuation"
)

// Column names stay aligned with the original MySQL schema so existing
// dashboards keep reading the same tables.

// OptionOverview is one underlying quote header plus chain totals per
// reference date.
type OptionOverview struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	Ticker     string    `gorm:"size:10;uniqueIndex:uniq_overview"`
	SymbolCode string    `gorm:"size:20;column:symbol_code"`
	Name       string    `gorm:"size:64;column:onderliggende_waarde"`
	Spot       float64   `gorm:"column:koers"`
	Previous   float64   `gorm:"column:vorige"`
	Change     float64   `gorm:"column:delta"`
	ChangePct  float64   `gorm:"column:delta_pct"`
	High       float64   `gorm:"column:hoog"`
	Low        float64   `gorm:"column:laag"`
	VolumeUL   int       `gorm:"column:volume_ul"`
	QuoteTime  string    `gorm:"size:10;column:tijd"`
	TotVolume  int       `gorm:"column:totaal_volume"`
	TotVolumeC int       `gorm:"column:totaal_volume_calls"`
	TotVolumeP int       `gorm:"column:totaal_volume_puts"`
	TotOIOpen  int       `gorm:"column:totaal_oi_opening"`
	TotOICalls int       `gorm:"column:totaal_oi_calls"`
	TotOIPuts  int       `gorm:"column:totaal_oi_puts"`
	CPRatio    float64   `gorm:"column:call_put_ratio"`
	AsOfDate   time.Time `gorm:"column:peildatum;type:date;uniqueIndex:uniq_overview"`
	ScrapedAt  time.Time `gorm:"column:scraped_at"`
	Source     string    `gorm:"size:255"`
}

func (OptionOverview) TableName() string { return "fd_option_overview" }

// OptionContract is one scraped chain row, unique per underlying, reference
// date, expiry, strike and type.
type OptionContract struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	Ticker        string    `gorm:"size:10;uniqueIndex:uniq_contract"`
	SymbolCode    string    `gorm:"size:20;column:symbol_code"`
	AsOfDate      time.Time `gorm:"column:peildatum;type:date;uniqueIndex:uniq_contract"`
	Expiry        time.Time `gorm:"type:date;uniqueIndex:uniq_contract"`
	Strike        float64   `gorm:"uniqueIndex:uniq_contract"`
	Type          string    `gorm:"size:4;uniqueIndex:uniq_contract"`
	Last          float64
	Previous      float64
	Change        float64 `gorm:"column:change_value"`
	ChangePct     float64 `gorm:"column:pct_change"`
	Bid           float64
	Ask           float64
	High          float64
	Low           float64
	Volume        int
	OpenInterest  int        `gorm:"column:open_interest"`
	LastTradeDate *time.Time `gorm:"column:last_trade_date;type:date"`
	ScrapedAt     time.Time  `gorm:"column:scraped_at"`
	Source        string     `gorm:"size:255"`
}

func (OptionContract) TableName() string { return "fd_option_contracts" }

// OptionGreeks is the valuation output for one contract on one reference
// date.
type OptionGreeks struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	ContractID int64     `gorm:"column:contract_id;uniqueIndex:uniq_greeks"`
	Ticker     string    `gorm:"size:10;index"`
	AsOfDate   time.Time `gorm:"column:peildatum;type:date;index"`
	Expiry     time.Time `gorm:"type:date"`
	Strike     float64
	Type       string  `gorm:"size:4"`
	Price      float64 `gorm:"column:price"`
	IV         float64 `gorm:"column:iv"`
	BidIV      float64 `gorm:"column:bid_iv"`
	AskIV      float64 `gorm:"column:ask_iv"`
	Delta      float64
	Gamma      float64
	Vega       float64
	Theta      float64
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (OptionGreeks) TableName() string { return "fd_option_greeks" }

// OptionScore is the chain-wide sentiment aggregate per reference date.
type OptionScore struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	Ticker        string    `gorm:"size:10;uniqueIndex:uniq_score"`
	AsOfDate      time.Time `gorm:"column:peildatum;type:date;uniqueIndex:uniq_score"`
	CPRatio       float64   `gorm:"column:call_put_ratio"`
	AvgSkew       float64   `gorm:"column:avg_skew"`
	PriceSkew     float64   `gorm:"column:price_skew"`
	MacroScore    float64   `gorm:"column:macro_score"`
	MicroScore    float64   `gorm:"column:micro_score"`
	TotalScore    float64   `gorm:"column:total_score"`
	TrendSignal   string    `gorm:"size:10;column:trend_signal"`
	Notes         string    `gorm:"type:text"`
	IVMean        float64   `gorm:"column:iv_mean"`
	IVSkew        float64   `gorm:"column:iv_skew"`
	IVKurt        float64   `gorm:"column:iv_kurt"`
	ATMIV         float64   `gorm:"column:atm_iv"`
	VegaTotal     float64   `gorm:"column:vega_total"`
	GammaExposure float64   `gorm:"column:gamma_exposure"`
	DeltaBias     float64   `gorm:"column:delta_bias"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (OptionScore) TableName() string { return "fd_option_score" }

// OverviewFromScrape maps a scraped overview onto its storage row.
func OverviewFromScrape(ov *scraper.Overview) *OptionOverview {
	return &OptionOverview{
		Ticker:     ov.Ticker,
		SymbolCode: ov.SymbolCode,
		Name:       ov.Name,
		Spot:       ov.Spot,
		Previous:   ov.Previous,
		Change:     ov.Change,
		ChangePct:  ov.ChangePct,
		High:       ov.High,
		Low:        ov.Low,
		VolumeUL:   ov.VolumeUL,
		QuoteTime:  ov.QuoteTime,
		TotVolume:  ov.TotalVolume,
		TotVolumeC: ov.TotalVolumeCalls,
		TotVolumeP: ov.TotalVolumePuts,
		TotOIOpen:  ov.TotalOIOpening,
		TotOICalls: ov.TotalOICalls,
		TotOIPuts:  ov.TotalOIPuts,
		CPRatio:    ov.CallPutRatio,
		AsOfDate:   ov.AsOfDate,
		ScrapedAt:  ov.ScrapedAt,
		Source:     ov.Source,
	}
}

// ContractFromScrape maps one chain row onto its storage row.
func ContractFromScrape(c scraper.Contract, ticker, symbolCode, source string, asOf, scrapedAt time.Time) OptionContract {
	row := OptionContract{
		Ticker:       ticker,
		SymbolCode:   symbolCode,
		AsOfDate:     asOf,
		Expiry:       c.Expiry,
		Strike:       c.Strike,
		Type:         string(c.Type),
		Last:         c.Last,
		Previous:     c.Previous,
		Change:       c.Change,
		ChangePct:    c.ChangePct,
		Bid:          c.Bid,
		Ask:          c.Ask,
		High:         c.High,
		Low:          c.Low,
		Volume:       c.Volume,
		OpenInterest: c.OpenInterest,
		ScrapedAt:    scrapedAt,
		Source:       source,
	}
	if !c.LastTradeDate.IsZero() {
		d := c.LastTradeDate
		row.LastTradeDate = &d
	}
	return row
}

// QuoteFromContract maps a storage row onto the valuation input.
func QuoteFromContract(c OptionContract) valuation.ContractQuote {
	return valuation.ContractQuote{
		ID:     c.ID,
		Strike: c.Strike,
		Expiry: c.Expiry,
		Type:   bs.OptionType(c.Type),
		Bid:    c.Bid,
		Ask:    c.Ask,
		Last:   c.Last,
	}
}

// ScoreFromCard maps a computed sentiment card onto its storage row.
func ScoreFromCard(c *score.Card, ticker string, asOf time.Time) *OptionScore {
	return &OptionScore{
		Ticker:        ticker,
		AsOfDate:      asOf,
		CPRatio:       c.CPRatio,
		AvgSkew:       c.AvgSkew,
		PriceSkew:     c.PriceSkew,
		MacroScore:    c.MacroScore,
		MicroScore:    c.MicroScore,
		TotalScore:    c.TotalScore,
		TrendSignal:   c.Signal,
		Notes:         c.Notes,
		IVMean:        c.IVMean,
		IVSkew:        c.IVSkew,
		IVKurt:        c.IVKurt,
		ATMIV:         c.ATMIV,
		VegaTotal:     c.VegaTotal,
		GammaExposure: c.GammaExposure,
		DeltaBias:     c.DeltaBias,
		CreatedAt:     time.Now().UTC(),
	}
}

// GreeksFromResult maps one valuation result onto its storage row.
func GreeksFromResult(r valuation.Result, ticker string, asOf time.Time) OptionGreeks {
	return OptionGreeks{
		ContractID: r.ContractID,
		Ticker:     ticker,
		AsOfDate:   asOf,
		Expiry:     r.Expiry,
		Strike:     r.Strike,
		Type:       string(r.Type),
		Price:      r.Price,
		IV:         r.ImpliedVol,
		BidIV:      r.BidIV,
		AskIV:      r.AskIV,
		Delta:      r.Delta,
		Gamma:      r.Gamma,
		Vega:       r.Vega,
		Theta:      r.Theta,
		CreatedAt:  time.Now().UTC(),
	}
}
