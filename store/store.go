package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store wraps the MySQL tables behind typed queries. All writes are upserts
// keyed on the tables' unique indexes, so re-running a day is idempotent.
type Store struct {
	db *gorm.DB
}

// Open connects to MySQL and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := db.AutoMigrate(&OptionOverview{}, &OptionContract{}, &OptionGreeks{}, &OptionScore{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) SaveOverview(ctx context.Context, ov *OptionOverview) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticker"}, {Name: "peildatum"}},
		UpdateAll: true,
	}).Create(ov).Error
}

// OverviewExists reports whether a header row for the day is already stored.
func (s *Store) OverviewExists(ctx context.Context, ticker string, asOf time.Time) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&OptionOverview{}).
		Where("ticker = ? AND peildatum = ?", ticker, asOf).
		Count(&n).Error
	return n > 0, err
}

func (s *Store) OverviewForDay(ctx context.Context, ticker string, asOf time.Time) (*OptionOverview, error) {
	var ov OptionOverview
	err := s.db.WithContext(ctx).
		Where("ticker = ? AND peildatum = ?", ticker, asOf).
		First(&ov).Error
	if err != nil {
		return nil, err
	}
	return &ov, nil
}

func (s *Store) LatestOverview(ctx context.Context, ticker string) (*OptionOverview, error) {
	var ov OptionOverview
	err := s.db.WithContext(ctx).
		Where("ticker = ?", ticker).
		Order("peildatum DESC").
		First(&ov).Error
	if err != nil {
		return nil, err
	}
	return &ov, nil
}

func (s *Store) SaveContracts(ctx context.Context, contracts []OptionContract) error {
	if len(contracts) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "ticker"}, {Name: "peildatum"}, {Name: "expiry"}, {Name: "strike"}, {Name: "type"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"last", "previous", "change_value", "pct_change",
			"bid", "ask", "high", "low",
			"volume", "open_interest", "last_trade_date", "scraped_at", "source",
		}),
	}).CreateInBatches(contracts, 200).Error
}

func (s *Store) ContractsForDay(ctx context.Context, ticker string, asOf time.Time) ([]OptionContract, error) {
	var rows []OptionContract
	err := s.db.WithContext(ctx).
		Where("ticker = ? AND peildatum = ?", ticker, asOf).
		Order("expiry, strike, type").
		Find(&rows).Error
	return rows, err
}

// LatestContractDay returns the most recent reference date with stored
// contracts.
func (s *Store) LatestContractDay(ctx context.Context, ticker string) (time.Time, error) {
	var day time.Time
	err := s.db.WithContext(ctx).Model(&OptionContract{}).
		Where("ticker = ?", ticker).
		Select("MAX(peildatum)").
		Row().Scan(&day)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: no contracts for %s: %w", ticker, err)
	}
	return day, nil
}

// SpotForDay resolves the underlying's close for the day, falling back to
// the most recent stored quote when the day itself is missing.
func (s *Store) SpotForDay(ctx context.Context, ticker string, asOf time.Time) (float64, error) {
	ov, err := s.OverviewForDay(ctx, ticker, asOf)
	if err == nil && ov.Spot > 0 {
		return ov.Spot, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	ov, err = s.LatestOverview(ctx, ticker)
	if err != nil {
		return 0, fmt.Errorf("store: no spot for %s: %w", ticker, err)
	}
	return ov.Spot, nil
}

func (s *Store) SaveGreeks(ctx context.Context, greeks []OptionGreeks) error {
	if len(greeks) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "contract_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"price", "iv", "bid_iv", "ask_iv", "delta", "gamma", "vega", "theta", "created_at",
		}),
	}).CreateInBatches(greeks, 200).Error
}

func (s *Store) GreeksForDay(ctx context.Context, ticker string, asOf time.Time) ([]OptionGreeks, error) {
	var rows []OptionGreeks
	err := s.db.WithContext(ctx).
		Where("ticker = ? AND peildatum = ?", ticker, asOf).
		Order("expiry, strike, type").
		Find(&rows).Error
	return rows, err
}

func (s *Store) LatestGreeks(ctx context.Context, ticker string) ([]OptionGreeks, error) {
	day, err := s.latestGreeksDay(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return s.GreeksForDay(ctx, ticker, day)
}

func (s *Store) latestGreeksDay(ctx context.Context, ticker string) (time.Time, error) {
	var day time.Time
	err := s.db.WithContext(ctx).Model(&OptionGreeks{}).
		Where("ticker = ?", ticker).
		Select("MAX(peildatum)").
		Row().Scan(&day)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: no greeks for %s: %w", ticker, err)
	}
	return day, nil
}

func (s *Store) SaveScore(ctx context.Context, score *OptionScore) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticker"}, {Name: "peildatum"}},
		UpdateAll: true,
	}).Create(score).Error
}

func (s *Store) LatestScore(ctx context.Context, ticker string) (*OptionScore, error) {
	var score OptionScore
	err := s.db.WithContext(ctx).
		Where("ticker = ?", ticker).
		Order("peildatum DESC").
		First(&score).Error
	if err != nil {
		return nil, err
	}
	return &score, nil
}

// ScoreMissingDays lists reference dates that have greeks but no score yet.
func (s *Store) ScoreMissingDays(ctx context.Context, ticker string) ([]time.Time, error) {
	scored := s.db.Model(&OptionScore{}).
		Select("peildatum").
		Where("ticker = ?", ticker)

	var days []time.Time
	err := s.db.WithContext(ctx).Model(&OptionGreeks{}).
		Distinct("peildatum").
		Where("ticker = ? AND peildatum NOT IN (?)", ticker, scored).
		Order("peildatum").
		Pluck("peildatum", &days).Error
	return days, err
}
