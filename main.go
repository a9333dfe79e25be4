package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/robfig/cron"
	log "github.com/sirupsen/logrus"

	"github.com/souvik131/options-tracker/api"
	"github.com/souvik131/options-tracker/etl"
	"github.com/souvik131/options-tracker/notify"
	"github.com/souvik131/options-tracker/rates"
	"github.com/souvik131/options-tracker/scraper"
	"github.com/souvik131/options-tracker/snapshot"
	"github.com/souvik131/options-tracker/store"
	"github.com/souvik131/options-tracker/valuation"
)

type config struct {
	DSN           string
	Ticker        string
	SymbolCode    string
	Addr          string
	Cron          string
	NatsURL       string
	TelegramToken string
	TelegramChat  int64
	S3Bucket      string
	ArchiveDir    string
	DividendYield float64
	RunNow        bool
	Force         bool
}

func loadConfig() config {
	// Load environment variables
	if os.Getenv("OT_DSN") == "" {
		godotenv.Load()
	}

	cfg := config{
		DSN:           os.Getenv("OT_DSN"),
		Ticker:        envOr("OT_TICKER", "AD.AS"),
		SymbolCode:    envOr("OT_SYMBOL_CODE", "AEX.AH/O"),
		Addr:          envOr("OT_ADDR", ":8080"),
		Cron:          envOr("OT_CRON", "0 0 18 * * MON-FRI"),
		NatsURL:       os.Getenv("OT_NATS_URL"),
		TelegramToken: os.Getenv("OT_TELEGRAM_TOKEN"),
		S3Bucket:      os.Getenv("OT_S3_BUCKET"),
		ArchiveDir:    envOr("OT_ARCHIVE_DIR", "./binary"),
		RunNow:        os.Getenv("OT_RUN_NOW") == "true",
		Force:         os.Getenv("OT_FORCE") == "true",
	}
	if v := os.Getenv("OT_TELEGRAM_CHAT"); v != "" {
		chat, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Fatalf("invalid OT_TELEGRAM_CHAT: %v", err)
		}
		cfg.TelegramChat = chat
	}
	if v := os.Getenv("OT_DIVIDEND_YIELD"); v != "" {
		q, err := strconv.ParseFloat(v, 64)
		if err != nil {
			log.Fatalf("invalid OT_DIVIDEND_YIELD: %v", err)
		}
		cfg.DividendYield = q
	}
	if cfg.DSN == "" {
		log.Fatal("OT_DSN is required")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	cfg := loadConfig()
	ctx := context.Background()

	st, err := store.Open(cfg.DSN)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	runner := &etl.Runner{
		Ticker:        cfg.Ticker,
		SymbolCode:    cfg.SymbolCode,
		DividendYield: cfg.DividendYield,
		Force:         cfg.Force,
		Source:        scraper.New(cfg.Ticker, cfg.SymbolCode),
		Store:         st,
		Rates:         rates.NewEuriborProvider(),
		Pipeline:      valuation.NewPipeline(),
		Archive:       snapshot.NewArchive(cfg.ArchiveDir),
		Notifier:      notify.Noop(),
	}

	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL, nats.Name("options-tracker"))
		if err != nil {
			log.Fatalf("connect nats: %v", err)
		}
		defer nc.Drain()
		runner.Publisher = nc
	}
	if cfg.TelegramToken != "" && cfg.TelegramChat != 0 {
		runner.Notifier = notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChat)
	}
	if cfg.S3Bucket != "" {
		uploader, err := snapshot.NewUploader(cfg.S3Bucket)
		if err != nil {
			log.Fatalf("s3 uploader: %v", err)
		}
		runner.Uploader = uploader
	}

	runDay := func() {
		if scraper.IsMarketOpen(time.Now()) {
			log.Warn("market still open, intraday quotes may be partial")
		}
		if err := runner.Run(ctx); err != nil {
			log.Errorf("run failed: %v", err)
		}
	}

	go func() {
		if err := runner.BackfillScores(ctx); err != nil {
			log.Warnf("score backfill: %v", err)
		}
	}()

	if cfg.RunNow {
		go runDay()
	}

	c := cron.New()
	if err := c.AddFunc(cfg.Cron, runDay); err != nil {
		log.Fatalf("invalid OT_CRON %q: %v", cfg.Cron, err)
	}
	c.Start()
	log.WithField("schedule", cfg.Cron).Info("scheduler started")

	srv := api.NewServer(cfg.Ticker, st)
	if err := srv.Run(cfg.Addr); err != nil {
		log.Fatalf("api server: %v", err)
	}
}
