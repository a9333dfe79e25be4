package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/souvik131/options-tracker/store"
)

const dateFormat = "2006-01-02"

// Storage is the read-side slice of the store the API serves from.
// *store.Store satisfies it.
type Storage interface {
	LatestOverview(ctx context.Context, ticker string) (*store.OptionOverview, error)
	ContractsForDay(ctx context.Context, ticker string, asOf time.Time) ([]store.OptionContract, error)
	LatestContractDay(ctx context.Context, ticker string) (time.Time, error)
	LatestGreeks(ctx context.Context, ticker string) ([]store.OptionGreeks, error)
	GreeksForDay(ctx context.Context, ticker string, asOf time.Time) ([]store.OptionGreeks, error)
	LatestScore(ctx context.Context, ticker string) (*store.OptionScore, error)
}

// Server exposes the stored chain data over HTTP.
type Server struct {
	ticker string
	store  Storage
}

func NewServer(ticker string, st Storage) *Server {
	return &Server{ticker: ticker, store: st}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	api := r.Group("/api")
	api.GET("/status", s.status)
	api.GET("/overview/latest", s.latestOverview)
	api.GET("/contracts", s.contracts)
	api.GET("/greeks/latest", s.latestGreeks)
	api.GET("/greeks/:date", s.greeksForDay)
	api.GET("/greeks/:date/csv", s.greeksCSV)
	api.GET("/score/latest", s.latestScore)
	return r
}

// Run serves the API until the listener fails.
func (s *Server) Run(addr string) error {
	log.WithField("addr", addr).Info("api listening")
	return s.Router().Run(addr)
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "running",
		"ticker":    s.ticker,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) latestOverview(c *gin.Context) {
	ov, err := s.store.LatestOverview(c.Request.Context(), s.ticker)
	if err != nil {
		abortStoreErr(c, err)
		return
	}
	c.JSON(http.StatusOK, ov)
}

// contracts lists the chain for ?date=YYYY-MM-DD, defaulting to the most
// recent stored day.
func (s *Server) contracts(c *gin.Context) {
	ctx := c.Request.Context()

	var day time.Time
	if raw := c.Query("date"); raw != "" {
		var err error
		day, err = time.Parse(dateFormat, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
	} else {
		var err error
		day, err = s.store.LatestContractDay(ctx, s.ticker)
		if err != nil {
			abortStoreErr(c, err)
			return
		}
	}

	rows, err := s.store.ContractsForDay(ctx, s.ticker, day)
	if err != nil {
		abortStoreErr(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) latestGreeks(c *gin.Context) {
	rows, err := s.store.LatestGreeks(c.Request.Context(), s.ticker)
	if err != nil {
		abortStoreErr(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) greeksForDay(c *gin.Context) {
	day, err := time.Parse(dateFormat, c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	rows, err := s.store.GreeksForDay(c.Request.Context(), s.ticker, day)
	if err != nil {
		abortStoreErr(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

type greeksCSVRow struct {
	AsOfDate string  `csv:"peildatum"`
	Expiry   string  `csv:"expiry"`
	Strike   float64 `csv:"strike"`
	Type     string  `csv:"type"`
	Price    float64 `csv:"price"`
	IV       float64 `csv:"iv"`
	BidIV    float64 `csv:"bid_iv"`
	AskIV    float64 `csv:"ask_iv"`
	Delta    float64 `csv:"delta"`
	Gamma    float64 `csv:"gamma"`
	Vega     float64 `csv:"vega"`
	Theta    float64 `csv:"theta"`
}

func (s *Server) greeksCSV(c *gin.Context) {
	day, err := time.Parse(dateFormat, c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	rows, err := s.store.GreeksForDay(c.Request.Context(), s.ticker, day)
	if err != nil {
		abortStoreErr(c, err)
		return
	}

	csvRows := make([]greeksCSVRow, 0, len(rows))
	for _, g := range rows {
		csvRows = append(csvRows, greeksCSVRow{
			AsOfDate: g.AsOfDate.Format(dateFormat),
			Expiry:   g.Expiry.Format(dateFormat),
			Strike:   g.Strike,
			Type:     g.Type,
			Price:    g.Price,
			IV:       g.IV,
			BidIV:    g.BidIV,
			AskIV:    g.AskIV,
			Delta:    g.Delta,
			Gamma:    g.Gamma,
			Vega:     g.Vega,
			Theta:    g.Theta,
		})
	}

	out, err := gocsv.MarshalString(&csvRows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="greeks_`+day.Format("20060102")+`.csv"`)
	c.Data(http.StatusOK, "text/csv", []byte(out))
}

func (s *Server) latestScore(c *gin.Context) {
	score, err := s.store.LatestScore(c.Request.Context(), s.ticker)
	if err != nil {
		abortStoreErr(c, err)
		return
	}
	c.JSON(http.StatusOK, score)
}

func abortStoreErr(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data yet"})
		return
	}
	log.Errorf("api store error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
