package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"

	"github.com/souvik131/options-tracker/requests"
)

const baseURL = "https://beurs.fd.nl/derivaten/opties/"

// Overview holds the underlying's quote header plus the chain-wide totals
// published alongside it. AsOfDate is the exchange's reference date for the
// totals; a zero AsOfDate means the page carried none.
type Overview struct {
	Ticker     string
	SymbolCode string

	Name      string
	Spot      float64
	Previous  float64
	Change    float64
	ChangePct float64
	High      float64
	Low       float64
	VolumeUL  int
	QuoteTime string

	TotalVolume      int
	TotalVolumeCalls int
	TotalVolumePuts  int
	TotalOIOpening   int
	TotalOICalls     int
	TotalOIPuts      int
	CallPutRatio     float64

	AsOfDate  time.Time
	ScrapedAt time.Time
	Source    string
}

// Scraper fetches and parses the derivatives pages for one underlying.
type Scraper struct {
	Ticker     string
	SymbolCode string
	fetch      func(ctx context.Context, url string) ([]byte, error)
}

func New(ticker, symbolCode string) *Scraper {
	return &Scraper{
		Ticker:     ticker,
		SymbolCode: symbolCode,
		fetch:      fetchHTML,
	}
}

func fetchHTML(ctx context.Context, url string) ([]byte, error) {
	body, _, err := requests.Get(&ctx, url, map[string]string{"User-Agent": "Mozilla/5.0"})
	return body, err
}

var (
	asOfPattern      = regexp.MustCompile(`\((?:op\s)?(\d{2}-\d{2}-\d{4})\)`)
	callsPutsPattern = regexp.MustCompile(`([\d\.\s]+)\s*\(\s*([\d\.\s]+)\s*Calls,\s*([\d\.\s]+)\s*Puts\)`)
)

// FetchOverview scrapes the quote header and chain totals.
func (s *Scraper) FetchOverview(ctx context.Context) (*Overview, error) {
	url := fmt.Sprintf("%s?call=%s", baseURL, s.SymbolCode)
	body, err := s.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("scraper: fetch overview: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("scraper: parse overview: %w", err)
	}

	ov, err := parseOverview(doc)
	if err != nil {
		return nil, err
	}
	ov.Ticker = s.Ticker
	ov.SymbolCode = s.SymbolCode
	ov.ScrapedAt = time.Now().UTC()
	ov.Source = url

	log.WithFields(log.Fields{
		"ticker": s.Ticker,
		"spot":   ov.Spot,
		"as_of":  ov.AsOfDate.Format("2006-01-02"),
	}).Info("scraped overview")
	return ov, nil
}

func parseOverview(doc *goquery.Document) (*Overview, error) {
	header := doc.Find("table#m_Content_GridViewSingleUnderlyingIssue")
	if header.Length() == 0 {
		return nil, errors.New("scraper: header table not found")
	}
	cells := header.Find("tr").Last().Find("td")
	if cells.Length() < 9 {
		return nil, fmt.Errorf("scraper: header row has %d cells, want 9", cells.Length())
	}

	ov := &Overview{}
	ov.Name = strings.TrimSpace(cells.Eq(0).Text())
	ov.Spot, _ = toFloatNL(cells.Eq(1).Text())
	ov.Previous, _ = toFloatNL(cells.Eq(2).Text())
	ov.Change, _ = toFloatNL(cells.Eq(3).Text())
	ov.ChangePct, _ = toFloatNL(strings.ReplaceAll(cells.Eq(4).Text(), "%", ""))
	ov.High, _ = toFloatNL(cells.Eq(5).Text())
	ov.Low, _ = toFloatNL(cells.Eq(6).Text())
	ov.VolumeUL, _ = toIntNL(cells.Eq(7).Text())
	ov.QuoteTime = strings.TrimSpace(cells.Eq(8).Text())

	totals := doc.Find("table.fAr11.mb10.mt10")
	if totals.Length() == 0 {
		return nil, errors.New("scraper: totals table not found")
	}

	subtitle := totals.Find("tr").First().Find("td").First().Text()
	if m := asOfPattern.FindStringSubmatch(subtitle); m != nil {
		if d, err := time.Parse("02-01-2006", m[1]); err == nil {
			ov.AsOfDate = d
		}
	}

	totals.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return
		}
		tds := tr.Find("td")
		if tds.Length() < 2 {
			return
		}
		label := strings.ToLower(strings.TrimSpace(tds.Eq(0).Text()))
		val := strings.TrimSpace(tds.Eq(1).Text())

		switch {
		case strings.Contains(label, "totaal volume"):
			if m := callsPutsPattern.FindStringSubmatch(val); m != nil {
				ov.TotalVolume, _ = toIntNL(m[1])
				ov.TotalVolumeCalls, _ = toIntNL(m[2])
				ov.TotalVolumePuts, _ = toIntNL(m[3])
			}
		case strings.Contains(label, "totaal open interest"):
			if m := callsPutsPattern.FindStringSubmatch(val); m != nil {
				ov.TotalOIOpening, _ = toIntNL(m[1])
				ov.TotalOICalls, _ = toIntNL(m[2])
				ov.TotalOIPuts, _ = toIntNL(m[3])
			}
		case strings.Contains(label, "call") && strings.Contains(label, "put"):
			ov.CallPutRatio, _ = toFloatNL(val)
		}
	})

	return ov, nil
}
