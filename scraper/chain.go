package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"

	"github.com/souvik131/options-tracker/bs"
)

// Contract is one row of the option chain table. Zero-valued quote fields
// mean the cell was empty on the page.
type Contract struct {
	Expiry        time.Time
	OpenInterest  int
	Strike        float64
	Last          float64
	Previous      float64
	Change        float64
	ChangePct     float64
	Bid           float64
	Ask           float64
	High          float64
	Low           float64
	Volume        int
	LastTradeDate time.Time
	Type          bs.OptionType
}

// FetchChain scrapes one side of the option chain.
func (s *Scraper) FetchChain(ctx context.Context, typ bs.OptionType) ([]Contract, error) {
	url := fmt.Sprintf("%s?%s=%s", baseURL, strings.ToLower(string(typ)), s.SymbolCode)
	body, err := s.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("scraper: fetch %s chain: %w", typ, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("scraper: parse %s chain: %w", typ, err)
	}

	contracts, err := parseChain(doc, typ)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"ticker":    s.Ticker,
		"type":      typ,
		"contracts": len(contracts),
	}).Info("scraped chain")
	return contracts, nil
}

// FetchAllChains scrapes calls and puts. One failing side is tolerated as
// long as the other returns rows.
func (s *Scraper) FetchAllChains(ctx context.Context) ([]Contract, error) {
	calls, callErr := s.FetchChain(ctx, bs.Call)
	puts, putErr := s.FetchChain(ctx, bs.Put)

	if callErr != nil && putErr != nil {
		return nil, fmt.Errorf("scraper: both sides failed: %v; %v", callErr, putErr)
	}
	if callErr != nil {
		log.Warnf("call chain failed, keeping puts only: %v", callErr)
	}
	if putErr != nil {
		log.Warnf("put chain failed, keeping calls only: %v", putErr)
	}
	return append(calls, puts...), nil
}

func parseChain(doc *goquery.Document, typ bs.OptionType) ([]Contract, error) {
	table := doc.Find("table#m_Content_GridViewIssues")
	if table.Length() == 0 {
		return nil, errors.New("scraper: chain table not found")
	}

	var contracts []Contract
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return
		}
		tds := tr.Find("td")
		if tds.Length() < 13 {
			return
		}
		text := func(j int) string { return strings.TrimSpace(tds.Eq(j).Text()) }

		expiry, ok := toDate(text(0))
		if !ok {
			return
		}
		strike, ok := toFloatNL(text(2))
		if !ok || strike <= 0 {
			return
		}

		c := Contract{Expiry: expiry, Strike: strike, Type: typ}
		c.OpenInterest, _ = toIntNL(text(1))
		c.Last, _ = toFloatNL(text(3))
		c.Previous, _ = toFloatNL(text(4))
		c.Change, _ = toFloatNL(text(5))
		c.ChangePct, _ = toFloatNL(strings.ReplaceAll(text(6), "%", ""))
		c.Bid, _ = toFloatNL(text(7))
		c.Ask, _ = toFloatNL(text(8))
		c.High, _ = toFloatNL(text(9))
		c.Low, _ = toFloatNL(text(10))
		c.Volume, _ = toIntNL(text(11))
		c.LastTradeDate, _ = toDate(text(12))
		contracts = append(contracts, c)
	})
	return contracts, nil
}
