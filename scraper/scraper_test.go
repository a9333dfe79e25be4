package scraper

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souvik131/options-tracker/bs"
)

const overviewHTML = `
<html><body>
<table id="m_Content_GridViewSingleUnderlyingIssue">
<tr><th>Naam</th><th>Koers</th><th>Vorige</th><th>+/-</th><th>%</th><th>Hoog</th><th>Laag</th><th>Volume</th><th>Tijd</th></tr>
<tr><td>AHOLD DELHAIZE KON</td><td>36,84</td><td>36,52</td><td>0,32</td><td>+0,88%</td><td>37,02</td><td>36,40</td><td>1.234.567</td><td>17:35</td></tr>
</table>
<table class="fAr11 mb10 mt10">
<tr><td>Totalen (op 02-03-2026)</td></tr>
<tr><td>Totaal volume</td><td>12.345 (7.890 Calls, 4.455 Puts)</td></tr>
<tr><td>Totaal open interest</td><td>222.111 (120.000 Calls, 102.111 Puts)</td></tr>
<tr><td>Call/Put ratio</td><td>1,77</td></tr>
</table>
</body></html>`

const chainHTML = `
<html><body>
<table id="m_Content_GridViewIssues">
<tr><th>Expiratie</th><th>OI</th><th>Uitoefenprijs</th><th>Laatste</th><th>Vorige</th><th>+/-</th><th>%</th><th>Bied</th><th>Laat</th><th>Hoog</th><th>Laag</th><th>Volume</th><th>Laatste handel</th></tr>
<tr><td>20-03-26</td><td>1.234</td><td>37,00</td><td>0,85</td><td>0,80</td><td>0,05</td><td>+6,25%</td><td>0,82</td><td>0,88</td><td>0,90</td><td>0,78</td><td>56</td><td>28-02-26</td></tr>
<tr><td>20-03-26</td><td>--</td><td>40,00</td><td>--</td><td>--</td><td>--</td><td>--</td><td>--</td><td>--</td><td>--</td><td>--</td><td>--</td><td>--</td></tr>
<tr><td>--</td><td>5</td><td>42,00</td><td>0,10</td><td>0,10</td><td>0,00</td><td>0,00%</td><td>0,08</td><td>0,12</td><td>0,10</td><td>0,10</td><td>1</td><td>27-02-26</td></tr>
</table>
</body></html>`

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestParseOverview(t *testing.T) {
	ov, err := parseOverview(docFrom(t, overviewHTML))
	require.NoError(t, err)

	assert.Equal(t, "AHOLD DELHAIZE KON", ov.Name)
	assert.InDelta(t, 36.84, ov.Spot, 1e-9)
	assert.InDelta(t, 36.52, ov.Previous, 1e-9)
	assert.InDelta(t, 0.32, ov.Change, 1e-9)
	assert.InDelta(t, 0.88, ov.ChangePct, 1e-9)
	assert.InDelta(t, 37.02, ov.High, 1e-9)
	assert.InDelta(t, 36.40, ov.Low, 1e-9)
	assert.Equal(t, 1234567, ov.VolumeUL)
	assert.Equal(t, "17:35", ov.QuoteTime)

	assert.Equal(t, 12345, ov.TotalVolume)
	assert.Equal(t, 7890, ov.TotalVolumeCalls)
	assert.Equal(t, 4455, ov.TotalVolumePuts)
	assert.Equal(t, 222111, ov.TotalOIOpening)
	assert.Equal(t, 120000, ov.TotalOICalls)
	assert.Equal(t, 102111, ov.TotalOIPuts)
	assert.InDelta(t, 1.77, ov.CallPutRatio, 1e-9)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), ov.AsOfDate)
}

func TestParseOverviewMissingTables(t *testing.T) {
	_, err := parseOverview(docFrom(t, "<html><body><p>storing</p></body></html>"))
	assert.Error(t, err)
}

func TestParseChain(t *testing.T) {
	contracts, err := parseChain(docFrom(t, chainHTML), bs.Call)
	require.NoError(t, err)
	// The row without a parsable expiry is dropped.
	require.Len(t, contracts, 2)

	c := contracts[0]
	assert.Equal(t, time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC), c.Expiry)
	assert.Equal(t, 1234, c.OpenInterest)
	assert.InDelta(t, 37.0, c.Strike, 1e-9)
	assert.InDelta(t, 0.85, c.Last, 1e-9)
	assert.InDelta(t, 0.82, c.Bid, 1e-9)
	assert.InDelta(t, 0.88, c.Ask, 1e-9)
	assert.Equal(t, 56, c.Volume)
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), c.LastTradeDate)
	assert.Equal(t, bs.Call, c.Type)

	// Empty cells parse to zero values, the row itself is kept.
	empty := contracts[1]
	assert.InDelta(t, 40.0, empty.Strike, 1e-9)
	assert.Zero(t, empty.Last)
	assert.Zero(t, empty.Bid)
	assert.Zero(t, empty.Volume)
	assert.True(t, empty.LastTradeDate.IsZero())
}

func TestFetchOverviewBuildsURL(t *testing.T) {
	var gotURL string
	s := &Scraper{
		Ticker:     "AD.AS",
		SymbolCode: "AEX.AH/O",
		fetch: func(_ context.Context, url string) ([]byte, error) {
			gotURL = url
			return []byte(overviewHTML), nil
		},
	}

	ov, err := s.FetchOverview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://beurs.fd.nl/derivaten/opties/?call=AEX.AH/O", gotURL)
	assert.Equal(t, "AD.AS", ov.Ticker)
	assert.Equal(t, "AEX.AH/O", ov.SymbolCode)
	assert.Equal(t, gotURL, ov.Source)
	assert.False(t, ov.ScrapedAt.IsZero())
}

func TestFetchAllChains(t *testing.T) {
	s := &Scraper{
		Ticker:     "AD.AS",
		SymbolCode: "AEX.AH/O",
		fetch: func(_ context.Context, url string) ([]byte, error) {
			return []byte(chainHTML), nil
		},
	}

	contracts, err := s.FetchAllChains(context.Background())
	require.NoError(t, err)
	require.Len(t, contracts, 4)
	assert.Equal(t, bs.Call, contracts[0].Type)
	assert.Equal(t, bs.Put, contracts[2].Type)
}

func TestToFloatNL(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"36,84", 36.84, true},
		{"1.234,56", 1234.56, true},
		{"-0,12", -0.12, true},
		{"", 0, false},
		{"--", 0, false},
	}
	for _, c := range cases {
		got, ok := toFloatNL(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		assert.InDelta(t, c.want, got, 1e-9, c.in)
	}
}

func TestToDate(t *testing.T) {
	d, ok := toDate("20-03-26")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC), d)

	d, ok = toDate("20-03-2026")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC), d)

	_, ok = toDate("--")
	assert.False(t, ok)
}

func TestIsMarketOpen(t *testing.T) {
	at := func(day, hour, min int) time.Time {
		return time.Date(2026, 3, day, hour, min, 0, 0, amsterdam)
	}

	// 2026-03-02 is a Monday.
	assert.True(t, IsMarketOpen(at(2, 9, 16)))
	assert.True(t, IsMarketOpen(at(2, 13, 0)))
	assert.True(t, IsMarketOpen(at(2, 17, 45)))
	assert.False(t, IsMarketOpen(at(2, 9, 15)))
	assert.False(t, IsMarketOpen(at(2, 17, 46)))
	// Saturday and Sunday.
	assert.False(t, IsMarketOpen(at(7, 12, 0)))
	assert.False(t, IsMarketOpen(at(8, 12, 0)))
}
