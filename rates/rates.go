package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/souvik131/options-tracker/requests"
)

// Provider maps a contract's days-to-expiry to an annualized risk-free rate.
// The valuation pipeline only depends on this signature.
type Provider interface {
	RateForDays(ctx context.Context, days int) float64
}

// Fixed returns a provider with one flat rate for every tenor.
func Fixed(rate float64) Provider {
	return fixed(rate)
}

type fixed float64

func (f fixed) RateForDays(context.Context, int) float64 { return float64(f) }

// fallbackRates are used when the ECB API is unreachable, keyed by tenor
// months.
var fallbackRates = map[int]float64{
	1:  0.0187,
	3:  0.0206,
	6:  0.0210,
	12: 0.0216,
}

// EuriborProvider resolves rates from the ECB data API, bucketed by tenor.
// Results are cached per tenor so a chain of hundreds of contracts costs at
// most four lookups.
type EuriborProvider struct {
	mu    sync.Mutex
	cache map[int]float64
	fetch func(ctx context.Context, months int) (float64, error)
}

// NewEuriborProvider returns a provider backed by the live ECB API.
func NewEuriborProvider() *EuriborProvider {
	return &EuriborProvider{
		cache: map[int]float64{},
		fetch: fetchEuribor,
	}
}

// tenorMonths buckets days-to-expiry onto the quoted Euribor tenors.
func tenorMonths(days int) int {
	switch {
	case days <= 30:
		return 1
	case days <= 90:
		return 3
	case days <= 180:
		return 6
	default:
		return 12
	}
}

// RateForDays returns the Euribor rate for the contract's tenor bucket,
// falling back to the hardcoded rates when the API fails.
func (p *EuriborProvider) RateForDays(ctx context.Context, days int) float64 {
	months := tenorMonths(days)

	p.mu.Lock()
	defer p.mu.Unlock()

	if rate, ok := p.cache[months]; ok {
		return rate
	}

	rate, err := p.fetch(ctx, months)
	if err != nil {
		log.Warnf("euribor %dm lookup failed, using fallback: %v", months, err)
		rate = fallbackRates[months]
	}
	p.cache[months] = rate
	return rate
}

type ecbPayload struct {
	DataSets []struct {
		Series map[string]struct {
			Observations map[string][]interface{} `json:"observations"`
		} `json:"series"`
	} `json:"dataSets"`
}

func fetchEuribor(ctx context.Context, months int) (float64, error) {
	series := fmt.Sprintf("EURIBOR%dMD_", months)
	if months == 12 {
		series = "EURIBOR1YD_"
	}
	url := fmt.Sprintf(
		"https://data-api.ecb.europa.eu/service/data/FM/M.U2.EUR.RT.MM.%s.HSTA?format=jsondata&lastNObservations=1",
		series,
	)

	body, _, err := requests.Get(&ctx, url, map[string]string{"Accept": "application/json"})
	if err != nil {
		return 0, err
	}

	var payload ecbPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, err
	}
	if len(payload.DataSets) == 0 {
		return 0, fmt.Errorf("rates: ECB payload has no data sets")
	}
	for _, s := range payload.DataSets[0].Series {
		obs, ok := s.Observations["0"]
		if !ok || len(obs) == 0 {
			continue
		}
		if v, ok := obs[0].(float64); ok {
			// The API quotes percentages.
			return v / 100, nil
		}
	}
	return 0, fmt.Errorf("rates: no observation in ECB payload for %s", series)
}
