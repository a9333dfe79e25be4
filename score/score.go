package score

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/souvik131/options-tracker/bs"
)

// Trend signals.
const (
	Bullish = "Bullish"
	Bearish = "Bearish"
	Neutral = "Neutral"
)

// ErrNoData is returned when the day has no usable implied vols.
var ErrNoData = errors.New("score: no usable implied vols")

// GreekRow is one priced contract feeding the aggregate.
type GreekRow struct {
	Type   bs.OptionType
	Strike float64
	IV     float64
	Delta  float64
	Gamma  float64
	Vega   float64
	Last   float64
}

// Macro carries the underlying-level inputs from the overview header.
type Macro struct {
	Spot         float64
	Change       float64
	CallPutRatio float64
}

// Card is the computed sentiment for one reference date. The macro leg
// weighs 60%, the chain-level micro leg 40%.
type Card struct {
	CPRatio    float64
	AvgSkew    float64
	PriceSkew  float64
	MacroScore float64
	MicroScore float64
	TotalScore float64
	Signal     string
	Notes      string

	IVMean        float64
	IVSkew        float64
	IVKurt        float64
	ATMIV         float64
	VegaTotal     float64
	GammaExposure float64
	DeltaBias     float64
}

// Compute aggregates one day's greeks into a sentiment card.
func Compute(macro Macro, rows []GreekRow) (*Card, error) {
	var ivs, callIVs, putIVs, callPrices, putPrices []float64
	for _, r := range rows {
		if r.IV <= 0 {
			continue
		}
		ivs = append(ivs, r.IV)
		if r.Type == bs.Call {
			callIVs = append(callIVs, r.IV)
			if r.Last > 0 {
				callPrices = append(callPrices, r.Last)
			}
		} else {
			putIVs = append(putIVs, r.IV)
			if r.Last > 0 {
				putPrices = append(putPrices, r.Last)
			}
		}
	}
	if len(ivs) == 0 {
		return nil, ErrNoData
	}

	card := &Card{CPRatio: macro.CallPutRatio}

	card.IVMean, _ = stats.Mean(ivs)
	card.IVSkew, card.IVKurt = momentShape(ivs, card.IVMean)
	card.ATMIV = atmIV(rows, macro.Spot)

	if len(callIVs) > 0 && len(putIVs) > 0 {
		putMean, _ := stats.Mean(putIVs)
		callMean, _ := stats.Mean(callIVs)
		card.AvgSkew = putMean / callMean
	}
	if len(callPrices) > 0 && len(putPrices) > 0 {
		putMean, _ := stats.Mean(putPrices)
		callMean, _ := stats.Mean(callPrices)
		card.PriceSkew = putMean / callMean
	}

	var absVega float64
	for _, r := range rows {
		card.VegaTotal += r.Vega
		card.GammaExposure += r.Gamma * r.Delta
		card.DeltaBias += r.Delta * math.Abs(r.Vega)
		absVega += math.Abs(r.Vega)
	}
	if absVega > 0 {
		card.DeltaBias /= absVega
	} else {
		card.DeltaBias = 0
	}

	switch {
	case macro.CallPutRatio > 1.2:
		card.MacroScore++
	case macro.CallPutRatio < 0.8:
		card.MacroScore--
	}
	switch {
	case macro.Change > 0.3:
		card.MacroScore += 0.5
	case macro.Change < -0.3:
		card.MacroScore -= 0.5
	}

	if card.AvgSkew > 0 {
		switch {
		case card.AvgSkew > 1.1:
			card.MicroScore -= 0.5
		case card.AvgSkew < 0.9:
			card.MicroScore += 0.5
		}
	}
	switch {
	case card.DeltaBias > 0.3:
		card.MicroScore += 0.5
	case card.DeltaBias < -0.3:
		card.MicroScore -= 0.5
	}

	card.TotalScore = 0.6*card.MacroScore + 0.4*card.MicroScore
	switch {
	case card.TotalScore >= 0.3:
		card.Signal = Bullish
	case card.TotalScore <= -0.3:
		card.Signal = Bearish
	default:
		card.Signal = Neutral
	}
	card.Notes = fmt.Sprintf("IV=%.2f, skew=%.2f", card.IVMean, card.AvgSkew)

	log.WithFields(log.Fields{
		"signal": card.Signal,
		"total":  card.TotalScore,
		"iv":     card.IVMean,
	}).Info("computed sentiment")
	return card, nil
}

// momentShape returns the population skewness and kurtosis.
func momentShape(xs []float64, mean float64) (skew, kurt float64) {
	var m2, m3, m4 float64
	for _, x := range xs {
		d := x - mean
		m2 += d * d
		m3 += d * d * d
		m4 += d * d * d * d
	}
	n := float64(len(xs))
	m2, m3, m4 = m2/n, m3/n, m4/n
	if m2 == 0 {
		return 0, 0
	}
	return m3 / math.Pow(m2, 1.5), m4 / (m2 * m2)
}

// atmIV averages the vols quoted at the strike nearest to spot.
func atmIV(rows []GreekRow, spot float64) float64 {
	if spot <= 0 {
		return 0
	}
	sorted := make([]GreekRow, 0, len(rows))
	for _, r := range rows {
		if r.IV > 0 {
			sorted = append(sorted, r)
		}
	}
	if len(sorted) == 0 {
		return 0
	}
	slices.SortFunc(sorted, func(a, b GreekRow) int {
		da, db := math.Abs(a.Strike-spot), math.Abs(b.Strike-spot)
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		default:
			return 0
		}
	})

	atm := sorted[0].Strike
	var sum float64
	var n int
	for _, r := range sorted {
		if r.Strike == atm {
			sum += r.IV
			n++
		}
	}
	return sum / float64(n)
}
