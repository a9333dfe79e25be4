package bs

import (
	"errors"
	"math"
)

// OptionType matches the contract type stored in MySQL ("Call"/"Put").
type OptionType string

const (
	Call OptionType = "Call"
	Put  OptionType = "Put"
)

// ErrInvalidParams is returned when d1/d2 are undefined for the given inputs.
var ErrInvalidParams = errors.New("bs: invalid parameters, d1/d2 undefined")

// Params are the shared Black-Scholes inputs. T is in years, R is the
// continuously compounded risk-free rate and Q the continuous dividend yield.
type Params struct {
	S float64 // spot price of the underlying
	K float64 // strike price
	T float64 // time to expiry in years
	R float64 // risk-free rate
	Q float64 // dividend yield, 0 when the market convention omits it
}

// normCDF calculates the cumulative distribution function for a standard normal distribution.
func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// normPDF calculates the probability density function for a standard normal distribution.
func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

func d1d2(p Params, sigma float64) (float64, float64, error) {
	if p.S <= 0 || p.K <= 0 || p.T <= 0 || sigma <= 0 {
		return 0, 0, ErrInvalidParams
	}
	volSqrtT := sigma * math.Sqrt(p.T)
	d1 := (math.Log(p.S/p.K) + (p.R-p.Q+0.5*sigma*sigma)*p.T) / volSqrtT
	return d1, d1 - volSqrtT, nil
}

// Price returns the Black-Scholes fair value of a European option.
func Price(p Params, sigma float64, typ OptionType) (float64, error) {
	d1, d2, err := d1d2(p, sigma)
	if err != nil {
		return 0, err
	}
	spotDisc := p.S * math.Exp(-p.Q*p.T)
	strikeDisc := p.K * math.Exp(-p.R*p.T)
	if typ == Call {
		return spotDisc*normCDF(d1) - strikeDisc*normCDF(d2), nil
	}
	return strikeDisc*normCDF(-d2) - spotDisc*normCDF(-d1), nil
}

// Delta returns the sensitivity of the option price to the spot price.
func Delta(p Params, sigma float64, typ OptionType) (float64, error) {
	d1, _, err := d1d2(p, sigma)
	if err != nil {
		return 0, err
	}
	if typ == Call {
		return math.Exp(-p.Q*p.T) * normCDF(d1), nil
	}
	return -math.Exp(-p.Q*p.T) * normCDF(-d1), nil
}

// Gamma returns the second-order spot sensitivity, identical for calls and puts.
func Gamma(p Params, sigma float64) (float64, error) {
	d1, _, err := d1d2(p, sigma)
	if err != nil {
		return 0, err
	}
	return math.Exp(-p.Q*p.T) * normPDF(d1) / (p.S * sigma * math.Sqrt(p.T)), nil
}

// Vega returns the raw sensitivity to volatility, per unit sigma and identical
// for calls and puts. Callers scale to per-vol-point or per-contract as needed.
func Vega(p Params, sigma float64) (float64, error) {
	d1, _, err := d1d2(p, sigma)
	if err != nil {
		return 0, err
	}
	return p.S * math.Exp(-p.Q*p.T) * normPDF(d1) * math.Sqrt(p.T), nil
}

// Theta returns the time decay per year, in the same unit as T. Divide by 365
// for decay per calendar day.
func Theta(p Params, sigma float64, typ OptionType) (float64, error) {
	d1, d2, err := d1d2(p, sigma)
	if err != nil {
		return 0, err
	}
	spotDisc := p.S * math.Exp(-p.Q*p.T)
	strikeDisc := p.K * math.Exp(-p.R*p.T)
	decay := -(spotDisc * normPDF(d1) * sigma) / (2 * math.Sqrt(p.T))
	if typ == Call {
		return decay + p.Q*spotDisc*normCDF(d1) - p.R*strikeDisc*normCDF(d2), nil
	}
	return decay - p.Q*spotDisc*normCDF(-d1) + p.R*strikeDisc*normCDF(-d2), nil
}
