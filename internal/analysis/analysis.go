// Package analysis provides the shared vocabulary of the technical analysis packages.
package analysis

import (
	"harmonic-trader/internal/models"
)

// Direction represents the expected direction of a pattern.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
)

// IsBullish reports whether the direction is bullish.
func (d Direction) IsBullish() bool {
	return d == Bullish
}

// Sign returns +1 for bullish and -1 for bearish.
func (d Direction) Sign() float64 {
	if d == Bullish {
		return 1
	}
	return -1
}

// String implements fmt.Stringer.
func (d Direction) String() string {
	return string(d)
}

// PatternDetector defines the interface for pattern detection over a candle series.
type PatternDetector[R any] interface {
	Name() string
	Detect(candles []models.Candle) R
}
