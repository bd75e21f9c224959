// Package models provides domain models shared across the application.
package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "harmonic-trader/internal/errors"
)

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time `json:"time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Timeframe represents a candle interval.
type Timeframe string

const (
	Timeframe15Min Timeframe = "15m"
	Timeframe1Hour Timeframe = "1H"
	Timeframe4Hour Timeframe = "4H"
	Timeframe1Day  Timeframe = "1D"
	Timeframe1Week Timeframe = "1W"
)

// DefaultTimeframes returns the timeframes used for multi-timeframe analysis.
func DefaultTimeframes() []Timeframe {
	return []Timeframe{Timeframe1Hour, Timeframe4Hour, Timeframe1Day}
}

var timeframeAliases = map[string]Timeframe{
	"15m":    Timeframe15Min,
	"15min":  Timeframe15Min,
	"1h":     Timeframe1Hour,
	"60m":    Timeframe1Hour,
	"hourly": Timeframe1Hour,
	"4h":     Timeframe4Hour,
	"240m":   Timeframe4Hour,
	"1d":     Timeframe1Day,
	"d":      Timeframe1Day,
	"day":    Timeframe1Day,
	"daily":  Timeframe1Day,
	"1w":     Timeframe1Week,
	"w":      Timeframe1Week,
	"week":   Timeframe1Week,
}

// ParseTimeframe normalizes a user supplied timeframe string.
func ParseTimeframe(s string) (Timeframe, error) {
	tf, ok := timeframeAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidTimeframe, s)
	}
	return tf, nil
}

// Duration returns the wall-clock length of one candle.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe15Min:
		return 15 * time.Minute
	case Timeframe1Hour:
		return time.Hour
	case Timeframe4Hour:
		return 4 * time.Hour
	case Timeframe1Day:
		return 24 * time.Hour
	case Timeframe1Week:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// SortTimeframes orders timeframes from shortest to longest, unknown ones last by name.
func SortTimeframes(tfs []Timeframe) {
	sort.SliceStable(tfs, func(i, j int) bool {
		di, dj := tfs[i].Duration(), tfs[j].Duration()
		switch {
		case di == 0 && dj == 0:
			return tfs[i] < tfs[j]
		case di == 0:
			return false
		case dj == 0:
			return true
		default:
			return di < dj
		}
	})
}
