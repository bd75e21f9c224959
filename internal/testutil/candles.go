// Package testutil builds deterministic candle series for tests.
package testutil

import (
	"time"

	"harmonic-trader/internal/models"
)

// Epoch is the timestamp of the first generated candle.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// CandlesFrom turns a close path into hourly flat candles.
func CandlesFrom(path []float64) []models.Candle {
	out := make([]models.Candle, len(path))
	for i, p := range path {
		out[i] = models.Candle{
			Timestamp: Epoch.Add(time.Duration(i) * time.Hour),
			Open:      p,
			High:      p,
			Low:       p,
			Close:     p,
			Volume:    1000,
		}
	}
	return out
}

// Leg appends a straight move to `to` in steps, landing exactly on it.
func Leg(path []float64, to float64, steps int) []float64 {
	from := path[len(path)-1]
	for k := 1; k <= steps; k++ {
		v := to
		if k < steps {
			v = from + (to-from)*float64(k)/float64(steps)
		}
		path = append(path, v)
	}
	return path
}

// GartleyPath is a 53 point close path holding exactly one bullish Gartley
// for the default detector, with X at index 10 and D at index 42.
func GartleyPath() []float64 {
	path := []float64{1012}
	path = Leg(path, 1000, 10)
	path = Leg(path, 1010, 6)
	path = Leg(path, 1008, 3)
	path = append(path, 1008)
	path = Leg(path, 1016.18, 6)
	path = Leg(path, 1012.6685, 6)
	path = Leg(path, 1014.6685, 3)
	path = append(path, 1014.6685)
	path = Leg(path, 1007.86, 6)
	path = Leg(path, 1015.86, 10)
	return path
}

// GartleyCandles returns GartleyPath as candles.
func GartleyCandles() []models.Candle {
	return CandlesFrom(GartleyPath())
}

// RisingCandles returns n strictly ascending candles.
func RisingCandles(n int) []models.Candle {
	path := make([]float64, n)
	for i := range path {
		path[i] = 100 + float64(i)
	}
	return CandlesFrom(path)
}
