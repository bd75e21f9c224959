package harmonic

import (
	"harmonic-trader/internal/models"
)

// DefaultLookback is the number of candles on each side a swing must dominate.
const DefaultLookback = 3

// FindSwingPoints identifies swing highs and lows in the price data.
//
// A candle is a swing high when its high is strictly greater than the high of
// every other candle within lookback bars on either side; swing lows mirror
// this on the low. Candles closer than lookback to either end are never
// swings. Points are returned in index order, a high before a low when one
// candle is both.
func FindSwingPoints(candles []models.Candle, lookback int) []PricePoint {
	n := len(candles)
	if lookback < 1 || n < 2*lookback+1 {
		return nil
	}

	var swings []PricePoint
	for i := lookback; i < n-lookback; i++ {
		isSwingHigh := true
		for j := 1; j <= lookback; j++ {
			if candles[i].High <= candles[i-j].High || candles[i].High <= candles[i+j].High {
				isSwingHigh = false
				break
			}
		}
		if isSwingHigh {
			swings = append(swings, PricePoint{
				Time:  candles[i].Timestamp,
				Price: candles[i].High,
				Index: i,
				Kind:  SwingHigh,
			})
		}

		isSwingLow := true
		for j := 1; j <= lookback; j++ {
			if candles[i].Low >= candles[i-j].Low || candles[i].Low >= candles[i+j].Low {
				isSwingLow = false
				break
			}
		}
		if isSwingLow {
			swings = append(swings, PricePoint{
				Time:  candles[i].Timestamp,
				Price: candles[i].Low,
				Index: i,
				Kind:  SwingLow,
			})
		}
	}

	return swings
}

// countKind returns how many swings are of the given kind.
func countKind(swings []PricePoint, kind SwingKind) int {
	n := 0
	for _, s := range swings {
		if s.Kind == kind {
			n++
		}
	}
	return n
}
