package harmonic

import (
	"time"

	"harmonic-trader/internal/analysis"
	"harmonic-trader/internal/models"
)

// DefaultPlaceholderPrice is the reference price used when there is no data.
const DefaultPlaceholderPrice = 98000.0

// placeholderSpec describes one illustrative pattern as multiples of the
// reference price.
type placeholderSpec struct {
	pattern     PatternType
	points      [5]float64
	firstIndex  int
	spacing     int // hours between points
	ratios      RatioSet
	przHigh     float64
	przLow      float64
	przStrength float64
	completion  float64
	reliability float64
	targets     [4]float64
	description string
	note        string
}

var placeholderSpecs = []placeholderSpec{
	{
		pattern:     Gartley,
		points:      [5]float64{0.95, 1.02, 0.98, 1.01, 0.97},
		firstIndex:  0,
		spacing:     1,
		ratios:      RatioSet{XAB: 0.618, ABC: 0.618, BCD: 1.272, XAD: 0.786},
		przHigh:     0.98,
		przLow:      0.96,
		przStrength: 85,
		completion:  92,
		reliability: 78,
		targets:     [4]float64{1.02, 1.04, 1.06, 0.95},
		description: "Illustrative Gartley forming. Shown because there is not enough data to analyze.",
		note:        "Watch the 0.786 XA level for a long entry. Confirm with RSI divergence.",
	},
	{
		pattern:     Bat,
		points:      [5]float64{0.94, 1.03, 0.99, 1.02, 0.96},
		firstIndex:  5,
		spacing:     2,
		ratios:      RatioSet{XAB: 0.45, ABC: 0.618, BCD: 2.0, XAD: 0.886},
		przHigh:     0.97,
		przLow:      0.95,
		przStrength: 90,
		completion:  88,
		reliability: 82,
		targets:     [4]float64{1.03, 1.05, 1.08, 0.94},
		description: "Illustrative Bat forming. Shown because there is not enough data to analyze.",
		note:        "Expect a strong bounce after the deep retracement. Scale into the position.",
	},
}

// GeneratePlaceholders returns fixed illustrative patterns scaled to the last
// close. They are not derived from the candles and are always marked
// Synthetic.
func GeneratePlaceholders(candles []models.Candle) []HarmonicPattern {
	price := DefaultPlaceholderPrice
	var anchor time.Time
	if n := len(candles); n > 0 {
		price = candles[n-1].Close
		anchor = candles[n-1].Timestamp
	}

	out := make([]HarmonicPattern, 0, len(placeholderSpecs))
	for _, spec := range placeholderSpecs {
		var pts [5]PricePoint
		roles := [5]Role{RoleX, RoleA, RoleB, RoleC, RoleD}
		for i, mult := range spec.points {
			hoursBack := (len(spec.points) - i) * spec.spacing
			pts[i] = PricePoint{
				Time:  anchor.Add(-time.Duration(hoursBack) * time.Hour),
				Price: price * mult,
				Index: spec.firstIndex + i,
				Role:  roles[i],
			}
		}

		out = append(out, HarmonicPattern{
			Type:   spec.pattern,
			Name:   string(spec.pattern),
			Points: Points{X: pts[0], A: pts[1], B: pts[2], C: pts[3], D: pts[4]},
			Ratios: spec.ratios,
			PRZ: PRZ{
				High:     price * spec.przHigh,
				Low:      price * spec.przLow,
				Strength: spec.przStrength,
			},
			Completion:  spec.completion,
			Reliability: clamp(spec.reliability, 0, 100),
			Direction:   analysis.Bullish,
			Target: Targets{
				TP1: price * spec.targets[0],
				TP2: price * spec.targets[1],
				TP3: price * spec.targets[2],
				SL:  price * spec.targets[3],
			},
			Description:  spec.description,
			StrategyNote: spec.note,
			Synthetic:    true,
		})
	}
	return out
}
