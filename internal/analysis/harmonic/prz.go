package harmonic

import (
	"math"

	"harmonic-trader/internal/analysis"
)

// Fibonacci projections that make up the reversal zone.
const (
	przXARetrace1 = 0.618
	przXARetrace2 = 0.786
	przABExtend   = 1.272
	przBCExtend   = 1.618
)

// CalculatePRZ projects four Fibonacci levels from A, B and C and returns the
// band they span.
//
// Strength is 100 minus the band width in tenths of a percent of its
// midpoint, floored at zero. It rewards agreement between the projections
// and is a tightness heuristic, not a statistical confidence measure.
func CalculatePRZ(p Points, dir analysis.Direction) PRZ {
	xa, ab, bc, _ := p.Legs()
	// Bullish patterns complete below A, bearish above.
	s := -dir.Sign()

	levels := [4]float64{
		p.A.Price + s*xa*przXARetrace1,
		p.A.Price + s*xa*przXARetrace2,
		p.B.Price + s*ab*przABExtend,
		p.C.Price + s*bc*przBCExtend,
	}

	high, low := levels[0], levels[0]
	for _, l := range levels[1:] {
		high = math.Max(high, l)
		low = math.Min(low, l)
	}

	return PRZ{
		High:     high,
		Low:      low,
		Strength: przStrength(high, low),
	}
}

func przStrength(high, low float64) float64 {
	avg := (high + low) / 2
	if avg <= 0 {
		return 0
	}
	width := math.Abs(high - low)
	return math.Max(0, 100-(width/avg)*1000)
}
