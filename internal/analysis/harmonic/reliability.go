package harmonic

import (
	"math"
)

// ratioPenalty is the score deducted per unit of ratio deviation.
const ratioPenalty = 10.0

// ScoreReliability rates how closely observed ratios follow the template.
//
// Each ratio costs ten points per unit of distance from its band midpoint;
// the remainder is averaged with the PRZ strength and clamped to [0, 100].
// A window whose ratios sit exactly on the midpoints reaches the best score
// its PRZ width allows.
func ScoreReliability(t PatternTemplate, observed RatioSet, prz PRZ) float64 {
	score := 100.0
	ideal := t.Ideal().Values()
	for i, v := range observed.Values() {
		score -= ratioPenalty * math.Abs(v-ideal[i])
	}
	return clamp((score+prz.Strength)/2, 0, 100)
}

// ScoreCompletion returns 100 when D sits inside the PRZ and falls off with
// the distance from the nearest zone edge, measured in units of XA.
func ScoreCompletion(p Points, prz PRZ) float64 {
	d := p.D.Price
	if prz.Contains(d) {
		return 100
	}
	xa, _, _, _ := p.Legs()
	if xa == 0 {
		return 0
	}
	dist := math.Min(math.Abs(d-prz.High), math.Abs(d-prz.Low))
	return clamp(100*(1-dist/xa), 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
