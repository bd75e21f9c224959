package harmonic

import (
	"math"

	"harmonic-trader/internal/analysis"
)

// Target multiples of the XA leg measured from the entry.
const (
	tp1Multiple = 0.382
	tp2Multiple = 0.618
	tp3Multiple = 1.0
)

// CalculateTargets derives take-profit levels from the XA leg and places the
// stop at X.
//
// The stop always sits on the opposite side of the entry from the targets.
// When D overshoots X (extension patterns), X lies on the target side, so the
// stop is mirrored through the entry at the same distance.
func CalculateTargets(p Points, dir analysis.Direction) Targets {
	xa, _, _, _ := p.Legs()
	entry := p.D.Price
	s := dir.Sign()

	sl := p.X.Price
	if (sl-entry)*s >= 0 {
		sl = entry - s*math.Abs(entry-p.X.Price)
	}

	return Targets{
		TP1: entry + s*xa*tp1Multiple,
		TP2: entry + s*xa*tp2Multiple,
		TP3: entry + s*xa*tp3Multiple,
		SL:  sl,
	}
}
