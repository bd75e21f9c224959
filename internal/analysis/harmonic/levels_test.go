package harmonic

import (
	"math"
	"strings"
	"testing"

	"harmonic-trader/internal/analysis"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestCalculatePRZ_Bullish(t *testing.T) {
	prz := CalculatePRZ(pointsOf(fixturePrices[Gartley]), analysis.Bullish)

	if !approxEqual(prz.High, 108.31904, 1e-9) {
		t.Errorf("High = %f, want 108.31904", prz.High)
	}
	if !approxEqual(prz.Low, 102.14, 1e-9) {
		t.Errorf("Low = %f, want 102.14", prz.Low)
	}
	if !approxEqual(prz.Strength, 41.2804, 1e-3) {
		t.Errorf("Strength = %f, want ~41.2804", prz.Strength)
	}
}

func TestCalculatePRZ_Bearish(t *testing.T) {
	prz := CalculatePRZ(pointsOf(mirrored(fixturePrices[Gartley])), analysis.Bearish)

	if !approxEqual(prz.High, 97.86, 1e-9) {
		t.Errorf("High = %f, want 97.86", prz.High)
	}
	if !approxEqual(prz.Low, 91.68096, 1e-9) {
		t.Errorf("Low = %f, want 91.68096", prz.Low)
	}
	if !approxEqual(prz.Strength, 34.80, 1e-2) {
		t.Errorf("Strength = %f, want ~34.80", prz.Strength)
	}
}

func TestCalculatePRZ_NonPositiveMidpoint(t *testing.T) {
	prz := CalculatePRZ(pointsOf([5]float64{-100, -90, -95, -93, -98}), analysis.Bullish)
	if prz.Strength != 0 {
		t.Errorf("non-positive midpoint should give zero strength, got %f", prz.Strength)
	}
	if prz.High < prz.Low {
		t.Errorf("High %f below Low %f", prz.High, prz.Low)
	}
}

func TestPRZ_Contains(t *testing.T) {
	z := PRZ{High: 10, Low: 5}
	for _, tc := range []struct {
		price float64
		want  bool
	}{
		{5, true}, {10, true}, {7.5, true}, {4.99, false}, {10.01, false},
	} {
		if got := z.Contains(tc.price); got != tc.want {
			t.Errorf("Contains(%v) = %v, want %v", tc.price, got, tc.want)
		}
	}
}

func TestCalculateTargets(t *testing.T) {
	tests := []struct {
		name   string
		prices [5]float64
		dir    analysis.Direction
		want   Targets
	}{
		{
			name:   "bullish gartley",
			prices: fixturePrices[Gartley],
			dir:    analysis.Bullish,
			want:   Targets{TP1: 111.68, TP2: 114.04, TP3: 117.86, SL: 100},
		},
		{
			name:   "bearish gartley",
			prices: mirrored(fixturePrices[Gartley]),
			dir:    analysis.Bearish,
			want:   Targets{TP1: 88.32, TP2: 85.96, TP3: 82.14, SL: 100},
		},
		{
			name:   "bullish butterfly mirrors the stop",
			prices: fixturePrices[Butterfly],
			dir:    analysis.Bullish,
			want:   Targets{TP1: 89.38, TP2: 91.74, TP3: 95.56, SL: 71.12},
		},
		{
			name:   "bearish butterfly mirrors the stop",
			prices: mirrored(fixturePrices[Butterfly]),
			dir:    analysis.Bearish,
			want:   Targets{TP1: 110.62, TP2: 108.26, TP3: 104.44, SL: 128.88},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateTargets(pointsOf(tt.prices), tt.dir)
			if !approxEqual(got.TP1, tt.want.TP1, 1e-9) ||
				!approxEqual(got.TP2, tt.want.TP2, 1e-9) ||
				!approxEqual(got.TP3, tt.want.TP3, 1e-9) ||
				!approxEqual(got.SL, tt.want.SL, 1e-9) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestScoreReliability(t *testing.T) {
	g, _ := TemplateFor(Gartley)

	perfect := ScoreReliability(g, g.Ideal(), PRZ{Strength: 80})
	if !approxEqual(perfect, 90, 1e-9) {
		t.Errorf("ideal ratios with strength 80: got %f, want 90", perfect)
	}

	off := g.Ideal()
	off.BCD += 0.2
	if got := ScoreReliability(g, off, PRZ{Strength: 80}); !approxEqual(got, 89, 1e-9) {
		t.Errorf("0.2 off on one ratio: got %f, want 89", got)
	}

	far := RatioSet{XAB: 20, ABC: 20, BCD: 20, XAD: 20}
	if got := ScoreReliability(g, far, PRZ{}); got != 0 {
		t.Errorf("expected clamp to 0, got %f", got)
	}

	p := pointsOf(fixturePrices[Gartley])
	if got := ScoreReliability(g, ComputeRatios(p), CalculatePRZ(p, analysis.Bullish)); !approxEqual(got, 70.288, 1e-3) {
		t.Errorf("gartley fixture reliability = %f, want ~70.288", got)
	}
}

func TestScoreCompletion(t *testing.T) {
	zone := PRZ{High: 105, Low: 100}

	inside := pointsOf([5]float64{90, 110, 104, 106, 102})
	if got := ScoreCompletion(inside, zone); got != 100 {
		t.Errorf("D inside zone: got %f, want 100", got)
	}

	near := pointsOf([5]float64{100, 110, 104, 106, 107})
	if got := ScoreCompletion(near, zone); !approxEqual(got, 80, 1e-9) {
		t.Errorf("D two points above zone with XA=10: got %f, want 80", got)
	}

	far := pointsOf([5]float64{100, 110, 104, 106, 130})
	if got := ScoreCompletion(far, zone); got != 0 {
		t.Errorf("D beyond one XA from zone: got %f, want 0", got)
	}

	flat := pointsOf([5]float64{100, 100, 104, 106, 130})
	if got := ScoreCompletion(flat, zone); got != 0 {
		t.Errorf("zero XA: got %f, want 0", got)
	}
}

func TestHarmonicPattern_RiskReward(t *testing.T) {
	p := Build(Match{
		Template:  Templates()[0],
		Points:    pointsOf(fixturePrices[Gartley]),
		Ratios:    ComputeRatios(pointsOf(fixturePrices[Gartley])),
		Direction: analysis.Bullish,
	})
	if !approxEqual(p.RiskReward(), 3.82/7.86, 1e-9) {
		t.Errorf("RiskReward = %f, want %f", p.RiskReward(), 3.82/7.86)
	}
	if p.Entry() != 107.86 {
		t.Errorf("Entry = %f, want D price", p.Entry())
	}

	var zero HarmonicPattern
	if zero.RiskReward() != 0 {
		t.Error("zero risk should give zero ratio")
	}
}

func TestNotes(t *testing.T) {
	for _, pt := range AllPatternTypes() {
		bull := StrategyNote(pt, analysis.Bullish)
		bear := StrategyNote(pt, analysis.Bearish)
		if !strings.Contains(bull, "Buy") || !strings.Contains(bear, "Sell") {
			t.Errorf("%s: notes do not follow direction: %q / %q", pt, bull, bear)
		}
	}
	if got := StrategyNote(PatternType("ABCD"), analysis.Bullish); got == "" {
		t.Error("unknown type should still get a note")
	}

	desc := Description(Crab, analysis.Bearish)
	if !strings.Contains(desc, "Crab Pattern") || !strings.Contains(desc, "bearish") {
		t.Errorf("unexpected description %q", desc)
	}
}

func TestStatistics(t *testing.T) {
	s := Statistics(Crab)
	if s.WinRate != 78 || s.Frequency != FrequencyRare {
		t.Errorf("unexpected Crab stats: %+v", s)
	}
	if !approxEqual(s.Expectancy(), 0.78*3.8-0.22*1.3, 1e-9) {
		t.Errorf("Expectancy = %f", s.Expectancy())
	}

	u := Statistics(PatternType("ABCD"))
	if u.Frequency != FrequencyUnknown || u.WinRate != 50 {
		t.Errorf("unexpected defaults for unknown type: %+v", u)
	}
}
