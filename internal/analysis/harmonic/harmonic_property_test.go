package harmonic

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"harmonic-trader/internal/analysis"
	"harmonic-trader/internal/models"
	"harmonic-trader/internal/testutil"
)

// Feature: harmonic-trader, Property 1: Scale invariance
//
// Property: multiplying every price by a positive factor changes no pattern
// type, point index, direction or ratio. Random walks use powers of two; the
// known Gartley and the template fixtures use arbitrary factors.
//
// Feature: harmonic-trader, Property 2: PRZ ordering
//
// Property: for every emitted pattern, PRZ.High >= PRZ.Low and strength lies
// in [0, 100].
//
// Feature: harmonic-trader, Property 3: Target ordering
//
// Property: bullish patterns satisfy TP3 > TP2 > TP1 > entry > SL and bearish
// patterns mirror it.
//
// Feature: harmonic-trader, Property 4: Score bounds
//
// Property: reliability and completion lie in [0, 100] for every record,
// placeholders included.
//
// Feature: harmonic-trader, Property 5: Fallback trigger
//
// Property: fewer than 50 candles never yields a real pattern and every
// returned record is synthetic.

// randomWalkGen generates a multiplicative random walk with wicks, which
// produces plenty of swing points.
func randomWalkGen(minLen, maxLen int) gopter.Gen {
	return gen.IntRange(minLen, maxLen).FlatMap(func(v interface{}) gopter.Gen {
		n := v.(int)
		return gen.SliceOfN(n, gen.Float64Range(-1, 1)).Map(func(steps []float64) []models.Candle {
			start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			candles := make([]models.Candle, len(steps))
			price := 1000.0
			for i, s := range steps {
				open := price
				price *= 1 + s*0.02
				wick := math.Abs(s) * price * 0.005
				candles[i] = models.Candle{
					Timestamp: start.Add(time.Duration(i) * time.Hour),
					Open:      open,
					High:      math.Max(open, price) + wick,
					Low:       math.Min(open, price) - wick,
					Close:     price,
					Volume:    1000,
				}
			}
			return candles
		})
	}, reflect.TypeOf([]models.Candle{}))
}

// fixtureGen picks a template fixture, optionally mirrors it and applies a
// positive affine transform.
func fixtureGen() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, len(AllPatternTypes())-1),
		gen.Bool(),
		gen.Float64Range(0.01, 1000),
		gen.Float64Range(0, 10000),
	).Map(func(vals []interface{}) Match {
		pt := AllPatternTypes()[vals[0].(int)]
		prices := fixturePrices[pt]
		if vals[1].(bool) {
			prices = mirrored(prices)
		}
		scale, offset := vals[2].(float64), vals[3].(float64)
		for i := range prices {
			prices[i] = prices[i]*scale + offset
		}
		tmpl, _ := TemplateFor(pt)
		points := pointsOf(prices)
		return Match{
			Template:  tmpl,
			Points:    points,
			Ratios:    ComputeRatios(points),
			Direction: DirectionOf(points),
		}
	})
}

func scaleCandles(candles []models.Candle, k float64) []models.Candle {
	out := make([]models.Candle, len(candles))
	for i, c := range candles {
		out[i] = models.Candle{
			Timestamp: c.Timestamp,
			Open:      c.Open * k,
			High:      c.High * k,
			Low:       c.Low * k,
			Close:     c.Close * k,
			Volume:    c.Volume,
		}
	}
	return out
}

func checkTargets(p HarmonicPattern) bool {
	t, entry := p.Target, p.Entry()
	if p.Direction == analysis.Bullish {
		return t.TP3 > t.TP2 && t.TP2 > t.TP1 && t.TP1 > entry && entry > t.SL
	}
	return t.TP3 < t.TP2 && t.TP2 < t.TP1 && t.TP1 < entry && entry < t.SL
}

func inPercentRange(v float64) bool {
	return v >= 0 && v <= 100
}

func propertyParams() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0
	return parameters
}

// TestProperty_ScaleInvariance tests that detection does not depend on price scale
func TestProperty_ScaleInvariance(t *testing.T) {
	properties := gopter.NewProperties(propertyParams())

	properties.Property("Power-of-two rescaling preserves detections", prop.ForAll(
		func(candles []models.Candle, k float64) bool {
			a := Detect(candles)
			b := Detect(scaleCandles(candles, k))
			if a.Status != b.Status || a.SwingCount != b.SwingCount || len(a.Patterns) != len(b.Patterns) {
				return false
			}
			for i := range a.Patterns {
				pa, pb := a.Patterns[i], b.Patterns[i]
				if pa.Type != pb.Type || pa.Direction != pb.Direction {
					return false
				}
				if pa.Points.X.Index != pb.Points.X.Index || pa.Points.D.Index != pb.Points.D.Index {
					return false
				}
				ra, rb := pa.Ratios.Values(), pb.Ratios.Values()
				for j := range ra {
					if math.Abs(ra[j]-rb[j]) > 1e-9 {
						return false
					}
				}
			}
			return true
		},
		randomWalkGen(50, 300),
		gen.OneConstOf(0.25, 0.5, 2.0, 4.0),
	))

	base := Detect(testutil.GartleyCandles())
	if len(base.Patterns) != 1 {
		t.Fatalf("fixture yields %d patterns, want 1", len(base.Patterns))
	}
	want := base.Patterns[0]

	properties.Property("Scaled Gartley keeps type, points and ratios", prop.ForAll(
		func(k float64) bool {
			res := Detect(scaleCandles(testutil.GartleyCandles(), k))
			if len(res.Patterns) != 1 {
				return false
			}
			got := res.Patterns[0]
			if got.Type != Gartley || got.Direction != want.Direction {
				return false
			}
			gi, wi := pointList(got.Points), pointList(want.Points)
			for j := range wi {
				if gi[j].Index != wi[j].Index {
					return false
				}
			}
			return ratiosClose(got.Ratios, want.Ratios)
		},
		gen.Float64Range(0.01, 1000),
	))

	properties.Property("ComputeRatios ignores positive scaling", prop.ForAll(
		func(m Match, k float64) bool {
			pts := pointList(m.Points)
			var prices [5]float64
			for i, p := range pts {
				prices[i] = p.Price * k
			}
			return ratiosClose(ComputeRatios(pointsOf(prices)), m.Ratios)
		},
		fixtureGen(),
		gen.Float64Range(0.01, 1000),
	))

	properties.TestingRun(t)
}

func pointList(p Points) [5]PricePoint {
	return [5]PricePoint{p.X, p.A, p.B, p.C, p.D}
}

// ratiosClose compares ratio sets with a relative tolerance.
func ratiosClose(a, b RatioSet) bool {
	av, bv := a.Values(), b.Values()
	for i := range av {
		if math.Abs(av[i]-bv[i]) > 1e-9*math.Max(1, math.Abs(bv[i])) {
			return false
		}
	}
	return true
}

// TestProperty_PRZOrdering tests that every reversal zone is well formed
func TestProperty_PRZOrdering(t *testing.T) {
	properties := gopter.NewProperties(propertyParams())

	properties.Property("Detected PRZ has High >= Low", prop.ForAll(
		func(candles []models.Candle) bool {
			for _, p := range Detect(candles).All() {
				if p.PRZ.High < p.PRZ.Low || !inPercentRange(p.PRZ.Strength) {
					return false
				}
			}
			return true
		},
		randomWalkGen(50, 300),
	))

	properties.Property("Fixture PRZ has High >= Low", prop.ForAll(
		func(m Match) bool {
			p := Build(m)
			return p.PRZ.High >= p.PRZ.Low && inPercentRange(p.PRZ.Strength)
		},
		fixtureGen(),
	))

	properties.TestingRun(t)
}

// TestProperty_TargetOrdering tests that targets lie beyond the entry and the stop behind it
func TestProperty_TargetOrdering(t *testing.T) {
	properties := gopter.NewProperties(propertyParams())

	properties.Property("Fixture targets are ordered", prop.ForAll(
		func(m Match) bool {
			return checkTargets(Build(m))
		},
		fixtureGen(),
	))

	properties.Property("Detected targets are ordered", prop.ForAll(
		func(candles []models.Candle) bool {
			for _, p := range Detect(candles).Patterns {
				if !checkTargets(p) {
					return false
				}
			}
			return true
		},
		randomWalkGen(50, 300),
	))

	properties.TestingRun(t)
}

// TestProperty_ScoreBounds tests that reliability and completion stay within [0, 100]
func TestProperty_ScoreBounds(t *testing.T) {
	properties := gopter.NewProperties(propertyParams())

	properties.Property("Scores within [0, 100]", prop.ForAll(
		func(candles []models.Candle) bool {
			for _, p := range Detect(candles).All() {
				if !inPercentRange(p.Reliability) || !inPercentRange(p.Completion) {
					return false
				}
			}
			return true
		},
		randomWalkGen(10, 300),
	))

	properties.Property("Fixture scores within [0, 100]", prop.ForAll(
		func(m Match) bool {
			p := Build(m)
			return inPercentRange(p.Reliability) && inPercentRange(p.Completion)
		},
		fixtureGen(),
	))

	properties.TestingRun(t)
}

// TestProperty_FallbackTrigger tests that short input never yields real detections
func TestProperty_FallbackTrigger(t *testing.T) {
	properties := gopter.NewProperties(propertyParams())

	properties.Property("Fewer than 50 candles only yields synthetic records", prop.ForAll(
		func(candles []models.Candle) bool {
			res := Detect(candles)
			if !res.Insufficient() || len(res.Patterns) != 0 {
				return false
			}
			for _, p := range res.All() {
				if !p.Synthetic {
					return false
				}
			}
			return true
		},
		randomWalkGen(0, MinCandles-1),
	))

	properties.Property("Real detections are never synthetic", prop.ForAll(
		func(candles []models.Candle) bool {
			for _, p := range Detect(candles).Patterns {
				if p.Synthetic {
					return false
				}
			}
			return true
		},
		randomWalkGen(50, 300),
	))

	properties.TestingRun(t)
}
