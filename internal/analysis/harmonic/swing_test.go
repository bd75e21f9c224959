package harmonic

import (
	"testing"
	"time"

	"harmonic-trader/internal/models"
	"harmonic-trader/internal/testutil"
)

func TestFindSwingPoints_TooShort(t *testing.T) {
	candles := testutil.CandlesFrom([]float64{1, 2, 3, 2, 1, 2})
	if got := FindSwingPoints(candles, 3); len(got) != 0 {
		t.Errorf("expected no swings for 6 candles, got %d", len(got))
	}
	if got := FindSwingPoints(nil, 3); len(got) != 0 {
		t.Errorf("expected no swings for nil input, got %d", len(got))
	}
}

func TestFindSwingPoints_InvalidLookback(t *testing.T) {
	candles := testutil.CandlesFrom([]float64{1, 3, 1, 3, 1, 3, 1})
	if got := FindSwingPoints(candles, 0); len(got) != 0 {
		t.Errorf("lookback 0: expected no swings, got %d", len(got))
	}
	if got := FindSwingPoints(candles, -2); len(got) != 0 {
		t.Errorf("negative lookback: expected no swings, got %d", len(got))
	}
}

func TestFindSwingPoints_PeakAndTrough(t *testing.T) {
	path := []float64{10, 11, 12, 15, 12, 11, 10, 9, 8, 5, 8, 9, 10}
	swings := FindSwingPoints(testutil.CandlesFrom(path), 3)

	if len(swings) != 2 {
		t.Fatalf("expected 2 swings, got %d: %+v", len(swings), swings)
	}
	if swings[0].Kind != SwingHigh || swings[0].Index != 3 || swings[0].Price != 15 {
		t.Errorf("unexpected first swing: %+v", swings[0])
	}
	if swings[1].Kind != SwingLow || swings[1].Index != 9 || swings[1].Price != 5 {
		t.Errorf("unexpected second swing: %+v", swings[1])
	}
	if !swings[0].Time.Equal(testEpoch.Add(3 * time.Hour)) {
		t.Errorf("swing time not taken from candle: %v", swings[0].Time)
	}
}

func TestFindSwingPoints_EqualHighsAreNotSwings(t *testing.T) {
	path := []float64{10, 11, 12, 15, 15, 12, 11, 10}
	swings := FindSwingPoints(testutil.CandlesFrom(path), 3)
	if countKind(swings, SwingHigh) != 0 {
		t.Errorf("plateau must not produce a swing high: %+v", swings)
	}
}

func TestFindSwingPoints_OutsideBarIsHighThenLow(t *testing.T) {
	candles := testutil.CandlesFrom([]float64{10, 10.1, 10.2, 10, 10.2, 10.1, 10})
	candles[3].High = 20
	candles[3].Low = 1

	swings := FindSwingPoints(candles, 3)
	if len(swings) != 2 {
		t.Fatalf("expected 2 swings on the outside bar, got %d", len(swings))
	}
	if swings[0].Kind != SwingHigh || swings[1].Kind != SwingLow {
		t.Errorf("expected high before low, got %s then %s", swings[0].Kind, swings[1].Kind)
	}
	if swings[0].Index != 3 || swings[1].Index != 3 {
		t.Errorf("expected both swings at index 3, got %d and %d", swings[0].Index, swings[1].Index)
	}
}

func TestFindSwingPoints_MonotonicSeries(t *testing.T) {
	swings := FindSwingPoints(testutil.RisingCandles(200), DefaultLookback)
	if n := countKind(swings, SwingHigh); n != 0 {
		t.Errorf("strictly rising series produced %d swing highs", n)
	}
	if n := countKind(swings, SwingLow); n != 0 {
		t.Errorf("strictly rising series produced %d swing lows", n)
	}
}

func TestFindSwingPoints_EdgesExcluded(t *testing.T) {
	// The extreme bars sit inside the lookback margin at both ends.
	candles := testutil.CandlesFrom([]float64{50, 10, 11, 12, 13, 12, 11, 10, 1})
	for _, s := range FindSwingPoints(candles, 3) {
		if s.Index < 3 || s.Index > len(candles)-4 {
			t.Errorf("swing at index %d lies inside the lookback margin", s.Index)
		}
	}
}

func TestFindSwingPoints_UsesHighAndLow(t *testing.T) {
	candles := make([]models.Candle, 7)
	for i := range candles {
		candles[i] = models.Candle{Open: 10, High: 11, Low: 9, Close: 10}
	}
	candles[3].High = 12

	swings := FindSwingPoints(candles, 3)
	if len(swings) != 1 || swings[0].Price != 12 || swings[0].Kind != SwingHigh {
		t.Errorf("expected single swing high at 12 from the candle high, got %+v", swings)
	}
}
