package harmonic

import "time"

// fixturePrices holds one bullish XABCD structure per template. Each one
// matches its own template and no other.
var fixturePrices = map[PatternType][5]float64{
	Gartley:   {100, 110, 116.18, 112.6685, 107.86},
	Bat:       {100, 110, 105.59, 102.6697, 108.86},
	Butterfly: {100, 110, 101.87, 96.6392, 85.56},
	Crab:      {100, 110, 105.0987, 107.7915, 116.18},
	Shark:     {100, 110, 105.9867, 100.509, 89.92},
	Cypher:    {100, 110, 105.888, 100.6575, 92.14},
}

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// pointsOf builds labelled points from five prices.
func pointsOf(prices [5]float64) Points {
	pts := make([]PricePoint, 5)
	for i, p := range prices {
		pts[i] = PricePoint{Time: testEpoch.Add(time.Duration(i) * time.Hour), Price: p, Index: i}
	}
	return Points{
		X: pts[0].withRole(RoleX),
		A: pts[1].withRole(RoleA),
		B: pts[2].withRole(RoleB),
		C: pts[3].withRole(RoleC),
		D: pts[4].withRole(RoleD),
	}
}

// mirrored reflects prices around 100 so a bullish structure becomes bearish.
func mirrored(prices [5]float64) [5]float64 {
	var out [5]float64
	for i, p := range prices {
		out[i] = 200 - p
	}
	return out
}

