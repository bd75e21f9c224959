package harmonic

// FibonacciTolerance widens every template band on both sides.
const FibonacciTolerance = 0.03

// Range is a closed ratio band.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies inside the band, bounds included.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Mid returns the band midpoint, used as the ideal ratio.
func (r Range) Mid() float64 {
	return (r.Min + r.Max) / 2
}

// PatternTemplate holds the ratio bands of one pattern type.
type PatternTemplate struct {
	Type PatternType `json:"type"`
	XAB  Range       `json:"XAB"`
	ABC  Range       `json:"ABC"`
	BCD  Range       `json:"BCD"`
	XAD  Range       `json:"XAD"`
}

// Bands returns the bands in XAB, ABC, BCD, XAD order.
func (t PatternTemplate) Bands() [4]Range {
	return [4]Range{t.XAB, t.ABC, t.BCD, t.XAD}
}

// Matches reports whether every ratio falls inside its band.
func (t PatternTemplate) Matches(r RatioSet) bool {
	bands := t.Bands()
	values := r.Values()
	for i := range bands {
		if !bands[i].Contains(values[i]) {
			return false
		}
	}
	return true
}

// Ideal returns the band midpoints as a ratio set.
func (t PatternTemplate) Ideal() RatioSet {
	return RatioSet{XAB: t.XAB.Mid(), ABC: t.ABC.Mid(), BCD: t.BCD.Mid(), XAD: t.XAD.Mid()}
}

// fib builds a tolerance-widened band around [lo, hi].
func fib(lo, hi float64) Range {
	return Range{Min: lo - FibonacciTolerance, Max: hi + FibonacciTolerance}
}

// templates is never mutated after initialization; accessors hand out copies.
var templates = [...]PatternTemplate{
	{Type: Gartley, XAB: fib(0.618, 0.618), ABC: fib(0.382, 0.886), BCD: fib(1.13, 1.618), XAD: fib(0.786, 0.786)},
	{Type: Bat, XAB: fib(0.382, 0.5), ABC: fib(0.382, 0.886), BCD: fib(1.618, 2.618), XAD: fib(0.886, 0.886)},
	{Type: Butterfly, XAB: fib(0.786, 0.786), ABC: fib(0.382, 0.886), BCD: fib(1.618, 2.618), XAD: fib(1.27, 1.618)},
	{Type: Crab, XAB: fib(0.382, 0.618), ABC: fib(0.382, 0.886), BCD: fib(2.618, 3.618), XAD: fib(1.618, 1.618)},
	{Type: Shark, XAB: fib(0.382, 0.618), ABC: fib(1.13, 1.618), BCD: fib(1.618, 2.24), XAD: fib(0.886, 1.13)},
	{Type: Cypher, XAB: fib(0.382, 0.618), ABC: fib(1.13, 1.414), BCD: fib(1.272, 2.0), XAD: fib(0.786, 0.786)},
}

// Templates returns a copy of the built-in template table.
func Templates() []PatternTemplate {
	out := make([]PatternTemplate, len(templates))
	copy(out, templates[:])
	return out
}

// TemplateFor returns the template of the given type.
func TemplateFor(pt PatternType) (PatternTemplate, bool) {
	for _, t := range templates {
		if t.Type == pt {
			return t, true
		}
	}
	return PatternTemplate{}, false
}
