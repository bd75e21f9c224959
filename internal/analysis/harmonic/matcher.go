package harmonic

import (
	"math"

	"harmonic-trader/internal/analysis"
)

// windowSize is the number of swing points in an XABCD structure.
const windowSize = 5

// ratio divides two leg lengths, returning 0 for a zero denominator so that
// degenerate legs never satisfy a template.
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// ComputeRatios returns the XAB, ABC, BCD and XAD ratios of five points.
func ComputeRatios(p Points) RatioSet {
	xa, ab, bc, cd := p.Legs()
	return RatioSet{
		XAB: ratio(ab, xa),
		ABC: ratio(bc, ab),
		BCD: ratio(cd, bc),
		XAD: ratio(math.Abs(p.D.Price-p.X.Price), xa),
	}
}

// DirectionOf returns bullish when A is above X, bearish otherwise.
func DirectionOf(p Points) analysis.Direction {
	if p.A.Price > p.X.Price {
		return analysis.Bullish
	}
	return analysis.Bearish
}

// Match is a template hit on one swing window, before enrichment.
type Match struct {
	Template  PatternTemplate
	Points    Points
	Ratios    RatioSet
	Direction analysis.Direction
}

// Matcher tests swing windows against a set of templates.
type Matcher struct {
	templates []PatternTemplate
}

// NewMatcher creates a matcher over the built-in templates.
func NewMatcher() *Matcher {
	return NewMatcherWithTemplates(Templates())
}

// NewMatcherWithTemplates creates a matcher over custom templates.
func NewMatcherWithTemplates(t []PatternTemplate) *Matcher {
	cp := make([]PatternTemplate, len(t))
	copy(cp, t)
	return &Matcher{templates: cp}
}

// Templates returns the templates the matcher tests against.
func (m *Matcher) Templates() []PatternTemplate {
	out := make([]PatternTemplate, len(m.templates))
	copy(out, m.templates)
	return out
}

// Match slides a five-point window over the swings and returns every
// template hit. A single window may match more than one template when bands
// overlap; each hit is returned.
func (m *Matcher) Match(swings []PricePoint) []Match {
	if len(swings) < windowSize {
		return nil
	}

	var matches []Match
	for i := 0; i+windowSize <= len(swings); i++ {
		w := swings[i : i+windowSize]
		points := Points{
			X: w[0].withRole(RoleX),
			A: w[1].withRole(RoleA),
			B: w[2].withRole(RoleB),
			C: w[3].withRole(RoleC),
			D: w[4].withRole(RoleD),
		}
		ratios := ComputeRatios(points)
		for _, t := range m.templates {
			if !t.Matches(ratios) {
				continue
			}
			matches = append(matches, Match{
				Template:  t,
				Points:    points,
				Ratios:    ratios,
				Direction: DirectionOf(points),
			})
		}
	}
	return matches
}

// MatchPoints tests a single five-point structure and returns the matching templates.
func (m *Matcher) MatchPoints(p Points) []PatternTemplate {
	ratios := ComputeRatios(p)
	var out []PatternTemplate
	for _, t := range m.templates {
		if t.Matches(ratios) {
			out = append(out, t)
		}
	}
	return out
}
