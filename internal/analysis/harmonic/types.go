// Package harmonic detects XABCD harmonic price patterns in candle data.
//
// Detection is a pure function of its input: swing points are located with a
// symmetric lookback window, every run of five consecutive swings is tested
// against the built-in Fibonacci templates, and matches are enriched with a
// potential reversal zone, trade levels and a reliability score.
package harmonic

import (
	"math"
	"time"

	"harmonic-trader/internal/analysis"
)

// PatternType identifies one of the built-in harmonic templates.
type PatternType string

const (
	Gartley   PatternType = "Gartley"
	Bat       PatternType = "Bat"
	Butterfly PatternType = "Butterfly"
	Crab      PatternType = "Crab"
	Shark     PatternType = "Shark"
	Cypher    PatternType = "Cypher"
)

// AllPatternTypes returns the template types in matching order.
func AllPatternTypes() []PatternType {
	return []PatternType{Gartley, Bat, Butterfly, Crab, Shark, Cypher}
}

// DisplayName returns the human readable pattern name.
func (p PatternType) DisplayName() string {
	return string(p) + " Pattern"
}

// Role labels a swing point's position inside an XABCD structure.
type Role string

const (
	RoleX Role = "X"
	RoleA Role = "A"
	RoleB Role = "B"
	RoleC Role = "C"
	RoleD Role = "D"
)

// SwingKind distinguishes swing highs from swing lows.
type SwingKind string

const (
	SwingHigh SwingKind = "high"
	SwingLow  SwingKind = "low"
)

// PricePoint is a swing point, optionally labelled with its pattern role.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
	Index int       `json:"index"`
	Kind  SwingKind `json:"kind,omitempty"`
	Role  Role      `json:"role,omitempty"`
}

// withRole returns a copy of the point labelled with role.
func (p PricePoint) withRole(role Role) PricePoint {
	p.Role = role
	return p
}

// Points holds the five labelled points of a pattern.
type Points struct {
	X PricePoint `json:"X"`
	A PricePoint `json:"A"`
	B PricePoint `json:"B"`
	C PricePoint `json:"C"`
	D PricePoint `json:"D"`
}

// Legs returns the absolute price displacements XA, AB, BC and CD.
func (p Points) Legs() (xa, ab, bc, cd float64) {
	return math.Abs(p.A.Price - p.X.Price),
		math.Abs(p.B.Price - p.A.Price),
		math.Abs(p.C.Price - p.B.Price),
		math.Abs(p.D.Price - p.C.Price)
}

// RatioSet holds the four leg ratios of an XABCD structure.
type RatioSet struct {
	XAB float64 `json:"XAB"`
	ABC float64 `json:"ABC"`
	BCD float64 `json:"BCD"`
	XAD float64 `json:"XAD"`
}

// Values returns the ratios in XAB, ABC, BCD, XAD order.
func (r RatioSet) Values() [4]float64 {
	return [4]float64{r.XAB, r.ABC, r.BCD, r.XAD}
}

// PRZ is the potential reversal zone of a pattern.
type PRZ struct {
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Strength float64 `json:"strength"`
}

// Contains reports whether price lies inside the zone.
func (z PRZ) Contains(price float64) bool {
	return price >= z.Low && price <= z.High
}

// Targets holds take-profit and stop-loss levels.
type Targets struct {
	TP1 float64 `json:"tp1"`
	TP2 float64 `json:"tp2"`
	TP3 float64 `json:"tp3"`
	SL  float64 `json:"sl"`
}

// HarmonicPattern is a single detected (or synthetic) pattern.
type HarmonicPattern struct {
	Type         PatternType        `json:"type"`
	Name         string             `json:"name"`
	Points       Points             `json:"points"`
	Ratios       RatioSet           `json:"ratios"`
	PRZ          PRZ                `json:"prz"`
	Completion   float64            `json:"completion"`
	Reliability  float64            `json:"reliability"`
	Direction    analysis.Direction `json:"direction"`
	Target       Targets            `json:"target"`
	Description  string             `json:"description"`
	StrategyNote string             `json:"strategyNote"`
	Synthetic    bool               `json:"synthetic"`
}

// Entry returns the entry price, which is the D point.
func (p HarmonicPattern) Entry() float64 {
	return p.Points.D.Price
}

// RiskReward returns the reward to TP1 per unit of risk to the stop.
func (p HarmonicPattern) RiskReward() float64 {
	risk := math.Abs(p.Entry() - p.Target.SL)
	if risk == 0 {
		return 0
	}
	return math.Abs(p.Target.TP1-p.Entry()) / risk
}

// DetectionStatus tells callers whether a result holds real detections.
type DetectionStatus string

const (
	StatusDetected         DetectionStatus = "detected"
	StatusInsufficientData DetectionStatus = "insufficient_data"
)

// DetectionResult separates genuine detections from illustrative placeholders.
// Patterns only ever holds records derived from the input; Placeholders only
// ever holds synthetic records.
type DetectionResult struct {
	Status       DetectionStatus   `json:"status"`
	Patterns     []HarmonicPattern `json:"patterns"`
	Placeholders []HarmonicPattern `json:"placeholders,omitempty"`
	CandleCount  int               `json:"candleCount"`
	SwingCount   int               `json:"swingCount"`
	Reason       string            `json:"reason,omitempty"`
}

// Insufficient reports whether the input was too short to analyze.
func (r DetectionResult) Insufficient() bool {
	return r.Status == StatusInsufficientData
}

// All returns real detections followed by placeholders.
func (r DetectionResult) All() []HarmonicPattern {
	out := make([]HarmonicPattern, 0, len(r.Patterns)+len(r.Placeholders))
	out = append(out, r.Patterns...)
	return append(out, r.Placeholders...)
}

// Best returns the real detection with the highest reliability.
func (r DetectionResult) Best() (HarmonicPattern, bool) {
	if len(r.Patterns) == 0 {
		return HarmonicPattern{}, false
	}
	best := r.Patterns[0]
	for _, p := range r.Patterns[1:] {
		if p.Reliability > best.Reliability {
			best = p
		}
	}
	return best, true
}
