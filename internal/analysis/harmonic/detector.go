package harmonic

import (
	"fmt"

	"github.com/rs/zerolog"

	"harmonic-trader/internal/analysis"
	"harmonic-trader/internal/models"
)

// MinCandles is the shortest series that is analyzed rather than replaced by
// placeholders.
const MinCandles = 50

// Config tunes the detector.
type Config struct {
	// Lookback is the swing confirmation window on each side.
	Lookback int
	// MinCandles is the series length below which no detection is attempted.
	MinCandles int
	// AllowPlaceholders controls whether illustrative patterns are generated
	// for insufficient input. Disable it for live signal feeds.
	AllowPlaceholders bool
}

// DefaultConfig returns the default detector configuration.
func DefaultConfig() Config {
	return Config{
		Lookback:          DefaultLookback,
		MinCandles:        MinCandles,
		AllowPlaceholders: true,
	}
}

// Detector runs the full harmonic pipeline over a candle series.
// It holds no mutable state and is safe for concurrent use.
type Detector struct {
	cfg     Config
	matcher *Matcher
	logger  zerolog.Logger
}

var _ analysis.PatternDetector[DetectionResult] = (*Detector)(nil)

// Option configures a Detector.
type Option func(*Detector)

// WithLogger attaches a logger for debug diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Detector) {
		d.logger = l
	}
}

// WithMatcher replaces the template matcher.
func WithMatcher(m *Matcher) Option {
	return func(d *Detector) {
		d.matcher = m
	}
}

// NewDetector creates a detector. A non-positive lookback falls back to the
// default. MinCandles can only be raised: lower values are lifted to
// MinCandles so short series always take the placeholder path.
func NewDetector(cfg Config, opts ...Option) *Detector {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.MinCandles < MinCandles {
		cfg.MinCandles = MinCandles
	}
	d := &Detector{
		cfg:     cfg,
		matcher: NewMatcher(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the detector name.
func (d *Detector) Name() string {
	return "HarmonicPatternDetector"
}

// Config returns the detector configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Detect finds harmonic patterns in the candles.
//
// Short inputs, or inputs with fewer than five swing points, yield a result
// with StatusInsufficientData whose Patterns is empty; placeholders are
// attached when the configuration allows them.
func (d *Detector) Detect(candles []models.Candle) DetectionResult {
	d.logger.Debug().Int("candles", len(candles)).Msg("Detecting harmonic patterns")

	if len(candles) < d.cfg.MinCandles {
		return d.insufficient(candles, 0,
			fmt.Sprintf("need at least %d candles, got %d", d.cfg.MinCandles, len(candles)))
	}

	swings := FindSwingPoints(candles, d.cfg.Lookback)
	d.logger.Debug().
		Int("swings", len(swings)).
		Int("highs", countKind(swings, SwingHigh)).
		Int("lows", countKind(swings, SwingLow)).
		Msg("Swing points found")

	if len(swings) < windowSize {
		return d.insufficient(candles, len(swings),
			fmt.Sprintf("need at least %d swing points, got %d", windowSize, len(swings)))
	}

	matches := d.matcher.Match(swings)
	patterns := make([]HarmonicPattern, 0, len(matches))
	for _, m := range matches {
		patterns = append(patterns, Build(m))
	}

	return DetectionResult{
		Status:      StatusDetected,
		Patterns:    patterns,
		CandleCount: len(candles),
		SwingCount:  len(swings),
	}
}

func (d *Detector) insufficient(candles []models.Candle, swings int, reason string) DetectionResult {
	d.logger.Debug().Str("reason", reason).Bool("placeholders", d.cfg.AllowPlaceholders).Msg("Insufficient data")

	res := DetectionResult{
		Status:      StatusInsufficientData,
		Patterns:    []HarmonicPattern{},
		CandleCount: len(candles),
		SwingCount:  swings,
		Reason:      reason,
	}
	if d.cfg.AllowPlaceholders {
		res.Placeholders = GeneratePlaceholders(candles)
	}
	return res
}

// Build enriches a template match into a complete pattern record.
func Build(m Match) HarmonicPattern {
	prz := CalculatePRZ(m.Points, m.Direction)
	return HarmonicPattern{
		Type:         m.Template.Type,
		Name:         string(m.Template.Type),
		Points:       m.Points,
		Ratios:       m.Ratios,
		PRZ:          prz,
		Completion:   ScoreCompletion(m.Points, prz),
		Reliability:  ScoreReliability(m.Template, m.Ratios, prz),
		Direction:    m.Direction,
		Target:       CalculateTargets(m.Points, m.Direction),
		Description:  Description(m.Template.Type, m.Direction),
		StrategyNote: StrategyNote(m.Template.Type, m.Direction),
	}
}

// Detect runs the default detector over the candles.
func Detect(candles []models.Candle) DetectionResult {
	return NewDetector(DefaultConfig()).Detect(candles)
}
