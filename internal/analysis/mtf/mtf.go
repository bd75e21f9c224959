// Package mtf provides multi-timeframe harmonic analysis.
package mtf

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"harmonic-trader/internal/analysis"
	"harmonic-trader/internal/analysis/harmonic"
	"harmonic-trader/internal/models"
)

// TimeframePatterns contains the detection result for a single timeframe.
type TimeframePatterns struct {
	Timeframe    models.Timeframe         `json:"timeframe"`
	Result       harmonic.DetectionResult `json:"result"`
	BullishCount int                      `json:"bullishCount"`
	BearishCount int                      `json:"bearishCount"`
	// Cached is set when the result was reused rather than detected.
	Cached bool `json:"cached"`
}

// Result contains the complete multi-timeframe analysis result.
type Result struct {
	Symbol       string              `json:"symbol"`
	Timeframes   []TimeframePatterns `json:"timeframes"`
	BullishCount int                 `json:"bullishCount"`
	BearishCount int                 `json:"bearishCount"`
	Duration     time.Duration       `json:"durationNs"`
}

// DetectFunc analyzes one timeframe and reports whether the result was reused.
type DetectFunc func(ctx context.Context, symbol string, tf models.Timeframe, candles []models.Candle) (harmonic.DetectionResult, bool)

// Aggregator runs the harmonic detector independently on several timeframes.
type Aggregator struct {
	detector *harmonic.Detector
	detect   DetectFunc
	logger   zerolog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithDetectFunc routes every timeframe through fn instead of the detector.
func WithDetectFunc(fn DetectFunc) Option {
	return func(a *Aggregator) {
		if fn != nil {
			a.detect = fn
		}
	}
}

// NewAggregator creates a new aggregator. A nil detector uses the defaults.
func NewAggregator(d *harmonic.Detector, logger zerolog.Logger, opts ...Option) *Aggregator {
	if d == nil {
		d = harmonic.NewDetector(harmonic.DefaultConfig())
	}
	a := &Aggregator{
		detector: d,
		logger:   logger,
	}
	a.detect = func(_ context.Context, _ string, _ models.Timeframe, candles []models.Candle) (harmonic.DetectionResult, bool) {
		return a.detector.Detect(candles), false
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze detects patterns on every timeframe concurrently.
// Timeframes are reported shortest first; there is no cross-timeframe
// correlation. A cancelled context skips timeframes that have not started.
func (a *Aggregator) Analyze(ctx context.Context, symbol string, candlesByTimeframe map[models.Timeframe][]models.Candle) *Result {
	start := time.Now()
	byTimeframe := make(map[models.Timeframe]TimeframePatterns, len(candlesByTimeframe))

	var wg sync.WaitGroup
	var mu sync.Mutex

	for tf, candles := range candlesByTimeframe {
		wg.Add(1)
		go func(tf models.Timeframe, candles []models.Candle) {
			defer wg.Done()

			if ctx.Err() != nil {
				return
			}

			res, cached := a.detect(ctx, symbol, tf, candles)
			a.logger.Debug().
				Str("symbol", symbol).
				Str("timeframe", string(tf)).
				Int("patterns", len(res.Patterns)).
				Str("status", string(res.Status)).
				Bool("cached", cached).
				Msg("Timeframe analyzed")

			mu.Lock()
			byTimeframe[tf] = TimeframePatterns{Timeframe: tf, Result: res, Cached: cached}
			mu.Unlock()
		}(tf, candles)
	}

	wg.Wait()

	tfs := make([]models.Timeframe, 0, len(byTimeframe))
	for tf := range byTimeframe {
		tfs = append(tfs, tf)
	}
	models.SortTimeframes(tfs)

	result := &Result{
		Symbol:     symbol,
		Timeframes: make([]TimeframePatterns, 0, len(tfs)),
	}
	for _, tf := range tfs {
		tp := byTimeframe[tf]
		tp.BullishCount, tp.BearishCount = countDirections(tp.Result.Patterns)
		result.BullishCount += tp.BullishCount
		result.BearishCount += tp.BearishCount
		result.Timeframes = append(result.Timeframes, tp)
	}
	result.Duration = time.Since(start)

	return result
}

func countDirections(patterns []harmonic.HarmonicPattern) (bullish, bearish int) {
	for _, p := range patterns {
		if p.Direction == analysis.Bullish {
			bullish++
		} else {
			bearish++
		}
	}
	return bullish, bearish
}

// Get returns the patterns for a specific timeframe.
func (r *Result) Get(tf models.Timeframe) (TimeframePatterns, bool) {
	for _, tp := range r.Timeframes {
		if tp.Timeframe == tf {
			return tp, true
		}
	}
	return TimeframePatterns{}, false
}

// TotalPatterns returns the number of real detections across all timeframes.
func (r *Result) TotalPatterns() int {
	n := 0
	for _, tp := range r.Timeframes {
		n += len(tp.Result.Patterns)
	}
	return n
}

// Bias returns the dominant direction across timeframes, or false on a tie.
func (r *Result) Bias() (analysis.Direction, bool) {
	switch {
	case r.BullishCount > r.BearishCount:
		return analysis.Bullish, true
	case r.BearishCount > r.BullishCount:
		return analysis.Bearish, true
	default:
		return "", false
	}
}

// FormatResult formats the multi-timeframe result for display.
func (r *Result) FormatResult() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Multi-Timeframe Harmonic Analysis: %s\n", r.Symbol))
	sb.WriteString(strings.Repeat("─", 60) + "\n\n")

	sb.WriteString(fmt.Sprintf("%-10s %-18s %-8s %-8s %-8s\n",
		"Timeframe", "Status", "Found", "Bullish", "Bearish"))
	sb.WriteString(strings.Repeat("-", 60) + "\n")

	for _, tp := range r.Timeframes {
		sb.WriteString(fmt.Sprintf("%-10s %-18s %-8d %-8d %-8d\n",
			tp.Timeframe,
			tp.Result.Status,
			len(tp.Result.Patterns),
			tp.BullishCount,
			tp.BearishCount,
		))
		for _, p := range tp.Result.Patterns {
			sb.WriteString(fmt.Sprintf("    %-18s %-8s D=%.4f reliability %.1f%%\n",
				p.Type.DisplayName(), p.Direction, p.Entry(), p.Reliability))
		}
	}

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("─", 60) + "\n")

	sb.WriteString("Summary:\n")
	sb.WriteString(fmt.Sprintf("  Patterns:      %d\n", r.TotalPatterns()))
	sb.WriteString(fmt.Sprintf("  Bullish:       %d\n", r.BullishCount))
	sb.WriteString(fmt.Sprintf("  Bearish:       %d\n", r.BearishCount))
	if bias, ok := r.Bias(); ok {
		sb.WriteString(fmt.Sprintf("  Bias:          %s\n", bias))
	} else {
		sb.WriteString("  Bias:          none\n")
	}

	return sb.String()
}
