// Package scanner runs harmonic detection over stored candles and keeps the
// result cache, metrics and detection history in step.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"harmonic-trader/internal/analysis/harmonic"
	"harmonic-trader/internal/analysis/mtf"
	"harmonic-trader/internal/cache"
	apperrors "harmonic-trader/internal/errors"
	"harmonic-trader/internal/logging"
	"harmonic-trader/internal/metrics"
	"harmonic-trader/internal/models"
	"harmonic-trader/internal/store"
)

// DefaultCandleLimit is the number of most recent candles loaded per scan.
const DefaultCandleLimit = 500

// DefaultCacheTTL is how long a detection result stays cached.
const DefaultCacheTTL = 15 * time.Minute

// Report is the outcome of scanning one symbol on one timeframe.
type Report struct {
	Symbol    string                   `json:"symbol"`
	Timeframe models.Timeframe         `json:"timeframe"`
	Result    harmonic.DetectionResult `json:"result"`
	// Saved holds the detections that were new to the history store.
	Saved    []store.DetectionRecord `json:"saved,omitempty"`
	Cached   bool                    `json:"cached"`
	Duration time.Duration           `json:"durationNs"`
}

// AverageRiskReward returns the mean TP1 risk/reward over real detections.
func (r *Report) AverageRiskReward() float64 {
	if len(r.Result.Patterns) == 0 {
		return 0
	}
	var sum float64
	for _, p := range r.Result.Patterns {
		sum += p.RiskReward()
	}
	return sum / float64(len(r.Result.Patterns))
}

// Scanner wires the detector to persistence, caching and metrics.
// Every dependency except the detector is optional.
type Scanner struct {
	store       store.DataStore
	cache       cache.Cache
	detector    *harmonic.Detector
	aggregator  *mtf.Aggregator
	metrics     *metrics.Recorder
	logger      zerolog.Logger
	candleLimit int
	cacheTTL    time.Duration
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithStore sets the candle and detection store.
func WithStore(s store.DataStore) Option {
	return func(sc *Scanner) { sc.store = s }
}

// WithCache sets the result cache.
func WithCache(c cache.Cache) Option {
	return func(sc *Scanner) { sc.cache = c }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(sc *Scanner) { sc.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(sc *Scanner) { sc.logger = l }
}

// WithCandleLimit sets how many recent candles Scan loads.
func WithCandleLimit(n int) Option {
	return func(sc *Scanner) {
		if n > 0 {
			sc.candleLimit = n
		}
	}
}

// WithCacheTTL sets the cache expiration for detection results.
func WithCacheTTL(ttl time.Duration) Option {
	return func(sc *Scanner) {
		if ttl > 0 {
			sc.cacheTTL = ttl
		}
	}
}

// New creates a scanner around the detector. A nil detector uses the defaults.
func New(d *harmonic.Detector, opts ...Option) *Scanner {
	if d == nil {
		d = harmonic.NewDetector(harmonic.DefaultConfig())
	}
	sc := &Scanner{
		detector:    d,
		logger:      zerolog.Nop(),
		candleLimit: DefaultCandleLimit,
		cacheTTL:    DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(sc)
	}
	sc.aggregator = mtf.NewAggregator(d, sc.logger, mtf.WithDetectFunc(sc.detectCached))
	return sc
}

// WithDetectorConfig returns a scanner sharing this one's dependencies but
// detecting with cfg.
func (s *Scanner) WithDetectorConfig(cfg harmonic.Config) *Scanner {
	clone := *s
	c := &clone
	c.detector = harmonic.NewDetector(cfg, harmonic.WithLogger(s.logger))
	c.aggregator = mtf.NewAggregator(c.detector, s.logger, mtf.WithDetectFunc(c.detectCached))
	return c
}

// cacheKey scopes the cache entry to the detector settings as well as the window.
func (s *Scanner) cacheKey(symbol string, tf models.Timeframe, candles []models.Candle) string {
	cfg := s.detector.Config()
	variant := fmt.Sprintf("lb%d-min%d-ph%t", cfg.Lookback, cfg.MinCandles, cfg.AllowPlaceholders)
	return cache.Key(symbol, tf, cache.HashCandles(candles)) + ":" + variant
}

// Detector returns the detector used by the scanner.
func (s *Scanner) Detector() *harmonic.Detector {
	return s.detector
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9._-]+$`)

// NormalizeSymbol trims and upper-cases a symbol. Empty symbols and symbols
// outside [A-Z0-9._-] fail with both ErrInvalidSymbol and a ValidationError.
func NormalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", fmt.Errorf("%w: %w", apperrors.ErrInvalidSymbol,
			apperrors.NewValidationError("symbol", symbol, "symbol is required"))
	}
	if !symbolPattern.MatchString(symbol) {
		return "", fmt.Errorf("%w: %w", apperrors.ErrInvalidSymbol,
			apperrors.NewValidationError("symbol", symbol, "symbol may only contain letters, digits, '.', '_' and '-'"))
	}
	return symbol, nil
}

// Scan loads the latest candles for symbol and timeframe and detects patterns.
// With no stored candles the result falls back to placeholders when the
// detector allows them; otherwise ErrDataNotFound is returned.
func (s *Scanner) Scan(ctx context.Context, symbol string, tf models.Timeframe) (*Report, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	candles, err := s.loadCandles(ctx, symbol, tf)
	if err != nil {
		return nil, err
	}

	report, err := s.ScanCandles(ctx, symbol, tf, candles)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		if err := s.store.SetLastScan(store.ScanKey(symbol, tf), time.Now()); err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to record scan time")
		}
	}
	return report, nil
}

func (s *Scanner) loadCandles(ctx context.Context, symbol string, tf models.Timeframe) ([]models.Candle, error) {
	if s.store == nil {
		return nil, apperrors.NewDataError("candles", symbol, "no store configured", apperrors.ErrDataNotFound)
	}
	candles, err := s.store.GetLatestCandles(ctx, symbol, tf, s.candleLimit)
	if err != nil {
		s.recordError("store")
		return nil, apperrors.NewDataError("candles", symbol, "loading candles", err)
	}
	if len(candles) == 0 && !s.detector.Config().AllowPlaceholders {
		return nil, apperrors.NewDataError("candles", symbol,
			fmt.Sprintf("no %s candles stored", tf), apperrors.ErrDataNotFound)
	}
	return candles, nil
}

// ScanCandles detects patterns in the given candles, using the cache when
// the same window was analyzed before. Real detections are persisted.
func (s *Scanner) ScanCandles(ctx context.Context, symbol string, tf models.Timeframe, candles []models.Candle) (*Report, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := logging.WithTimeframe(logging.WithSymbol(logging.FromContext(ctx, s.logger), symbol), string(tf))
	start := time.Now()
	report := &Report{Symbol: symbol, Timeframe: tf}

	report.Result, report.Cached = s.detectCached(ctx, symbol, tf, candles)
	if report.Cached {
		report.Duration = time.Since(start)
		logging.LogScan(log, symbol, string(tf), string(report.Result.Status), len(report.Result.Patterns), report.Duration, nil)
		return report, nil
	}
	s.record(tf, report.Result)

	report.Saved = s.persist(ctx, log, symbol, tf, report.Result.Patterns)
	report.Duration = time.Since(start)

	logging.LogScan(log, symbol, string(tf), string(report.Result.Status), len(report.Result.Patterns), report.Duration, nil)
	return report, nil
}

// ScanMulti loads every timeframe and runs the multi-timeframe aggregator.
// Timeframes without stored candles are analyzed as empty series.
func (s *Scanner) ScanMulti(ctx context.Context, symbol string, tfs []models.Timeframe) (*mtf.Result, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if len(tfs) == 0 {
		tfs = models.DefaultTimeframes()
	}

	byTimeframe := make(map[models.Timeframe][]models.Candle, len(tfs))
	for _, tf := range tfs {
		candles, err := s.loadCandles(ctx, symbol, tf)
		if err != nil && !errors.Is(err, apperrors.ErrDataNotFound) {
			return nil, err
		}
		byTimeframe[tf] = candles
	}

	return s.AnalyzeMulti(ctx, symbol, byTimeframe)
}

// AnalyzeMulti runs the multi-timeframe aggregator over caller supplied candles.
func (s *Scanner) AnalyzeMulti(ctx context.Context, symbol string, byTimeframe map[models.Timeframe][]models.Candle) (*mtf.Result, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	log := logging.WithOperation(logging.WithSymbol(s.logger, symbol), "mtf")
	res := s.aggregator.Analyze(ctx, symbol, byTimeframe)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordLatency("mtf", res.Duration)
	}

	for _, tp := range res.Timeframes {
		if tp.Cached {
			continue
		}
		s.record(tp.Timeframe, tp.Result)
		s.persist(ctx, log, symbol, tp.Timeframe, tp.Result.Patterns)
	}
	return res, nil
}

// detectCached serves one window from the cache, or detects it and stores
// the result. The flag reports a cache hit.
func (s *Scanner) detectCached(ctx context.Context, symbol string, tf models.Timeframe, candles []models.Candle) (harmonic.DetectionResult, bool) {
	key := s.cacheKey(symbol, tf, candles)
	var res harmonic.DetectionResult
	if s.lookup(ctx, key, &res) {
		return res, true
	}

	start := time.Now()
	res = s.detector.Detect(candles)
	if s.metrics != nil {
		s.metrics.RecordLatency("detect", time.Since(start))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, res, s.cacheTTL); err != nil {
			s.recordError("cache")
			log := logging.FromContext(ctx, s.logger)
			log.Warn().Err(err).
				Str("symbol", symbol).Str("timeframe", string(tf)).
				Msg("Failed to cache detection result")
		}
	}
	return res, false
}

func (s *Scanner) lookup(ctx context.Context, key string, dest *harmonic.DetectionResult) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.Get(ctx, key, dest)
	switch {
	case err == nil:
		if s.metrics != nil {
			s.metrics.RecordCacheHit()
		}
		return true
	case errors.Is(err, cache.ErrCacheMiss):
	default:
		s.recordError("cache")
		s.logger.Debug().Err(err).Msg("Cache lookup failed")
	}
	if s.metrics != nil {
		s.metrics.RecordCacheMiss()
	}
	return false
}

func (s *Scanner) record(tf models.Timeframe, res harmonic.DetectionResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordScan(string(res.Status))
	for _, p := range res.Patterns {
		s.metrics.RecordDetection(string(p.Type), p.Direction.String(), string(tf))
	}
	if len(res.Placeholders) > 0 {
		s.metrics.RecordPlaceholder(string(tf))
	}
}

// persist stores real detections and returns the ones that were new.
// Store failures are logged and do not fail the scan.
func (s *Scanner) persist(ctx context.Context, log zerolog.Logger, symbol string, tf models.Timeframe, patterns []harmonic.HarmonicPattern) []store.DetectionRecord {
	if s.store == nil || len(patterns) == 0 {
		return nil
	}

	var saved []store.DetectionRecord
	for _, p := range patterns {
		if p.Synthetic {
			continue
		}
		rec := &store.DetectionRecord{Symbol: symbol, Timeframe: tf, Pattern: p}
		inserted, err := s.store.SaveDetection(ctx, rec)
		if err != nil {
			s.recordError("store")
			log.Warn().Err(err).Str("pattern", string(p.Type)).Msg("Failed to persist detection")
			continue
		}
		if inserted {
			logging.LogDetection(log, symbol, string(tf), string(p.Type), p.Direction.String(), p.Reliability)
			saved = append(saved, *rec)
		}
	}
	return saved
}

func (s *Scanner) recordError(kind string) {
	if s.metrics != nil {
		s.metrics.RecordError(kind)
	}
}
