package scanner

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"harmonic-trader/internal/analysis"
	"harmonic-trader/internal/analysis/harmonic"
	"harmonic-trader/internal/cache"
	apperrors "harmonic-trader/internal/errors"
	"harmonic-trader/internal/metrics"
	"harmonic-trader/internal/models"
	"harmonic-trader/internal/store"
	fixtures "harmonic-trader/internal/testutil"
)

type harness struct {
	scanner *Scanner
	store   *store.SQLiteStore
	cache   *cache.MemoryCache
	metrics *metrics.Recorder
}

func newHarness(t *testing.T, cfg harmonic.Config) *harness {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "scan.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	mc := cache.NewMemoryCache()
	rec := metrics.New()
	t.Cleanup(func() {
		mc.Close()
		st.Close()
	})

	sc := New(harmonic.NewDetector(cfg),
		WithStore(st),
		WithCache(mc),
		WithMetrics(rec),
	)
	return &harness{scanner: sc, store: st, cache: mc, metrics: rec}
}

func TestScan_DetectsPersistsAndCaches(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harmonic.DefaultConfig())

	if err := h.store.SaveCandles(ctx, "BTCUSDT", models.Timeframe4Hour, fixtures.GartleyCandles()); err != nil {
		t.Fatalf("SaveCandles: %v", err)
	}

	report, err := h.scanner.Scan(ctx, " btcusdt ", models.Timeframe4Hour)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.Symbol != "BTCUSDT" || report.Cached {
		t.Errorf("unexpected report header: %+v", report)
	}
	if report.Result.Status != harmonic.StatusDetected || len(report.Result.Patterns) != 1 {
		t.Fatalf("unexpected result: %+v", report.Result)
	}
	p := report.Result.Patterns[0]
	if p.Type != harmonic.Gartley || p.Direction != analysis.Bullish {
		t.Errorf("got %s %s", p.Direction, p.Type)
	}
	if len(report.Saved) != 1 || report.Saved[0].ID == "" {
		t.Errorf("detection not saved: %+v", report.Saved)
	}
	if rr := report.AverageRiskReward(); rr <= 0 {
		t.Errorf("average risk/reward = %f", rr)
	}

	if h.store.GetLastScan(store.ScanKey("BTCUSDT", models.Timeframe4Hour)).IsZero() {
		t.Error("last scan time not recorded")
	}

	again, err := h.scanner.Scan(ctx, "BTCUSDT", models.Timeframe4Hour)
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if !again.Cached {
		t.Error("second scan should be served from cache")
	}
	if len(again.Result.Patterns) != 1 || again.Result.Patterns[0].Type != harmonic.Gartley {
		t.Errorf("cached result differs: %+v", again.Result)
	}
	if len(again.Saved) != 0 {
		t.Error("cached scan persisted again")
	}

	history, err := h.store.GetDetections(ctx, store.DetectionFilter{Symbol: "BTCUSDT"})
	if err != nil || len(history) != 1 {
		t.Errorf("history = %d records, err %v", len(history), err)
	}

	if n, err := testutil.GatherAndCount(h.metrics.Registry(), "harmonic_patterns_detected_total"); err != nil || n != 1 {
		t.Errorf("detection series = %d, err %v", n, err)
	}
	if n, err := testutil.GatherAndCount(h.metrics.Registry(), "harmonic_cache_lookups_total"); err != nil || n != 2 {
		t.Errorf("cache lookup series = %d, want hit and miss, err %v", n, err)
	}
}

func TestScanCandles_RescanDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harmonic.DefaultConfig())
	h.scanner.cache = nil

	candles := fixtures.GartleyCandles()
	first, err := h.scanner.ScanCandles(ctx, "ETHUSDT", models.Timeframe1Hour, candles)
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.scanner.ScanCandles(ctx, "ETHUSDT", models.Timeframe1Hour, candles)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Saved) != 1 || len(second.Saved) != 0 {
		t.Errorf("saved %d then %d, want 1 then 0", len(first.Saved), len(second.Saved))
	}
	if second.Cached {
		t.Error("no cache configured")
	}
}

func TestScan_NoCandlesFallsBackToPlaceholders(t *testing.T) {
	h := newHarness(t, harmonic.DefaultConfig())

	report, err := h.scanner.Scan(context.Background(), "SOLUSDT", models.Timeframe1Day)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !report.Result.Insufficient() {
		t.Errorf("status = %s", report.Result.Status)
	}
	if len(report.Result.Patterns) != 0 || len(report.Result.Placeholders) != 2 {
		t.Errorf("patterns %d placeholders %d", len(report.Result.Patterns), len(report.Result.Placeholders))
	}
	if len(report.Saved) != 0 {
		t.Error("placeholders were persisted")
	}

	history, _ := h.store.GetDetections(context.Background(), store.DetectionFilter{})
	if len(history) != 0 {
		t.Errorf("history has %d records", len(history))
	}
}

func TestScan_NoCandlesWithoutPlaceholders(t *testing.T) {
	cfg := harmonic.DefaultConfig()
	cfg.AllowPlaceholders = false
	h := newHarness(t, cfg)

	_, err := h.scanner.Scan(context.Background(), "SOLUSDT", models.Timeframe1Day)
	if !errors.Is(err, apperrors.ErrDataNotFound) {
		t.Errorf("expected ErrDataNotFound, got %v", err)
	}
	var derr *apperrors.DataError
	if !errors.As(err, &derr) || derr.Symbol != "SOLUSDT" {
		t.Errorf("expected DataError for SOLUSDT, got %v", err)
	}
}

func TestScan_RejectsEmptySymbol(t *testing.T) {
	h := newHarness(t, harmonic.DefaultConfig())
	_, err := h.scanner.Scan(context.Background(), "  ", models.Timeframe1Day)
	if !errors.Is(err, apperrors.ErrInputValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{" btcusdt ", "BTCUSDT", false},
		{"brk.b", "BRK.B", false},
		{"eth-perp", "ETH-PERP", false},
		{"", "", true},
		{"BTC USDT", "", true},
		{"BTC/USDT", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeSymbol(tt.in)
		if tt.wantErr {
			if !errors.Is(err, apperrors.ErrInvalidSymbol) || !errors.Is(err, apperrors.ErrInputValidation) {
				t.Errorf("NormalizeSymbol(%q) err = %v", tt.in, err)
			}
			var verr *apperrors.ValidationError
			if !errors.As(err, &verr) || verr.Field != "symbol" {
				t.Errorf("NormalizeSymbol(%q) not a symbol ValidationError: %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("NormalizeSymbol(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestScanCandles_WithoutDependencies(t *testing.T) {
	sc := New(nil)
	report, err := sc.ScanCandles(context.Background(), "X", models.Timeframe1Hour, fixtures.RisingCandles(200))
	if err != nil {
		t.Fatalf("ScanCandles: %v", err)
	}
	if report.Result.Status != harmonic.StatusInsufficientData || len(report.Result.Patterns) != 0 {
		t.Errorf("unexpected result for monotonic series: %+v", report.Result)
	}

	if _, err := sc.Scan(context.Background(), "X", models.Timeframe1Hour); !errors.Is(err, apperrors.ErrDataNotFound) {
		t.Errorf("Scan without store: %v", err)
	}
}

func TestScanCandles_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(nil).ScanCandles(ctx, "X", models.Timeframe1Hour, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestScanMulti(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harmonic.DefaultConfig())

	_ = h.store.SaveCandles(ctx, "BTCUSDT", models.Timeframe1Day, fixtures.GartleyCandles())
	_ = h.store.SaveCandles(ctx, "BTCUSDT", models.Timeframe1Hour, fixtures.RisingCandles(120))

	res, err := h.scanner.ScanMulti(ctx, "BTCUSDT", nil)
	if err != nil {
		t.Fatalf("ScanMulti: %v", err)
	}
	if len(res.Timeframes) != 3 {
		t.Fatalf("expected default 3 timeframes, got %d", len(res.Timeframes))
	}
	if res.BullishCount != 1 || res.TotalPatterns() != 1 {
		t.Errorf("bullish %d total %d", res.BullishCount, res.TotalPatterns())
	}
	daily, ok := res.Get(models.Timeframe1Day)
	if !ok || len(daily.Result.Patterns) != 1 {
		t.Errorf("daily result missing pattern: %+v", daily)
	}
	fourHour, _ := res.Get(models.Timeframe4Hour)
	if !fourHour.Result.Insufficient() || len(fourHour.Result.Placeholders) == 0 {
		t.Errorf("empty 4H should fall back to placeholders: %+v", fourHour.Result)
	}

	history, _ := h.store.GetDetections(ctx, store.DetectionFilter{Timeframe: models.Timeframe1Day})
	if len(history) != 1 {
		t.Errorf("mtf detections not persisted: %d", len(history))
	}
}

func TestAnalyzeMulti_ReusesCachedTimeframes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harmonic.DefaultConfig())
	byTimeframe := map[models.Timeframe][]models.Candle{
		models.Timeframe1Day:  fixtures.GartleyCandles(),
		models.Timeframe1Hour: fixtures.RisingCandles(120),
	}

	first, err := h.scanner.AnalyzeMulti(ctx, "BTCUSDT", byTimeframe)
	if err != nil {
		t.Fatalf("AnalyzeMulti: %v", err)
	}
	for _, tp := range first.Timeframes {
		if tp.Cached {
			t.Errorf("%s served from an empty cache", tp.Timeframe)
		}
	}

	// A single timeframe scan over the same window shares the entry.
	report, err := h.scanner.ScanCandles(ctx, "BTCUSDT", models.Timeframe1Day, fixtures.GartleyCandles())
	if err != nil {
		t.Fatalf("ScanCandles: %v", err)
	}
	if !report.Cached {
		t.Error("ScanCandles missed the entry written by AnalyzeMulti")
	}

	second, err := h.scanner.AnalyzeMulti(ctx, "BTCUSDT", byTimeframe)
	if err != nil {
		t.Fatalf("second AnalyzeMulti: %v", err)
	}
	if len(second.Timeframes) != 2 {
		t.Fatalf("expected 2 timeframes, got %d", len(second.Timeframes))
	}
	for _, tp := range second.Timeframes {
		if !tp.Cached {
			t.Errorf("%s not served from cache", tp.Timeframe)
		}
	}
	if second.TotalPatterns() != first.TotalPatterns() || second.BullishCount != 1 {
		t.Errorf("cached totals differ: %d vs %d", second.TotalPatterns(), first.TotalPatterns())
	}

	history, _ := h.store.GetDetections(ctx, store.DetectionFilter{Symbol: "BTCUSDT"})
	if len(history) != 1 {
		t.Errorf("history = %d records, want 1", len(history))
	}
}
