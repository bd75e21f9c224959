package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"harmonic-trader/internal/analysis/harmonic"
	"harmonic-trader/internal/cache"
	"harmonic-trader/internal/metrics"
	"harmonic-trader/internal/models"
	"harmonic-trader/internal/scanner"
	"harmonic-trader/internal/store"
	"harmonic-trader/internal/testutil"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	server *Server
	store  *store.SQLiteStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	mc := cache.NewMemoryCache()
	t.Cleanup(func() {
		mc.Close()
		st.Close()
	})

	rec := metrics.New()
	sc := scanner.New(nil,
		scanner.WithStore(st),
		scanner.WithCache(mc),
		scanner.WithMetrics(rec),
	)
	h := NewHandler(sc,
		WithHistory(st),
		WithRecorder(rec),
		WithVersion("test"),
	)
	return &testServer{server: NewServer(h, zerolog.Nop()), store: st}
}

func (ts *testServer) do(t *testing.T, method, target string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.server.Echo().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dest); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
}

func gartleyBody(symbol string) map[string]interface{} {
	return map[string]interface{}{
		"symbol":    symbol,
		"timeframe": "4h",
		"candles":   testutil.GartleyCandles(),
	}
}

func TestDetect(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodPost, "/api/pattern/harmonic/detect", gartleyBody("ethusdt"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var res AnalysisResponse
	decodeData(t, env, &res)
	if res.Symbol != "ETHUSDT" || res.Timeframe != models.Timeframe4Hour {
		t.Errorf("header = %s %s", res.Symbol, res.Timeframe)
	}
	if res.Status != harmonic.StatusDetected || len(res.Patterns) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Best == nil || res.Best.Type != harmonic.Gartley {
		t.Errorf("best = %+v", res.Best)
	}
	if res.Cached {
		t.Error("first detection reported as cached")
	}

	_, env = ts.do(t, http.MethodPost, "/api/pattern/harmonic/detect", gartleyBody("ETHUSDT"))
	decodeData(t, env, &res)
	if !res.Cached {
		t.Error("repeat detection should be served from cache")
	}
}

func TestDetect_LookbackOverride(t *testing.T) {
	ts := newTestServer(t)

	body := gartleyBody("ETHUSDT")
	body["lookback"] = 20
	body["allowPlaceholders"] = false

	rec, env := ts.do(t, http.MethodPost, "/api/pattern/harmonic/detect", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res AnalysisResponse
	decodeData(t, env, &res)
	if res.Cached {
		t.Error("different detector settings must not share cache entries")
	}
	if len(res.Placeholders) != 0 {
		t.Errorf("placeholders returned with allowPlaceholders=false: %d", len(res.Placeholders))
	}
}

func TestDetect_Validation(t *testing.T) {
	ts := newTestServer(t)

	descending := testutil.GartleyCandles()
	descending[1], descending[2] = descending[2], descending[1]

	tests := []struct {
		name  string
		body  map[string]interface{}
		code  string
		field string
	}{
		{
			name:  "missing symbol",
			body:  map[string]interface{}{"candles": testutil.GartleyCandles()},
			code:  "ERR_REQUIRED",
			field: "symbol",
		},
		{
			name:  "missing candles",
			body:  map[string]interface{}{"symbol": "BTCUSDT"},
			code:  "ERR_REQUIRED",
			field: "candles",
		},
		{
			name:  "bad timeframe",
			body:  map[string]interface{}{"symbol": "BTCUSDT", "timeframe": "2D", "candles": testutil.GartleyCandles()},
			code:  "ERR_TIMEFRAME",
			field: "timeframe",
		},
		{
			name:  "lookback too large",
			body:  map[string]interface{}{"symbol": "BTCUSDT", "lookback": 50, "candles": testutil.GartleyCandles()},
			code:  "ERR_LTE",
			field: "lookback",
		},
		{
			name:  "unordered candles",
			body:  map[string]interface{}{"symbol": "BTCUSDT", "candles": descending},
			code:  "ERR_ORDER",
			field: "candles",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := ts.do(t, http.MethodPost, "/api/pattern/harmonic/detect", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			var details []ErrorDetail
			decodeData(t, env, &details)
			if len(details) == 0 {
				t.Fatal("no error details")
			}
			if details[0].Code != tt.code || details[0].Field != tt.field {
				t.Errorf("detail = %+v, want %s on %s", details[0], tt.code, tt.field)
			}
		})
	}
}

func TestHarmonicAnalysis(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	if err := ts.store.SaveCandles(ctx, "BTCUSDT", models.Timeframe1Day, testutil.GartleyCandles()); err != nil {
		t.Fatalf("SaveCandles: %v", err)
	}

	rec, env := ts.do(t, http.MethodGet, "/api/pattern/harmonic-analysis?symbol=BTCUSDT", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res AnalysisResponse
	decodeData(t, env, &res)
	if res.Timeframe != models.Timeframe1Day {
		t.Errorf("default timeframe = %s", res.Timeframe)
	}
	if len(res.Patterns) != 1 || res.Patterns[0].Type != harmonic.Gartley {
		t.Errorf("patterns = %+v", res.Patterns)
	}
}

func TestHarmonicAnalysis_NoDataReturnsPlaceholders(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodGet, "/api/pattern/harmonic-analysis?symbol=SOLUSDT&timeframe=1H", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res AnalysisResponse
	decodeData(t, env, &res)
	if res.Status != harmonic.StatusInsufficientData {
		t.Errorf("status = %s", res.Status)
	}
	if len(res.Patterns) != 0 {
		t.Errorf("real patterns on empty input: %d", len(res.Patterns))
	}
	for _, p := range res.Placeholders {
		if !p.Synthetic {
			t.Errorf("placeholder %s not flagged synthetic", p.Name)
		}
	}
}

func TestHarmonicAnalysis_RequiresSymbol(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodGet, "/api/pattern/harmonic-analysis", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestMultiTimeframe(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	if err := ts.store.SaveCandles(ctx, "BTCUSDT", models.Timeframe4Hour, testutil.GartleyCandles()); err != nil {
		t.Fatalf("SaveCandles: %v", err)
	}

	rec, env := ts.do(t, http.MethodGet, "/api/pattern/harmonic/mtf?symbol=BTCUSDT&timeframes=4H,1D,4h", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Symbol       string `json:"symbol"`
		BullishCount int    `json:"bullishCount"`
		Bias         string `json:"bias"`
		Timeframes   []struct {
			Timeframe models.Timeframe `json:"timeframe"`
		} `json:"timeframes"`
	}
	decodeData(t, env, &res)
	if len(res.Timeframes) != 2 {
		t.Fatalf("timeframes = %+v", res.Timeframes)
	}
	if res.BullishCount != 1 || res.Bias != "bullish" {
		t.Errorf("bullish=%d bias=%q", res.BullishCount, res.Bias)
	}

	rec, _ = ts.do(t, http.MethodGet, "/api/pattern/harmonic/mtf?symbol=BTCUSDT&timeframes=4H,3D", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid timeframe status = %d", rec.Code)
	}
}

func TestTemplates(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodGet, "/api/pattern/templates", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var infos []TemplateInfo
	decodeData(t, env, &infos)
	if len(infos) != len(harmonic.AllPatternTypes()) {
		t.Fatalf("got %d templates", len(infos))
	}
	for _, info := range infos {
		if info.Name != info.Type.DisplayName() {
			t.Errorf("name = %q for %s", info.Name, info.Type)
		}
		if info.Statistics.WinRate <= 0 {
			t.Errorf("%s has no statistics", info.Type)
		}
	}
}

func TestHistory(t *testing.T) {
	ts := newTestServer(t)

	if rec, _ := ts.do(t, http.MethodPost, "/api/pattern/harmonic/detect", gartleyBody("BTCUSDT")); rec.Code != http.StatusOK {
		t.Fatalf("detect status = %d", rec.Code)
	}

	tests := []struct {
		query string
		total int
	}{
		{"", 1},
		{"?symbol=btcusdt", 1},
		{"?symbol=ETHUSDT", 0},
		{"?timeframe=4H&pattern=Gartley", 1},
		{"?pattern=Bat", 0},
		{"?minReliability=100.1", -1},
		{"?pattern=Wolfe", -1},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec, env := ts.do(t, http.MethodGet, "/api/pattern/history"+tt.query, nil)
			if tt.total < 0 {
				if rec.Code != http.StatusBadRequest {
					t.Errorf("status = %d, want 400", rec.Code)
				}
				return
			}
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			var list struct {
				Rows  []store.DetectionRecord `json:"rows"`
				Total int                     `json:"total"`
			}
			decodeData(t, env, &list)
			if list.Total != tt.total || len(list.Rows) != tt.total {
				t.Errorf("total = %d rows = %d, want %d", list.Total, len(list.Rows), tt.total)
			}
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	var health map[string]string
	decodeData(t, env, &health)
	if health["status"] != "ok" || health["version"] != "test" {
		t.Errorf("health = %v", health)
	}

	ts.do(t, http.MethodPost, "/api/pattern/harmonic/detect", gartleyBody("BTCUSDT"))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	ts.server.Echo().ServeHTTP(mrec, req)
	if mrec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", mrec.Code)
	}
	if !strings.Contains(mrec.Body.String(), "harmonic_patterns_detected_total") {
		t.Error("detection counter missing from /metrics")
	}
}

func TestRecoverMiddleware(t *testing.T) {
	ts := newTestServer(t)
	ts.server.Echo().GET("/panic", func(c echo.Context) error {
		panic("boom")
	})

	rec, env := ts.do(t, http.MethodGet, "/panic", nil)
	if rec.Code != http.StatusInternalServerError || env.Status != http.StatusInternalServerError {
		t.Errorf("status = %d envelope %d", rec.Code, env.Status)
	}
}

func TestRequestID(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodGet, "/healthz", nil)
	if id := rec.Header().Get(echo.HeaderXRequestID); len(id) != 36 {
		t.Errorf("generated request id = %q", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc-123")
	rec = httptest.NewRecorder()
	ts.server.Echo().ServeHTTP(rec, req)
	if id := rec.Header().Get(echo.HeaderXRequestID); id != "abc-123" {
		t.Errorf("propagated request id = %q", id)
	}
}
