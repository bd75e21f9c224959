package api

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"harmonic-trader/internal/analysis/harmonic"
	apperrors "harmonic-trader/internal/errors"
	"harmonic-trader/internal/metrics"
	"harmonic-trader/internal/models"
	"harmonic-trader/internal/scanner"
	"harmonic-trader/internal/store"
)

// Handler serves the pattern endpoints.
type Handler struct {
	scanner *scanner.Scanner
	store   store.DataStore
	metrics *metrics.Recorder
	logger  zerolog.Logger
	version string
	started time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHistory enables the history endpoint.
func WithHistory(s store.DataStore) HandlerOption {
	return func(h *Handler) { h.store = s }
}

// WithRecorder exposes the recorder on /metrics.
func WithRecorder(m *metrics.Recorder) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithHandlerLogger sets the handler logger.
func WithHandlerLogger(l zerolog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// WithVersion sets the version reported by /healthz.
func WithVersion(v string) HandlerOption {
	return func(h *Handler) { h.version = v }
}

// NewHandler creates the pattern handler.
func NewHandler(sc *scanner.Scanner, opts ...HandlerOption) *Handler {
	h := &Handler{
		scanner: sc,
		logger:  zerolog.Nop(),
		version: "dev",
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts the endpoints on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics.Handler()))
	}

	g := e.Group("/api/pattern")
	g.GET("/harmonic-analysis", h.HarmonicAnalysis)
	g.POST("/harmonic/detect", h.Detect)
	g.GET("/harmonic/mtf", h.MultiTimeframe)
	g.GET("/templates", h.Templates)
	g.GET("/history", h.History)
}

// Health reports liveness.
func (h *Handler) Health(c echo.Context) error {
	return SuccessResponse(c, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

// HarmonicAnalysis scans the stored series of a symbol.
func (h *Handler) HarmonicAnalysis(c echo.Context) error {
	req := &AnalysisRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}
	tf, err := models.ParseTimeframe(req.Timeframe)
	if err != nil {
		return ErrorResponse(c, err)
	}

	report, err := h.scanner.Scan(c.Request().Context(), req.Symbol, tf)
	if err != nil {
		h.logger.Error().Err(err).Str("symbol", req.Symbol).Msg("Harmonic analysis failed")
		return ErrorResponse(c, err)
	}
	return SuccessResponse(c, newAnalysisResponse(report))
}

// Detect scans candles supplied in the request body.
func (h *Handler) Detect(c echo.Context) error {
	req := &DetectRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}
	tf, err := models.ParseTimeframe(req.Timeframe)
	if err != nil {
		return ErrorResponse(c, err)
	}

	candles := make([]models.Candle, len(req.Candles))
	for i, dto := range req.Candles {
		if i > 0 && !dto.Time.After(req.Candles[i-1].Time) {
			return BadRequestResponse(c, []ErrorDetail{{
				Code:    "ERR_ORDER",
				Field:   "candles",
				Message: "candles must be strictly ascending by time",
			}})
		}
		candles[i] = models.Candle{
			Timestamp: dto.Time,
			Open:      dto.Open,
			High:      dto.High,
			Low:       dto.Low,
			Close:     dto.Close,
			Volume:    dto.Volume,
		}
	}

	cfg := h.scanner.Detector().Config()
	cfg.Lookback = req.Lookback
	cfg.AllowPlaceholders = *req.AllowPlaceholders
	sc := h.scanner
	if cfg != sc.Detector().Config() {
		sc = sc.WithDetectorConfig(cfg)
	}

	report, err := sc.ScanCandles(c.Request().Context(), req.Symbol, tf, candles)
	if err != nil {
		h.logger.Error().Err(err).Str("symbol", req.Symbol).Msg("Detection failed")
		return ErrorResponse(c, err)
	}
	return SuccessResponse(c, newAnalysisResponse(report))
}

// MultiTimeframe scans several stored timeframes of a symbol.
func (h *Handler) MultiTimeframe(c echo.Context) error {
	req := &MTFRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}

	var tfs []models.Timeframe
	seen := make(map[models.Timeframe]bool)
	for _, s := range strings.Split(req.Timeframes, ",") {
		tf, err := models.ParseTimeframe(s)
		if err != nil {
			return ErrorResponse(c, err)
		}
		if !seen[tf] {
			seen[tf] = true
			tfs = append(tfs, tf)
		}
	}

	res, err := h.scanner.ScanMulti(c.Request().Context(), req.Symbol, tfs)
	if err != nil {
		h.logger.Error().Err(err).Str("symbol", req.Symbol).Msg("Multi-timeframe analysis failed")
		return ErrorResponse(c, err)
	}

	bias := ""
	if dir, ok := res.Bias(); ok {
		bias = dir.String()
	}
	return SuccessResponse(c, map[string]interface{}{
		"symbol":           res.Symbol,
		"timeframes":       res.Timeframes,
		"bullishCount":     res.BullishCount,
		"bearishCount":     res.BearishCount,
		"bias":             bias,
		"processingTimeMs": float64(res.Duration.Microseconds()) / 1000,
	})
}

// Templates lists the pattern templates.
func (h *Handler) Templates(c echo.Context) error {
	return SuccessResponse(c, templateInfos())
}

// History lists stored detections, newest first.
func (h *Handler) History(c echo.Context) error {
	if h.store == nil {
		return DataResponse(c, http.StatusServiceUnavailable, "history store not configured")
	}

	req := &HistoryRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}

	filter := store.DetectionFilter{
		Symbol:         strings.ToUpper(strings.TrimSpace(req.Symbol)),
		PatternType:    harmonic.PatternType(req.Pattern),
		MinReliability: req.MinReliability,
		Limit:          req.Limit,
	}
	if req.Timeframe != "" {
		tf, err := models.ParseTimeframe(req.Timeframe)
		if err != nil {
			return ErrorResponse(c, err)
		}
		filter.Timeframe = tf
	}

	records, err := h.store.GetDetections(c.Request().Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("History query failed")
		return ErrorResponse(c, apperrors.Wrap(err, "loading history"))
	}
	if records == nil {
		records = []store.DetectionRecord{}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].DetectedAt.After(records[j].DetectedAt)
	})
	return ListResponse(c, records, len(records))
}
