package api

import (
	"time"

	"harmonic-trader/internal/analysis/harmonic"
	"harmonic-trader/internal/models"
	"harmonic-trader/internal/scanner"
)

// AnalysisRequest selects a stored series to analyze.
type AnalysisRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required,max=32"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"1D" validate:"timeframe"`
}

// CandleDTO is one OHLCV bar in a detect request.
type CandleDTO struct {
	Time   time.Time `json:"time" validate:"required"`
	Open   float64   `json:"open" validate:"gt=0"`
	High   float64   `json:"high" validate:"gt=0"`
	Low    float64   `json:"low" validate:"gt=0"`
	Close  float64   `json:"close" validate:"gt=0"`
	Volume float64   `json:"volume" validate:"gte=0"`
}

// DetectRequest carries caller supplied candles.
type DetectRequest struct {
	Symbol            string      `json:"symbol" validate:"required,max=32"`
	Timeframe         string      `json:"timeframe" default:"1H" validate:"timeframe"`
	Lookback          int         `json:"lookback" default:"3" validate:"gte=1,lte=20"`
	AllowPlaceholders *bool       `json:"allowPlaceholders" default:"true"`
	Candles           []CandleDTO `json:"candles" validate:"required,max=10000,dive"`
}

// MTFRequest selects a symbol and a comma separated timeframe list.
type MTFRequest struct {
	Symbol     string `query:"symbol" json:"symbol" validate:"required,max=32"`
	Timeframes string `query:"timeframes" json:"timeframes" default:"1H,4H,1D"`
}

// HistoryRequest filters stored detections.
type HistoryRequest struct {
	Symbol         string  `query:"symbol" json:"symbol" validate:"max=32"`
	Timeframe      string  `query:"timeframe" json:"timeframe" validate:"omitempty,timeframe"`
	Pattern        string  `query:"pattern" json:"pattern" validate:"omitempty,oneof=Gartley Bat Butterfly Crab Shark Cypher"`
	MinReliability float64 `query:"minReliability" json:"minReliability" validate:"gte=0,lte=100"`
	Limit          int     `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

// AnalysisResponse is the body of single-timeframe analysis endpoints.
type AnalysisResponse struct {
	Symbol            string                     `json:"symbol"`
	Timeframe         models.Timeframe           `json:"timeframe"`
	Status            harmonic.DetectionStatus   `json:"status"`
	Patterns          []harmonic.HarmonicPattern `json:"patterns"`
	Placeholders      []harmonic.HarmonicPattern `json:"placeholders,omitempty"`
	Best              *harmonic.HarmonicPattern  `json:"best,omitempty"`
	CandleCount       int                        `json:"candleCount"`
	SwingCount        int                        `json:"swingCount"`
	Reason            string                     `json:"reason,omitempty"`
	AverageRiskReward float64                    `json:"averageRiskReward"`
	Cached            bool                       `json:"cached"`
	ProcessingTimeMs  float64                    `json:"processingTimeMs"`
}

func newAnalysisResponse(r *scanner.Report) AnalysisResponse {
	res := AnalysisResponse{
		Symbol:            r.Symbol,
		Timeframe:         r.Timeframe,
		Status:            r.Result.Status,
		Patterns:          r.Result.Patterns,
		Placeholders:      r.Result.Placeholders,
		CandleCount:       r.Result.CandleCount,
		SwingCount:        r.Result.SwingCount,
		Reason:            r.Result.Reason,
		AverageRiskReward: r.AverageRiskReward(),
		Cached:            r.Cached,
		ProcessingTimeMs:  float64(r.Duration.Microseconds()) / 1000,
	}
	if res.Patterns == nil {
		res.Patterns = []harmonic.HarmonicPattern{}
	}
	if best, ok := r.Result.Best(); ok {
		res.Best = &best
	}
	return res
}

// TemplateInfo describes one pattern template with its reference statistics.
type TemplateInfo struct {
	harmonic.PatternTemplate
	Name       string                `json:"name"`
	Ideal      harmonic.RatioSet     `json:"ideal"`
	Statistics harmonic.PatternStats `json:"statistics"`
	Expectancy float64               `json:"expectancy"`
}

func templateInfos() []TemplateInfo {
	tpls := harmonic.Templates()
	out := make([]TemplateInfo, 0, len(tpls))
	for _, t := range tpls {
		stats := harmonic.Statistics(t.Type)
		out = append(out, TemplateInfo{
			PatternTemplate: t,
			Name:            t.Type.DisplayName(),
			Ideal:           t.Ideal(),
			Statistics:      stats,
			Expectancy:      stats.Expectancy(),
		})
	}
	return out
}
