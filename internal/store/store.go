// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"harmonic-trader/internal/analysis/harmonic"
	"harmonic-trader/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Candles
	SaveCandles(ctx context.Context, symbol string, tf models.Timeframe, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol string, tf models.Timeframe, from, to time.Time) ([]models.Candle, error)
	GetLatestCandles(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error)
	GetCandlesFreshness(ctx context.Context, symbol string, tf models.Timeframe) (time.Time, error)

	// Detections
	SaveDetection(ctx context.Context, rec *DetectionRecord) (bool, error)
	GetDetections(ctx context.Context, filter DetectionFilter) ([]DetectionRecord, error)

	// Scan bookkeeping
	GetLastScan(key string) time.Time
	SetLastScan(key string, t time.Time) error

	// Lifecycle
	Close() error
}

// DetectionRecord is a persisted real detection.
type DetectionRecord struct {
	ID         string                   `json:"id"`
	Symbol     string                   `json:"symbol"`
	Timeframe  models.Timeframe         `json:"timeframe"`
	DetectedAt time.Time                `json:"detectedAt"`
	Pattern    harmonic.HarmonicPattern `json:"pattern"`
}

// DetectionFilter represents filters for querying detections.
type DetectionFilter struct {
	Symbol         string
	Timeframe      models.Timeframe
	PatternType    harmonic.PatternType
	MinReliability float64
	Since          time.Time
	Limit          int
}

// ScanKey builds the bookkeeping key for a symbol and timeframe.
func ScanKey(symbol string, tf models.Timeframe) string {
	return symbol + "/" + string(tf)
}
