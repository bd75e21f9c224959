// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	apperrors "harmonic-trader/internal/errors"
	"harmonic-trader/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	scanTimes map[string]time.Time
}

var _ DataStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		scanTimes: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Candles table for historical OHLCV data
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, timestamp)
	);

	-- Real harmonic detections; the same structure is stored once
	CREATE TABLE IF NOT EXISTS detections (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		pattern_type TEXT NOT NULL,
		direction TEXT NOT NULL,
		reliability REAL NOT NULL,
		completion REAL NOT NULL,
		entry_price REAL NOT NULL,
		x_time DATETIME NOT NULL,
		d_time DATETIME NOT NULL,
		payload TEXT NOT NULL,
		detected_at DATETIME NOT NULL,
		UNIQUE(symbol, timeframe, pattern_type, x_time, d_time)
	);

	-- Last completed scan per symbol/timeframe
	CREATE TABLE IF NOT EXISTS scan_status (
		scan_key TEXT PRIMARY KEY,
		last_scan DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_candles_symbol_timeframe ON candles(symbol, timeframe);
	CREATE INDEX IF NOT EXISTS idx_candles_timestamp ON candles(timestamp);
	CREATE INDEX IF NOT EXISTS idx_detections_symbol ON detections(symbol, timeframe);
	CREATE INDEX IF NOT EXISTS idx_detections_detected_at ON detections(detected_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Candles Methods
// ============================================================================

// SaveCandles saves candles to the database, replacing bars with the same timestamp.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol string, tf models.Timeframe, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, symbol, string(tf), c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetCandles retrieves candles in [from, to] in ascending time order.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol string, tf models.Timeframe, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, string(tf), from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetLatestCandles retrieves the most recent limit candles in ascending time order.
func (s *SQLiteStore) GetLatestCandles(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error) {
	if limit <= 0 {
		return nil, apperrors.NewValidationError("limit", limit, "must be positive")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, symbol, string(tf), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	candles, err := scanCandles(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

func scanCandles(rows *sql.Rows) ([]models.Candle, error) {
	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return candles, nil
}

// GetCandlesFreshness returns the timestamp of the most recent candle.
func (s *SQLiteStore) GetCandlesFreshness(ctx context.Context, symbol string, tf models.Timeframe) (time.Time, error) {
	candles, err := s.GetLatestCandles(ctx, symbol, tf, 1)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get candles freshness: %w", err)
	}
	if len(candles) == 0 {
		return time.Time{}, nil
	}
	return candles[0].Timestamp, nil
}

// ============================================================================
// Detections Methods
// ============================================================================

// SaveDetection persists a real detection. It reports false without error
// when the same structure was already stored. Synthetic patterns are rejected.
func (s *SQLiteStore) SaveDetection(ctx context.Context, rec *DetectionRecord) (bool, error) {
	if rec.Pattern.Synthetic {
		return false, apperrors.NewValidationError("pattern", rec.Pattern.Type, "synthetic patterns are not persisted")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.DetectedAt.IsZero() {
		rec.DetectedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(rec.Pattern)
	if err != nil {
		return false, fmt.Errorf("failed to encode pattern: %w", err)
	}

	p := rec.Pattern
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO detections (id, symbol, timeframe, pattern_type, direction, reliability, completion, entry_price, x_time, d_time, payload, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Symbol, string(rec.Timeframe), string(p.Type), string(p.Direction), p.Reliability, p.Completion, p.Entry(),
		p.Points.X.Time.UTC(), p.Points.D.Time.UTC(), string(payload), rec.DetectedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to save detection: %w: %v", apperrors.ErrDatabaseError, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to save detection: %w", err)
	}
	return n == 1, nil
}

// GetDetections retrieves detections, newest first.
func (s *SQLiteStore) GetDetections(ctx context.Context, filter DetectionFilter) ([]DetectionRecord, error) {
	var where []string
	args := []interface{}{}

	if filter.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, filter.Symbol)
	}
	if filter.Timeframe != "" {
		where = append(where, "timeframe = ?")
		args = append(args, string(filter.Timeframe))
	}
	if filter.PatternType != "" {
		where = append(where, "pattern_type = ?")
		args = append(args, string(filter.PatternType))
	}
	if filter.MinReliability > 0 {
		where = append(where, "reliability >= ?")
		args = append(args, filter.MinReliability)
	}
	if !filter.Since.IsZero() {
		where = append(where, "detected_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := "SELECT id, symbol, timeframe, payload, detected_at FROM detections"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY detected_at DESC, d_time DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var records []DetectionRecord
	for rows.Next() {
		var rec DetectionRecord
		var tf, payload string
		if err := rows.Scan(&rec.ID, &rec.Symbol, &tf, &payload, &rec.DetectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		rec.Timeframe = models.Timeframe(tf)
		if err := json.Unmarshal([]byte(payload), &rec.Pattern); err != nil {
			return nil, fmt.Errorf("failed to decode detection %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating detections: %w", err)
	}

	return records, nil
}

// ============================================================================
// Scan Bookkeeping
// ============================================================================

// GetLastScan returns the last completed scan time for a key.
func (s *SQLiteStore) GetLastScan(key string) time.Time {
	s.mu.RLock()
	if t, ok := s.scanTimes[key]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastScan time.Time
	err := s.db.QueryRow(`
		SELECT last_scan FROM scan_status WHERE scan_key = ?
	`, key).Scan(&lastScan)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.scanTimes[key] = lastScan
	s.mu.Unlock()

	return lastScan
}

// SetLastScan records the last completed scan time for a key.
func (s *SQLiteStore) SetLastScan(key string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO scan_status (scan_key, last_scan, updated_at)
		VALUES (?, ?, ?)
	`, key, t.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set last scan: %w", err)
	}

	s.mu.Lock()
	s.scanTimes[key] = t
	s.mu.Unlock()

	return nil
}
