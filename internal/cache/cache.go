// Package cache stores detection results keyed by symbol, timeframe and a
// hash of the candle window they were computed from.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "harmonic-trader/internal/errors"
	"harmonic-trader/internal/models"
)

// ErrCacheMiss is returned by Get when a key is absent or expired.
var ErrCacheMiss = apperrors.ErrCacheMiss

// Cache defines the operations the scanner needs from a result cache.
// Values are stored as JSON so every backend round-trips the same way.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// Key builds the cache key for a detection over one candle window.
func Key(symbol string, tf models.Timeframe, candleHash string) string {
	return fmt.Sprintf("harmonic:%s:%s:%s", strings.ToUpper(symbol), tf, candleHash)
}

// HashCandles fingerprints a candle window. Any change to a timestamp or
// price yields a new hash, so a new bar invalidates the cached result.
func HashCandles(candles []models.Candle) string {
	h := sha256.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}

	put(uint64(len(candles)))
	for _, c := range candles {
		put(uint64(c.Timestamp.UnixNano()))
		put(math.Float64bits(c.Open))
		put(math.Float64bits(c.High))
		put(math.Float64bits(c.Low))
		put(math.Float64bits(c.Close))
		put(math.Float64bits(c.Volume))
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisCache)(nil)
)
