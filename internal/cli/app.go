package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"harmonic-trader/internal/analysis/harmonic"
	"harmonic-trader/internal/cache"
	"harmonic-trader/internal/config"
	apperrors "harmonic-trader/internal/errors"
	"harmonic-trader/internal/logging"
	"harmonic-trader/internal/metrics"
	"harmonic-trader/internal/notify"
	"harmonic-trader/internal/scanner"
	"harmonic-trader/internal/store"
	"harmonic-trader/pkg/utils"
)

// App holds the application dependencies.
type App struct {
	ConfigDir string
	Config    *config.Config
	ConfigErr error
	Logger    zerolog.Logger
	Store     store.DataStore
	Cache     cache.Cache
	Metrics   *metrics.Recorder
	Notifier  *notify.MultiNotifier
	Scanner   *scanner.Scanner

	ready bool
}

// loadConfig reads the configuration and builds the logger from it.
// With tolerate set a broken config falls back to the defaults and the error
// is kept in ConfigErr.
func (a *App) loadConfig(dir string, debug, tolerate bool) error {
	if dir == "" {
		dir = config.DefaultConfigDir()
	}
	a.ConfigDir = dir

	cfg, err := config.Load(dir)
	if err != nil {
		if !tolerate {
			return err
		}
		a.ConfigErr = err
		cfg = config.Default(dir)
	}
	a.Config = cfg

	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	a.Logger = logging.NewLoggerWithConfig(logging.LogConfig{
		Level:      level,
		Console:    cfg.Logging.Console || debug,
		File:       cfg.Logging.File,
		FilePath:   cfg.Logging.Path,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
	})
	return nil
}

// bootstrap wires the store, cache, metrics, notifier and scanner.
// A store that cannot be opened only disables the features that need it.
func (a *App) bootstrap(ctx context.Context) error {
	if a.ready {
		return nil
	}
	cfg := a.Config

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0700); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to create data directory")
	}
	dataStore, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to initialize store, some features may be unavailable")
	} else {
		a.Store = dataStore
		a.Logger.Debug().Str("path", cfg.Store.Path).Msg("SQLite store initialized")
	}

	resultCache, err := newCache(ctx, cfg.Cache, a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Str("backend", cfg.Cache.Backend).Msg("Result cache unavailable, continuing without it")
	} else if resultCache != nil {
		a.Cache = resultCache
	}

	a.Metrics = metrics.New()
	a.Notifier = notify.NewMultiNotifier(cfg.Notifications)

	detector := harmonic.NewDetector(harmonic.Config{
		Lookback:          cfg.Detection.Lookback,
		MinCandles:        cfg.Detection.MinCandles,
		AllowPlaceholders: cfg.Detection.AllowPlaceholders,
	}, harmonic.WithLogger(a.Logger))

	opts := []scanner.Option{
		scanner.WithLogger(a.Logger),
		scanner.WithMetrics(a.Metrics),
		scanner.WithCandleLimit(cfg.Detection.CandleLimit),
		scanner.WithCacheTTL(cfg.Cache.TTL),
	}
	if a.Store != nil {
		opts = append(opts, scanner.WithStore(a.Store))
	}
	if a.Cache != nil {
		opts = append(opts, scanner.WithCache(a.Cache))
	}
	a.Scanner = scanner.New(detector, opts...)

	a.ready = true
	return nil
}

// requireStore fails commands that cannot run without persistence.
func (a *App) requireStore() error {
	if a.Store == nil {
		return fmt.Errorf("store %s: %w", a.Config.Store.Path, apperrors.ErrDatabaseError)
	}
	return nil
}

// Close releases the store and cache.
func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close cache")
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close store")
		}
	}
}

// newCache builds the configured result cache. The none backend returns nil.
func newCache(ctx context.Context, cfg config.CacheConfig, logger zerolog.Logger) (cache.Cache, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "redis":
		retry := utils.DefaultRetryConfig()
		retry.MaxDelay = 2 * time.Second
		retry.RetryableErrors = []error{apperrors.ErrConnectionFailed}

		rc, err := utils.RetryWithResult(ctx, retry, func() (*cache.RedisCache, error) {
			return cache.NewRedisCache(ctx,
				cache.WithRedisAddr(cfg.RedisAddr),
				cache.WithRedisPassword(cfg.RedisPassword),
				cache.WithRedisDB(cfg.RedisDB),
				cache.WithRedisPrefix(cfg.RedisPrefix),
			)
		})
		if err != nil {
			return nil, err
		}
		logger.Debug().Str("addr", cfg.RedisAddr).Msg("Redis cache connected")
		return cache.NewGuardedCache(rc, cache.DefaultBreakerConfig()), nil
	default:
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.MaxSize),
			cache.WithMemoryDefaultTTL(cfg.TTL),
		), nil
	}
}
