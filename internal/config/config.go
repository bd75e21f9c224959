// Package config provides configuration management for the harmonic pattern scanner.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"harmonic-trader/internal/analysis/harmonic"
	apperrors "harmonic-trader/internal/errors"
	"harmonic-trader/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Detection     DetectionConfig    `mapstructure:"detection"`
	Store         StoreConfig        `mapstructure:"store"`
	Cache         CacheConfig        `mapstructure:"cache"`
	Server        ServerConfig       `mapstructure:"server"`
	Scheduler     SchedulerConfig    `mapstructure:"scheduler"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// DetectionConfig holds detector tuning.
type DetectionConfig struct {
	Lookback          int  `mapstructure:"lookback"`
	MinCandles        int  `mapstructure:"min_candles"`
	AllowPlaceholders bool `mapstructure:"allow_placeholders"`
	CandleLimit       int  `mapstructure:"candle_limit"` // candles loaded per scan
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig holds result cache configuration.
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"` // memory, redis, none
	TTL           time.Duration `mapstructure:"ttl"`
	MaxSize       int           `mapstructure:"max_size"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisPrefix   string        `mapstructure:"redis_prefix"`
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SchedulerConfig holds periodic rescan configuration.
type SchedulerConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Spec       string   `mapstructure:"spec"` // cron spec with seconds field
	Symbols    []string `mapstructure:"symbols"`
	Timeframes []string `mapstructure:"timeframes"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Level    string         `mapstructure:"level"` // all, detections_only, errors_only
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/harmonic-trader"
	}
	return filepath.Join(home, ".config", "harmonic-trader")
}

// ConfigPath returns the path of config.toml inside configDir.
func ConfigPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

// Default returns the built-in configuration rooted at configDir.
func Default(configDir string) *Config {
	v := viper.New()
	setDefaults(v, configDir)
	cfg := &Config{}
	// Defaults are plain values; decoding them cannot fail.
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper, configDir string) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v.SetDefault("detection.lookback", 3)
	v.SetDefault("detection.min_candles", 50)
	v.SetDefault("detection.allow_placeholders", true)
	v.SetDefault("detection.candle_limit", 500)

	v.SetDefault("store.path", filepath.Join(configDir, "data", "harmonic.db"))

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", "15m")
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.redis_prefix", "harmonic")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.spec", "0 */15 * * * *")
	v.SetDefault("scheduler.symbols", []string{"BTCUSDT"})
	v.SetDefault("scheduler.timeframes", []string{"1H", "4H", "1D"})

	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.level", "all")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.path", filepath.Join(configDir, "logs", "harmonic.log"))
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is replaced by the commented template and defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target *Config) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplateConfig(configDir, name); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HARMONIC_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("HARMONIC_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("HARMONIC_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("HARMONIC_REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}
	if v := os.Getenv("HARMONIC_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("HARMONIC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HARMONIC_SCHEDULER_SYMBOLS"); v != "" {
		cfg.Scheduler.Symbols = strings.Split(v, ",")
	}

	// Notification secrets
	if v := os.Getenv("HARMONIC_TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv("HARMONIC_TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv("HARMONIC_WEBHOOK_URL"); v != "" {
		cfg.Notifications.Webhook.URL = v
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", apperrors.ErrConfigInvalid, fmt.Sprintf(format, args...))
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Detection.Lookback < 1 {
		return invalid("detection.lookback must be at least 1")
	}
	if c.Detection.MinCandles < harmonic.MinCandles {
		return invalid("detection.min_candles must be at least %d", harmonic.MinCandles)
	}
	if c.Detection.MinCandles < 2*c.Detection.Lookback+1 {
		return invalid("detection.min_candles must be at least %d for lookback %d",
			2*c.Detection.Lookback+1, c.Detection.Lookback)
	}
	if c.Detection.CandleLimit < c.Detection.MinCandles {
		return invalid("detection.candle_limit must not be below min_candles")
	}

	if c.Store.Path == "" {
		return invalid("store.path is required")
	}

	switch c.Cache.Backend {
	case "memory", "none":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return invalid("cache.redis_addr is required for the redis backend")
		}
	default:
		return invalid("invalid cache backend: %s (must be 'memory', 'redis' or 'none')", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return invalid("cache.ttl must be non-negative")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("server.port must be between 1 and 65535")
	}

	if c.Scheduler.Enabled {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.Scheduler.Spec); err != nil {
			return invalid("scheduler.spec: %v", err)
		}
		if len(c.Scheduler.Symbols) == 0 {
			return invalid("scheduler.symbols must not be empty")
		}
	}
	for _, tf := range c.Scheduler.Timeframes {
		if _, err := models.ParseTimeframe(tf); err != nil {
			return invalid("scheduler.timeframes: %v", err)
		}
	}

	switch c.Notifications.Level {
	case "", "all", "detections_only", "errors_only":
	default:
		return invalid("invalid notification level: %s", c.Notifications.Level)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return invalid("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// SchedulerTimeframes returns the configured scheduler timeframes, normalized.
// Call it after Validate.
func (c *Config) SchedulerTimeframes() []models.Timeframe {
	tfs := make([]models.Timeframe, 0, len(c.Scheduler.Timeframes))
	for _, s := range c.Scheduler.Timeframes {
		if tf, err := models.ParseTimeframe(s); err == nil {
			tfs = append(tfs, tf)
		}
	}
	return tfs
}
