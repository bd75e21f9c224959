package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Harmonic Trader Configuration

[detection]
# Swing confirmation window on each side of a candle
lookback = 3
# Series shorter than this are not analyzed
min_candles = 50
# Attach illustrative placeholder patterns when data is insufficient
allow_placeholders = true
# Candles loaded from the store per scan
candle_limit = 500

[store]
# SQLite database path (defaults to <config dir>/data/harmonic.db)
# path = ""

[cache]
# Result cache backend: memory, redis, none
backend = "memory"
ttl = "15m"
max_size = 1000
redis_addr = "localhost:6379"
redis_password = ""
redis_db = 0
redis_prefix = "harmonic"

[server]
host = "127.0.0.1"
port = 8080
read_timeout = "10s"
write_timeout = "30s"

[scheduler]
enabled = false
# Cron spec with a leading seconds field
spec = "0 */15 * * * *"
symbols = ["BTCUSDT"]
timeframes = ["1H", "4H", "1D"]

[notifications]
enabled = false
# Notification level: all, detections_only, errors_only
level = "all"

[notifications.webhook]
enabled = false
url = ""

[notifications.telegram]
enabled = false
bot_token = ""
chat_id = ""

[logging]
# debug, info, warn, error
level = "info"
console = true
file = true
# path = ""
max_size = 100
max_backups = 7
max_age = 30
`

// Template returns the commented default config.toml.
func Template() string {
	return configTemplate
}

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	// The file may later hold notification tokens.
	if err := os.WriteFile(path, []byte(configTemplate), 0600); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
