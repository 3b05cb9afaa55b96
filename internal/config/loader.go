package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PERPSIM_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PERPSIM_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Simulation ──
	setStr(&cfg.Simulation.Pair, "PERPSIM_SIMULATION_PAIR")
	setDuration(&cfg.Simulation.TickInterval, "PERPSIM_SIMULATION_TICK_INTERVAL")
	setInt(&cfg.Simulation.CandleWindow, "PERPSIM_SIMULATION_CANDLE_WINDOW")
	setInt(&cfg.Simulation.BookDepth, "PERPSIM_SIMULATION_BOOK_DEPTH")
	setFloat64(&cfg.Simulation.BasePrice, "PERPSIM_SIMULATION_BASE_PRICE")
	setInt64(&cfg.Simulation.Seed, "PERPSIM_SIMULATION_SEED")

	// ── Database ──
	setStr(&cfg.Database.DSN, "PERPSIM_DATABASE_DSN")
	setStr(&cfg.Database.Host, "PERPSIM_DATABASE_HOST")
	setInt(&cfg.Database.Port, "PERPSIM_DATABASE_PORT")
	setStr(&cfg.Database.Database, "PERPSIM_DATABASE_NAME")
	setStr(&cfg.Database.User, "PERPSIM_DATABASE_USER")
	setStr(&cfg.Database.Password, "PERPSIM_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "PERPSIM_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "PERPSIM_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "PERPSIM_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "PERPSIM_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PERPSIM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PERPSIM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PERPSIM_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PERPSIM_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PERPSIM_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PERPSIM_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "PERPSIM_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PERPSIM_S3_REGION")
	setStr(&cfg.S3.Bucket, "PERPSIM_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PERPSIM_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PERPSIM_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PERPSIM_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PERPSIM_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "PERPSIM_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.MaxEntries, "PERPSIM_ARCHIVE_MAX_ENTRIES")
	setDuration(&cfg.Archive.Interval, "PERPSIM_ARCHIVE_INTERVAL")

	// ── Server ──
	setInt(&cfg.Server.Port, "PERPSIM_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PERPSIM_SERVER_CORS_ORIGINS")

	// ── Auth ──
	setStr(&cfg.Auth.JWTSecret, "PERPSIM_AUTH_JWT_SECRET")
	setStr(&cfg.Auth.JWTSecret, "JWT_SECRET") // compatibility alias
	setDuration(&cfg.Auth.TokenTTL, "PERPSIM_AUTH_TOKEN_TTL")

	// ── Settlement ──
	setDuration(&cfg.Settlement.Delay, "PERPSIM_SETTLEMENT_DELAY")
	setDuration(&cfg.Settlement.PollInterval, "PERPSIM_SETTLEMENT_POLL_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PERPSIM_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PERPSIM_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PERPSIM_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PERPSIM_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "PERPSIM_MODE")
	setStr(&cfg.LogLevel, "PERPSIM_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
