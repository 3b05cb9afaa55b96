// Package config defines the top-level configuration for the perpsim
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by PERPSIM_* environment
// variables.
type Config struct {
	Simulation SimulationConfig `toml:"simulation"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Archive    ArchiveConfig    `toml:"archive"`
	Server     ServerConfig     `toml:"server"`
	Auth       AuthConfig       `toml:"auth"`
	Settlement SettlementConfig `toml:"settlement"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// SimulationConfig holds the engine's market simulation parameters.
type SimulationConfig struct {
	Pair         string   `toml:"pair"`
	TickInterval duration `toml:"tick_interval"`
	CandleWindow int      `toml:"candle_window"`
	BookDepth    int      `toml:"book_depth"`
	BasePrice    float64  `toml:"base_price"`
	// Seed fixes the random source; 0 seeds from the wall clock.
	Seed int64 `toml:"seed"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls journal archival to blob storage.
type ArchiveConfig struct {
	Enabled bool `toml:"enabled"`
	// MaxEntries is the in-memory journal size above which the archiver
	// drains the oldest entries to blob storage.
	MaxEntries int      `toml:"max_entries"`
	Interval   duration `toml:"interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// AuthConfig holds JWT parameters. The secret is required in serve mode and
// is normally injected through PERPSIM_AUTH_JWT_SECRET (or JWT_SECRET).
type AuthConfig struct {
	JWTSecret string   `toml:"jwt_secret"`
	TokenTTL  duration `toml:"token_ttl"`
}

// SettlementConfig controls the simulated settlement worker.
type SettlementConfig struct {
	// Delay is the artificial confirmation latency applied to deposits and
	// withdrawals before they are marked completed.
	Delay        duration `toml:"delay"`
	PollInterval duration `toml:"poll_interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "1m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s" or "1m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

var validModes = map[string]bool{
	"serve": true,
	"sim":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Simulation: SimulationConfig{
			Pair:         "SUI-PERP",
			TickInterval: duration{5 * time.Second},
			CandleWindow: 100,
			BookDepth:    12,
			BasePrice:    150.0,
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "perpsim",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "perpsim-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:    false,
			MaxEntries: 10_000,
			Interval:   duration{5 * time.Minute},
		},
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"*"},
		},
		Auth: AuthConfig{
			TokenTTL: duration{24 * time.Hour},
		},
		Settlement: SettlementConfig{
			Delay:        duration{5 * time.Second},
			PollInterval: duration{time.Second},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// Validate checks the configuration for internal consistency. It collects
// every problem it finds so operators can fix them in one pass.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, sim)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Simulation
	if c.Simulation.Pair == "" {
		errs = append(errs, "simulation: pair must not be empty")
	}
	if c.Simulation.TickInterval.Duration <= 0 {
		errs = append(errs, "simulation: tick_interval must be positive")
	}
	if c.Simulation.CandleWindow < 2 {
		errs = append(errs, "simulation: candle_window must be at least 2")
	}
	if c.Simulation.BookDepth < 1 {
		errs = append(errs, "simulation: book_depth must be at least 1")
	}
	if c.Simulation.BasePrice <= 0 {
		errs = append(errs, "simulation: base_price must be positive")
	}

	serve := strings.ToLower(c.Mode) == "serve"

	// Database: only serve mode persists accounts.
	if serve && strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port %d out of range", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database name must not be empty")
		}
	}

	// Redis: serve mode bridges engine events to WebSocket clients.
	if serve && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr is required in serve mode")
	}

	// Auth
	if serve && c.Auth.JWTSecret == "" {
		errs = append(errs, "auth: jwt_secret is required in serve mode (set PERPSIM_AUTH_JWT_SECRET)")
	}
	if c.Auth.TokenTTL.Duration <= 0 {
		errs = append(errs, "auth: token_ttl must be positive")
	}

	// Server
	if serve && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port %d out of range", c.Server.Port))
	}

	// Settlement
	if c.Settlement.Delay.Duration < 0 {
		errs = append(errs, "settlement: delay must not be negative")
	}
	if c.Settlement.PollInterval.Duration <= 0 {
		errs = append(errs, "settlement: poll_interval must be positive")
	}

	// Archive
	if c.Archive.Enabled {
		if c.Archive.MaxEntries < 1 {
			errs = append(errs, "archive: max_entries must be positive when archival is enabled")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be positive when archival is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "archive: s3 bucket must be configured when archival is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
