// Package config defines the top-level configuration for the auction engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by AUCTIONENGINE_* environment
// variables.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	Lock      LockConfig      `toml:"lock"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Bidding   BiddingConfig   `toml:"bidding"`
	RateLimit RateLimitConfig `toml:"ratelimit"`
	Ladder    LadderConfig    `toml:"ladder"`
	Notify    NotifyConfig    `toml:"notify"`
	LogLevel  string          `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"sslmode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Redis backs the
// distributed lock manager and the signal bus.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// LockConfig holds the per-auction advisory lock's timing parameters.
type LockConfig struct {
	TimeoutMs    int `toml:"timeout_ms"`
	MaxRetries   int `toml:"max_retries"`
	RetryDelayMs int `toml:"retry_delay_ms"`
}

// SchedulerConfig holds the lifecycle sweep's timing parameters.
type SchedulerConfig struct {
	IntervalMs    int `toml:"interval_ms"`
	GracePeriodMs int `toml:"grace_period_ms"`
}

// BiddingConfig holds bid-acceptance parameters that are not expressed
// through the ladder table.
type BiddingConfig struct {
	BidGracePeriodMs     int `toml:"bid_grace_period_ms"`
	MinAuctionDurationS  int `toml:"min_auction_duration_s"`
	EndingSoonThresholdS int `toml:"ending_soon_threshold_s"`
	MaxBidsPerMinute     int `toml:"max_bids_per_minute"`
}

// RateLimitConfig holds the advisory per-client HTTP rate limit.
type RateLimitConfig struct {
	MaxRequestsPerMinute int `toml:"max_requests_per_minute"`
}

// LadderBand is one configurable row of the bid ladder.
type LadderBand struct {
	FloorCents     int64 `toml:"floor"`
	IncrementCents int64 `toml:"increment"`
}

// LadderConfig holds the configurable bid ladder. When Bands is empty,
// ladder.DefaultTable's production table is used.
type LadderConfig struct {
	Bands []LadderBand `toml:"band"`
}

// NotifyConfig holds notification channel credentials for operator alerts
// dispatched by the scheduler.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values,
// matching the production bid ladder and the specification's suggested
// timing parameters.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "auctionengine",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Lock: LockConfig{
			TimeoutMs:    500,
			MaxRetries:   3,
			RetryDelayMs: 100,
		},
		Scheduler: SchedulerConfig{
			IntervalMs:    5_000,
			GracePeriodMs: 60_000,
		},
		Bidding: BiddingConfig{
			BidGracePeriodMs:     2_000,
			MinAuctionDurationS:  300,
			EndingSoonThresholdS: 60,
			MaxBidsPerMinute:     10,
		},
		RateLimit: RateLimitConfig{
			MaxRequestsPerMinute: 100,
		},
		Notify: NotifyConfig{
			Events: []string{"auction_started", "auction_ended", "fail_safe"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.Lock.TimeoutMs <= 0 {
		errs = append(errs, "lock: timeout_ms must be > 0")
	}
	if c.Lock.MaxRetries < 0 {
		errs = append(errs, "lock: max_retries must be >= 0")
	}

	if c.Scheduler.IntervalMs <= 0 {
		errs = append(errs, "scheduler: interval_ms must be > 0")
	}
	if c.Scheduler.GracePeriodMs <= 0 {
		errs = append(errs, "scheduler: grace_period_ms must be > 0")
	}

	if c.Bidding.MinAuctionDurationS <= 0 {
		errs = append(errs, "bidding: min_auction_duration_s must be > 0")
	}
	if c.Bidding.EndingSoonThresholdS <= 0 {
		errs = append(errs, "bidding: ending_soon_threshold_s must be > 0")
	}
	if c.Bidding.MaxBidsPerMinute < 1 {
		errs = append(errs, "bidding: max_bids_per_minute must be >= 1")
	}

	if c.RateLimit.MaxRequestsPerMinute < 1 {
		errs = append(errs, "ratelimit: max_requests_per_minute must be >= 1")
	}

	for i, b := range c.Ladder.Bands {
		if b.IncrementCents <= 0 {
			errs = append(errs, fmt.Sprintf("ladder: band[%d].increment must be > 0", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
