package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies AUCTIONENGINE_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
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

// applyEnvOverrides reads well-known AUCTIONENGINE_* environment variables
// and overwrites the corresponding Config fields when a variable is set
// (i.e. not empty). This lets operators inject secrets at deploy time
// without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "AUCTIONENGINE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "AUCTIONENGINE_SERVER_CORS_ORIGINS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "AUCTIONENGINE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "AUCTIONENGINE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "AUCTIONENGINE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "AUCTIONENGINE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "AUCTIONENGINE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "AUCTIONENGINE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "AUCTIONENGINE_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "AUCTIONENGINE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "AUCTIONENGINE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "AUCTIONENGINE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "AUCTIONENGINE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AUCTIONENGINE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AUCTIONENGINE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AUCTIONENGINE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "AUCTIONENGINE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "AUCTIONENGINE_REDIS_TLS_ENABLED")

	// ── Lock ──
	setInt(&cfg.Lock.TimeoutMs, "AUCTIONENGINE_LOCK_TIMEOUT_MS")
	setInt(&cfg.Lock.MaxRetries, "AUCTIONENGINE_LOCK_MAX_RETRIES")
	setInt(&cfg.Lock.RetryDelayMs, "AUCTIONENGINE_LOCK_RETRY_DELAY_MS")

	// ── Scheduler ──
	setInt(&cfg.Scheduler.IntervalMs, "AUCTIONENGINE_SCHEDULER_INTERVAL_MS")
	setInt(&cfg.Scheduler.GracePeriodMs, "AUCTIONENGINE_SCHEDULER_GRACE_PERIOD_MS")

	// ── Bidding ──
	setInt(&cfg.Bidding.BidGracePeriodMs, "AUCTIONENGINE_BIDDING_BID_GRACE_PERIOD_MS")
	setInt(&cfg.Bidding.MinAuctionDurationS, "AUCTIONENGINE_BIDDING_MIN_AUCTION_DURATION_S")
	setInt(&cfg.Bidding.EndingSoonThresholdS, "AUCTIONENGINE_BIDDING_ENDING_SOON_THRESHOLD_S")
	setInt(&cfg.Bidding.MaxBidsPerMinute, "AUCTIONENGINE_BIDDING_MAX_BIDS_PER_MINUTE")

	// ── RateLimit ──
	setInt(&cfg.RateLimit.MaxRequestsPerMinute, "AUCTIONENGINE_RATELIMIT_MAX_REQUESTS_PER_MINUTE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "AUCTIONENGINE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AUCTIONENGINE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "AUCTIONENGINE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "AUCTIONENGINE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "AUCTIONENGINE_LOG_LEVEL")
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

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
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
