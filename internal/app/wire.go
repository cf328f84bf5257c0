package app

import (
	"context"
	"fmt"
	"log/slog"

	cacheredis "github.com/proxybid/auctionengine/internal/cache/redis"
	"github.com/proxybid/auctionengine/internal/config"
	"github.com/proxybid/auctionengine/internal/domain"
	"github.com/proxybid/auctionengine/internal/ladder"
	"github.com/proxybid/auctionengine/internal/notify"
	"github.com/proxybid/auctionengine/internal/service"
	"github.com/proxybid/auctionengine/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the server mode needs
// to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	AuctionStore domain.AuctionStore
	BidStore     domain.BidStore
	UserStore    domain.UserStore

	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter

	Ladder *ladder.Table

	Lifecycle  *service.LifecycleService
	Bidding    *service.BiddingService
	Retraction *service.RetractionService

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.AuctionStore = postgres.NewAuctionStore(pool)
	deps.BidStore = postgres.NewBidStore(pool)
	deps.UserStore = postgres.NewUserStore(pool)

	// --- Redis ---
	redisClient, err := cacheredis.New(ctx, cacheredis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.LockManager = cacheredis.NewLockManager(redisClient)
	deps.SignalBus = cacheredis.NewSignalBus(redisClient)
	deps.RateLimiter = cacheredis.NewRateLimiter(redisClient)

	// --- Bid ladder ---
	if len(cfg.Ladder.Bands) > 0 {
		bands := make([]ladder.Band, len(cfg.Ladder.Bands))
		for i, b := range cfg.Ladder.Bands {
			bands[i] = ladder.Band{LowerBoundCents: b.FloorCents, IncrementCents: b.IncrementCents}
		}
		deps.Ladder = ladder.NewTable(bands)
	} else {
		deps.Ladder = ladder.DefaultTable()
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Services ---
	deps.Lifecycle = service.NewLifecycleService(deps.AuctionStore, deps.BidStore, deps.LockManager, deps.SignalBus, logger)
	deps.Bidding = service.NewBiddingService(deps.AuctionStore, deps.BidStore, deps.UserStore, deps.LockManager, deps.Ladder, deps.SignalBus, logger)
	deps.Retraction = service.NewRetractionService(deps.AuctionStore, deps.BidStore, deps.LockManager, deps.SignalBus, logger)

	return deps, cleanup, nil
}
