package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yt-fetcher/domain/dto"
	"yt-fetcher/domain/model"
	"yt-fetcher/domain/repository"
	"yt-fetcher/infrastructure/cache"
	youtubeclient "yt-fetcher/infrastructure/clients/youtube"
	"yt-fetcher/infrastructure/configuration"
	"yt-fetcher/infrastructure/keypool"
	"yt-fetcher/infrastructure/logger"
	"yt-fetcher/infrastructure/persistence"
	"yt-fetcher/infrastructure/pubsub"
	"yt-fetcher/infrastructure/retry"
	"yt-fetcher/usecase"

	"golang.org/x/sync/errgroup"
)

const purgeInterval = 10 * time.Minute

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	// OS env keeps precedence over the files.
	loaded := configuration.LoadEnvFromFile("config.env", ".env")
	logger.GetLogger().WithField("vars", loaded).Info("Env files loaded")

	ytConfig, err := configuration.GetYouTubeConfig()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Invalid YouTube configuration")
		os.Exit(1)
	}
	syncConfig, err := configuration.GetSyncConfig()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Invalid sync configuration")
		os.Exit(1)
	}

	g, ctx := errgroup.WithContext(ctx)

	cacheStore, err := InitiateCacheStore(ctx, g, ytConfig)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Cache backend not available - falling back to in-memory cache")
		cacheStore = newMemoryStore(ctx, g)
	}
	layer := cache.NewLayer(cacheStore, ytConfig.CacheTTL)

	keyEvents := InitiateKeyEvents(ctx)

	keyStore, err := InitiateKeyStore(ctx, ytConfig, cacheStore, keyEvents)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Key store initialization failed")
		os.Exit(1)
	}
	keys, err := keyStore.ListKeys(ctx)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Cannot list API keys")
		os.Exit(1)
	}
	pool, err := keypool.New(keys, keypool.WithCooldown(ytConfig.QuotaCooldown))
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("No YouTube API key configured")
		os.Exit(1)
	}

	youtubeClient, err := youtubeclient.NewYouTubeClient(ctx, &youtubeclient.Config{
		Endpoint: ytConfig.Endpoint,
		Timeout:  ytConfig.Timeout,
	})
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Failed to initialize YouTube client")
		os.Exit(1)
	}

	executor := usecase.NewExecutor(pool,
		retry.NewPolicy(ytConfig.MaxAttempts, ytConfig.BackoffBase, ytConfig.BackoffCap),
		usecase.WithCacheStrategy(layer, ytConfig.CacheTTL),
		usecase.WithRateLimit(ytConfig.RequestsPerSecond),
		usecase.WithMaxConcurrency(ytConfig.MaxConcurrency),
	)
	youtubeUC := usecase.NewYouTubeUseCase(youtubeClient, executor).
		WithKeyStore(keyStore).
		WithCache(layer).
		WithLimits(ytConfig.MaxPages, ytConfig.BatchSize)

	logger.GetLogger().WithFields(map[string]interface{}{
		"keys":         pool.Len(),
		"keySource":    ytConfig.KeySource,
		"cacheBackend": ytConfig.CacheBackend,
		"maxAttempts":  ytConfig.MaxAttempts,
		"channels":     len(syncConfig.Channels),
	}).Info("YouTube client initialized")

	if keyEvents != nil {
		g.Go(func() error {
			return keyEvents.Listen(ctx, func(ctx context.Context, change model.KeyChange) error {
				logger.GetLogger().WithFields(map[string]interface{}{
					"active":    change.Active,
					"changedAt": change.ChangedAt,
				}).Info("Key change received")
				return youtubeUC.ReloadKeys(ctx)
			})
		})
	}

	if len(syncConfig.Channels) > 0 {
		g.Go(func() error {
			return runChannelSync(ctx, youtubeUC, syncConfig)
		})
	} else {
		logger.GetLogger().Info("No channels configured - sync job disabled")
	}

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.GetLogger().WithField("error", err).Error("Application returned an error")
		os.Exit(2)
	}
	stats := layer.Stats()
	logger.GetLogger().WithFields(map[string]interface{}{
		"cacheHits":   stats.Hits,
		"cacheMisses": stats.Misses,
	}).Info("Application stopped")
}

// InitiateCacheStore opens the configured cache backend. SQL backends get an expiry purge loop.
func InitiateCacheStore(ctx context.Context, g *errgroup.Group, cfg *configuration.YouTubeConfig) (repository.ICacheStore, error) {
	switch cfg.CacheBackend {
	case configuration.CacheBackendRedis:
		rc := configuration.C.RedisClient
		client, err := cache.NewCache(ctx, fmt.Sprintf("%s:%s", rc.Host, rc.Port), rc.Username, rc.Password, rc.Database)
		if err != nil {
			return nil, err
		}
		logger.GetLogger().Info("Redis client initialized successfully.")
		return cache.NewRedisStore(client, rc.Prefix), nil

	case configuration.CacheBackendPostgres:
		db, err := persistence.NewPostgreSQLDB(ctx)
		if err != nil {
			return nil, err
		}
		if err := persistence.EnsureAPICacheSchema(ctx, db); err != nil {
			return nil, err
		}
		repo := persistence.NewAPICacheRepository(db)
		g.Go(func() error {
			runPurge(ctx, repo.PurgeExpired)
			return db.Close()
		})
		return repo, nil

	case configuration.CacheBackendMSSQL:
		db, err := persistence.NewMSSQLDB(ctx)
		if err != nil {
			return nil, err
		}
		if err := persistence.EnsureAPICacheSchemaMSSQL(ctx, db); err != nil {
			return nil, err
		}
		repo := persistence.NewAPICacheRepositoryMSSQL(db)
		g.Go(func() error {
			runPurge(ctx, repo.PurgeExpired)
			return db.Close()
		})
		return repo, nil

	default:
		return newMemoryStore(ctx, g), nil
	}
}

func newMemoryStore(ctx context.Context, g *errgroup.Group) *cache.MemoryStore {
	store := cache.NewMemoryStore()
	g.Go(func() error {
		store.RunSweeper(ctx, time.Minute)
		return nil
	})
	return store
}

func runPurge(ctx context.Context, purge func(context.Context) (int64, error)) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := purge(ctx)
			if err != nil {
				logger.GetLogger().WithField("error", err).Warn("Cache purge failed")
				continue
			}
			logger.GetLogger().WithField("removed", n).Debug("Expired cache rows purged")
		}
	}
}

// InitiateKeyEvents connects to Pub/Sub when a project and topic are configured.
func InitiateKeyEvents(ctx context.Context) *pubsub.KeyEvents {
	ps := configuration.C.Pubsub
	if ps.ProjectID == "" || ps.KeyTopic == "" {
		logger.GetLogger().Info("PubSub not configured - key changes are not broadcast")
		return nil
	}
	client, err := pubsub.NewPubSub(ctx, ps.ProjectID)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while instantiate PubSub")
		return nil
	}
	return pubsub.NewKeyEvents(client, ps.KeyTopic, ps.KeySubscription)
}

// InitiateKeyStore builds the key source: keys from configuration, or the dev_key table cached
// in the cache store and invalidated on enable/disable.
func InitiateKeyStore(ctx context.Context, cfg *configuration.YouTubeConfig, cacheStore repository.ICacheStore, events *pubsub.KeyEvents) (repository.IKeyStore, error) {
	if cfg.KeySource != configuration.KeySourceDatabase {
		return persistence.NewStaticKeyStore(cfg.APIKeys), nil
	}

	db, err := persistence.NewRepositories()
	if err != nil {
		return nil, err
	}
	devKeys := persistence.NewDevKeyRepository(db)
	if err := devKeys.Migrate(ctx); err != nil {
		return nil, err
	}
	store := persistence.NewCachedKeyStore(devKeys, cacheStore, cfg.KeyCacheTTL)
	if events != nil {
		store.OnChange(events)
	}
	return store, nil
}

// runChannelSync refreshes the recent uploads of every configured channel, once at start and
// then every interval.
func runChannelSync(ctx context.Context, uc usecase.IYouTubeUseCase, cfg *configuration.SyncConfig) error {
	syncOnce := func() {
		dr := dto.LastHours(time.Now(), cfg.Lookback)
		for _, channelID := range cfg.Channels {
			if ctx.Err() != nil {
				return
			}
			list, err := uc.GetChannelRecentVideos(ctx, channelID, dr)
			if err != nil {
				logger.GetLogger().WithField("channel_id", channelID).WithField("error", err).Error("Channel sync failed")
				continue
			}
			items := list.Items
			if cfg.MaxResults > 0 && len(items) > cfg.MaxResults {
				items = items[:cfg.MaxResults]
			}
			fields := map[string]interface{}{
				"channel_id": channelID,
				"videos":     len(items),
				"truncated":  list.Truncated,
			}
			if len(items) > 0 {
				fields["latest"] = items[0].ID
			}
			logger.GetLogger().WithFields(fields).Info("Channel synced")
		}
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	syncOnce()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			syncOnce()
		}
	}
}
