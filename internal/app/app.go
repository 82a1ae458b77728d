// Package app wires every component of the service together.
// app.go is the assembly point: it creates the DB pool, the snapshot cache,
// repositories, services, handlers, the router and the scheduler.
package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"fitplay.app/gametime/internal/clock"
	"fitplay.app/gametime/internal/config"
	"fitplay.app/gametime/internal/db/postgres"
	"fitplay.app/gametime/internal/features/activity"
	"fitplay.app/gametime/internal/features/challenge"
	"fitplay.app/gametime/internal/features/ledger"
	"fitplay.app/gametime/internal/features/members"
	"fitplay.app/gametime/internal/features/notifications"
	"fitplay.app/gametime/internal/features/streak"
	"fitplay.app/gametime/internal/httpapi"
	"fitplay.app/gametime/internal/jobs"
	"fitplay.app/gametime/internal/realtime"
)

// App holds all application components.
type App struct {
	Server      *httpapi.Server
	Scheduler   *jobs.Scheduler
	RateLimiter *httpapi.RateLimiter
	DB          *pgxpool.Pool
	Redis       *redis.Client // nil when snapshots live in memory

	Ledger  *ledger.Service
	Streak  *streak.Service
	Members *members.Service
}

// parentChats resolves parent chats through the members service,
// which only exists after the ledger (and therefore the notifier) is built.
type parentChats struct {
	members *members.Service
}

func (p *parentChats) ParentChat(ctx context.Context, childID string) (int64, string, bool, error) {
	if p.members == nil {
		return 0, "", false, nil
	}
	return p.members.ParentChat(ctx, childID)
}

// New creates and initializes the application.
// Order matters: components depend on each other.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. Database ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	// === 2. Snapshot cache ===
	var (
		cache       ledger.SnapshotCache
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			pool.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("redis unreachable: %w", err)
		}
		cache = ledger.NewRedisCache(redisClient, cfg.SnapshotTTL)
		log.WithField("addr", cfg.RedisAddr).Info("Balance snapshots in Redis")
	} else {
		cache = ledger.NewMemoryCache()
		log.Info("Balance snapshots in memory")
	}

	// === 3. Repositories ===
	ledgerRepo := ledger.NewRepository(pool)
	memberRepo := members.NewRepository(pool)
	streakRepo := streak.NewRepository(pool)
	notificationRepo := notifications.NewRepository(pool)
	activityRepo := activity.NewRepository(pool)
	challengeRepo := challenge.NewRepository(pool)

	// === 4. Services ===
	chats := &parentChats{}
	var forwarder notifications.Forwarder
	if cfg.TelegramEnabled() {
		tf, err := notifications.NewTelegramForwarder(cfg.TelegramBotToken, chats)
		if err != nil {
			pool.Close()
			return nil, err
		}
		forwarder = tf
	}
	notificationService := notifications.NewService(notificationRepo, forwarder)

	hub := realtime.NewHub()
	ledgerService := ledger.NewService(ledgerRepo, clock.System{}, cache, notificationService, hub, ledger.Options{
		DefaultDailyLimit:  cfg.LedgerDefaultDailyLimit,
		DefaultWeeklyLimit: cfg.LedgerDefaultWeeklyLimit,
	})
	memberService := members.NewService(memberRepo, ledgerService)
	chats.members = memberService
	streakService := streak.NewService(streakRepo, ledgerService, streak.Options{
		Enabled: cfg.FeatureStreaksEnabled,
		Defaults: streak.Settings{
			BaseMinutes:      cfg.StreakBaseMinutes,
			IncrementMinutes: cfg.StreakIncrementMinutes,
			CapMinutes:       cfg.StreakCapMinutes,
		},
		ReminderThreshold: cfg.StreakReminderThreshold,
		Parents:           memberService,
	})
	challengeService := challenge.NewService(challengeRepo, ledgerService, memberService)
	rnd := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	activityService := activity.NewService(activityRepo, ledgerService, streakService, rnd)

	// === 5. Handlers ===
	deps := httpapi.Deps{
		Ledger:         ledger.NewHandler(ledgerService),
		Streak:         streak.NewHandler(streakService),
		Members:        members.NewHandler(memberService),
		Activity:       activity.NewHandler(activityService),
		Challenges:     challenge.NewHandler(challengeService),
		Notifications:  notifications.NewHandler(notificationService),
		AllowedOrigins: cfg.HTTPAllowedOrigins,
		Metrics:        cfg.FeatureMetricsEnabled,
		Ping:           pool.Ping,
	}
	if cfg.FeatureWebsocketEnabled {
		deps.Realtime = realtime.NewHandler(hub, ledgerService, cfg.HTTPAllowedOrigins)
	}
	limiter := httpapi.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	deps.RateLimiter = limiter

	// === 6. HTTP server ===
	server := httpapi.NewServer(cfg.HTTPAddr, httpapi.NewRouter(deps))

	// === 7. Scheduler ===
	var reminder jobs.Reminder
	if cfg.FeatureRemindersEnabled {
		reminder = streakService
	}
	scheduler := jobs.NewScheduler(ledgerService, reminder, jobs.Schedule{
		DailyReset:      cfg.CronDailyReset,
		StreakReminders: cfg.CronStreakReminder,
	})

	return &App{
		Server:      server,
		Scheduler:   scheduler,
		RateLimiter: limiter,
		DB:          pool,
		Redis:       redisClient,
		Ledger:      ledgerService,
		Streak:      streakService,
		Members:     memberService,
	}, nil
}

// Close releases the pool, the Redis client and the limiter janitor.
func (a *App) Close() {
	a.RateLimiter.Close()
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.WithError(err).Warn("Failed to close Redis client")
		}
	}
	a.DB.Close()
}
