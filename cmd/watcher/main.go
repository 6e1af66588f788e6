package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"atcoder-watch-bot/internal/adapters/atcoder"
	"atcoder-watch-bot/internal/adapters/notify"
	"atcoder-watch-bot/internal/adapters/repo"
	"atcoder-watch-bot/internal/domain"
	"atcoder-watch-bot/internal/infra/cache"
	"atcoder-watch-bot/internal/infra/config"
	"atcoder-watch-bot/internal/infra/db"
	applog "atcoder-watch-bot/internal/infra/log"
	"atcoder-watch-bot/internal/infra/metrics"
	"atcoder-watch-bot/internal/infra/queue"
	contestusecase "atcoder-watch-bot/internal/usecase/contest"
	watchusecase "atcoder-watch-bot/internal/usecase/watch"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("watcher: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	if err := repoAdapter.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("watcher: не удалось применить миграции")
	}

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("watcher: не указан адрес Redis (REDIS_ADDR)")
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	feed := atcoder.NewClient(cfg.AtCoder.APIBaseURL, cfg.AtCoder.RequestTimeout, cfg.Watch.SeedWindow)
	problems := atcoder.NewProblems(cfg.AtCoder.APIBaseURL, cfg.AtCoder.RequestTimeout, logger)
	problems.Load(ctx)
	scraper := atcoder.NewContestScraper(cfg.AtCoder.SiteBaseURL, cfg.AtCoder.RequestTimeout, logger)
	announcements := atcoder.NewAnnouncements(cfg.Announce.IndexURL, cfg.AtCoder.RequestTimeout, cfg.Announce.Refresh, logger)

	notifyQueue := queue.NewRedisNotifyQueue(redisClient, cfg.Queues.Notify)
	notifier := notify.NewQueueNotifier(notifyQueue, problems)
	sentRegistry := cache.NewRedis(redisClient)

	watchService := watchusecase.NewService(repoAdapter, feed, notifier, cfg.Watch.Lookback, logger)
	contestService := contestusecase.NewService(scraper, announcements, repoAdapter, sentRegistry, notifier, cfg.Contests.SentTTL, logger)

	go runSubmissionLoop(ctx, watchService, cfg.Watch.PollInterval)
	go runContestLoop(ctx, contestService, cfg.Contests.TickInterval)
	if cfg.Daily.Enabled {
		go runDailyLoop(ctx, watchService, sentRegistry, cfg.Daily.Hour)
	}

	logger.Info().Msg("watcher: запущен")
	<-ctx.Done()
	logger.Info().Msg("watcher: остановлен")
}

func runSubmissionLoop(ctx context.Context, svc *watchusecase.Service, interval time.Duration) {
	svc.PollAll(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.PollAll(ctx)
		}
	}
}

func runContestLoop(ctx context.Context, svc *contestusecase.Service, interval time.Duration) {
	svc.Tick(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.Tick(ctx)
		}
	}
}

// runDailyLoop раз в минуту проверяет, не наступил ли час напоминания по JST.
// Одноразовый ключ с датой защищает от повтора внутри того же часа и после
// рестарта.
func runDailyLoop(ctx context.Context, svc *watchusecase.Service, once domain.Cache, hour int) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().In(domain.JST)
			if now.Hour() != hour {
				continue
			}
			key := fmt.Sprintf("nudge:%s", now.Format("2006-01-02"))
			_ = once.Once(key, 24*time.Hour, func() error {
				svc.DailyNudge(ctx)
				return nil
			})
		}
	}
}
