package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"atcoder-watch-bot/internal/adapters/atcoder"
	"atcoder-watch-bot/internal/adapters/bot"
	"atcoder-watch-bot/internal/adapters/repo"
	"atcoder-watch-bot/internal/adapters/telegram"
	"atcoder-watch-bot/internal/domain"
	"atcoder-watch-bot/internal/infra/config"
	"atcoder-watch-bot/internal/infra/db"
	apphttp "atcoder-watch-bot/internal/infra/http"
	applog "atcoder-watch-bot/internal/infra/log"
	"atcoder-watch-bot/internal/infra/metrics"
	"atcoder-watch-bot/internal/infra/queue"
	"atcoder-watch-bot/internal/usecase/subscribe"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("gateway: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	if err := repoAdapter.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("gateway: не удалось применить миграции")
	}

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("gateway: не указан адрес Redis (REDIS_ADDR)")
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("gateway: не указан токен Telegram (TG_BOT_TOKEN)")
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("gateway: не удалось создать бота")
	}

	feed := atcoder.NewClient(cfg.AtCoder.APIBaseURL, cfg.AtCoder.RequestTimeout, cfg.Watch.SeedWindow)
	subscribeService := subscribe.NewService(repoAdapter, repoAdapter, feed, logger)
	handler := bot.NewHandler(botAPI, logger, subscribeService)

	notifyQueue := queue.NewRedisNotifyQueue(redisClient, cfg.Queues.Notify)
	sender := telegram.NewSender(botAPI, logger.With().Str("component", "sender").Logger())
	go runDeliveryLoop(ctx, logger, notifyQueue, sender)

	srv := apphttp.NewServer(logger.With().Str("component", "http").Logger())
	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("gateway: HTTP сервер остановлен")
		}
	}()

	go runUpdatesLoop(ctx, logger, botAPI, handler)

	logger.Info().Msg("gateway: запущен")
	<-ctx.Done()
	logger.Info().Msg("gateway: остановка")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// runUpdatesLoop читает апдейты long-poll'ом и передаёт их обработчику.
func runUpdatesLoop(ctx context.Context, logger zerolog.Logger, botAPI *tgbotapi.BotAPI, handler *bot.Handler) {
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := botAPI.GetUpdatesChan(updateCfg)
	for {
		select {
		case <-ctx.Done():
			botAPI.StopReceivingUpdates()
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			handler.HandleUpdate(ctx, upd)
		}
	}
}

// runDeliveryLoop вычитывает уведомления из очереди и отправляет их в
// Telegram. Ошибка чтения очереди не роняет цикл.
func runDeliveryLoop(ctx context.Context, logger zerolog.Logger, notifyQueue domain.NotificationQueue, sender *telegram.Sender) {
	for {
		n, err := notifyQueue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error().Err(err).Msg("gateway: ошибка чтения очереди уведомлений")
			time.Sleep(time.Second)
			continue
		}
		sender.Send(n)
	}
}
