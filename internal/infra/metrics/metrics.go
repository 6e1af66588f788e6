package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	PollCyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watch_poll_cycles_total",
		Help: "Количество циклов опроса фида посылок",
	})
	FeedErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watch_feed_errors_total",
		Help: "Ошибки фида посылок (подписка пропущена до следующего цикла)",
	})
	SubmissionEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watch_submission_events_total",
		Help: "Сэмитированные события о посылках",
	}, []string{"verdict"})
	WatermarkErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watch_watermark_errors_total",
		Help: "Неудачные сохранения watermark",
	})
	ContestScrapeErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "contest_scrape_errors_total",
		Help: "Неудачные выгрузки таблицы контестов (тик пропущен)",
	})
	ContestEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contest_events_total",
		Help: "Сэмитированные события фаз контестов",
	}, []string{"phase"})
	NotificationsEnqueuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_enqueued_total",
		Help: "Сообщения, поставленные в очередь доставки",
	})
	DeliveryErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "delivery_errors_total",
		Help: "Ошибки отправки сообщений ботом",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		PollCyclesTotal,
		FeedErrorsTotal,
		SubmissionEventsTotal,
		WatermarkErrorsTotal,
		ContestScrapeErrorsTotal,
		ContestEventsTotal,
		NotificationsEnqueuedTotal,
		DeliveryErrorsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}
