package watch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"atcoder-watch-bot/internal/domain"
	"atcoder-watch-bot/internal/infra/metrics"
)

// Service превращает сырой фид посылок в дедуплицированный поток событий
// по каждой подписке и идемпотентно двигает watermark.
type Service struct {
	watches  domain.WatchRepo
	feed     domain.SubmissionFeed
	notifier domain.Notifier
	lookback time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewService создаёт поллер.
func NewService(watches domain.WatchRepo, feed domain.SubmissionFeed, notifier domain.Notifier, lookback time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		watches:  watches,
		feed:     feed,
		notifier: notifier,
		lookback: lookback,
		log:      logger,
		now:      time.Now,
	}
}

// PollOne выгружает недавние посылки подписки и возвращает события для всех
// новых посылок, прошедших фильтр, плюс кандидата watermark. Watermark здесь
// не персистится; решение об этом принимает PollAll после эмиссии.
//
// Пропущенная фильтром посылка всё равно двигает кандидата: она «увидена» и
// не должна пересматриваться в следующих циклах.
func (s *Service) PollOne(ctx context.Context, w domain.Watch) ([]domain.SubmissionEvent, int64, error) {
	since := s.now().Add(-s.lookback)
	subs, err := s.feed.RecentSubmissions(ctx, w.Handle, since)
	if err != nil {
		return nil, w.Watermark, fmt.Errorf("фид %s: %w", w.Handle, err)
	}

	// Порядок прихода из фида не гарантирован.
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })

	candidate := w.Watermark
	var events []domain.SubmissionEvent
	for _, sub := range subs {
		if sub.ID <= w.Watermark {
			continue
		}
		if sub.ID > candidate {
			candidate = sub.ID
		}
		if w.OnlyAccepted && sub.Verdict != domain.VerdictAccepted {
			continue
		}
		events = append(events, domain.SubmissionEvent{Watch: w, Submission: sub})
	}
	return events, candidate, nil
}

// PollAll опрашивает все подписки по снапшоту на начало цикла. Ошибка фида
// одной подписки не трогает её watermark и не мешает остальным. Ошибка
// доставки события логируется и не мешает ни остальным событиям, ни
// продвижению watermark: события уже легитимно вычислены.
func (s *Service) PollAll(ctx context.Context) {
	metrics.PollCyclesTotal.Inc()

	watches, err := s.watches.List(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("watch: не удалось получить список подписок")
		return
	}

	for _, w := range watches {
		events, candidate, err := s.PollOne(ctx, w)
		if err != nil {
			metrics.FeedErrorsTotal.Inc()
			s.log.Warn().Err(err).Str("handle", w.Handle).Int64("chat", w.ChatID).
				Msg("watch: пропуск подписки до следующего цикла")
			continue
		}

		for _, ev := range events {
			if err := s.notifier.NotifySubmission(ctx, ev); err != nil {
				metrics.DeliveryErrorsTotal.Inc()
				s.log.Error().Err(err).Str("handle", w.Handle).Int64("submission", ev.Submission.ID).
					Msg("watch: не удалось доставить событие")
				continue
			}
			metrics.SubmissionEventsTotal.WithLabelValues(string(ev.Submission.Verdict)).Inc()
		}

		if candidate > w.Watermark {
			if err := s.watches.UpdateWatermark(ctx, w.ChatID, w.Handle, candidate); err != nil {
				// Память цикла не откатывается: следующий цикл перечитает
				// состояние из БД и в худшем случае повторит доставку.
				metrics.WatermarkErrorsTotal.Inc()
				s.log.Error().Err(err).Str("handle", w.Handle).Int64("watermark", candidate).
					Msg("watch: не удалось сохранить watermark")
			}
		}
	}
}
