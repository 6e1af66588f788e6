package contest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"atcoder-watch-bot/internal/domain"
	"atcoder-watch-bot/internal/infra/metrics"
)

// Оффсеты фаз в минутах до старта (announced/soon/started) и до конца (ended).
const (
	minutesAnnounced = 1440
	minutesSoon      = 30
)

// Service отслеживает фазы контестов и эмитит каждое (контест, фаза) не
// более одного раза. Сравнение идёт на точное равенство целых минут,
// поэтому тикать надо не реже раза в минуту: более редкий тик может
// проскочить нужную минуту целиком.
type Service struct {
	source  domain.ContestSource
	details domain.ContestDetailsSource
	targets domain.AnnouncementRepo
	sent    domain.Cache
	notify  domain.Notifier
	sentTTL time.Duration
	log     zerolog.Logger
	now     func() time.Time
}

// NewService создаёт планировщик контестов.
func NewService(source domain.ContestSource, details domain.ContestDetailsSource, targets domain.AnnouncementRepo, sent domain.Cache, notify domain.Notifier, sentTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		source:  source,
		details: details,
		targets: targets,
		sent:    sent,
		notify:  notify,
		sentTTL: sentTTL,
		log:     logger,
		now:     time.Now,
	}
}

// Tick выгружает таблицу контестов и рассылает события достигнутых фаз.
// Ошибка выгрузки пропускает тик целиком и лечится следующим тиком.
func (s *Service) Tick(ctx context.Context) {
	now := s.now().In(domain.JST)
	contests, err := s.source.UpcomingContests(ctx, now)
	if err != nil {
		metrics.ContestScrapeErrorsTotal.Inc()
		s.log.Warn().Err(err).Msg("contest: пропуск тика")
		return
	}

	for _, c := range contests {
		for _, phase := range s.duePhases(now, c) {
			s.emitOnce(ctx, c, phase)
		}
	}
}

// duePhases возвращает фазы, чья минута наступила ровно сейчас. Фазы —
// независимые триггеры, не строгий автомат: контест, впервые увиденный за
// 10 минут до старта, никогда не получит announced и soon.
func (s *Service) duePhases(now time.Time, c domain.Contest) []domain.ContestPhase {
	toStart := roundMinutes(c.StartAt.Sub(now))
	toEnd := roundMinutes(c.EndAt().Sub(now))

	var due []domain.ContestPhase
	if toStart == minutesAnnounced {
		due = append(due, domain.PhaseAnnounced)
	}
	if toStart == minutesSoon {
		due = append(due, domain.PhaseSoon)
	}
	if toStart == 0 {
		due = append(due, domain.PhaseStarted)
	}
	if toEnd == 0 {
		due = append(due, domain.PhaseEnded)
	}
	return due
}

// emitOnce рассылает фазу не более одного раза. Ошибка рассылки снимает
// одноразовый ключ, но минута точного равенства к следующему тику уже
// прошла: такая фаза теряется, а не повторяется.
func (s *Service) emitOnce(ctx context.Context, c domain.Contest, phase domain.ContestPhase) {
	key := fmt.Sprintf("contest:%s:%s", phase, c.URL)
	err := s.sent.Once(key, s.sentTTL, func() error {
		return s.broadcast(ctx, c, phase)
	})
	if err != nil {
		s.log.Error().Err(err).Str("contest", c.URL).Str("phase", string(phase)).
			Msg("contest: не удалось отправить событие фазы")
	}
}

// broadcast рассылает событие во все каналы анонсов. Ошибка доставки в один
// канал логируется и не мешает остальным; реестр отправленных при этом уже
// помечен — повторной рассылки во все каналы не будет.
func (s *Service) broadcast(ctx context.Context, c domain.Contest, phase domain.ContestPhase) error {
	channels, err := s.targets.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("каналы анонсов: %w", err)
	}
	if len(channels) == 0 {
		return nil
	}

	details, _ := s.details.Details(ctx, c.URL)
	ev := domain.ContestEvent{Contest: c, Phase: phase, Details: details}
	metrics.ContestEventsTotal.WithLabelValues(string(phase)).Inc()

	for _, chatID := range channels {
		if err := s.notify.NotifyContest(ctx, chatID, ev); err != nil {
			metrics.DeliveryErrorsTotal.Inc()
			s.log.Error().Err(err).Int64("chat", chatID).Str("contest", c.URL).
				Msg("contest: не удалось доставить анонс")
		}
	}
	return nil
}

func roundMinutes(d time.Duration) int {
	return int(math.Round(d.Minutes()))
}
