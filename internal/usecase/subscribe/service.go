package subscribe

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"atcoder-watch-bot/internal/domain"
)

// ErrHandleInvalid возвращается на хэндл, не похожий на логин AtCoder.
var ErrHandleInvalid = errors.New("некорректный хэндл AtCoder")

var handleRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,16}$`)

// Service обслуживает команды подписки.
type Service struct {
	watches domain.WatchRepo
	targets domain.AnnouncementRepo
	feed    domain.SubmissionFeed
	log     zerolog.Logger
}

// NewService создаёт сервис подписок.
func NewService(watches domain.WatchRepo, targets domain.AnnouncementRepo, feed domain.SubmissionFeed, logger zerolog.Logger) *Service {
	return &Service{watches: watches, targets: targets, feed: feed, log: logger}
}

// ParseHandle приводит ввод пользователя к каноничному хэндлу.
func ParseHandle(input string) (string, error) {
	trim := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), "@"))
	if !handleRegex.MatchString(trim) {
		return "", ErrHandleInvalid
	}
	return trim, nil
}

// Watch регистрирует подписку (чат, хэндл). Watermark засевается текущим
// максимальным id посылки хэндла — исторические посылки молча не
// уведомляются. Если фид недоступен в момент регистрации, watermark
// остаётся 0 и окно опроса ограничивает догоняющий всплеск.
func (s *Service) Watch(ctx context.Context, chatID, targetChatID, ownerTGID int64, rawHandle string, onlyAccepted bool) (domain.Watch, error) {
	handle, err := ParseHandle(rawHandle)
	if err != nil {
		return domain.Watch{}, err
	}

	watermark, err := s.feed.LatestSubmissionID(ctx, handle)
	if err != nil {
		s.log.Warn().Err(err).Str("handle", handle).Msg("subscribe: засев watermark не удался, стартуем с 0")
		watermark = 0
	}

	w := domain.Watch{
		ChatID:       chatID,
		Handle:       handle,
		TargetChatID: targetChatID,
		OwnerTGID:    ownerTGID,
		OnlyAccepted: onlyAccepted,
		Watermark:    watermark,
	}
	added, err := s.watches.Add(ctx, w)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyWatched) {
			return domain.Watch{}, err
		}
		return domain.Watch{}, fmt.Errorf("сохранение подписки: %w", err)
	}
	return added, nil
}

// Unwatch снимает подписку.
func (s *Service) Unwatch(ctx context.Context, chatID int64, rawHandle string) error {
	handle, err := ParseHandle(rawHandle)
	if err != nil {
		return err
	}
	if err := s.watches.Remove(ctx, chatID, handle); err != nil {
		if errors.Is(err, domain.ErrNotWatched) {
			return err
		}
		return fmt.Errorf("удаление подписки: %w", err)
	}
	return nil
}

// List возвращает подписки чата.
func (s *Service) List(ctx context.Context, chatID int64) ([]domain.Watch, error) {
	watches, err := s.watches.ListByChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("подписки чата: %w", err)
	}
	return watches, nil
}

// AnnounceHere включает анонсы контестов в чате.
func (s *Service) AnnounceHere(ctx context.Context, chatID, targetChatID int64) error {
	if err := s.targets.SetChannel(ctx, chatID, targetChatID); err != nil {
		return fmt.Errorf("включение анонсов: %w", err)
	}
	return nil
}

// AnnounceOff выключает анонсы контестов в чате.
func (s *Service) AnnounceOff(ctx context.Context, chatID int64) error {
	if err := s.targets.ClearChannel(ctx, chatID); err != nil {
		if errors.Is(err, domain.ErrNoAnnouncementChannel) {
			return err
		}
		return fmt.Errorf("выключение анонсов: %w", err)
	}
	return nil
}
