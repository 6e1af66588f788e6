package watch

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"atcoder-watch-bot/internal/domain"
)

// DailyNudge раз в день напоминает чатам о хэндлах без единого AC за
// текущие сутки JST. Ошибка фида по одному хэндлу исключает его из
// напоминания, но не срывает рассылку.
func (s *Service) DailyNudge(ctx context.Context) {
	now := s.now().In(domain.JST)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, domain.JST)

	watches, err := s.watches.List(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("watch: не удалось получить подписки для напоминания")
		return
	}

	idle := make(map[int64][]string)
	checked := make(map[string]bool)
	for _, w := range watches {
		hasAC, ok := checked[w.Handle]
		if !ok {
			subs, err := s.feed.RecentSubmissions(ctx, w.Handle, midnight)
			if err != nil {
				s.log.Warn().Err(err).Str("handle", w.Handle).Msg("watch: хэндл пропущен в напоминании")
				continue
			}
			for _, sub := range subs {
				if sub.Verdict == domain.VerdictAccepted {
					hasAC = true
					break
				}
			}
			checked[w.Handle] = hasAC
		}
		if !hasAC {
			idle[w.TargetChatID] = append(idle[w.TargetChatID], w.Handle)
		}
	}

	for chatID, handles := range idle {
		sort.Strings(handles)
		var b strings.Builder
		b.WriteString("⏰ Сегодня ещё без AC:\n")
		for _, handle := range handles {
			fmt.Fprintf(&b, "• %s\n", html.EscapeString(handle))
		}
		b.WriteString("Время решать задачи!")
		if err := s.notifier.NotifyText(ctx, chatID, b.String()); err != nil {
			s.log.Error().Err(err).Int64("chat", chatID).Msg("watch: не удалось отправить напоминание")
		}
	}
}
