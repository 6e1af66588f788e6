package contest

import (
	"fmt"
	"html"
	"strings"
	"time"

	"atcoder-watch-bot/internal/domain"
)

const placeholder = "?"

// FormatContest формирует HTML-анонс фазы контеста для Telegram.
func FormatContest(ev domain.ContestEvent) string {
	c := ev.Contest

	var header string
	switch ev.Phase {
	case domain.PhaseAnnounced:
		header = "📅 Завтра контест!"
	case domain.PhaseSoon:
		header = "⏳ Контест через 30 минут!"
	case domain.PhaseStarted:
		header = "🚀 Контест начался!"
	case domain.PhaseEnded:
		header = "🏁 Контест завершён!"
	default:
		header = "📣 Контест"
	}

	writer := orPlaceholder(ev.Details.Writer)
	tester := orPlaceholder(ev.Details.Tester)
	points := orPlaceholder(ev.Details.Points)

	var b strings.Builder
	b.WriteString(header + "\n")
	fmt.Fprintf(&b, "<b><a href=\"%s\">%s</a></b>\n", html.EscapeString(c.URL), html.EscapeString(c.Name))
	fmt.Fprintf(&b, "Старт: %s | Длительность: %s\n",
		c.StartAt.In(domain.JST).Format("2006-01-02 15:04 JST"), formatDuration(c.Duration))
	if c.RatedFor != "" {
		fmt.Fprintf(&b, "Rated: %s\n", html.EscapeString(c.RatedFor))
	}
	fmt.Fprintf(&b, "Writer: %s | Tester: %s | Очки: %s",
		html.EscapeString(writer), html.EscapeString(tester), html.EscapeString(points))
	return b.String()
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

func formatDuration(d time.Duration) string {
	total := int(d.Minutes())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
