package watch

import (
	"fmt"
	"html"
	"strings"

	"atcoder-watch-bot/internal/domain"
)

const atcoderBase = "https://atcoder.jp"

// FormatSubmission формирует HTML-представление события о посылке для
// отправки в Telegram.
func FormatSubmission(ev domain.SubmissionEvent, index domain.ProblemIndex) string {
	sub := ev.Submission

	title := sub.ProblemID
	if index != nil {
		if t, ok := index.Title(sub.ProblemID); ok {
			title = t
		}
	}

	diffLabel := "不明"
	tier := ""
	if index != nil {
		if diff, ok := index.Difficulty(sub.ProblemID); ok {
			diffLabel = fmt.Sprintf("%d", diff)
			tier = DifficultyTier(diff) + " "
		}
	}

	problemURL := fmt.Sprintf("%s/contests/%s/tasks/%s", atcoderBase, sub.ContestID, sub.ProblemID)
	submissionURL := fmt.Sprintf("%s/contests/%s/submissions/%d", atcoderBase, sub.ContestID, sub.ID)

	var b strings.Builder
	fmt.Fprintf(&b, "%s<b><a href=\"%s\">%s</a></b> [%s]\n",
		tier, html.EscapeString(problemURL), html.EscapeString(title), sub.Verdict)
	fmt.Fprintf(&b, "%s — diff: %s | язык: %s | время: %d ms\n",
		html.EscapeString(ev.Watch.Handle), diffLabel, html.EscapeString(sub.Language), sub.ExecutionTimeMS)
	fmt.Fprintf(&b, "Контест: %s | %s\n", html.EscapeString(strings.ToUpper(sub.ContestID)),
		sub.SubmittedAt.In(domain.JST).Format("2006-01-02 15:04:05 JST"))
	fmt.Fprintf(&b, "📄 <a href=\"%s\">посылка</a>", html.EscapeString(submissionURL))
	return b.String()
}

// DifficultyTier возвращает цветовую ступень AtCoder для diff задачи.
func DifficultyTier(diff int) string {
	switch {
	case diff < 400:
		return "⚪"
	case diff < 800:
		return "🟤"
	case diff < 1200:
		return "🟢"
	case diff < 1600:
		return "🔹"
	case diff < 2000:
		return "🔵"
	case diff < 2400:
		return "🟡"
	case diff < 2800:
		return "🟠"
	default:
		return "🔴"
	}
}
