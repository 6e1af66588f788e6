package telegram

import (
	"strings"
	"unicode/utf8"
)

const telegramMessageLimit = 4096

// SplitMessage нарезает текст под лимит Telegram на сообщение. Режем по
// границам строк: Sender шлёт части с ParseMode HTML, а разметка в
// уведомлениях не пересекает перевод строки, так что разрез по "\n" не
// рвёт теги. Строка длиннее лимита режется жёстко по рунам.
func SplitMessage(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if utf8.RuneCountInString(trimmed) <= telegramMessageLimit {
		return []string{trimmed}
	}

	var parts []string
	var current []rune
	flush := func() {
		chunk := strings.Trim(string(current), "\n")
		if chunk != "" {
			parts = append(parts, chunk)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(trimmed, "\n") {
		runes := []rune(line)
		for len(runes) > telegramMessageLimit {
			flush()
			parts = append(parts, string(runes[:telegramMessageLimit]))
			runes = runes[telegramMessageLimit:]
		}
		if len(current)+len(runes)+1 > telegramMessageLimit {
			flush()
		}
		if len(current) > 0 {
			current = append(current, '\n')
		}
		current = append(current, runes...)
	}
	flush()

	return parts
}
