package telegram

import (
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"atcoder-watch-bot/internal/domain"
	"atcoder-watch-bot/internal/infra/metrics"
)

// Sender отправляет готовые уведомления в Telegram. Ошибка доставки одного
// сообщения логируется и не трогает остальные.
type Sender struct {
	bot *tgbotapi.BotAPI
	log zerolog.Logger
}

// NewSender создаёт отправителя.
func NewSender(bot *tgbotapi.BotAPI, logger zerolog.Logger) *Sender {
	return &Sender{bot: bot, log: logger}
}

// Send доставляет уведомление, нарезая его под лимит Telegram.
func (s *Sender) Send(n domain.Notification) {
	for _, part := range SplitMessage(n.Text) {
		msg := tgbotapi.NewMessage(n.ChatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		start := time.Now()
		_, err := s.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(n.ChatID, 10), start, err)
		if err != nil {
			metrics.DeliveryErrorsTotal.Inc()
			s.log.Error().Err(err).Str("notification", n.ID).Int64("chat", n.ChatID).
				Msg("telegram: не удалось отправить сообщение")
			return
		}
	}
}
