package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"atcoder-watch-bot/internal/adapters/telegram"
	"atcoder-watch-bot/internal/domain"
	"atcoder-watch-bot/internal/infra/metrics"
	"atcoder-watch-bot/internal/usecase/subscribe"
)

// Handler обслуживает входящие апдейты бота.
type Handler struct {
	bot         *tgbotapi.BotAPI
	log         zerolog.Logger
	subscribeUC *subscribe.Service
}

// NewHandler создаёт обработчик.
func NewHandler(bot *tgbotapi.BotAPI, log zerolog.Logger, subscribeUC *subscribe.Service) *Handler {
	return &Handler{bot: bot, log: log, subscribeUC: subscribeUC}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	cmd, args := ParseCommand(msg.Text)
	switch cmd {
	case "/start":
		h.reply(msg.Chat.ID, h.buildStartMessage(), h.mainKeyboard())
	case "/help":
		h.reply(msg.Chat.ID, h.buildHelpMessage(), h.mainKeyboard())
	case "/watch":
		h.handleWatch(ctx, msg, args)
	case "/unwatch":
		h.handleUnwatch(ctx, msg.Chat.ID, args)
	case "/watching":
		h.handleWatching(ctx, msg.Chat.ID)
	case "/announce_here":
		h.handleAnnounceHere(ctx, msg.Chat.ID)
	case "/announce_off":
		h.handleAnnounceOff(ctx, msg.Chat.ID)
	case "":
		// Не команда: в группах молчим, в личке подсказываем.
		if msg.Chat.IsPrivate() {
			h.reply(msg.Chat.ID, "Не понимаю. Используйте /help", nil)
		}
	default:
		h.reply(msg.Chat.ID, "Неизвестная команда. Используйте /help", nil)
	}
}

func (h *Handler) handleWatch(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) == 0 {
		h.reply(msg.Chat.ID, "Отправьте /watch handle — только AC, или /watch handle all — все вердикты", nil)
		return
	}
	onlyAccepted := true
	if len(args) > 1 && strings.EqualFold(args[1], "all") {
		onlyAccepted = false
	}
	var ownerID int64
	if msg.From != nil {
		ownerID = msg.From.ID
	}
	w, err := h.subscribeUC.Watch(ctx, msg.Chat.ID, msg.Chat.ID, ownerID, args[0], onlyAccepted)
	if err != nil {
		switch {
		case errors.Is(err, subscribe.ErrHandleInvalid):
			h.reply(msg.Chat.ID, "Некорректный хэндл. Пример: /watch tourist", nil)
		case errors.Is(err, domain.ErrAlreadyWatched):
			h.reply(msg.Chat.ID, "Этот хэндл уже отслеживается в чате", nil)
		default:
			h.log.Error().Err(err).Str("handle", args[0]).Msg("не удалось сохранить подписку")
			h.reply(msg.Chat.ID, "Не удалось сохранить подписку, попробуйте позже", nil)
		}
		return
	}
	mode := "только AC"
	if !w.OnlyAccepted {
		mode = "все вердикты"
	}
	h.reply(msg.Chat.ID, fmt.Sprintf("Слежу за %s (%s)", w.Handle, mode), nil)
}

func (h *Handler) handleUnwatch(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		h.reply(chatID, "Отправьте /unwatch handle", nil)
		return
	}
	if err := h.subscribeUC.Unwatch(ctx, chatID, args[0]); err != nil {
		switch {
		case errors.Is(err, subscribe.ErrHandleInvalid):
			h.reply(chatID, "Некорректный хэндл", nil)
		case errors.Is(err, domain.ErrNotWatched):
			h.reply(chatID, "Этот хэндл и так не отслеживается", nil)
		default:
			h.log.Error().Err(err).Str("handle", args[0]).Msg("не удалось удалить подписку")
			h.reply(chatID, "Не удалось удалить подписку, попробуйте позже", nil)
		}
		return
	}
	h.reply(chatID, fmt.Sprintf("Больше не слежу за %s", strings.TrimPrefix(args[0], "@")), nil)
}

func (h *Handler) handleWatching(ctx context.Context, chatID int64) {
	watches, err := h.subscribeUC.List(ctx, chatID)
	if err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось получить подписки чата")
		h.reply(chatID, "Не удалось получить список, попробуйте позже", nil)
		return
	}
	if len(watches) == 0 {
		h.reply(chatID, "В чате пока нет подписок. Добавьте: /watch handle", nil)
		return
	}
	var b strings.Builder
	b.WriteString("Отслеживаемые хэндлы:\n")
	for i, w := range watches {
		mode := "AC"
		if !w.OnlyAccepted {
			mode = "все"
		}
		b.WriteString(fmt.Sprintf("%d. %s — %s\n", i+1, w.Handle, mode))
	}
	h.reply(chatID, b.String(), nil)
}

func (h *Handler) handleAnnounceHere(ctx context.Context, chatID int64) {
	if err := h.subscribeUC.AnnounceHere(ctx, chatID, chatID); err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось включить анонсы")
		h.reply(chatID, "Не удалось включить анонсы, попробуйте позже", nil)
		return
	}
	h.reply(chatID, "Анонсы контестов AtCoder включены в этом чате", nil)
}

func (h *Handler) handleAnnounceOff(ctx context.Context, chatID int64) {
	if err := h.subscribeUC.AnnounceOff(ctx, chatID); err != nil {
		if errors.Is(err, domain.ErrNoAnnouncementChannel) {
			h.reply(chatID, "Анонсы в этом чате и так выключены", nil)
			return
		}
		h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось выключить анонсы")
		h.reply(chatID, "Не удалось выключить анонсы, попробуйте позже", nil)
		return
	}
	h.reply(chatID, "Анонсы контестов выключены", nil)
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Кнопка из сообщения старше 48 часов приходит без Message: ответить
	// некуда, но сам callback всё равно надо подтвердить.
	if cb.Message == nil {
		h.answerCallback(cb)
		return
	}
	switch cb.Data {
	case "watch_hint":
		h.reply(cb.Message.Chat.ID, "Отправьте /watch handle — только AC, или /watch handle all", nil)
	case "watching_list":
		h.handleWatching(ctx, cb.Message.Chat.ID)
	case "announce_here":
		h.handleAnnounceHere(ctx, cb.Message.Chat.ID)
	case "help_menu":
		h.reply(cb.Message.Chat.ID, h.buildHelpMessage(), h.mainKeyboard())
	}
	h.answerCallback(cb)
}

func (h *Handler) answerCallback(cb *tgbotapi.CallbackQuery) {
	start := time.Now()
	_, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, ""))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", strconv.FormatInt(cb.From.ID, 10), start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось ответить на callback")
	}
}

// ParseCommand выделяет команду и аргументы из текста сообщения. Суффикс
// @botname после команды отрезается, не-команда даёт пустую строку.
func ParseCommand(text string) (string, []string) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	cmd := strings.ToLower(fields[0])
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	return cmd, fields[1:]
}

func (h *Handler) reply(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	parts := telegram.SplitMessage(text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == 0 && keyboard != nil {
			msg.ReplyMarkup = keyboard
		}
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			h.log.Error().Err(err).Msg("не удалось отправить сообщение")
			return
		}
	}
}

func (h *Handler) mainKeyboard() *tgbotapi.InlineKeyboardMarkup {
	buttons := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👀 Следить за хэндлом", "watch_hint"),
			tgbotapi.NewInlineKeyboardButtonData("📋 Кого слежу", "watching_list"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📣 Анонсы сюда", "announce_here"),
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ Помощь", "help_menu"),
		),
	)
	return &buttons
}

func (h *Handler) buildStartMessage() string {
	lines := []string{
		"👋 Бот следит за посылками и контестами AtCoder.",
		"",
		"Как пользоваться:",
		"1. 👀 /watch tourist — уведомления о новых AC хэндла.",
		"   /watch tourist all — включая неудачные вердикты.",
		"2. 📣 /announce_here — анонсы контестов за сутки, за 30 минут, на старте и на финише.",
		"3. 📋 /watching — список подписок чата.",
		"",
		"Полный список команд — под кнопкой \"ℹ️ Помощь\".",
	}
	return strings.Join(lines, "\n")
}

func (h *Handler) buildHelpMessage() string {
	sections := []string{
		"📖 Команды:",
		"",
		"Подписки на посылки:",
		"• /watch tourist — уведомлять о новых AC.",
		"• /watch tourist all — уведомлять обо всех вердиктах.",
		"• /unwatch tourist — снять подписку.",
		"• /watching — подписки этого чата.",
		"",
		"Анонсы контестов:",
		"• /announce_here — включить анонсы в этом чате.",
		"• /announce_off — выключить анонсы.",
	}
	return strings.Join(sections, "\n")
}
