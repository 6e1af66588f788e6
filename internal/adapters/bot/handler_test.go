package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		input string
		cmd   string
		args  []string
	}{
		{"/watch tourist", "/watch", []string{"tourist"}},
		{"/watch tourist all", "/watch", []string{"tourist", "all"}},
		{"/watch@atcoder_watch_bot tourist", "/watch", []string{"tourist"}},
		{"/WATCHING", "/watching", nil},
		{"  /help  ", "/help", nil},
		{"привет", "", nil},
		{"", "", nil},
	}
	for _, tc := range cases {
		cmd, args := ParseCommand(tc.input)
		if cmd != tc.cmd {
			t.Fatalf("%q: ожидали команду %q, получили %q", tc.input, tc.cmd, cmd)
		}
		if len(args) != len(tc.args) {
			t.Fatalf("%q: ожидали аргументы %v, получили %v", tc.input, tc.args, args)
		}
		for i := range args {
			if args[i] != tc.args[i] {
				t.Fatalf("%q: ожидали аргументы %v, получили %v", tc.input, tc.args, args)
			}
		}
	}
}

func newTestBotAPI(t *testing.T, answered *int32) *tgbotapi.BotAPI {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "answerCallbackQuery") {
			atomic.AddInt32(answered, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"watch_bot"}}`))
	}))
	t.Cleanup(srv.Close)

	api, err := tgbotapi.NewBotAPIWithClient("token", srv.URL+"/bot%s/%s", srv.Client())
	if err != nil {
		t.Fatalf("не удалось создать бота: %v", err)
	}
	return api
}

func TestHandleCallbackWithoutMessage(t *testing.T) {
	var answered int32
	api := newTestBotAPI(t, &answered)
	h := NewHandler(api, zerolog.Nop(), nil)

	// Telegram не прикладывает Message к кнопкам из сообщений старше 48 часов.
	upd := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "stale",
		From: &tgbotapi.User{ID: 7},
		Data: "watching_list",
	}}
	h.HandleUpdate(context.Background(), upd)

	if got := atomic.LoadInt32(&answered); got != 1 {
		t.Fatalf("устаревший callback должен быть подтверждён ровно один раз, получили %d", got)
	}
}
