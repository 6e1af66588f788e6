package subscribe

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"atcoder-watch-bot/internal/domain"
)

type memWatchRepo struct {
	watches map[string]domain.Watch
}

func newMemWatchRepo() *memWatchRepo {
	return &memWatchRepo{watches: make(map[string]domain.Watch)}
}

func key(chatID int64, handle string) string {
	return fmt.Sprintf("%d:%s", chatID, handle)
}

func (r *memWatchRepo) Add(ctx context.Context, w domain.Watch) (domain.Watch, error) {
	k := key(w.ChatID, w.Handle)
	if _, ok := r.watches[k]; ok {
		return domain.Watch{}, domain.ErrAlreadyWatched
	}
	w.ID = int64(len(r.watches) + 1)
	r.watches[k] = w
	return w, nil
}

func (r *memWatchRepo) Remove(ctx context.Context, chatID int64, handle string) error {
	k := key(chatID, handle)
	if _, ok := r.watches[k]; !ok {
		return domain.ErrNotWatched
	}
	delete(r.watches, k)
	return nil
}

func (r *memWatchRepo) List(ctx context.Context) ([]domain.Watch, error) { return nil, nil }
func (r *memWatchRepo) ListByChat(ctx context.Context, chatID int64) ([]domain.Watch, error) {
	var out []domain.Watch
	for _, w := range r.watches {
		if w.ChatID == chatID {
			out = append(out, w)
		}
	}
	return out, nil
}
func (r *memWatchRepo) UpdateWatermark(ctx context.Context, chatID int64, handle string, watermark int64) error {
	return nil
}

type memTargets struct {
	channels map[int64]int64
}

func newMemTargets() *memTargets { return &memTargets{channels: make(map[int64]int64)} }

func (t *memTargets) SetChannel(ctx context.Context, chatID, targetChatID int64) error {
	t.channels[chatID] = targetChatID
	return nil
}
func (t *memTargets) ClearChannel(ctx context.Context, chatID int64) error {
	if _, ok := t.channels[chatID]; !ok {
		return domain.ErrNoAnnouncementChannel
	}
	delete(t.channels, chatID)
	return nil
}
func (t *memTargets) ListChannels(ctx context.Context) ([]int64, error) { return nil, nil }

type seedFeed struct {
	latest int64
	err    error
}

func (f *seedFeed) RecentSubmissions(ctx context.Context, handle string, since time.Time) ([]domain.Submission, error) {
	return nil, nil
}
func (f *seedFeed) LatestSubmissionID(ctx context.Context, handle string) (int64, error) {
	return f.latest, f.err
}

func newTestService(repo *memWatchRepo, targets *memTargets, feed *seedFeed) *Service {
	return NewService(repo, targets, feed, zerolog.Nop())
}

func TestParseHandle(t *testing.T) {
	cases := map[string]string{
		"tourist":     "tourist",
		"@tourist":    "tourist",
		"  chokudai ": "chokudai",
	}
	for input, want := range cases {
		got, err := ParseHandle(input)
		if err != nil {
			t.Fatalf("не ожидали ошибку для %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("ожидали %q, получили %q", want, got)
		}
	}
	for _, bad := range []string{"", "ab", "has space", "too_long_handle_xx", "кириллица"} {
		if _, err := ParseHandle(bad); !errors.Is(err, ErrHandleInvalid) {
			t.Fatalf("ожидали ErrHandleInvalid для %q", bad)
		}
	}
}

func TestWatchSeedsWatermark(t *testing.T) {
	svc := newTestService(newMemWatchRepo(), newMemTargets(), &seedFeed{latest: 500})
	w, err := svc.Watch(context.Background(), 1, 10, 42, "tourist", true)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if w.Watermark != 500 {
		t.Fatalf("ожидали засев watermark=500, получили %d", w.Watermark)
	}
}

func TestWatchSeedFailureFallsBackToZero(t *testing.T) {
	svc := newTestService(newMemWatchRepo(), newMemTargets(), &seedFeed{err: errors.New("502")})
	w, err := svc.Watch(context.Background(), 1, 10, 42, "tourist", true)
	if err != nil {
		t.Fatalf("недоступный фид не должен мешать регистрации: %v", err)
	}
	if w.Watermark != 0 {
		t.Fatalf("ожидали watermark=0, получили %d", w.Watermark)
	}
}

func TestWatchDuplicate(t *testing.T) {
	svc := newTestService(newMemWatchRepo(), newMemTargets(), &seedFeed{})
	if _, err := svc.Watch(context.Background(), 1, 10, 42, "tourist", true); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := svc.Watch(context.Background(), 1, 10, 42, "tourist", false); !errors.Is(err, domain.ErrAlreadyWatched) {
		t.Fatalf("ожидали ErrAlreadyWatched, получили %v", err)
	}
	// Тот же хэндл в другом чате — независимая подписка.
	if _, err := svc.Watch(context.Background(), 2, 20, 42, "tourist", true); err != nil {
		t.Fatalf("хэндл должен регистрироваться в другом чате: %v", err)
	}
}

func TestUnwatchNotFound(t *testing.T) {
	svc := newTestService(newMemWatchRepo(), newMemTargets(), &seedFeed{})
	if err := svc.Unwatch(context.Background(), 1, "tourist"); !errors.Is(err, domain.ErrNotWatched) {
		t.Fatalf("ожидали ErrNotWatched, получили %v", err)
	}
}

func TestAnnounceOnOff(t *testing.T) {
	targets := newMemTargets()
	svc := newTestService(newMemWatchRepo(), targets, &seedFeed{})
	if err := svc.AnnounceHere(context.Background(), 1, 10); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if targets.channels[1] != 10 {
		t.Fatalf("канал анонсов не сохранён")
	}
	if err := svc.AnnounceOff(context.Background(), 1); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := svc.AnnounceOff(context.Background(), 1); !errors.Is(err, domain.ErrNoAnnouncementChannel) {
		t.Fatalf("ожидали ErrNoAnnouncementChannel, получили %v", err)
	}
}
