package watch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"atcoder-watch-bot/internal/domain"
)

type stubWatchRepo struct {
	watches    []domain.Watch
	watermarks map[string]int64
	failUpdate bool
}

func newStubWatchRepo(watches ...domain.Watch) *stubWatchRepo {
	return &stubWatchRepo{watches: watches, watermarks: make(map[string]int64)}
}

func (s *stubWatchRepo) key(chatID int64, handle string) string {
	return fmt.Sprintf("%d:%s", chatID, handle)
}

func (s *stubWatchRepo) Add(ctx context.Context, w domain.Watch) (domain.Watch, error) {
	return w, nil
}
func (s *stubWatchRepo) Remove(ctx context.Context, chatID int64, handle string) error { return nil }
func (s *stubWatchRepo) List(ctx context.Context) ([]domain.Watch, error) {
	out := make([]domain.Watch, len(s.watches))
	copy(out, s.watches)
	for i := range out {
		if wm, ok := s.watermarks[s.key(out[i].ChatID, out[i].Handle)]; ok {
			out[i].Watermark = wm
		}
	}
	return out, nil
}
func (s *stubWatchRepo) ListByChat(ctx context.Context, chatID int64) ([]domain.Watch, error) {
	return s.List(ctx)
}
func (s *stubWatchRepo) UpdateWatermark(ctx context.Context, chatID int64, handle string, watermark int64) error {
	if s.failUpdate {
		return errors.New("db down")
	}
	k := s.key(chatID, handle)
	if watermark > s.watermarks[k] {
		s.watermarks[k] = watermark
	}
	return nil
}

type stubFeed struct {
	byHandle map[string][]domain.Submission
	errs     map[string]error
}

func (f *stubFeed) RecentSubmissions(ctx context.Context, handle string, since time.Time) ([]domain.Submission, error) {
	if err := f.errs[handle]; err != nil {
		return nil, err
	}
	// Порядок нарочно не гарантируется: сортировать обязан поллер.
	return append([]domain.Submission(nil), f.byHandle[handle]...), nil
}

func (f *stubFeed) LatestSubmissionID(ctx context.Context, handle string) (int64, error) {
	subs := f.byHandle[handle]
	var max int64
	for _, sub := range subs {
		if sub.ID > max {
			max = sub.ID
		}
	}
	return max, nil
}

type stubNotifier struct {
	submissions []domain.SubmissionEvent
	texts       []string
	failAll     bool
}

func (n *stubNotifier) NotifySubmission(ctx context.Context, ev domain.SubmissionEvent) error {
	if n.failAll {
		return errors.New("delivery failed")
	}
	n.submissions = append(n.submissions, ev)
	return nil
}
func (n *stubNotifier) NotifyContest(ctx context.Context, chatID int64, ev domain.ContestEvent) error {
	return nil
}
func (n *stubNotifier) NotifyText(ctx context.Context, chatID int64, text string) error {
	if n.failAll {
		return errors.New("delivery failed")
	}
	n.texts = append(n.texts, text)
	return nil
}

func sub(id int64, verdict domain.Verdict) domain.Submission {
	return domain.Submission{ID: id, ProblemID: "abc420_a", ContestID: "abc420", Verdict: verdict}
}

func newTestService(repo *stubWatchRepo, feed *stubFeed, notifier *stubNotifier) *Service {
	return NewService(repo, feed, notifier, 10*time.Minute, zerolog.Nop())
}

func TestPollOneAscendingOrder(t *testing.T) {
	w := domain.Watch{ChatID: 1, Handle: "abc", Watermark: 2}
	feed := &stubFeed{byHandle: map[string][]domain.Submission{
		"abc": {sub(5, domain.VerdictAccepted), sub(3, domain.VerdictAccepted), sub(8, domain.VerdictAccepted)},
	}}
	svc := newTestService(newStubWatchRepo(w), feed, &stubNotifier{})

	events, watermark, err := svc.PollOne(context.Background(), w)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("ожидали 3 события, получили %d", len(events))
	}
	for i, want := range []int64{3, 5, 8} {
		if events[i].Submission.ID != want {
			t.Fatalf("ожидали id %d на позиции %d, получили %d", want, i, events[i].Submission.ID)
		}
	}
	if watermark != 8 {
		t.Fatalf("ожидали watermark 8, получили %d", watermark)
	}
}

func TestPollOneFilterAdvancesWatermark(t *testing.T) {
	w := domain.Watch{ChatID: 1, Handle: "abc", OnlyAccepted: true, Watermark: 0}
	feed := &stubFeed{byHandle: map[string][]domain.Submission{
		"abc": {sub(1, domain.VerdictWrongAnswer), sub(2, domain.VerdictAccepted), sub(3, domain.VerdictTimeLimitExceeded)},
	}}
	svc := newTestService(newStubWatchRepo(w), feed, &stubNotifier{})

	events, watermark, err := svc.PollOne(context.Background(), w)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(events) != 1 || events[0].Submission.ID != 2 {
		t.Fatalf("ожидали одно событие для AC id=2, получили %v", events)
	}
	if watermark != 3 {
		t.Fatalf("отфильтрованные посылки тоже должны двигать watermark: ожидали 3, получили %d", watermark)
	}
}

func TestPollOneFeedErrorKeepsWatermark(t *testing.T) {
	w := domain.Watch{ChatID: 1, Handle: "abc", Watermark: 42}
	feed := &stubFeed{errs: map[string]error{"abc": errors.New("502")}}
	svc := newTestService(newStubWatchRepo(w), feed, &stubNotifier{})

	_, watermark, err := svc.PollOne(context.Background(), w)
	if err == nil {
		t.Fatal("ожидали ошибку фида")
	}
	if watermark != 42 {
		t.Fatalf("watermark не должен меняться при ошибке фида, получили %d", watermark)
	}
}

func TestPollAllIdempotent(t *testing.T) {
	w := domain.Watch{ChatID: 1, Handle: "abc", OnlyAccepted: true}
	repo := newStubWatchRepo(w)
	feed := &stubFeed{byHandle: map[string][]domain.Submission{
		"abc": {sub(100, domain.VerdictAccepted)},
	}}
	notifier := &stubNotifier{}
	svc := newTestService(repo, feed, notifier)

	svc.PollAll(context.Background())
	if len(notifier.submissions) != 1 {
		t.Fatalf("ожидали 1 событие после первого цикла, получили %d", len(notifier.submissions))
	}

	// Фид не изменился: повторный цикл не должен эмитить ничего.
	svc.PollAll(context.Background())
	if len(notifier.submissions) != 1 {
		t.Fatalf("повторный цикл сэмитил дубликат: %d событий", len(notifier.submissions))
	}
}

func TestPollAllNoDuplicatesOnGrowingFeed(t *testing.T) {
	w := domain.Watch{ChatID: 1, Handle: "abc"}
	repo := newStubWatchRepo(w)
	feed := &stubFeed{byHandle: map[string][]domain.Submission{
		"abc": {sub(1, domain.VerdictAccepted)},
	}}
	notifier := &stubNotifier{}
	svc := newTestService(repo, feed, notifier)

	svc.PollAll(context.Background())
	feed.byHandle["abc"] = append(feed.byHandle["abc"], sub(2, domain.VerdictWrongAnswer), sub(3, domain.VerdictAccepted))
	svc.PollAll(context.Background())
	svc.PollAll(context.Background())

	seen := make(map[int64]int)
	for _, ev := range notifier.submissions {
		seen[ev.Submission.ID]++
	}
	for id, count := range seen {
		if count > 1 {
			t.Fatalf("посылка %d доставлена %d раз", id, count)
		}
	}
	if len(notifier.submissions) != 3 {
		t.Fatalf("ожидали 3 уникальных события, получили %d", len(notifier.submissions))
	}
}

func TestPollAllFeedErrorIsolated(t *testing.T) {
	broken := domain.Watch{ChatID: 1, Handle: "broken"}
	healthy := domain.Watch{ChatID: 2, Handle: "healthy"}
	repo := newStubWatchRepo(broken, healthy)
	feed := &stubFeed{
		byHandle: map[string][]domain.Submission{"healthy": {sub(7, domain.VerdictAccepted)}},
		errs:     map[string]error{"broken": errors.New("timeout")},
	}
	notifier := &stubNotifier{}
	svc := newTestService(repo, feed, notifier)

	svc.PollAll(context.Background())
	if len(notifier.submissions) != 1 || notifier.submissions[0].Watch.Handle != "healthy" {
		t.Fatalf("ошибка одной подписки не должна мешать остальным: %v", notifier.submissions)
	}
}

func TestPollAllDeliveryErrorStillAdvancesWatermark(t *testing.T) {
	w := domain.Watch{ChatID: 1, Handle: "abc"}
	repo := newStubWatchRepo(w)
	feed := &stubFeed{byHandle: map[string][]domain.Submission{
		"abc": {sub(5, domain.VerdictAccepted)},
	}}
	notifier := &stubNotifier{failAll: true}
	svc := newTestService(repo, feed, notifier)

	svc.PollAll(context.Background())
	if wm := repo.watermarks[repo.key(1, "abc")]; wm != 5 {
		t.Fatalf("watermark должен продвинуться несмотря на ошибку доставки, получили %d", wm)
	}
}

func TestPollAllWatermarkPersistFailureRetries(t *testing.T) {
	w := domain.Watch{ChatID: 1, Handle: "abc"}
	repo := newStubWatchRepo(w)
	repo.failUpdate = true
	feed := &stubFeed{byHandle: map[string][]domain.Submission{
		"abc": {sub(9, domain.VerdictAccepted)},
	}}
	notifier := &stubNotifier{}
	svc := newTestService(repo, feed, notifier)

	svc.PollAll(context.Background())
	// Сохранение провалилось: следующий цикл видит старый watermark и
	// повторяет доставку (at-least-once).
	svc.PollAll(context.Background())
	if len(notifier.submissions) != 2 {
		t.Fatalf("ожидали повторную доставку при несохранённом watermark, получили %d", len(notifier.submissions))
	}
}

func TestDailyNudgeListsIdleHandles(t *testing.T) {
	active := domain.Watch{ChatID: 1, TargetChatID: 10, Handle: "active"}
	idle := domain.Watch{ChatID: 1, TargetChatID: 10, Handle: "lazy"}
	repo := newStubWatchRepo(active, idle)
	feed := &stubFeed{byHandle: map[string][]domain.Submission{
		"active": {sub(1, domain.VerdictAccepted)},
		"lazy":   {sub(2, domain.VerdictWrongAnswer)},
	}}
	notifier := &stubNotifier{}
	svc := newTestService(repo, feed, notifier)

	svc.DailyNudge(context.Background())
	if len(notifier.texts) != 1 {
		t.Fatalf("ожидали одно напоминание, получили %d", len(notifier.texts))
	}
	text := notifier.texts[0]
	if !strings.Contains(text, "lazy") {
		t.Fatalf("ожидали lazy в напоминании: %q", text)
	}
	if strings.Contains(text, "active") {
		t.Fatalf("active не должен попасть в напоминание: %q", text)
	}
}
