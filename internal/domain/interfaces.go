package domain

import (
	"context"
	"time"
)

// WatchRepo управляет подписками на посылки.
type WatchRepo interface {
	Add(ctx context.Context, w Watch) (Watch, error)
	Remove(ctx context.Context, chatID int64, handle string) error
	List(ctx context.Context) ([]Watch, error)
	ListByChat(ctx context.Context, chatID int64) ([]Watch, error)
	// UpdateWatermark поднимает watermark подписки. Уменьшение — no-op.
	UpdateWatermark(ctx context.Context, chatID int64, handle string, watermark int64) error
}

// AnnouncementRepo управляет каналами анонсов контестов.
type AnnouncementRepo interface {
	SetChannel(ctx context.Context, chatID, targetChatID int64) error
	ClearChannel(ctx context.Context, chatID int64) error
	ListChannels(ctx context.Context) ([]int64, error)
}

// SubmissionFeed выгружает недавние посылки хэндла из статистического API.
type SubmissionFeed interface {
	RecentSubmissions(ctx context.Context, handle string, since time.Time) ([]Submission, error)
	// LatestSubmissionID возвращает наибольший известный id посылки хэндла
	// в пределах окна засева. 0 — посылок не видно.
	LatestSubmissionID(ctx context.Context, handle string) (int64, error)
}

// ProblemIndex отдаёт метаданные задач. Загружается один раз на старте,
// отсутствие данных везде терпимо.
type ProblemIndex interface {
	Title(problemID string) (string, bool)
	Difficulty(problemID string) (int, bool)
}

// ContestSource отдаёт таблицу предстоящих и идущих контестов.
type ContestSource interface {
	UpcomingContests(ctx context.Context, now time.Time) ([]Contest, error)
}

// ContestDetailsSource отдаёт best-effort обогащение анонса по URL контеста.
type ContestDetailsSource interface {
	Details(ctx context.Context, contestURL string) (ContestDetails, bool)
}

// Notifier доставляет события. Ошибка доставки одного события не должна
// мешать остальным в той же пачке.
type Notifier interface {
	NotifySubmission(ctx context.Context, ev SubmissionEvent) error
	NotifyContest(ctx context.Context, chatID int64, ev ContestEvent) error
	NotifyText(ctx context.Context, chatID int64, text string) error
}

// NotificationQueue — очередь готовых сообщений между watcher и гейтвеем.
type NotificationQueue interface {
	Enqueue(ctx context.Context, n Notification) error
	Pop(ctx context.Context) (Notification, error)
}

// Cache используется для простых TTL-хранилищ и одноразовых ключей.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
