package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"atcoder-watch-bot/internal/domain"
	"atcoder-watch-bot/internal/infra/metrics"
	"atcoder-watch-bot/internal/usecase/contest"
	"atcoder-watch-bot/internal/usecase/watch"
)

// QueueNotifier рендерит события в готовый HTML и кладёт их в очередь
// уведомлений. Доставкой занимается гейтвей на другом конце очереди.
type QueueNotifier struct {
	queue domain.NotificationQueue
	index domain.ProblemIndex
}

var _ domain.Notifier = (*QueueNotifier)(nil)

// NewQueueNotifier создаёт нотификатор поверх очереди.
func NewQueueNotifier(queue domain.NotificationQueue, index domain.ProblemIndex) *QueueNotifier {
	return &QueueNotifier{queue: queue, index: index}
}

// NotifySubmission реализует domain.Notifier.
func (n *QueueNotifier) NotifySubmission(ctx context.Context, ev domain.SubmissionEvent) error {
	return n.enqueue(ctx, ev.Watch.TargetChatID, watch.FormatSubmission(ev, n.index))
}

// NotifyContest реализует domain.Notifier.
func (n *QueueNotifier) NotifyContest(ctx context.Context, chatID int64, ev domain.ContestEvent) error {
	return n.enqueue(ctx, chatID, contest.FormatContest(ev))
}

// NotifyText реализует domain.Notifier.
func (n *QueueNotifier) NotifyText(ctx context.Context, chatID int64, text string) error {
	return n.enqueue(ctx, chatID, text)
}

func (n *QueueNotifier) enqueue(ctx context.Context, chatID int64, text string) error {
	notification := domain.Notification{
		ID:     uuid.NewString(),
		ChatID: chatID,
		Text:   text,
	}
	if err := n.queue.Enqueue(ctx, notification); err != nil {
		return fmt.Errorf("очередь уведомлений: %w", err)
	}
	metrics.NotificationsEnqueuedTotal.Inc()
	return nil
}
