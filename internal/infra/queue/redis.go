package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"atcoder-watch-bot/internal/domain"
)

// RedisNotifyQueue реализует очередь уведомлений на базе Redis lists.
// Продюсер — watcher, консьюмер — бот-гейтвей.
type RedisNotifyQueue struct {
	client *redis.Client
	key    string
}

var _ domain.NotificationQueue = (*RedisNotifyQueue)(nil)

// NewRedisNotifyQueue создаёт очередь по указанному ключу.
func NewRedisNotifyQueue(client *redis.Client, key string) *RedisNotifyQueue {
	return &RedisNotifyQueue{client: client, key: key}
}

// Enqueue публикует уведомление в очередь.
func (q *RedisNotifyQueue) Enqueue(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	return nil
}

// Pop блокирующе читает уведомление из очереди.
func (q *RedisNotifyQueue) Pop(ctx context.Context) (domain.Notification, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.Notification{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.Notification{}, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.Notification{}, err
		}
		if len(res) != 2 {
			return domain.Notification{}, errors.New("redis queue: unexpected response")
		}
		var n domain.Notification
		if err := json.Unmarshal([]byte(res[1]), &n); err != nil {
			return domain.Notification{}, fmt.Errorf("decode notification: %w", err)
		}
		return n, nil
	}
}
