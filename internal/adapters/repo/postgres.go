package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"atcoder-watch-bot/internal/domain"
	"atcoder-watch-bot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
//
// Схема:
//
//	CREATE TABLE watches (
//	    id BIGSERIAL PRIMARY KEY,
//	    chat_id BIGINT NOT NULL,
//	    handle TEXT NOT NULL,
//	    target_chat_id BIGINT NOT NULL,
//	    owner_tg_id BIGINT NOT NULL,
//	    only_accepted BOOLEAN NOT NULL DEFAULT TRUE,
//	    watermark BIGINT NOT NULL DEFAULT 0,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    UNIQUE (chat_id, handle)
//	);
//
//	CREATE TABLE announcement_channels (
//	    chat_id BIGINT PRIMARY KEY,
//	    target_chat_id BIGINT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.WatchRepo        = (*Postgres)(nil)
	_ domain.AnnouncementRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// Add реализует domain.WatchRepo. Дубликат пары (chat_id, handle) даёт
// domain.ErrAlreadyWatched.
func (p *Postgres) Add(ctx context.Context, w domain.Watch) (domain.Watch, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO watches (chat_id, handle, target_chat_id, owner_tg_id, only_accepted, watermark)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at
`, w.ChatID, w.Handle, w.TargetChatID, w.OwnerTGID, w.OnlyAccepted, w.Watermark).Scan(&w.ID, &w.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "watches_insert", "watches", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Watch{}, domain.ErrAlreadyWatched
		}
		return domain.Watch{}, err
	}
	return w, nil
}

// Remove реализует domain.WatchRepo. Отсутствие подписки даёт domain.ErrNotWatched.
func (p *Postgres) Remove(ctx context.Context, chatID int64, handle string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM watches WHERE chat_id = $1 AND handle = $2`, chatID, handle)
	metrics.ObserveNetworkRequest("postgres", "watches_delete", "watches", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotWatched
	}
	return nil
}

// List реализует domain.WatchRepo.
func (p *Postgres) List(ctx context.Context) ([]domain.Watch, error) {
	return p.listWhere(ctx, `SELECT id, chat_id, handle, target_chat_id, owner_tg_id, only_accepted, watermark, created_at
FROM watches ORDER BY id`)
}

// ListByChat реализует domain.WatchRepo.
func (p *Postgres) ListByChat(ctx context.Context, chatID int64) ([]domain.Watch, error) {
	return p.listWhere(ctx, `SELECT id, chat_id, handle, target_chat_id, owner_tg_id, only_accepted, watermark, created_at
FROM watches WHERE chat_id = $1 ORDER BY id`, chatID)
}

func (p *Postgres) listWhere(ctx context.Context, query string, args ...any) ([]domain.Watch, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "watches_select", "watches", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var watches []domain.Watch
	for rows.Next() {
		var w domain.Watch
		if err := rows.Scan(&w.ID, &w.ChatID, &w.Handle, &w.TargetChatID, &w.OwnerTGID, &w.OnlyAccepted, &w.Watermark, &w.CreatedAt); err != nil {
			return nil, err
		}
		watches = append(watches, w)
	}
	return watches, rows.Err()
}

// UpdateWatermark реализует domain.WatchRepo. GREATEST гарантирует
// монотонность даже при гонке двух циклов опроса.
func (p *Postgres) UpdateWatermark(ctx context.Context, chatID int64, handle string, watermark int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE watches SET watermark = GREATEST(watermark, $3)
WHERE chat_id = $1 AND handle = $2
`, chatID, handle, watermark)
	metrics.ObserveNetworkRequest("postgres", "watches_watermark", "watches", start, err)
	return err
}

// SetChannel реализует domain.AnnouncementRepo: один канал на чат, повтор заменяет.
func (p *Postgres) SetChannel(ctx context.Context, chatID, targetChatID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO announcement_channels (chat_id, target_chat_id)
VALUES ($1, $2)
ON CONFLICT (chat_id) DO UPDATE SET target_chat_id = EXCLUDED.target_chat_id
`, chatID, targetChatID)
	metrics.ObserveNetworkRequest("postgres", "announce_upsert", "announcement_channels", start, err)
	return err
}

// ClearChannel реализует domain.AnnouncementRepo.
func (p *Postgres) ClearChannel(ctx context.Context, chatID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM announcement_channels WHERE chat_id = $1`, chatID)
	metrics.ObserveNetworkRequest("postgres", "announce_delete", "announcement_channels", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoAnnouncementChannel
	}
	return nil
}

// ListChannels реализует domain.AnnouncementRepo.
func (p *Postgres) ListChannels(ctx context.Context) ([]int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT target_chat_id FROM announcement_channels ORDER BY chat_id`)
	metrics.ObserveNetworkRequest("postgres", "announce_select", "announcement_channels", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		channels = append(channels, id)
	}
	return channels, rows.Err()
}

// Migrate создаёт таблицы, если их нет. Вызывается на старте обоих бинарей.
func (p *Postgres) Migrate(ctx context.Context) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS watches (
    id BIGSERIAL PRIMARY KEY,
    chat_id BIGINT NOT NULL,
    handle TEXT NOT NULL,
    target_chat_id BIGINT NOT NULL,
    owner_tg_id BIGINT NOT NULL,
    only_accepted BOOLEAN NOT NULL DEFAULT TRUE,
    watermark BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (chat_id, handle)
);
CREATE TABLE IF NOT EXISTS announcement_channels (
    chat_id BIGINT PRIMARY KEY,
    target_chat_id BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`)
	return err
}
