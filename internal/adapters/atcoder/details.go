package atcoder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"atcoder-watch-bot/internal/domain"
	"atcoder-watch-bot/internal/infra/metrics"
)

// Announcements отдаёт best-effort обогащение анонсов: отдельно ведущийся
// JSON-индекс contestURL -> {writer, tester, points}. Недоступность индекса
// или отсутствие записи никогда не валит тик — отдаётся пустое обогащение.
type Announcements struct {
	httpClient *http.Client
	indexURL   string
	refresh    time.Duration
	log        zerolog.Logger

	mu        sync.RWMutex
	byURL     map[string]domain.ContestDetails
	fetchedAt time.Time
}

var _ domain.ContestDetailsSource = (*Announcements)(nil)

// NewAnnouncements создаёт источник обогащения. Пустой indexURL выключает его.
func NewAnnouncements(indexURL string, timeout, refresh time.Duration, logger zerolog.Logger) *Announcements {
	return &Announcements{
		httpClient: &http.Client{Timeout: timeout},
		indexURL:   indexURL,
		refresh:    refresh,
		log:        logger,
		byURL:      make(map[string]domain.ContestDetails),
	}
}

// Details реализует domain.ContestDetailsSource.
func (a *Announcements) Details(ctx context.Context, contestURL string) (domain.ContestDetails, bool) {
	if a.indexURL == "" {
		return domain.ContestDetails{}, false
	}
	a.refreshIfStale(ctx)
	a.mu.RLock()
	defer a.mu.RUnlock()
	details, ok := a.byURL[strings.TrimRight(contestURL, "/")]
	return details, ok
}

func (a *Announcements) refreshIfStale(ctx context.Context) {
	a.mu.RLock()
	stale := time.Since(a.fetchedAt) >= a.refresh
	a.mu.RUnlock()
	if !stale {
		return
	}
	if err := a.fetch(ctx); err != nil {
		// Старый индекс остаётся рабочим до следующей удачной выгрузки.
		a.log.Warn().Err(err).Msg("atcoder: не удалось обновить индекс анонсов")
		a.mu.Lock()
		a.fetchedAt = time.Now()
		a.mu.Unlock()
	}
}

func (a *Announcements) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.indexURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	start := time.Now()
	resp, err := a.httpClient.Do(req)
	metrics.ObserveNetworkRequest("announce_index", "fetch", "index", start, err)
	if err != nil {
		return fmt.Errorf("запрос индекса анонсов: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("индекс анонсов ответил статусом %d", resp.StatusCode)
	}

	var rows []struct {
		URL    string `json:"url"`
		Writer string `json:"writer"`
		Tester string `json:"tester"`
		Points string `json:"points"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&rows); err != nil {
		return fmt.Errorf("разбор индекса анонсов: %w", err)
	}

	byURL := make(map[string]domain.ContestDetails, len(rows))
	for _, row := range rows {
		if row.URL == "" {
			continue
		}
		byURL[strings.TrimRight(row.URL, "/")] = domain.ContestDetails{
			Writer: row.Writer,
			Tester: row.Tester,
			Points: row.Points,
		}
	}

	a.mu.Lock()
	a.byURL = byURL
	a.fetchedAt = time.Now()
	a.mu.Unlock()
	return nil
}
