package atcoder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"atcoder-watch-bot/internal/domain"
	"atcoder-watch-bot/internal/infra/metrics"
)

// Problems отдаёт названия и сложность задач из ресурсов kenkoooo.
// Загружается один раз на старте; частичная или нулевая загрузка терпима —
// уведомления просто обходятся без названий и diff.
type Problems struct {
	httpClient *http.Client
	apiBase    string
	log        zerolog.Logger

	mu     sync.RWMutex
	titles map[string]string
	diffs  map[string]int
}

var _ domain.ProblemIndex = (*Problems)(nil)

// NewProblems создаёт пустой индекс задач.
func NewProblems(apiBase string, timeout time.Duration, logger zerolog.Logger) *Problems {
	return &Problems{
		httpClient: &http.Client{Timeout: timeout},
		apiBase:    apiBase,
		log:        logger,
		titles:     make(map[string]string),
		diffs:      make(map[string]int),
	}
}

// Load подтягивает problems.json и problem-models.json. Ошибка одной части
// не мешает другой.
func (p *Problems) Load(ctx context.Context) {
	if err := p.loadTitles(ctx); err != nil {
		p.log.Warn().Err(err).Msg("atcoder: не удалось загрузить названия задач")
	}
	if err := p.loadDifficulties(ctx); err != nil {
		p.log.Warn().Err(err).Msg("atcoder: не удалось загрузить сложность задач")
	}
}

func (p *Problems) loadTitles(ctx context.Context) error {
	var rows []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	if err := p.fetchJSON(ctx, "/resources/problems.json", "problems", &rows); err != nil {
		return err
	}
	titles := make(map[string]string, len(rows))
	for _, row := range rows {
		titles[row.ID] = row.Title
	}
	p.mu.Lock()
	p.titles = titles
	p.mu.Unlock()
	return nil
}

func (p *Problems) loadDifficulties(ctx context.Context) error {
	var models map[string]struct {
		Difficulty *float64 `json:"difficulty"`
	}
	if err := p.fetchJSON(ctx, "/resources/problem-models.json", "problem-models", &models); err != nil {
		return err
	}
	diffs := make(map[string]int, len(models))
	for id, model := range models {
		if model.Difficulty != nil {
			diffs[id] = int(*model.Difficulty)
		}
	}
	p.mu.Lock()
	p.diffs = diffs
	p.mu.Unlock()
	return nil
}

func (p *Problems) fetchJSON(ctx context.Context, path, operation string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	start := time.Now()
	resp, err := p.httpClient.Do(req)
	metrics.ObserveNetworkRequest("atcoder_api", operation, path, start, err)
	if err != nil {
		return fmt.Errorf("запрос %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s ответил статусом %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<20)).Decode(out); err != nil {
		return fmt.Errorf("разбор %s: %w", path, err)
	}
	return nil
}

// Title реализует domain.ProblemIndex.
func (p *Problems) Title(problemID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	title, ok := p.titles[problemID]
	return title, ok
}

// Difficulty реализует domain.ProblemIndex.
func (p *Problems) Difficulty(problemID string) (int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	diff, ok := p.diffs[problemID]
	return diff, ok
}
