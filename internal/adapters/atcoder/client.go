package atcoder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"atcoder-watch-bot/internal/domain"
	"atcoder-watch-bot/internal/infra/metrics"
)

// Client ходит в статистический API kenkoooo за посылками.
type Client struct {
	httpClient *http.Client
	apiBase    string
	seedWindow time.Duration
}

var _ domain.SubmissionFeed = (*Client)(nil)

// NewClient создаёт клиента фида. apiBase — например https://kenkoooo.com/atcoder.
func NewClient(apiBase string, timeout, seedWindow time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiBase:    apiBase,
		seedWindow: seedWindow,
	}
}

type feedSubmission struct {
	ID            int64   `json:"id"`
	EpochSecond   int64   `json:"epoch_second"`
	ProblemID     string  `json:"problem_id"`
	ContestID     string  `json:"contest_id"`
	UserID        string  `json:"user_id"`
	Language      string  `json:"language"`
	Point         float64 `json:"point"`
	Result        string  `json:"result"`
	ExecutionTime *int    `json:"execution_time"`
}

// RecentSubmissions реализует domain.SubmissionFeed. Ответ фида не отсортирован,
// посылки возвращаются по возрастанию id.
func (c *Client) RecentSubmissions(ctx context.Context, handle string, since time.Time) ([]domain.Submission, error) {
	endpoint := fmt.Sprintf("%s/atcoder-api/v3/user/submissions?user=%s&from_second=%d",
		c.apiBase, url.QueryEscape(handle), since.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveNetworkRequest("atcoder_api", "user_submissions", handle, start, err)
	if err != nil {
		return nil, fmt.Errorf("запрос фида: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("фид ответил статусом %d", resp.StatusCode)
	}

	var raw []feedSubmission
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("разбор ответа фида: %w", err)
	}

	subs := make([]domain.Submission, 0, len(raw))
	for _, r := range raw {
		sub := domain.Submission{
			ID:          r.ID,
			ProblemID:   r.ProblemID,
			ContestID:   r.ContestID,
			Verdict:     domain.ParseVerdict(r.Result),
			Language:    r.Language,
			Point:       r.Point,
			SubmittedAt: time.Unix(r.EpochSecond, 0),
		}
		if r.ExecutionTime != nil {
			sub.ExecutionTimeMS = *r.ExecutionTime
		}
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

// LatestSubmissionID возвращает наибольший id посылки хэндла в пределах окна
// засева. Используется один раз — при регистрации подписки.
func (c *Client) LatestSubmissionID(ctx context.Context, handle string) (int64, error) {
	subs, err := c.RecentSubmissions(ctx, handle, time.Now().Add(-c.seedWindow))
	if err != nil {
		return 0, err
	}
	if len(subs) == 0 {
		return 0, nil
	}
	return subs[len(subs)-1].ID, nil
}
