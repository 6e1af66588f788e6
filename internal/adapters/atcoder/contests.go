package atcoder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"atcoder-watch-bot/internal/domain"
	"atcoder-watch-bot/internal/infra/metrics"
)

// ContestScraper выгружает таблицу контестов со страницы /contests/.
// Разметка парсится регулярными выражениями по строкам таблицы; битая
// строка пропускается и не валит остальные.
type ContestScraper struct {
	httpClient *http.Client
	siteBase   string
	log        zerolog.Logger
}

var _ domain.ContestSource = (*ContestScraper)(nil)

// NewContestScraper создаёт скрейпер. siteBase — например https://atcoder.jp.
func NewContestScraper(siteBase string, timeout time.Duration, logger zerolog.Logger) *ContestScraper {
	return &ContestScraper{
		httpClient: &http.Client{Timeout: timeout},
		siteBase:   siteBase,
		log:        logger,
	}
}

var (
	sectionRe = regexp.MustCompile(`(?s)<div id="contest-table-(?:action|upcoming)">.*?</table>`)
	rowRe     = regexp.MustCompile(`(?s)<tr>.*?</tr>`)
	timeRe    = regexp.MustCompile(`<time[^>]*>([^<]+)</time>`)
	linkRe    = regexp.MustCompile(`<a href="/contests/([a-zA-Z0-9_\-]+)"[^>]*>([^<]+)</a>`)
	cellRe    = regexp.MustCompile(`(?s)<td[^>]*>(.*?)</td>`)
	durRe     = regexp.MustCompile(`^(\d+):(\d{2})$`)
)

const contestTimeLayout = "2006-01-02 15:04:05-0700"

// UpcomingContests реализует domain.ContestSource: секции «идущие» и
// «предстоящие» страницы контестов.
func (s *ContestScraper) UpcomingContests(ctx context.Context, now time.Time) ([]domain.Contest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.siteBase+"/contests/?lang=ja", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	start := time.Now()
	resp, err := s.httpClient.Do(req)
	metrics.ObserveNetworkRequest("atcoder_site", "contests_page", "contests", start, err)
	if err != nil {
		return nil, fmt.Errorf("запрос страницы контестов: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("страница контестов ответила статусом %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("чтение страницы контестов: %w", err)
	}

	return s.parse(string(body)), nil
}

func (s *ContestScraper) parse(page string) []domain.Contest {
	var contests []domain.Contest
	seen := make(map[string]struct{})
	for _, section := range sectionRe.FindAllString(page, -1) {
		for _, row := range rowRe.FindAllString(section, -1) {
			contest, err := s.parseRow(row)
			if err != nil {
				s.log.Debug().Err(err).Msg("atcoder: пропуск строки таблицы контестов")
				continue
			}
			if _, ok := seen[contest.URL]; ok {
				continue
			}
			seen[contest.URL] = struct{}{}
			contests = append(contests, contest)
		}
	}
	return contests
}

func (s *ContestScraper) parseRow(row string) (domain.Contest, error) {
	timeMatch := timeRe.FindStringSubmatch(row)
	if timeMatch == nil {
		return domain.Contest{}, fmt.Errorf("нет времени старта")
	}
	startAt, err := time.Parse(contestTimeLayout, strings.TrimSpace(timeMatch[1]))
	if err != nil {
		return domain.Contest{}, fmt.Errorf("время старта: %w", err)
	}

	linkMatch := linkRe.FindStringSubmatch(row)
	if linkMatch == nil {
		return domain.Contest{}, fmt.Errorf("нет ссылки на контест")
	}
	slug := linkMatch[1]
	name := strings.TrimSpace(linkMatch[2])

	var duration time.Duration
	var ratedFor string
	cells := cellRe.FindAllStringSubmatch(row, -1)
	for _, cell := range cells {
		value := strings.TrimSpace(stripTags(cell[1]))
		if m := durRe.FindStringSubmatch(value); m != nil {
			hours, _ := strconv.Atoi(m[1])
			mins, _ := strconv.Atoi(m[2])
			duration = time.Duration(hours)*time.Hour + time.Duration(mins)*time.Minute
		}
	}
	if duration == 0 {
		return domain.Contest{}, fmt.Errorf("нет длительности")
	}
	if len(cells) > 0 {
		ratedFor = strings.TrimSpace(stripTags(cells[len(cells)-1][1]))
	}

	return domain.Contest{
		URL:      s.siteBase + "/contests/" + slug,
		Name:     name,
		StartAt:  startAt.In(domain.JST),
		Duration: duration,
		RatedFor: ratedFor,
	}, nil
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return tagRe.ReplaceAllString(s, "")
}
