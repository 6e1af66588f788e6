package domain

import "time"

// JST — часовой пояс AtCoder; все времена контестов живут в нём.
var JST = time.FixedZone("JST", 9*60*60)

// Verdict — типизированный результат посылки из фида kenkoooo.
type Verdict string

const (
	VerdictAccepted          Verdict = "AC"
	VerdictWrongAnswer       Verdict = "WA"
	VerdictTimeLimitExceeded Verdict = "TLE"
	VerdictRuntimeError      Verdict = "RE"
	VerdictCompileError      Verdict = "CE"
	VerdictMemoryLimit       Verdict = "MLE"
	VerdictOther             Verdict = "OTHER"
)

// ParseVerdict приводит сырой код результата к известному вердикту.
// Незнакомые коды не являются ошибкой: фид иногда отдаёт WJ, IE и т.п.
func ParseVerdict(raw string) Verdict {
	switch raw {
	case "AC":
		return VerdictAccepted
	case "WA":
		return VerdictWrongAnswer
	case "TLE":
		return VerdictTimeLimitExceeded
	case "RE":
		return VerdictRuntimeError
	case "CE":
		return VerdictCompileError
	case "MLE":
		return VerdictMemoryLimit
	default:
		return VerdictOther
	}
}

// Watch описывает подписку на посылки одного хэндла в одном чате.
// Пара (ChatID, Handle) уникальна; один хэндл может быть зарегистрирован
// в нескольких чатах независимо.
type Watch struct {
	ID           int64
	ChatID       int64
	Handle       string
	TargetChatID int64
	OwnerTGID    int64
	OnlyAccepted bool
	// Watermark — наибольший id посылки, уже учтённый для этой подписки
	// (отправленный или отфильтрованный). Только растёт.
	Watermark int64
	CreatedAt time.Time
}

// AnnouncementTarget описывает чат, подписанный на анонсы контестов.
type AnnouncementTarget struct {
	ChatID       int64
	TargetChatID int64
}

// Submission — одна посылка из статистического фида. Не персистится,
// дольше watermark её никто не помнит.
type Submission struct {
	ID              int64
	ProblemID       string
	ContestID       string
	Verdict         Verdict
	Language        string
	Point           float64
	ExecutionTimeMS int
	SubmittedAt     time.Time
}

// Contest — строка таблицы предстоящих контестов. Ключ — URL.
type Contest struct {
	URL      string
	Name     string
	StartAt  time.Time
	Duration time.Duration
	RatedFor string
}

// EndAt возвращает момент окончания контеста.
func (c Contest) EndAt() time.Time {
	return c.StartAt.Add(c.Duration)
}

// ContestPhase — одна из четырёх фаз жизненного цикла контеста.
type ContestPhase string

const (
	PhaseAnnounced ContestPhase = "announced" // за 24 часа
	PhaseSoon      ContestPhase = "soon"      // за 30 минут
	PhaseStarted   ContestPhase = "started"
	PhaseEnded     ContestPhase = "ended"
)

// ContestDetails — best-effort обогащение анонса со страницы контеста.
type ContestDetails struct {
	Writer string
	Tester string
	Points string
}

// SubmissionEvent — событие «новая посылка прошла фильтр подписки».
type SubmissionEvent struct {
	Watch      Watch
	Submission Submission
}

// ContestEvent — событие «контест достиг фазы».
type ContestEvent struct {
	Contest Contest
	Phase   ContestPhase
	Details ContestDetails
}

// Notification — готовое к доставке сообщение. Text — HTML для Telegram.
type Notification struct {
	ID     string
	ChatID int64
	Text   string
}
