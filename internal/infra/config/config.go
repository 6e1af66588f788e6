package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token string `envconfig:"TG_BOT_TOKEN"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	AtCoder struct {
		APIBaseURL     string        `envconfig:"ATCODER_API_BASE_URL" default:"https://kenkoooo.com/atcoder"`
		SiteBaseURL    string        `envconfig:"ATCODER_SITE_BASE_URL" default:"https://atcoder.jp"`
		RequestTimeout time.Duration `envconfig:"ATCODER_REQUEST_TIMEOUT" default:"10s"`
	} `envconfig:""`

	Announce struct {
		IndexURL string        `envconfig:"ANNOUNCE_INDEX_URL"`
		Refresh  time.Duration `envconfig:"ANNOUNCE_INDEX_REFRESH" default:"30m"`
	} `envconfig:""`

	Watch struct {
		PollInterval time.Duration `envconfig:"WATCH_POLL_INTERVAL" default:"3m"`
		Lookback     time.Duration `envconfig:"WATCH_LOOKBACK" default:"10m"`
		SeedWindow   time.Duration `envconfig:"WATCH_SEED_WINDOW" default:"24h"`
	} `envconfig:""`

	Contests struct {
		TickInterval time.Duration `envconfig:"CONTEST_TICK_INTERVAL" default:"1m"`
		SentTTL      time.Duration `envconfig:"CONTEST_SENT_TTL" default:"168h"`
	} `envconfig:""`

	Daily struct {
		Enabled bool `envconfig:"DAILY_NUDGE_ENABLED" default:"false"`
		Hour    int  `envconfig:"DAILY_NUDGE_HOUR" default:"20"`
	} `envconfig:""`

	Queues struct {
		Notify string `envconfig:"NOTIFY_QUEUE_KEY" default:"notify_jobs"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
