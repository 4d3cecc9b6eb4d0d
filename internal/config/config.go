// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram / Bale ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	// Шаблон эндпоинта Bot API. Для Bale: https://tapi.bale.ai/bot%s/%s
	TelegramAPIEndpoint string  `envconfig:"TELEGRAM_API_ENDPOINT" default:"https://api.telegram.org/bot%s/%s"`
	AdminIDsRaw         string  `envconfig:"ADMIN_IDS" required:"true"`
	AdminIDs            []int64 `envconfig:"-"` // заполним вручную

	// --- OpenAI-совместимый API ---
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" required:"true"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	// Основная модель и запасная (на последней попытке парсинга)
	ModelPrimary  string `envconfig:"MODEL_PRIMARY" default:"gpt-4o-mini"`
	ModelFallback string `envconfig:"MODEL_FALLBACK" default:"gpt-4o"`
	ImageModel    string `envconfig:"IMAGE_MODEL" default:"dall-e-3"`
	// Сколько раз повторяем запрос при rate limit / ошибках провайдера
	MaxRetries int `envconfig:"MAX_RETRIES" default:"30"`
	// Пауза между повторами (секунды)
	RetryBackoffSeconds int `envconfig:"RETRY_BACKOFF_SECONDS" default:"20"`
	// Структурные попытки (ошибки формата JSON), последняя — на запасной модели
	GenerationAttempts int `envconfig:"GENERATION_ATTEMPTS" default:"3"`

	// --- Цены ---
	// Долларов за миллион токенов (как в прайсе OpenAI)
	InputPricePerMillion  float64 `envconfig:"INPUT_PRICE_PER_MILLION" default:"0.15"`
	OutputPricePerMillion float64 `envconfig:"OUTPUT_PRICE_PER_MILLION" default:"0.60"`
	// Фиксированная цена одной обложки
	ImagePrice float64 `envconfig:"IMAGE_PRICE" default:"0.04"`

	// --- Лимиты ---
	// Сколько историй в сутки можно начать с отрицательным балансом
	StoryDailyLimit int `envconfig:"STORY_DAILY_LIMIT" default:"2"`
	// Сколько сообщений чата в сутки с отрицательным балансом
	ChatDailyLimit int `envconfig:"CHAT_DAILY_LIMIT" default:"30"`
	// После скольких сообщений сессия чата закрывается и начинается новая
	ChatMaxMessages int `envconfig:"CHAT_MAX_MESSAGES" default:"20"`
	// Сколько витков истории должна занимать история
	StoryTargetTurns int `envconfig:"STORY_TARGET_TURNS" default:"3"`
	// Минимальный запас системных сценариев в пуле
	ScenarioPoolMin int `envconfig:"SCENARIO_POOL_MIN" default:"8"`
	// Сколько сценариев показываем в меню выбора
	ScenarioMenuSize int `envconfig:"SCENARIO_MENU_SIZE" default:"4"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"mystery_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Asia/Tehran"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`
	// Размер кэша уже обработанных update_id (защита от повторной доставки)
	DedupCacheSize int `envconfig:"DEDUP_CACHE_SIZE" default:"4096"`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature Flags ---
	FeatureChatEnabled  bool `envconfig:"FEATURE_CHAT_ENABLED" default:"true"`
	FeatureCoverEnabled bool `envconfig:"FEATURE_COVER_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.GenerationAttempts < 1 {
		return fmt.Errorf("GENERATION_ATTEMPTS должен быть >= 1")
	}
	if c.InputPricePerMillion < 0 || c.OutputPricePerMillion < 0 || c.ImagePrice < 0 {
		return fmt.Errorf("цены не могут быть отрицательными")
	}
	if c.StoryDailyLimit < 0 || c.ChatDailyLimit < 0 {
		return fmt.Errorf("лимиты не могут быть отрицательными")
	}
	if c.ChatMaxMessages < 2 {
		return fmt.Errorf("CHAT_MAX_MESSAGES должен быть >= 2")
	}
	if c.DedupCacheSize <= 0 {
		return fmt.Errorf("DEDUP_CACHE_SIZE должен быть > 0")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
