// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, клиента модели, репозитории,
// сервисы, обработчики и собирает всё в один объект Bot.
package app

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"iamamir.ir/mystery-bot/internal/bot"
	"iamamir.ir/mystery-bot/internal/config"
	"iamamir.ir/mystery-bot/internal/db/postgres"
	"iamamir.ir/mystery-bot/internal/features/admin"
	"iamamir.ir/mystery-bot/internal/features/chat"
	"iamamir.ir/mystery-bot/internal/features/history"
	"iamamir.ir/mystery-bot/internal/features/story"
	"iamamir.ir/mystery-bot/internal/features/users"
	"iamamir.ir/mystery-bot/internal/jobs"
	"iamamir.ir/mystery-bot/internal/llm"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	BotAPI    *tgbotapi.BotAPI
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Запускаем миграции
	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Bot API ===
	// Эндпоинт настраиваемый: Telegram по умолчанию, Bale через
	// TELEGRAM_API_ENDPOINT=https://tapi.bale.ai/bot%s/%s
	botAPI, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.TelegramBotToken, cfg.TelegramAPIEndpoint)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Bot API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// === 3. Репозитории ===
	userRepo := users.NewRepository(pool)
	storyRepo := story.NewRepository(pool)
	chatRepo := chat.NewRepository(pool)
	historyRepo := history.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)

	// === 4. Клиент модели ===
	// Журнал вызовов пишется прямо из клиента, мимо бизнес-логики
	llmClient := llm.NewClient(
		cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ImageModel,
		cfg.MaxRetries, cfg.RetryBackoffSeconds, historyRepo,
	)

	// === 5. Сервисы ===
	userService := users.NewService(userRepo)
	storyService := story.NewService(storyRepo, userService, llmClient, llmClient, cfg)
	chatService := chat.NewService(chatRepo, userService, llmClient, cfg)
	adminService := admin.NewService(adminRepo, userService, cfg)

	// === 6. Обработчики ===
	storyHandler := story.NewHandler(storyService, botAPI, cfg)
	chatHandler := chat.NewHandler(chatService, storyService, storyHandler, botAPI)
	adminHandler := admin.NewHandler(adminService, botAPI)

	// === 7. Собираем бота ===
	b := bot.New(botAPI, cfg, userService, storyHandler, chatHandler, adminHandler)

	// === 8. Планировщик задач ===
	scheduler := jobs.NewScheduler(storyService, cfg.AppTimezone)

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		DB:        pool,
		BotAPI:    botAPI,
	}, nil
}

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	// Инициализируем систему миграций
	if err := postgres.EnsureMigrationTable(ctx, pool); err != nil {
		return err
	}

	// Выполняем миграции по порядку
	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Users},
		{2, migration002Stories},
		{3, migration003Chat},
		{4, migration004LLMHistory},
		{5, migration005Admin},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    user_id BIGINT PRIMARY KEY,
    username VARCHAR(255),
    first_name VARCHAR(255),
    last_name VARCHAR(255),
    active BOOLEAN DEFAULT TRUE,
    charge DOUBLE PRECISION DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
`

var migration002Stories = `
CREATE TABLE IF NOT EXISTS stories (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(user_id),
    is_end BOOLEAN DEFAULT FALSE,
    rate INTEGER,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_stories_user_id ON stories(user_id);
CREATE INDEX IF NOT EXISTS idx_stories_created_at ON stories(created_at DESC);

CREATE TABLE IF NOT EXISTS sections (
    id BIGSERIAL PRIMARY KEY,
    story_id BIGINT NOT NULL REFERENCES stories(id),
    text TEXT NOT NULL,
    is_system BOOLEAN DEFAULT FALSE,
    used BOOLEAN DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_sections_story_id ON sections(story_id);

CREATE TABLE IF NOT EXISTS scenarios (
    id BIGSERIAL PRIMARY KEY,
    story_id BIGINT REFERENCES stories(id),
    text TEXT NOT NULL,
    is_system BOOLEAN DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_scenarios_story_id ON scenarios(story_id);
CREATE INDEX IF NOT EXISTS idx_scenarios_system_unused ON scenarios(is_system) WHERE story_id IS NULL;
`

var migration003Chat = `
CREATE TABLE IF NOT EXISTS sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(user_id),
    active BOOLEAN DEFAULT TRUE,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_sessions_user_active ON sessions(user_id) WHERE active;

CREATE TABLE IF NOT EXISTS chats (
    id BIGSERIAL PRIMARY KEY,
    session_id BIGINT NOT NULL REFERENCES sessions(id),
    text TEXT NOT NULL,
    is_system BOOLEAN DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_chats_session_id ON chats(session_id);
`

var migration004LLMHistory = `
CREATE TABLE IF NOT EXISTS llm_history (
    id BIGSERIAL PRIMARY KEY,
    model VARCHAR(64) NOT NULL,
    prompt TEXT NOT NULL,
    response TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_llm_history_created_at ON llm_history(created_at DESC);
`

var migration005Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    session_token VARCHAR(255) UNIQUE,
    authenticated_at TIMESTAMP DEFAULT NOW(),
    expires_at TIMESTAMP,
    last_activity TIMESTAMP DEFAULT NOW(),
    is_active BOOLEAN DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_user_id ON admin_sessions(user_id);

CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT,
    attempt_time TIMESTAMP DEFAULT NOW(),
    success BOOLEAN DEFAULT FALSE
);
`
