// Package chat — service.go содержит бизнес-логику свободного чата:
// ротацию сессий, дневной лимит, окно транскрипта и протокол генерации
// с запасной моделью.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"iamamir.ir/mystery-bot/internal/common"
	"iamamir.ir/mystery-bot/internal/config"
	"iamamir.ir/mystery-bot/internal/features/users"
	"iamamir.ir/mystery-bot/internal/llm"
)

// Store — операции хранилища, нужные движку чата.
// *Repository реализует; в тестах подменяется подделкой.
type Store interface {
	ActiveSession(ctx context.Context, userID int64) (*Session, error)
	CreateSession(ctx context.Context, userID int64) (*Session, error)
	DeactivateSessions(ctx context.Context, userID int64) (int64, error)
	DeactivateSession(ctx context.Context, sessionID int64) error
	InsertChat(ctx context.Context, sessionID int64, text string, isSystem bool) error
	InsertTurnChats(ctx context.Context, sessionID int64, userText, rawOutput string) error
	ChatsHistory(ctx context.Context, sessionID int64) ([]*Chat, error)
	CountUserChatsSince(ctx context.Context, userID int64, since time.Time) (int, error)
}

var _ Store = (*Repository)(nil)

// Biller — списание стоимости с баланса. *users.Service реализует.
type Biller interface {
	Debit(ctx context.Context, userID int64, cost float64) error
}

// Service — движок свободного чата.
type Service struct {
	repo    Store
	users   Biller
	gen     llm.Generator
	policy  llm.GenerationPolicy
	pricing llm.Pricing
	cfg     *config.Config
}

// NewService создаёт сервис свободного чата.
func NewService(repo Store, usersService Biller, gen llm.Generator, cfg *config.Config) *Service {
	return &Service{
		repo:  repo,
		users: usersService,
		gen:   gen,
		policy: llm.GenerationPolicy{
			MaxAttempts:   cfg.GenerationAttempts,
			PrimaryModel:  cfg.ModelPrimary,
			FallbackModel: cfg.ModelFallback,
		},
		pricing: llm.Pricing{
			InputPerMillion:  cfg.InputPricePerMillion,
			OutputPerMillion: cfg.OutputPricePerMillion,
		},
		cfg: cfg,
	}
}

// Chat обрабатывает одну реплику пользователя: находит или открывает
// сессию, восстанавливает транскрипт, генерирует ответ, списывает
// стоимость и сохраняет пару реплик. Возвращает распарсенный ответ
// с командой — что с ней делать, решает вызывающий.
func (s *Service) Chat(ctx context.Context, user *users.User, text string) (*llm.ChatResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, common.ErrEmptyChatText
	}

	session, err := s.activeOrNewSession(ctx, user)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ChatsHistory(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	messages := append(transcript(history), llm.Message{Role: llm.RoleUser, Content: text})

	// Транскрипт перерос окно — закрываем сессию ДО отправки:
	// текущая реплика ещё едет с длинным контекстом, следующая
	// начнёт свежую сессию
	if len(messages) > s.cfg.ChatMaxMessages {
		if err := s.repo.DeactivateSession(ctx, session.ID); err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{
			"session_id": session.ID,
			"messages":   len(messages),
		}).Info("Сессия чата закрыта по размеру окна")
	}

	parsed, usage, err := s.generate(ctx, messages)
	if err != nil {
		return nil, err
	}

	cost := s.pricing.Cost(usage.InputTokens, usage.OutputTokens)
	if err := s.users.Debit(ctx, user.UserID, cost); err != nil {
		log.WithError(err).WithField("user_id", user.UserID).Error("Ошибка списания за чат")
	}

	if err := s.repo.InsertTurnChats(ctx, session.ID, text, parsed.RawData); err != nil {
		return nil, err
	}

	return parsed, nil
}

// activeOrNewSession возвращает активную сессию или открывает новую.
// Новая сессия: все прежние выключаются безусловно, дневной лимит
// проверяется для ушедших в минус, первый реплика — системная инструкция.
func (s *Service) activeOrNewSession(ctx context.Context, user *users.User) (*Session, error) {
	session, err := s.repo.ActiveSession(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	if session != nil {
		return session, nil
	}

	if _, err := s.repo.DeactivateSessions(ctx, user.UserID); err != nil {
		return nil, err
	}

	if user.Charge < 0 {
		count, err := s.repo.CountUserChatsSince(ctx, user.UserID, common.DayAgo())
		if err != nil {
			return nil, err
		}
		if count >= s.cfg.ChatDailyLimit {
			return nil, fmt.Errorf("%w (user_id=%d)", common.ErrDailyChatLimit, user.UserID)
		}
	}

	session, err = s.repo.CreateSession(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.InsertChat(ctx, session.ID, llm.ChatPrompt(), true); err != nil {
		return nil, err
	}
	return session, nil
}

// generate — тот же структурный цикл, что у историй: повтор только
// при битом JSON, последняя попытка на запасной модели.
func (s *Service) generate(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, llm.Result, error) {
	var spent llm.Result
	for attempt := 0; attempt < s.policy.MaxAttempts; attempt++ {
		model := s.policy.ModelFor(attempt)
		result, err := s.gen.Generate(ctx, model, messages)
		if err != nil {
			return nil, spent, fmt.Errorf("%w: %v", common.ErrFailedToGenerateChat, err)
		}
		spent.InputTokens += result.InputTokens
		spent.OutputTokens += result.OutputTokens

		if parsed := llm.ParseChatResponse(result.Text); parsed != nil {
			return parsed, spent, nil
		}
		log.WithFields(log.Fields{
			"attempt": attempt + 1,
			"model":   model,
		}).Warn("Модель вернула невалидную структуру чата, повтор")
	}
	return nil, spent, common.ErrFailedToGenerateChat
}

// DeactivateCurrentSession выключает активную сессию пользователя.
// Вызывается, когда поток историй перехватывает диалог. Идемпотентно.
func (s *Service) DeactivateCurrentSession(ctx context.Context, userID int64) error {
	affected, err := s.repo.DeactivateSessions(ctx, userID)
	if err != nil {
		return err
	}
	if affected > 0 {
		log.WithField("user_id", userID).Debug("Сессия чата выключена извне")
	}
	return nil
}

// transcript восстанавливает транскрипт сессии по тем же правилам,
// что и у историй: первая системная реплика — инструкция, остальные
// системные — ответы модели, несистемные — пользователь.
func transcript(chats []*Chat) []llm.Message {
	messages := make([]llm.Message, 0, len(chats))
	for index, c := range chats {
		if c.IsSystem {
			role := llm.RoleAssistant
			if index == 0 {
				role = llm.RoleSystem
			}
			messages = append(messages, llm.Message{Role: role, Content: c.Text})
		} else {
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: c.Text})
		}
	}
	return messages
}
