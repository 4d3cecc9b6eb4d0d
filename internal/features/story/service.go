// Package story — service.go содержит бизнес-логику движка историй:
// дневной лимит, протокол генерации с запасной моделью, пул сценариев,
// списание стоимости и оценки.
package story

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"iamamir.ir/mystery-bot/internal/common"
	"iamamir.ir/mystery-bot/internal/config"
	"iamamir.ir/mystery-bot/internal/features/users"
	"iamamir.ir/mystery-bot/internal/llm"
)

// ImageGenerator — способность генерации обложек.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Store — операции хранилища, нужные движку историй.
// *Repository реализует; в тестах подменяется подделкой.
type Store interface {
	CreateStory(ctx context.Context, userID int64) (*Story, error)
	GetStory(ctx context.Context, storyID int64) (*Story, error)
	DeactivateActive(ctx context.Context, userID int64) (int64, error)
	MarkEnded(ctx context.Context, storyID int64) error
	CountSince(ctx context.Context, userID int64, since time.Time) (int, error)
	SetRate(ctx context.Context, storyID int64, rate int) (bool, error)
	SectionsHistory(ctx context.Context, storyID int64) ([]*Section, error)
	InsertStartSections(ctx context.Context, storyID, scenarioID int64, promptText, scenarioText, rawOutput string) (*Section, error)
	InsertTurnSections(ctx context.Context, storyID int64, choiceText, rawOutput string) (*Section, error)
	SectionWithStoryEnd(ctx context.Context, sectionID int64) (*Section, bool, error)
	MarkSectionUsed(ctx context.Context, sectionID int64) error
	CreateScenario(ctx context.Context, storyID *int64, text string, isSystem bool) (*Scenario, error)
	GetScenario(ctx context.Context, scenarioID int64) (*Scenario, error)
	UnusedSystemScenarios(ctx context.Context, limit int) ([]*Scenario, error)
	CountUnusedSystemScenarios(ctx context.Context) (int, error)
	Counts(ctx context.Context) (stories, sections, scenarios int, err error)
}

var _ Store = (*Repository)(nil)

// Biller — списание стоимости с баланса. *users.Service реализует.
type Biller interface {
	Debit(ctx context.Context, userID int64, cost float64) error
}

// Service — движок историй.
type Service struct {
	repo     Store
	users    Biller
	gen      llm.Generator
	imageGen ImageGenerator
	policy   llm.GenerationPolicy
	pricing  llm.Pricing
	cfg      *config.Config
}

// NewService создаёт движок историй. imageGen может быть nil —
// тогда обложки отключены.
func NewService(repo Store, usersService Biller, gen llm.Generator, imageGen ImageGenerator, cfg *config.Config) *Service {
	return &Service{
		repo:     repo,
		users:    usersService,
		gen:      gen,
		imageGen: imageGen,
		policy: llm.GenerationPolicy{
			MaxAttempts:   cfg.GenerationAttempts,
			PrimaryModel:  cfg.ModelPrimary,
			FallbackModel: cfg.ModelFallback,
		},
		pricing: llm.Pricing{
			InputPerMillion:  cfg.InputPricePerMillion,
			OutputPerMillion: cfg.OutputPricePerMillion,
			ImagePrice:       cfg.ImagePrice,
		},
		cfg: cfg,
	}
}

// CreateStory создаёт новую историю.
// Пользователь с отрицательным балансом, уже начавший достаточно историй
// за последние 24 часа, получает ErrDailyStoryLimit.
// Прежние активные истории закрываются здесь же — инвариант
// «не больше одной активной истории» держит сам движок.
func (s *Service) CreateStory(ctx context.Context, user *users.User) (*Story, error) {
	if user.Charge < 0 {
		count, err := s.repo.CountSince(ctx, user.UserID, common.DayAgo())
		if err != nil {
			return nil, err
		}
		if count >= s.cfg.StoryDailyLimit {
			return nil, fmt.Errorf("%w (user_id=%d)", common.ErrDailyStoryLimit, user.UserID)
		}
	}
	if _, err := s.repo.DeactivateActive(ctx, user.UserID); err != nil {
		return nil, err
	}
	return s.repo.CreateStory(ctx, user.UserID)
}

// DeactivateActiveStories завершает все незаконченные истории пользователя.
func (s *Service) DeactivateActiveStories(ctx context.Context, userID int64) (int64, error) {
	return s.repo.DeactivateActive(ctx, userID)
}

// StartStory запускает историю: транскрипт из двух сообщений
// (инструкция + сценарий), генерация с повторами, атомарная запись
// трёх стартовых секций, привязка сценария и списание стоимости.
func (s *Service) StartStory(ctx context.Context, user *users.User, st *Story, scenario *Scenario) (*Section, *llm.StoryResponse, error) {
	prompt := llm.StoryPrompt(s.cfg.StoryTargetTurns)
	scenarioText := llm.WrapScenario(scenario.Text)
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: prompt},
		{Role: llm.RoleUser, Content: scenarioText},
	}

	parsed, usage, err := s.generate(ctx, messages)
	if err != nil {
		return nil, nil, err
	}

	section, err := s.repo.InsertStartSections(ctx, st.ID, scenario.ID, prompt, scenarioText, parsed.RawData)
	if err != nil {
		return nil, nil, err
	}

	s.debit(ctx, user.UserID, usage)
	return section, parsed, nil
}

// CreateSection делает один виток: помечает секцию использованной
// ДО вызова модели (окно повтора закрывается как можно раньше,
// пометка не снимается даже при сбое генерации), восстанавливает
// транскрипт, добавляет выбранный номер как реплику пользователя
// и применяет тот же протокол генерации.
func (s *Service) CreateSection(ctx context.Context, user *users.User, st *Story, section *Section, choice int) (*Section, *llm.StoryResponse, error) {
	if err := s.repo.MarkSectionUsed(ctx, section.ID); err != nil {
		return nil, nil, err
	}

	history, err := s.repo.SectionsHistory(ctx, st.ID)
	if err != nil {
		return nil, nil, err
	}

	choiceText := strconv.Itoa(choice)
	messages := append(Transcript(history), llm.Message{Role: llm.RoleUser, Content: choiceText})

	parsed, usage, err := s.generate(ctx, messages)
	if err != nil {
		return nil, nil, err
	}

	section, err = s.repo.InsertTurnSections(ctx, st.ID, choiceText, parsed.RawData)
	if err != nil {
		return nil, nil, err
	}

	s.debit(ctx, user.UserID, usage)

	// Модель объявила конец — фиксируем в истории, дальше только оценка
	if parsed.IsEnd {
		if err := s.repo.MarkEnded(ctx, st.ID); err != nil {
			log.WithError(err).WithField("story_id", st.ID).Error("Не удалось пометить историю завершённой")
		}
	}

	return section, parsed, nil
}

// generate — структурный цикл попыток: транспортные сбои уже поглощены
// клиентом, здесь повторяем только семантический брак (битый JSON),
// последняя попытка уходит на запасную модель. Токены всех попыток
// реально потрачены — суммируем и списываем целиком.
func (s *Service) generate(ctx context.Context, messages []llm.Message) (*llm.StoryResponse, llm.Result, error) {
	var spent llm.Result
	for attempt := 0; attempt < s.policy.MaxAttempts; attempt++ {
		model := s.policy.ModelFor(attempt)
		result, err := s.gen.Generate(ctx, model, messages)
		if err != nil {
			return nil, spent, fmt.Errorf("%w: %v", common.ErrFailedToGenerateStory, err)
		}
		spent.InputTokens += result.InputTokens
		spent.OutputTokens += result.OutputTokens

		if parsed := llm.ParseStoryResponse(result.Text); parsed != nil {
			return parsed, spent, nil
		}
		log.WithFields(log.Fields{
			"attempt": attempt + 1,
			"model":   model,
		}).Warn("Модель вернула невалидную структуру истории, повтор")
	}
	return nil, spent, common.ErrFailedToGenerateStory
}

// debit списывает суммарную стоимость витка. Ошибка списания не роняет
// уже сохранённый виток — только лог.
func (s *Service) debit(ctx context.Context, userID int64, usage llm.Result) {
	cost := s.pricing.Cost(usage.InputTokens, usage.OutputTokens)
	if err := s.users.Debit(ctx, userID, cost); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка списания стоимости витка")
	}
}

// GetUnusedSection возвращает секцию только если её варианты не потрачены
// и история не завершена; иначе nil — «нельзя вернуться назад».
func (s *Service) GetUnusedSection(ctx context.Context, sectionID int64) (*Section, error) {
	section, ended, err := s.repo.SectionWithStoryEnd(ctx, sectionID)
	if err != nil || section == nil {
		return nil, err
	}
	if section.Used || ended {
		return nil, nil
	}
	return section, nil
}

// GetStory возвращает историю по ID.
func (s *Service) GetStory(ctx context.Context, storyID int64) (*Story, error) {
	return s.repo.GetStory(ctx, storyID)
}

// RateStory ставит оценку 1..5, один раз.
// Исходная проверка диапазона была неработающей (принимала всё);
// здесь диапазон применяется по-настоящему.
func (s *Service) RateStory(ctx context.Context, st *Story, rate int) error {
	if rate < 1 || rate > 5 {
		return fmt.Errorf("%w: %d", common.ErrInvalidRate, rate)
	}
	if st.Rate != nil {
		return common.ErrStoryAlreadyRated
	}
	updated, err := s.repo.SetRate(ctx, st.ID, rate)
	if err != nil {
		return err
	}
	if !updated {
		return common.ErrStoryAlreadyRated
	}
	return nil
}

// CreateUserScenario сохраняет пользовательский сценарий, сразу
// привязанный к истории.
func (s *Service) CreateUserScenario(ctx context.Context, st *Story, text string) (*Scenario, error) {
	storyID := st.ID
	return s.repo.CreateScenario(ctx, &storyID, text, false)
}

// GetScenario возвращает сценарий по ID.
func (s *Service) GetScenario(ctx context.Context, scenarioID int64) (*Scenario, error) {
	return s.repo.GetScenario(ctx, scenarioID)
}

// GetUnusedScenarios возвращает limit случайных системных сценариев из пула.
// Если пул обмелел — дозаполняет его генерацией.
func (s *Service) GetUnusedScenarios(ctx context.Context, limit int) ([]*Scenario, error) {
	scenarios, err := s.repo.UnusedSystemScenarios(ctx, 100)
	if err != nil {
		return nil, err
	}

	if len(scenarios) < limit {
		generated, err := s.generateScenarios(ctx)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, generated...)
	}

	rand.Shuffle(len(scenarios), func(i, j int) {
		scenarios[i], scenarios[j] = scenarios[j], scenarios[i]
	})
	if len(scenarios) > limit {
		scenarios = scenarios[:limit]
	}
	return scenarios, nil
}

// ReplenishScenarioPool дозаполняет пул, если он меньше минимума.
// Вызывается cron-задачей.
func (s *Service) ReplenishScenarioPool(ctx context.Context) error {
	count, err := s.repo.CountUnusedSystemScenarios(ctx)
	if err != nil {
		return err
	}
	if count >= s.cfg.ScenarioPoolMin {
		log.WithField("pool", count).Debug("Пул сценариев в норме")
		return nil
	}

	generated, err := s.generateScenarios(ctx)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"was":   count,
		"added": len(generated),
	}).Info("Пул сценариев пополнен")
	return nil
}

// generateScenarios просит модель выдать пачку затравок и кладёт их в пул.
func (s *Service) generateScenarios(ctx context.Context) ([]*Scenario, error) {
	result, err := s.gen.Generate(ctx, s.policy.PrimaryModel, llm.ScenarioMessages())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrFailedToGenerateStory, err)
	}

	var out []*Scenario
	for _, line := range strings.Split(result.Text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sc, err := s.repo.CreateScenario(ctx, nil, line, true)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// Stats возвращает счётчики историй, секций и сценариев.
// Используется ночной cron-задачей и CLI-отчётом.
func (s *Service) Stats(ctx context.Context) (stories, sections, scenarios int, err error) {
	return s.repo.Counts(ctx)
}

// CoverImage делает обложку завершённой истории: сжимает текст
// в безопасный промпт, генерирует изображение, списывает стоимость
// сжатия и фиксированную цену картинки. Возвращает URL.
func (s *Service) CoverImage(ctx context.Context, user *users.User, storyText string) (string, error) {
	if s.imageGen == nil {
		return "", llm.ErrImageGenerationFailed
	}

	summary, err := s.gen.Generate(ctx, s.policy.PrimaryModel, llm.SummarizeForImageMessages(storyText))
	if err != nil {
		return "", fmt.Errorf("%w: %v", llm.ErrImageGenerationFailed, err)
	}

	url, err := s.imageGen.GenerateImage(ctx, summary.Text)
	if err != nil {
		return "", err
	}

	cost := s.pricing.Cost(summary.InputTokens, summary.OutputTokens) + s.pricing.ImagePrice
	if err := s.users.Debit(ctx, user.UserID, cost); err != nil {
		log.WithError(err).WithField("user_id", user.UserID).Error("Ошибка списания за обложку")
	}
	return url, nil
}
