// Package story — handlers.go обрабатывает команды и кнопки потока историй:
// /new, выбор сценария, выбор варианта, оценка.
package story

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"iamamir.ir/mystery-bot/internal/common"
	"iamamir.ir/mystery-bot/internal/config"
	"iamamir.ir/mystery-bot/internal/features/users"
	"iamamir.ir/mystery-bot/internal/llm"
)

// Handler обрабатывает события потока историй.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
	cfg     *config.Config
}

// NewHandler создаёт обработчик историй.
func NewHandler(service *Service, bot *tgbotapi.BotAPI, cfg *config.Config) *Handler {
	return &Handler{service: service, bot: bot, cfg: cfg}
}

// HandleNewCommand — команда /new. Без текста показывает меню сценариев,
// с текстом — сразу стартует историю по пользовательскому сценарию.
func (h *Handler) HandleNewCommand(ctx context.Context, chatID int64, user *users.User, scenarioText string) {
	if scenarioText == "" {
		h.SendScenarioMenu(ctx, chatID)
		return
	}
	h.startStory(ctx, chatID, user, scenarioText, nil)
}

// SendScenarioMenu отправляет меню из случайных сценариев пула.
func (h *Handler) SendScenarioMenu(ctx context.Context, chatID int64) {
	scenarios, err := h.service.GetUnusedScenarios(ctx, h.cfg.ScenarioMenuSize)
	if err != nil {
		log.WithError(err).Error("Ошибка получения пула сценариев")
		h.replyError(chatID, err)
		return
	}

	text, markup := ScenarioMenu(scenarios)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = markup
	h.send(msg)
}

// HandleScenarioCallback — нажата кнопка сценария из меню.
func (h *Handler) HandleScenarioCallback(ctx context.Context, chatID int64, user *users.User, scenarioID int64) {
	scenario, err := h.service.GetScenario(ctx, scenarioID)
	if err != nil {
		if errors.Is(err, common.ErrScenarioNotFound) {
			// Кнопка из устаревшего меню — показываем свежие сценарии
			h.SendScenarioMenu(ctx, chatID)
			return
		}
		log.WithError(err).WithField("scenario_id", scenarioID).Error("Ошибка чтения сценария")
		h.replyError(chatID, err)
		return
	}
	// Сценарий уже кем-то потреблён — предлагаем свежие
	if scenario.StoryID != nil {
		h.SendScenarioMenu(ctx, chatID)
		return
	}
	h.startStory(ctx, chatID, user, "", scenario)
}

// startStory — общий путь старта: создать новую историю (движок сам
// закрывает прежние активные и проверяет дневной лимит), отправить
// сценарий и первый виток.
func (h *Handler) startStory(ctx context.Context, chatID int64, user *users.User, scenarioText string, scenario *Scenario) {
	st, err := h.service.CreateStory(ctx, user)
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	if scenario == nil {
		scenario, err = h.service.CreateUserScenario(ctx, st, scenarioText)
		if err != nil {
			log.WithError(err).Error("Ошибка сохранения пользовательского сценария")
			h.replyError(chatID, err)
			return
		}
	}

	// Показываем затравку и «печатает...», генерация занимает секунды
	h.send(tgbotapi.NewMessage(chatID, scenario.Text))
	h.sendTyping(chatID)

	section, resp, err := h.service.StartStory(ctx, user, st, scenario)
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	h.sendSection(ctx, chatID, user, st, section, resp)
}

// HandleOptionCallback — нажата кнопка варианта.
// Защита от повтора: использованная или устаревшая секция
// отклоняется без генерации, живая помечается движком ДО вызова модели.
func (h *Handler) HandleOptionCallback(ctx context.Context, chatID int64, user *users.User, sectionID int64, option int) {
	section, err := h.service.GetUnusedSection(ctx, sectionID)
	if err != nil {
		log.WithError(err).WithField("section_id", sectionID).Error("Ошибка чтения секции")
		h.replyError(chatID, err)
		return
	}
	if section == nil {
		h.send(tgbotapi.NewMessage(chatID, msgCannotGoBack))
		return
	}

	st, err := h.service.GetStory(ctx, section.StoryID)
	if err != nil {
		log.WithError(err).WithField("story_id", section.StoryID).Error("Ошибка чтения истории")
		h.replyError(chatID, err)
		return
	}

	h.sendTyping(chatID)

	next, resp, err := h.service.CreateSection(ctx, user, st, section, option)
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	h.sendSection(ctx, chatID, user, st, next, resp)
}

// HandleRateCallback — нажата кнопка оценки завершённой истории.
func (h *Handler) HandleRateCallback(ctx context.Context, chatID int64, user *users.User, storyID int64, rate int) {
	st, err := h.service.GetStory(ctx, storyID)
	if err != nil {
		log.WithError(err).WithField("story_id", storyID).Error("Ошибка чтения истории")
		h.replyError(chatID, err)
		return
	}
	if st.UserID != user.UserID {
		log.WithFields(log.Fields{
			"story_id": storyID,
			"user_id":  user.UserID,
		}).Warn("Попытка оценить чужую историю")
		return
	}

	if err := h.service.RateStory(ctx, st, rate); err != nil {
		if errors.Is(err, common.ErrStoryAlreadyRated) {
			h.send(tgbotapi.NewMessage(chatID, msgRateOnce))
			return
		}
		h.replyError(chatID, err)
		return
	}
	h.send(tgbotapi.NewMessage(chatID, msgRateThanks))
}

// sendSection отправляет виток истории. Для незавершённой — клавиатура
// вариантов; для завершённой — обложка (если включена) и просьба оценить.
func (h *Handler) sendSection(ctx context.Context, chatID int64, user *users.User, st *Story, section *Section, resp *llm.StoryResponse) {
	msg := tgbotapi.NewMessage(chatID, FormatStoryMessage(resp))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if !resp.IsEnd {
		msg.ReplyMarkup = ChoiceKeyboard(section, resp)
	}
	h.send(msg)

	if !resp.IsEnd {
		return
	}

	if h.cfg.FeatureCoverEnabled {
		h.sendCover(ctx, chatID, user, resp.Story)
	}

	rateMsg := tgbotapi.NewMessage(chatID, msgRatePrompt)
	rateMsg.ReplyMarkup = RateKeyboard(st.ID)
	h.send(rateMsg)
}

// sendCover генерирует и отправляет обложку. Любой сбой — только лог:
// обложка не должна ломать финал истории.
func (h *Handler) sendCover(ctx context.Context, chatID int64, user *users.User, storyText string) {
	h.send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatUploadPhoto))

	url, err := h.service.CoverImage(ctx, user, storyText)
	if err != nil {
		log.WithError(err).WithField("user_id", user.UserID).Warn("Обложка не получилась")
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(url))
	if _, err := h.bot.Send(photo); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки обложки")
	}
}

// replyError переводит доменную ошибку в понятное пользователю сообщение.
func (h *Handler) replyError(chatID int64, err error) {
	switch {
	case errors.Is(err, common.ErrDailyStoryLimit):
		h.send(tgbotapi.NewMessage(chatID, msgDailyLimit))
	case errors.Is(err, common.ErrUserNotActive):
		h.send(tgbotapi.NewMessage(chatID, msgNotActive))
	default:
		correlationID := common.CorrelationID()
		log.WithError(err).WithField("correlation_id", correlationID).Error("Сбой потока историй")
		h.send(tgbotapi.NewMessage(chatID, fmt.Sprintf(msgGenericError, correlationID)))
	}
}

func (h *Handler) sendTyping(chatID int64) {
	h.send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
}

func (h *Handler) send(c tgbotapi.Chattable) {
	if _, err := h.bot.Request(c); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
