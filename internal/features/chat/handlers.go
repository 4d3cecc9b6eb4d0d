// Package chat — handlers.go маршрутизирует свободный текст пользователя
// через движок чата и ветвится по команде из ответа модели.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"iamamir.ir/mystery-bot/internal/common"
	"iamamir.ir/mystery-bot/internal/features/story"
	"iamamir.ir/mystery-bot/internal/features/users"
	"iamamir.ir/mystery-bot/internal/llm"
)

const (
	msgChatDailyLimit = "سهمیه گفت‌وگوی امروزت تموم شده 🕐\nفردا دوباره سر بزن، یا برای شارژ حساب به @mthri پیام بده."
	msgGenericError   = "یه مشکلی پیش اومد، چند لحظه دیگه دوباره امتحان کن 🙏\nکد پیگیری: %s"
)

// Handler обрабатывает свободный текст.
type Handler struct {
	service      *Service
	storyService *story.Service
	storyHandler *story.Handler
	bot          *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик свободного чата.
// Обработчик историй нужен для команд, переключающих диалог в поток историй.
func NewHandler(service *Service, storyService *story.Service, storyHandler *story.Handler, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{
		service:      service,
		storyService: storyService,
		storyHandler: storyHandler,
		bot:          bot,
	}
}

// HandleFreeText прогоняет реплику через движок чата и исполняет команду.
// Набор команд закрыт, switch исчерпывающий.
func (h *Handler) HandleFreeText(ctx context.Context, chatID int64, user *users.User, text string) {
	h.send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))

	resp, err := h.service.Chat(ctx, user, text)
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	switch resp.Command {
	case llm.CommandChat:
		h.send(tgbotapi.NewMessage(chatID, resp.Text))

	case llm.CommandShowScenarios:
		// Поток историй забирает диалог — сессию чата закрываем
		if err := h.service.DeactivateCurrentSession(ctx, user.UserID); err != nil {
			log.WithError(err).Warn("Не удалось закрыть сессию чата")
		}
		h.send(tgbotapi.NewMessage(chatID, resp.Text))
		h.storyHandler.SendScenarioMenu(ctx, chatID)

	case llm.CommandStartStory:
		if err := h.service.DeactivateCurrentSession(ctx, user.UserID); err != nil {
			log.WithError(err).Warn("Не удалось закрыть сессию чата")
		}
		scenarioText := strings.TrimSpace(resp.Text)
		if scenarioText == "" {
			h.storyHandler.SendScenarioMenu(ctx, chatID)
			return
		}
		h.storyHandler.HandleNewCommand(ctx, chatID, user, scenarioText)

	case llm.CommandEndStory:
		if _, err := h.storyService.DeactivateActiveStories(ctx, user.UserID); err != nil {
			log.WithError(err).WithField("user_id", user.UserID).Error("Ошибка завершения историй по команде чата")
			h.replyError(chatID, err)
			return
		}
		h.send(tgbotapi.NewMessage(chatID, resp.Text))
		h.storyHandler.SendScenarioMenu(ctx, chatID)
	}
}

// replyError переводит доменную ошибку в понятное пользователю сообщение.
func (h *Handler) replyError(chatID int64, err error) {
	switch {
	case errors.Is(err, common.ErrDailyChatLimit):
		h.send(tgbotapi.NewMessage(chatID, msgChatDailyLimit))
	case errors.Is(err, common.ErrEmptyChatText):
		// Пустой текст сюда обычно не доходит (бот отсекает раньше),
		// но на всякий случай молчим, а не пугаем пользователя
		log.Debug("Пустая реплика чата")
	default:
		correlationID := common.CorrelationID()
		log.WithError(err).WithField("correlation_id", correlationID).Error("Сбой свободного чата")
		h.send(tgbotapi.NewMessage(chatID, fmt.Sprintf(msgGenericError, correlationID)))
	}
}

func (h *Handler) send(c tgbotapi.Chattable) {
	if _, err := h.bot.Request(c); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
