// Package admin — handlers.go обрабатывает взаимодействие с панелью оператора.
// Панель работает через Reply Keyboard в личных сообщениях.
// Поток: /login → пароль → клавиатура → выбор действия → пошаговый диалог.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"iamamir.ir/mystery-bot/internal/common"
)

// Кнопки панели оператора.
const (
	btnCharge = "تغییر اعتبار"
	btnActive = "تغییر وضعیت کاربر"
	btnReport = "گزارش کاربر"
	btnLogout = "خروج"
)

// Handler обрабатывает команды оператора.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик панели оператора.
func NewHandler(service *Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleLogin обрабатывает команду /login. Доступна только пользователям
// из белого списка операторов.
func (h *Handler) HandleLogin(ctx context.Context, chatID, userID int64) {
	if !h.service.IsAdmin(userID) {
		h.sendMessage(chatID, "این دستور برای شما در دسترس نیست.")
		return
	}
	if h.service.HasActiveSession(ctx, userID) {
		h.showKeyboard(chatID)
		return
	}
	h.sendMessage(chatID, "🔐 رمز عبور پنل مدیریت را وارد کنید:")
	h.service.SetState(userID, StateAwaitingPassword, nil)
}

// HandleAdminMessage обрабатывает текстовое сообщение от оператора в DM.
// Возвращает true, если сообщение относится к панели и обработано;
// иначе false — сообщение продолжает обычную маршрутизацию.
func (h *Handler) HandleAdminMessage(ctx context.Context, chatID, userID int64, text string) bool {
	if !h.service.IsAdmin(userID) {
		return false
	}

	state := h.service.GetState(userID)

	// Ввод пароля обрабатывается до проверки сессии
	if state != nil && state.State == StateAwaitingPassword {
		h.handlePasswordInput(ctx, chatID, userID, text)
		return true
	}

	// Без активной сессии панель не перехватывает сообщения:
	// оператор тоже играет в истории и общается с ботом.
	if !h.service.HasActiveSession(ctx, userID) {
		return false
	}

	if err := h.service.repo.UpdateActivity(ctx, userID); err != nil {
		log.WithError(err).Warn("Не удалось обновить активность сессии")
	}

	if state != nil {
		switch state.State {
		case StateChargeSelect:
			h.handleTargetInput(chatID, userID, text, StateChargeAmount,
				"مبلغ تغییر اعتبار را به دلار وارد کنید (مثلاً 0.5 یا -0.5):")
			return true
		case StateChargeAmount:
			h.handleChargeAmount(ctx, chatID, userID, state, text)
			return true
		case StateActiveSelect:
			h.handleToggleActive(ctx, chatID, userID, text)
			return true
		case StateReportSelect:
			h.handleReport(ctx, chatID, userID, text)
			return true
		}
	}

	switch text {
	case btnCharge:
		h.service.SetState(userID, StateChargeSelect, nil)
		h.sendMessage(chatID, "شناسه عددی کاربر را وارد کنید:")
		return true
	case btnActive:
		h.service.SetState(userID, StateActiveSelect, nil)
		h.sendMessage(chatID, "شناسه عددی کاربر را وارد کنید:")
		return true
	case btnReport:
		h.service.SetState(userID, StateReportSelect, nil)
		h.sendMessage(chatID, "شناسه عددی کاربر را وارد کنید:")
		return true
	case btnLogout:
		if err := h.service.Logout(ctx, userID); err != nil {
			log.WithError(err).Error("Ошибка закрытия сессии оператора")
		}
		h.sendMessageWithKeyboard(chatID, "از پنل خارج شدید.", tgbotapi.NewRemoveKeyboard(true))
		return true
	}

	return false
}

// handlePasswordInput обрабатывает ввод пароля.
func (h *Handler) handlePasswordInput(ctx context.Context, chatID, userID int64, password string) {
	err := h.service.VerifyPassword(ctx, userID, password)
	h.service.ClearState(userID)
	switch {
	case errors.Is(err, common.ErrTooManyAttempts):
		h.sendMessage(chatID, "❌ تعداد تلاش‌ها بیش از حد مجاز است. یک ساعت دیگر دوباره امتحان کنید.")
	case errors.Is(err, common.ErrWrongPassword):
		h.sendMessage(chatID, "❌ رمز عبور اشتباه است.")
	case err != nil:
		log.WithError(err).Error("Ошибка аутентификации оператора")
		h.sendMessage(chatID, "❌ خطایی رخ داد. دوباره تلاش کنید.")
	default:
		h.sendMessage(chatID, "✅ ورود موفق!")
		h.showKeyboard(chatID)
	}
}

// handleTargetInput разбирает id пользователя и переводит диалог в следующее состояние.
func (h *Handler) handleTargetInput(chatID, userID int64, text, nextState, prompt string) {
	target, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		h.sendMessage(chatID, "شناسه نامعتبر است. یک عدد وارد کنید.")
		return
	}
	h.service.SetState(userID, nextState, target)
	h.sendMessage(chatID, prompt)
}

// handleChargeAmount разбирает сумму и применяет её к выбранному пользователю.
func (h *Handler) handleChargeAmount(ctx context.Context, chatID, userID int64, state *State, text string) {
	target, ok := state.Data.(int64)
	if !ok {
		h.service.ClearState(userID)
		h.sendMessage(chatID, "حالت گفتگو منقضی شد. دوباره شروع کنید.")
		return
	}
	delta, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		h.sendMessage(chatID, "مبلغ نامعتبر است. یک عدد وارد کنید (مثلاً 0.5).")
		return
	}
	h.service.ClearState(userID)

	u, err := h.service.AdjustCharge(ctx, target, delta)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("✅ اعتبار کاربر %d تغییر کرد. موجودی جدید: %s",
		u.UserID, common.FormatCharge(u.Charge)))
}

// handleToggleActive переключает флаг active выбранного пользователя.
func (h *Handler) handleToggleActive(ctx context.Context, chatID, userID int64, text string) {
	target, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		h.sendMessage(chatID, "شناسه نامعتبر است. یک عدد وارد کنید.")
		return
	}
	h.service.ClearState(userID)

	active, err := h.service.ToggleActive(ctx, target)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	status := "غیرفعال"
	if active {
		status = "فعال"
	}
	h.sendMessage(chatID, fmt.Sprintf("✅ کاربر %d اکنون %s است.", target, status))
}

// handleReport отправляет сводку расходов выбранного пользователя.
func (h *Handler) handleReport(ctx context.Context, chatID, userID int64, text string) {
	target, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		h.sendMessage(chatID, "شناسه نامعتبر است. یک عدد وارد کنید.")
		return
	}
	h.service.ClearState(userID)

	u, report, err := h.service.UserReport(ctx, target)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	h.sendMessage(chatID, fmt.Sprintf(
		"👤 %s (%d)\nداستان‌ها: %d\nبخش‌ها: %d\nموجودی: %s",
		u.DisplayName(), u.UserID, report.StoryCount, report.SectionCount,
		common.FormatCharge(report.Charge)))
}

// showKeyboard отображает клавиатуру панели оператора.
func (h *Handler) showKeyboard(chatID int64) {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCharge),
			tgbotapi.NewKeyboardButton(btnActive),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnReport),
			tgbotapi.NewKeyboardButton(btnLogout),
		),
	)
	keyboard.ResizeKeyboard = true
	h.sendMessageWithKeyboard(chatID, "پنل مدیریت — یک عملیات را انتخاب کنید:", keyboard)
}

func (h *Handler) replyError(chatID int64, err error) {
	if errors.Is(err, common.ErrUserNotFound) {
		h.sendMessage(chatID, "کاربری با این شناسه پیدا نشد.")
		return
	}
	log.WithError(err).Error("Ошибка в панели оператора")
	h.sendMessage(chatID, "❌ خطایی رخ داد. دوباره تلاش کنید.")
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Request(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения оператору")
	}
}

func (h *Handler) sendMessageWithKeyboard(chatID int64, text string, keyboard interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	if _, err := h.bot.Request(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения оператору")
	}
}
