// Package bot содержит главный модуль бота — инициализацию, запуск и остановку.
// bot.go запускает polling и маршрутизирует апдейты к обработчикам фич.
package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"iamamir.ir/mystery-bot/internal/bot/middleware"
	"iamamir.ir/mystery-bot/internal/common"
	"iamamir.ir/mystery-bot/internal/config"
	"iamamir.ir/mystery-bot/internal/features/admin"
	"iamamir.ir/mystery-bot/internal/features/chat"
	"iamamir.ir/mystery-bot/internal/features/story"
	"iamamir.ir/mystery-bot/internal/features/users"
)

// Тексты онбординга. Бот говорит по-персидски.
const (
	msgStart = `سلام! 👋
من یک کارآگاه هوش مصنوعی هستم که با جدیدترین مدل‌های زبانی، داستان‌های جنایی منحصربه‌فردی برای تو می‌سازم! 🔎

🔹 هر داستان مخصوص تو خلق می‌شه، هیچ‌کس دیگه‌ای تجربه‌ی مشابهی نخواهد داشت!
🔹 در هر مرحله، انتخاب‌هایی داری که مسیر داستان رو تغییر می‌ده. اما مراقب باش، این انتخاب‌ها برگشت‌ناپذیرن! 🤯
🔹 برای شروع، دستور /new رو بفرست.
🔹 برای راهنما، دستور /help رو امتحان کن.

🎭 آماده‌ای وارد دنیای رازآلود من بشی؟ یه معمای جذاب در انتظارت هست! 🕵️‍♂️`

	msgHelp = `📌 *راهنمای ربات مستر میستری*

👋 سلام! اینجا می‌تونی داستان‌های جنایی منحصر‌به‌فرد خودت رو بسازی. برای استفاده از ربات، این دستورات رو در نظر داشته باش:

🔹 */new* – شروع یک داستان جدید
- اگر این دستور رو *بدون متن* بفرستی، هوش مصنوعی چند سناریو جذاب پیشنهاد می‌کنه و تو می‌تونی یکی رو انتخاب کنی.
- اگه *بعد از این دستور، سناریوی مدنظرت رو بنویسی*، داستان دقیقاً طبق ایده‌ی تو جلو می‌ره!

مثال:
` + "```" + ` /new یک کارآگاه خصوصی در یک شب بارانی بسته‌ای ناشناس دریافت می‌کند... ` + "```" + `
🔸 بعد از ارسال این پیام، ربات داستان رو بر اساس سناریوی تو ادامه می‌ده!

📢 *نکته:* این ربات در حال توسعه هست! اگر مشکلی دیدی یا پیشنهادی داشتی، از طریق آیدی @mthri با ما در ارتباط باش.

🔍 آماده‌ای رازها رو کشف کنی؟ فقط یه دستور کافیه! 🚀`

	msgUnknown    = "متوجه منظورت نشدم 🤔\nبهتر از دستور /help استفاده کنی."
	msgUnknownBtn = "دنبال چی میگردی شیطون؟ :)"
	msgNotActive  = "حساب کاربری شما غیرفعال شده است."
)

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	rateLimiter *middleware.RateLimiter
	userLock    *middleware.UserLock
	dedup       *middleware.Dedup

	usersService *users.Service
	storyHandler *story.Handler
	chatHandler  *chat.Handler
	adminHandler *admin.Handler

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	usersService *users.Service,
	storyHandler *story.Handler,
	chatHandler *chat.Handler,
	adminHandler *admin.Handler,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:          api,
		cfg:          cfg,
		rateLimiter:  middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		userLock:     middleware.NewUserLock(),
		dedup:        middleware.NewDedup(cfg.DedupCacheSize),
		usersService: usersService,
		storyHandler: storyHandler,
		chatHandler:  chatHandler,
		adminHandler: adminHandler,
		inflight:     make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			b.rateLimiter.Close()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic()

	// При обрыве long-poll апдейт может прийти повторно
	if b.dedup.Seen(update.UpdateID) {
		log.WithField("update_id", update.UpdateID).Debug("Повторный апдейт, пропущен")
		return
	}

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Text != "":
		b.handleMessage(ctx, update.Message)
	}
}

// handleMessage обрабатывает текстовое сообщение.
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	// Бот работает только в личных сообщениях
	if message.Chat == nil || !message.Chat.IsPrivate() || message.From == nil {
		return
	}

	middleware.LogMessage(message)

	chatID := message.Chat.ID
	userID := message.From.ID

	if !b.rateLimiter.Allow(userID) {
		log.WithField("user_id", userID).Debug("rate limited")
		return
	}

	// Один пользователь — один запрос за раз: генерация хода занимает
	// секунды, параллельный запрос молча отбрасываем
	if !b.userLock.TryAcquire(userID) {
		log.WithField("user_id", userID).Debug("Пользователь занят, апдейт отброшен")
		return
	}
	defer b.userLock.Release(userID)

	user, err := b.ensureUser(ctx, chatID, message)
	if user == nil {
		if err != nil {
			log.WithError(err).WithField("user_id", userID).Error("Ошибка регистрации пользователя")
		}
		return
	}

	text := strings.TrimSpace(message.Text)

	cmd, args := parseCommand(text)
	switch cmd {
	case "start":
		b.sendMessage(chatID, msgStart)
		return
	case "help":
		b.sendMarkdown(chatID, msgHelp)
		return
	case "new":
		b.storyHandler.HandleNewCommand(ctx, chatID, user, args)
		return
	case "login":
		b.adminHandler.HandleLogin(ctx, chatID, userID)
		return
	}

	// Свободный текст: сначала state-машина панели оператора
	if b.adminHandler.HandleAdminMessage(ctx, chatID, userID, text) {
		return
	}

	if b.cfg.FeatureChatEnabled {
		b.chatHandler.HandleFreeText(ctx, chatID, user, text)
		return
	}
	b.sendMessage(chatID, msgUnknown)
}

// handleCallback обрабатывает нажатие inline-кнопки.
func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return
	}

	middleware.LogCallback(cb)

	chatID := cb.Message.Chat.ID
	userID := cb.From.ID

	// Убираем «часики» на кнопке
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.WithError(err).Debug("Не удалось ответить на callback")
	}

	if !b.userLock.TryAcquire(userID) {
		log.WithField("user_id", userID).Debug("Пользователь занят, callback отброшен")
		return
	}
	defer b.userLock.Release(userID)

	user, err := b.usersService.GetUser(ctx, userID,
		cb.From.UserName, cb.From.FirstName, cb.From.LastName)
	if err != nil {
		if errors.Is(err, common.ErrUserNotActive) {
			b.sendMessage(chatID, msgNotActive)
			return
		}
		log.WithError(err).WithField("user_id", userID).Error("Ошибка чтения пользователя")
		return
	}

	kind, parts := parseCallbackData(cb.Data)
	switch kind {
	case story.ButtonOption:
		if len(parts) != 2 {
			return
		}
		sectionID, err1 := strconv.ParseInt(parts[0], 10, 64)
		option, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return
		}
		b.storyHandler.HandleOptionCallback(ctx, chatID, user, sectionID, option)

	case story.ButtonAIScenarios:
		if len(parts) != 1 {
			return
		}
		scenarioID, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return
		}
		b.storyHandler.HandleScenarioCallback(ctx, chatID, user, scenarioID)

	case story.ButtonRate:
		if len(parts) != 2 {
			return
		}
		storyID, err1 := strconv.ParseInt(parts[0], 10, 64)
		rate, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return
		}
		b.storyHandler.HandleRateCallback(ctx, chatID, user, storyID, rate)

	default:
		b.sendMessage(chatID, msgUnknownBtn)
	}
}

// ensureUser регистрирует/обновляет пользователя и проверяет флаг active.
// Для отключённых пользователей отправляет отказ и возвращает nil.
func (b *Bot) ensureUser(ctx context.Context, chatID int64, message *tgbotapi.Message) (*users.User, error) {
	user, err := b.usersService.GetUser(ctx, message.From.ID,
		message.From.UserName, message.From.FirstName, message.From.LastName)
	if err != nil {
		if errors.Is(err, common.ErrUserNotActive) {
			b.sendMessage(chatID, msgNotActive)
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// parseCommand выделяет команду и хвост аргументов.
// "/new текст сценария" → ("new", "текст сценария"); не-команда → ("", text).
func parseCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	rest := strings.TrimPrefix(text, "/")
	parts := strings.SplitN(rest, " ", 2)
	cmd := strings.ToLower(strings.TrimSpace(parts[0]))
	args := ""
	if len(parts) == 2 {
		args = strings.TrimSpace(parts[1])
	}
	return cmd, args
}

// parseCallbackData разбирает данные кнопки вида TYPE:a:b.
func parseCallbackData(data string) (string, []string) {
	parts := strings.Split(data, ":")
	if len(parts) < 2 {
		return "", nil
	}
	return parts[0], parts[1:]
}

// sendMessage — утилита для отправки сообщений.
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Request(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Request(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
