// Package story — format.go собирает пользовательские сообщения
// и inline-клавиатуры. Тексты — персидские, из продукта.
package story

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"iamamir.ir/mystery-bot/internal/llm"
)

// Типы callback-кнопок. Формат данных: TYPE:arg[:arg].
const (
	ButtonOption      = "OPTION"       // OPTION:<section_id>:<option_id>
	ButtonAIScenarios = "AI_SCENARIOS" // AI_SCENARIOS:<scenario_id>
	ButtonRate        = "RATE"         // RATE:<story_id>:<rate>
)

const (
	storyTextFormat = "*%s*\n\n%s\n\n*گزینه‌ها:*\n%s"
	endStoryFormat  = "*%s*\n\n%s"

	// Ответ на нажатие уже потраченной кнопки — защита от повтора
	msgCannotGoBack = "نمی‌تونی به قبل برگردی، انتخابت رو کردی! :)"
	msgRatePrompt   = "این داستان چطور بود؟ از ۱ تا ۵ امتیاز بده ⭐"
	msgRateThanks   = "مرسی از امتیازت! ⭐"
	msgRateOnce     = "قبلا به این داستان امتیاز دادی 🙂"
	msgDailyLimit   = "سهمیه امروزت تموم شده 🕐\nفردا دوباره سر بزن، یا برای شارژ حساب به @mthri پیام بده."
	msgNotActive    = "حسابت غیرفعال شده. برای پیگیری به @mthri پیام بده."
	msgGenericError = "یه مشکلی پیش اومد، چند لحظه دیگه دوباره امتحان کن 🙏\nکد پیگیری: %s"
)

// sponsorButton — рекламный ряд под каждой клавиатурой.
var sponsorButton = tgbotapi.NewInlineKeyboardButtonURL("[محل تبلیغ شما]", "https://iamamir.ir")

// FormatStoryMessage собирает текст витка: заголовок, тело и список
// вариантов (для завершённой истории — без вариантов).
func FormatStoryMessage(resp *llm.StoryResponse) string {
	if resp.IsEnd {
		return fmt.Sprintf(endStoryFormat, resp.Title, resp.Story)
	}

	var options strings.Builder
	for i, option := range resp.Options {
		if i > 0 {
			options.WriteByte('\n')
		}
		fmt.Fprintf(&options, "%d- %s", option.ID, option.Text)
	}
	return fmt.Sprintf(storyTextFormat, resp.Title, resp.Story, options.String())
}

// ChoiceKeyboard строит клавиатуру вариантов для секции.
func ChoiceKeyboard(section *Section, resp *llm.StoryResponse) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(resp.Options))
	for _, option := range resp.Options {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%d", option.ID),
			fmt.Sprintf("%s:%d:%d", ButtonOption, section.ID, option.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row, []tgbotapi.InlineKeyboardButton{sponsorButton})
}

// ScenarioMenu строит текст и клавиатуру меню сценариев.
func ScenarioMenu(scenarios []*Scenario) (string, tgbotapi.InlineKeyboardMarkup) {
	var text strings.Builder
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(scenarios))
	for index, scenario := range scenarios {
		fmt.Fprintf(&text, "*%d*- %s\n\n", index+1, scenario.Text)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%d", index+1),
			fmt.Sprintf("%s:%d", ButtonAIScenarios, scenario.ID),
		))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(row, []tgbotapi.InlineKeyboardButton{sponsorButton})
	return text.String(), markup
}

// RateKeyboard строит клавиатуру оценки завершённой истории.
func RateKeyboard(storyID int64) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, 5)
	for rate := 1; rate <= 5; rate++ {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%d⭐", rate),
			fmt.Sprintf("%s:%d:%d", ButtonRate, storyID, rate),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}
