// Package llm — parse.go превращает сырой текст модели в типизированные
// структуры. Парсеры чистые и не бросают ошибок: битый JSON или
// отсутствующий ключ — это sentinel nil, цикл структурных попыток
// наверху трактует его как «попробуй ещё раз».
package llm

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Option — один вариант продолжения истории.
type Option struct {
	ID   int
	Text string
}

// StoryResponse — распарсенный ответ модели на виток истории.
type StoryResponse struct {
	Title   string
	Story   string
	Options []Option
	IsEnd   bool
	// RawData — исходный текст модели, как он сохраняется в секции
	RawData string
}

// ChatCommand — закрытый набор команд свободного чата.
type ChatCommand string

const (
	CommandChat          ChatCommand = "CHAT"
	CommandShowScenarios ChatCommand = "SHOW_SCENARIOS"
	CommandStartStory    ChatCommand = "START_STORY"
	CommandEndStory      ChatCommand = "END_STORY"
)

// ChatResponse — распарсенный ответ модели в режиме свободного чата.
type ChatResponse struct {
	Command ChatCommand
	Text    string
	RawData string
}

// stripFences убирает маркеры код-блоков вокруг JSON.
func stripFences(text string) string {
	out := strings.ReplaceAll(text, "```json", "")
	out = strings.ReplaceAll(out, "```", "")
	return strings.TrimSpace(out)
}

// ParseStoryResponse разбирает ответ рассказчика.
// Возвращает nil, если JSON битый или не хватает обязательных ключей.
func ParseStoryResponse(text string) *StoryResponse {
	var raw struct {
		Title   *string           `json:"title"`
		Story   *string           `json:"story"`
		Options map[string]string `json:"options"`
		IsEnd   *bool             `json:"is_end"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &raw); err != nil {
		return nil
	}
	if raw.Title == nil || raw.Story == nil || raw.Options == nil || raw.IsEnd == nil {
		return nil
	}

	// Ключи options — строковые числа; порядок в JSON-объекте не гарантирован,
	// сортируем по числовому значению
	options := make([]Option, 0, len(raw.Options))
	for key, value := range raw.Options {
		id, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil
		}
		options = append(options, Option{ID: id, Text: value})
	}
	sort.Slice(options, func(i, j int) bool { return options[i].ID < options[j].ID })

	return &StoryResponse{
		Title:   *raw.Title,
		Story:   *raw.Story,
		Options: options,
		IsEnd:   *raw.IsEnd,
		RawData: text,
	}
}

// ParseChatResponse разбирает ответ свободного чата.
// Неизвестная команда — такой же брак, как и битый JSON.
func ParseChatResponse(text string) *ChatResponse {
	var raw struct {
		Command *string `json:"COMMAND"`
		Text    *string `json:"TEXT"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &raw); err != nil {
		return nil
	}
	if raw.Command == nil || raw.Text == nil {
		return nil
	}

	command := ChatCommand(strings.TrimSpace(*raw.Command))
	switch command {
	case CommandChat, CommandShowScenarios, CommandStartStory, CommandEndStory:
	default:
		return nil
	}

	return &ChatResponse{
		Command: command,
		Text:    *raw.Text,
		RawData: text,
	}
}
