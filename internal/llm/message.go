// Package llm инкапсулирует работу с OpenAI-совместимым API:
// клиент с повторами, политику структурных попыток, цены токенов,
// промпты и парсеры ответов модели.
package llm

// Роли сообщений в транскрипте.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message — одно сообщение транскрипта, отправляемого модели.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result — ответ модели вместе со счётчиками токенов.
type Result struct {
	Text         string
	InputTokens  int
	OutputTokens int
}
