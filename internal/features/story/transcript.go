// Package story — transcript.go восстанавливает транскрипт для модели
// из сохранённых секций истории.
package story

import "iamamir.ir/mystery-bot/internal/llm"

// Transcript строит упорядоченный список сообщений из секций истории.
// Правило ролей: первая системная секция (индекс 0) — системная инструкция,
// все последующие системные секции — ответы модели (assistant),
// несистемные секции — реплики пользователя.
// Функция чистая: два вызова подряд над одними секциями дают
// идентичный результат.
func Transcript(sections []*Section) []llm.Message {
	messages := make([]llm.Message, 0, len(sections))
	for index, section := range sections {
		if section.IsSystem {
			role := llm.RoleAssistant
			if index == 0 {
				role = llm.RoleSystem
			}
			messages = append(messages, llm.Message{Role: role, Content: section.Text})
		} else {
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: section.Text})
		}
	}
	return messages
}
