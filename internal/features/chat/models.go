// Package chat реализует свободный разговорный канал, параллельный
// структурированным историям: сессии с окном по количеству сообщений
// и классификацией команд из ответа модели.
// models.go описывает структуры для таблиц sessions и chats.
package chat

import "time"

// Session — разговорная сессия. У пользователя активна максимум одна;
// при достижении лимита сообщений сессия закрывается и следующая
// реплика начинает новую.
type Session struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
}

// Chat — одна реплика сессии. Та же форма, что у секции истории:
// is_system=true — инструкция (первая) или сырой ответ модели,
// is_system=false — реплика пользователя.
type Chat struct {
	ID        int64     `db:"id"`
	SessionID int64     `db:"session_id"`
	Text      string    `db:"text"`
	IsSystem  bool      `db:"is_system"`
	CreatedAt time.Time `db:"created_at"`
}
