// Package history ведёт append-only журнал всех вызовов модели.
// Записи неизменяемы; журнал нужен для разбора инцидентов и аудита
// расходов, бизнес-логика его не читает.
package history

import "time"

// Record — один вызов модели: идентификатор модели, сериализованный
// промпт и сырой ответ.
type Record struct {
	ID        int64     `db:"id"`
	Model     string    `db:"model"`
	Prompt    string    `db:"prompt"`
	Response  string    `db:"response"`
	CreatedAt time.Time `db:"created_at"`
}
