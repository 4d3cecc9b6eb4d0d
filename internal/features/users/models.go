// Package users ведёт учёт пользователей: личность, активность
// и бегущий баланс расходов (charge).
// models.go описывает структуры для работы с таблицей users.
package users

import "time"

// User — пользователь бота.
// Charge — бегущий баланс: списывается при каждом платном вызове модели,
// пополняется только админом. Отрицательное значение означает, что
// пользователь выбрал бесплатный лимит — включаются дневные квоты.
type User struct {
	UserID    int64     `db:"user_id"`    // Telegram/Bale user ID (первичный ключ)
	Username  string    `db:"username"`   // @username (может быть пустым)
	FirstName string    `db:"first_name"` // Имя
	LastName  string    `db:"last_name"`  // Фамилия (может быть пустой)
	Active    bool      `db:"active"`     // Деактивированный пользователь не может ничего начать
	Charge    float64   `db:"charge"`     // Бегущий баланс в долларах
	CreatedAt time.Time `db:"created_at"` // Когда пользователь впервые написал боту
}

// DisplayName возвращает отображаемое имя пользователя.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}

// UsageReport — сводка потребления одного пользователя для админки.
type UsageReport struct {
	StoryCount   int
	SectionCount int
	Charge       float64
}
