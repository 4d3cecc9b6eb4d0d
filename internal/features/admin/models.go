// Package admin реализует панель оператора с парольной аутентификацией.
// models.go описывает структуры сессий и попыток входа.
package admin

import "time"

// Session — активная сессия оператора.
type Session struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	SessionToken    string    `db:"session_token"`
	AuthenticatedAt time.Time `db:"authenticated_at"`
	ExpiresAt       time.Time `db:"expires_at"`
	LastActivity    time.Time `db:"last_activity"`
	IsActive        bool      `db:"is_active"`
}

// LoginAttempt — попытка входа (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	AttemptTime time.Time `db:"attempt_time"`
	Success     bool      `db:"success"`
}

// State — состояние диалога с оператором (конечный автомат).
// Панель работает по шагам: выбор действия → ввод id пользователя → ввод значения.
type State struct {
	State     string      // Текущее состояние ("", "awaiting_password", ...)
	Data      interface{} // Данные контекста (выбранный пользователь)
	ExpiresAt time.Time   // Когда состояние истекает (5 минут)
}

// Возможные состояния диалога оператора
const (
	StateNone             = ""                   // Нет активного состояния
	StateAwaitingPassword = "awaiting_password"  // Ждём пароль
	StateChargeSelect     = "charge_select"      // Ждём id пользователя для изменения баланса
	StateChargeAmount     = "charge_amount"      // Ждём сумму (положительную или отрицательную)
	StateActiveSelect     = "active_select"      // Ждём id пользователя для вкл/выкл
	StateReportSelect     = "report_select"      // Ждём id пользователя для отчёта
)
