// Package common — errors.go определяет доменные ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import "errors"

// Ошибки пользователей (учёт, баланс)
var (
	// ErrUserNotActive — пользователь деактивирован администратором
	ErrUserNotActive = errors.New("пользователь деактивирован")
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
)

// Ошибки историй
var (
	// ErrDailyStoryLimit — дневной лимит историй исчерпан (для ушедших в минус)
	ErrDailyStoryLimit = errors.New("дневной лимит историй исчерпан")
	// ErrFailedToGenerateStory — все попытки генерации (включая запасную модель) провалились
	ErrFailedToGenerateStory = errors.New("не удалось сгенерировать историю")
	// ErrInvalidRate — оценка вне диапазона 1..5
	ErrInvalidRate = errors.New("оценка должна быть от 1 до 5")
	// ErrStoryAlreadyRated — история уже оценена
	ErrStoryAlreadyRated = errors.New("история уже оценена")
	// ErrScenarioNotFound — сценарий не найден
	ErrScenarioNotFound = errors.New("сценарий не найден")
)

// Ошибки свободного чата
var (
	// ErrDailyChatLimit — дневной лимит сообщений чата исчерпан
	ErrDailyChatLimit = errors.New("дневной лимит сообщений чата исчерпан")
	// ErrFailedToGenerateChat — все попытки генерации ответа чата провалились
	ErrFailedToGenerateChat = errors.New("не удалось сгенерировать ответ чата")
	// ErrEmptyChatText — пустой текст сообщения
	ErrEmptyChatText = errors.New("текст сообщения не может быть пустым")
)

// Ошибки админки
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
)
