// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: работа с временем и форматирование для отчётов.
package common

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// GetTehranTime возвращает текущее время в часовом поясе Тегерана (Asia/Tehran).
// Аудитория бота — Иран, дневные лимиты и cron-задачи считаются по этому поясу.
func GetTehranTime() time.Time {
	loc, err := time.LoadLocation("Asia/Tehran")
	if err != nil {
		// Если не удалось загрузить — используем UTC+3:30 вручную
		loc = time.FixedZone("IRST", 3*60*60+30*60)
	}
	return time.Now().In(loc)
}

// DayAgo возвращает момент «24 часа назад» — скользящее окно
// для дневных лимитов историй и чата.
func DayAgo() time.Time {
	return time.Now().Add(-24 * time.Hour)
}

// FormatCharge форматирует баланс пользователя для отчётов.
// Округление только при отображении, в БД хранится точное значение.
func FormatCharge(charge float64) string {
	return fmt.Sprintf("%.4f$", charge)
}

// CorrelationID генерирует короткий идентификатор для сообщений об ошибках.
// По нему инцидент можно найти в логах.
func CorrelationID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("t%d", time.Now().UnixNano()%100000000)
	}
	return hex.EncodeToString(b)
}
