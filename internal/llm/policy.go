// Package llm — policy.go описывает политику структурных попыток генерации.
// Транспортные повторы (rate limit, 5xx) живут в клиенте; эта политика
// отвечает за повторы при семантическом браке — модель вернула текст,
// который не распарсился в ожидаемую структуру.
package llm

// GenerationPolicy задаёт число структурных попыток и момент
// переключения на запасную модель.
type GenerationPolicy struct {
	// Сколько всего попыток распарсить ответ модели
	MaxAttempts int
	// Основная модель
	PrimaryModel string
	// Запасная модель для последней попытки (пустая строка — не переключаемся)
	FallbackModel string
}

// ModelFor возвращает модель для попытки attempt (нумерация с нуля).
// Последняя попытка уходит на запасную модель.
func (p GenerationPolicy) ModelFor(attempt int) string {
	if p.FallbackModel != "" && attempt >= p.MaxAttempts-1 {
		return p.FallbackModel
	}
	return p.PrimaryModel
}
