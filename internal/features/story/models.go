// Package story реализует движок интерактивных историй: жизненный цикл
// истории, витки (секции), сценарии-затравки и защиту от повторного
// нажатия старых кнопок.
// models.go описывает структуры для таблиц stories, sections и scenarios.
package story

import "time"

// Story — одна интерактивная история пользователя.
// Инвариант: у пользователя не больше одной истории с is_end=false.
type Story struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	IsEnd     bool      `db:"is_end"`     // История завершена (моделью или принудительно)
	Rate      *int      `db:"rate"`       // Оценка 1..5, ставится один раз после конца
	CreatedAt time.Time `db:"created_at"`
}

// Section — один виток истории.
// is_system=true: текст модели (сырой JSON) либо системная инструкция;
// is_system=false: выбор пользователя или текст сценария.
// used=true означает, что варианты этой секции уже потрачены —
// это и есть защита от повторного нажатия.
type Section struct {
	ID        int64     `db:"id"`
	StoryID   int64     `db:"story_id"`
	Text      string    `db:"text"`
	IsSystem  bool      `db:"is_system"`
	Used      bool      `db:"used"`
	CreatedAt time.Time `db:"created_at"`
}

// Scenario — затравка истории. Системные (is_system=true) лежат в пуле
// со story_id=NULL, пока кто-нибудь их не заберёт; пользовательские
// привязываются к истории сразу при создании.
type Scenario struct {
	ID        int64     `db:"id"`
	StoryID   *int64    `db:"story_id"`
	Text      string    `db:"text"`
	IsSystem  bool      `db:"is_system"`
	CreatedAt time.Time `db:"created_at"`
}
