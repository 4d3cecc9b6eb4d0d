// Package story — repository.go выполняет операции с таблицами
// stories, sections и scenarios.
package story

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"iamamir.ir/mystery-bot/internal/common"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateStory создаёт новую историю пользователя.
func (r *Repository) CreateStory(ctx context.Context, userID int64) (*Story, error) {
	query := `
		INSERT INTO stories (user_id)
		VALUES ($1)
		RETURNING id, user_id, is_end, rate, created_at
	`
	var s Story
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&s.ID, &s.UserID, &s.IsEnd, &s.Rate, &s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания истории (user_id=%d): %w", userID, err)
	}
	return &s, nil
}

// GetStory возвращает историю по ID.
func (r *Repository) GetStory(ctx context.Context, storyID int64) (*Story, error) {
	query := `SELECT id, user_id, is_end, rate, created_at FROM stories WHERE id = $1`
	var s Story
	err := r.db.QueryRow(ctx, query, storyID).Scan(
		&s.ID, &s.UserID, &s.IsEnd, &s.Rate, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("история не найдена (id=%d): %w", storyID, err)
		}
		return nil, fmt.Errorf("ошибка чтения истории (id=%d): %w", storyID, err)
	}
	return &s, nil
}

// DeactivateActive завершает все незаконченные истории пользователя.
// Возвращает число затронутых строк: обычно 0 или 1, но исторические
// несогласованности (несколько активных) тоже закрываются за один вызов.
func (r *Repository) DeactivateActive(ctx context.Context, userID int64) (int64, error) {
	query := `UPDATE stories SET is_end = TRUE WHERE user_id = $1 AND is_end = FALSE`
	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("ошибка завершения историй (user_id=%d): %w", userID, err)
	}
	return tag.RowsAffected(), nil
}

// MarkEnded помечает одну историю завершённой.
func (r *Repository) MarkEnded(ctx context.Context, storyID int64) error {
	query := `UPDATE stories SET is_end = TRUE WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, storyID); err != nil {
		return fmt.Errorf("ошибка завершения истории (id=%d): %w", storyID, err)
	}
	return nil
}

// CountSince считает истории пользователя за скользящее окно
// (для дневного лимита).
func (r *Repository) CountSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM stories WHERE user_id = $1 AND created_at >= $2`
	var count int
	if err := r.db.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта историй (user_id=%d): %w", userID, err)
	}
	return count, nil
}

// SetRate ставит оценку истории. Срабатывает только один раз:
// повторная попытка не затронет ни одной строки.
func (r *Repository) SetRate(ctx context.Context, storyID int64, rate int) (bool, error) {
	query := `UPDATE stories SET rate = $2 WHERE id = $1 AND rate IS NULL`
	tag, err := r.db.Exec(ctx, query, storyID, rate)
	if err != nil {
		return false, fmt.Errorf("ошибка сохранения оценки (id=%d): %w", storyID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// SectionsHistory возвращает секции истории в хронологическом порядке.
// Порядок строгий: created_at, затем id — секции одного витка
// вставляются в одной транзакции и могут иметь одинаковый timestamp.
func (r *Repository) SectionsHistory(ctx context.Context, storyID int64) ([]*Section, error) {
	query := `
		SELECT id, story_id, text, is_system, used, created_at
		FROM sections
		WHERE story_id = $1
		ORDER BY created_at, id
	`
	return r.querySections(ctx, query, storyID)
}

// InsertStartSections атомарно сохраняет старт истории: инструкцию,
// сценарий и первый ответ модели — и привязывает сценарий к истории.
// Либо всё, либо ничего: полуначатых историй в БД не бывает.
func (r *Repository) InsertStartSections(ctx context.Context, storyID, scenarioID int64, promptText, scenarioText, rawOutput string) (*Section, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `INSERT INTO sections (story_id, text, is_system) VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, insert, storyID, promptText, true); err != nil {
		return nil, fmt.Errorf("ошибка вставки инструкции: %w", err)
	}
	if _, err := tx.Exec(ctx, insert, storyID, scenarioText, false); err != nil {
		return nil, fmt.Errorf("ошибка вставки сценария: %w", err)
	}

	var section Section
	err = tx.QueryRow(ctx, `
		INSERT INTO sections (story_id, text, is_system)
		VALUES ($1, $2, TRUE)
		RETURNING id, story_id, text, is_system, used, created_at
	`, storyID, rawOutput).Scan(
		&section.ID, &section.StoryID, &section.Text,
		&section.IsSystem, &section.Used, &section.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка вставки ответа модели: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE scenarios SET story_id = $2 WHERE id = $1`, scenarioID, storyID,
	); err != nil {
		return nil, fmt.Errorf("ошибка привязки сценария: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return &section, nil
}

// InsertTurnSections атомарно сохраняет один виток: выбор пользователя
// и сырой ответ модели. Возвращает секцию с ответом модели.
func (r *Repository) InsertTurnSections(ctx context.Context, storyID int64, choiceText, rawOutput string) (*Section, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO sections (story_id, text, is_system) VALUES ($1, $2, FALSE)`,
		storyID, choiceText,
	); err != nil {
		return nil, fmt.Errorf("ошибка вставки выбора: %w", err)
	}

	var section Section
	err = tx.QueryRow(ctx, `
		INSERT INTO sections (story_id, text, is_system)
		VALUES ($1, $2, TRUE)
		RETURNING id, story_id, text, is_system, used, created_at
	`, storyID, rawOutput).Scan(
		&section.ID, &section.StoryID, &section.Text,
		&section.IsSystem, &section.Used, &section.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка вставки ответа модели: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return &section, nil
}

// SectionWithStoryEnd возвращает секцию вместе с флагом завершённости
// её истории. Если секции нет — nil без ошибки.
func (r *Repository) SectionWithStoryEnd(ctx context.Context, sectionID int64) (*Section, bool, error) {
	query := `
		SELECT s.id, s.story_id, s.text, s.is_system, s.used, s.created_at, st.is_end
		FROM sections s
		JOIN stories st ON st.id = s.story_id
		WHERE s.id = $1
	`
	var section Section
	var ended bool
	err := r.db.QueryRow(ctx, query, sectionID).Scan(
		&section.ID, &section.StoryID, &section.Text,
		&section.IsSystem, &section.Used, &section.CreatedAt, &ended,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("ошибка чтения секции (id=%d): %w", sectionID, err)
	}
	return &section, ended, nil
}

// MarkSectionUsed помечает секцию использованной. Идемпотентно.
func (r *Repository) MarkSectionUsed(ctx context.Context, sectionID int64) error {
	query := `UPDATE sections SET used = TRUE WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, sectionID); err != nil {
		return fmt.Errorf("ошибка пометки секции (id=%d): %w", sectionID, err)
	}
	return nil
}

// CreateScenario сохраняет сценарий. Для системных storyID == nil —
// сценарий попадает в пул.
func (r *Repository) CreateScenario(ctx context.Context, storyID *int64, text string, isSystem bool) (*Scenario, error) {
	query := `
		INSERT INTO scenarios (story_id, text, is_system)
		VALUES ($1, $2, $3)
		RETURNING id, story_id, text, is_system, created_at
	`
	var sc Scenario
	err := r.db.QueryRow(ctx, query, storyID, text, isSystem).Scan(
		&sc.ID, &sc.StoryID, &sc.Text, &sc.IsSystem, &sc.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания сценария: %w", err)
	}
	return &sc, nil
}

// GetScenario возвращает сценарий по ID.
func (r *Repository) GetScenario(ctx context.Context, scenarioID int64) (*Scenario, error) {
	query := `SELECT id, story_id, text, is_system, created_at FROM scenarios WHERE id = $1`
	var sc Scenario
	err := r.db.QueryRow(ctx, query, scenarioID).Scan(
		&sc.ID, &sc.StoryID, &sc.Text, &sc.IsSystem, &sc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("id=%d: %w", scenarioID, common.ErrScenarioNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения сценария (id=%d): %w", scenarioID, err)
	}
	return &sc, nil
}

// UnusedSystemScenarios возвращает непотреблённые системные сценарии из пула.
func (r *Repository) UnusedSystemScenarios(ctx context.Context, limit int) ([]*Scenario, error) {
	query := `
		SELECT id, story_id, text, is_system, created_at
		FROM scenarios
		WHERE story_id IS NULL AND is_system = TRUE
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса пула сценариев: %w", err)
	}
	defer rows.Close()

	var out []*Scenario
	for rows.Next() {
		var sc Scenario
		if err := rows.Scan(&sc.ID, &sc.StoryID, &sc.Text, &sc.IsSystem, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования сценария: %w", err)
		}
		out = append(out, &sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

// CountUnusedSystemScenarios возвращает размер пула.
func (r *Repository) CountUnusedSystemScenarios(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM scenarios WHERE story_id IS NULL AND is_system = TRUE`
	var count int
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта пула сценариев: %w", err)
	}
	return count, nil
}

// --- Запросы для офлайн-тулинга (storyctl) ---

// Counts возвращает счётчики для системного отчёта.
// sections — сырое число строк; секции идут парами «ход + ответ»,
// делить на витки — забота отчёта.
func (r *Repository) Counts(ctx context.Context) (stories, sections, scenarios int, err error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM stories),
			(SELECT COUNT(*) FROM sections),
			(SELECT COUNT(*) FROM scenarios)
	`
	if err = r.db.QueryRow(ctx, query).Scan(&stories, &sections, &scenarios); err != nil {
		err = fmt.Errorf("ошибка счётчиков: %w", err)
	}
	return
}

// ListByUser возвращает все истории пользователя (для экспорта).
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]*Story, error) {
	query := `SELECT id, user_id, is_end, rate, created_at FROM stories WHERE user_id = $1 ORDER BY id`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса историй: %w", err)
	}
	defer rows.Close()

	var out []*Story
	for rows.Next() {
		var s Story
		if err := rows.Scan(&s.ID, &s.UserID, &s.IsEnd, &s.Rate, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования истории: %w", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

// ListScenarios возвращает все сценарии (для экспорта).
func (r *Repository) ListScenarios(ctx context.Context) ([]*Scenario, error) {
	query := `SELECT id, story_id, text, is_system, created_at FROM scenarios ORDER BY id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса сценариев: %w", err)
	}
	defer rows.Close()

	var out []*Scenario
	for rows.Next() {
		var sc Scenario
		if err := rows.Scan(&sc.ID, &sc.StoryID, &sc.Text, &sc.IsSystem, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования сценария: %w", err)
		}
		out = append(out, &sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

// ImportStory восстанавливает историю из дампа с исходным ID.
func (r *Repository) ImportStory(ctx context.Context, s *Story) error {
	query := `INSERT INTO stories (id, user_id, is_end, rate, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.Exec(ctx, query, s.ID, s.UserID, s.IsEnd, s.Rate, s.CreatedAt); err != nil {
		return fmt.Errorf("ошибка импорта истории (id=%d): %w", s.ID, err)
	}
	return nil
}

// ImportSection восстанавливает секцию из дампа с исходным ID.
func (r *Repository) ImportSection(ctx context.Context, s *Section) error {
	query := `INSERT INTO sections (id, story_id, text, is_system, used, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.Exec(ctx, query, s.ID, s.StoryID, s.Text, s.IsSystem, s.Used, s.CreatedAt); err != nil {
		return fmt.Errorf("ошибка импорта секции (id=%d): %w", s.ID, err)
	}
	return nil
}

// ImportScenario восстанавливает сценарий из дампа с исходным ID.
func (r *Repository) ImportScenario(ctx context.Context, sc *Scenario) error {
	query := `INSERT INTO scenarios (id, story_id, text, is_system, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.Exec(ctx, query, sc.ID, sc.StoryID, sc.Text, sc.IsSystem, sc.CreatedAt); err != nil {
		return fmt.Errorf("ошибка импорта сценария (id=%d): %w", sc.ID, err)
	}
	return nil
}

// ResetSequences выравнивает автоинкременты после импорта с явными ID.
func (r *Repository) ResetSequences(ctx context.Context) error {
	statements := []string{
		`SELECT setval(pg_get_serial_sequence('stories', 'id'), COALESCE((SELECT MAX(id) FROM stories), 1))`,
		`SELECT setval(pg_get_serial_sequence('sections', 'id'), COALESCE((SELECT MAX(id) FROM sections), 1))`,
		`SELECT setval(pg_get_serial_sequence('scenarios', 'id'), COALESCE((SELECT MAX(id) FROM scenarios), 1))`,
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ошибка сброса последовательностей: %w", err)
		}
	}
	return nil
}

func (r *Repository) querySections(ctx context.Context, query string, args ...interface{}) ([]*Section, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса секций: %w", err)
	}
	defer rows.Close()

	var out []*Section
	for rows.Next() {
		var s Section
		if err := rows.Scan(&s.ID, &s.StoryID, &s.Text, &s.IsSystem, &s.Used, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования секции: %w", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}
