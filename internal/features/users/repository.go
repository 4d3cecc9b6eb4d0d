// Package users — repository.go отвечает за все операции с таблицей users в БД.
// Каждая функция выполняет один SQL-запрос и возвращает результат или ошибку.
package users

import (
	"context"
	"errors"
	"fmt"

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

// GetOrCreate возвращает пользователя, создавая запись при первом контакте.
// На конфликте по user_id обновляет только имя/username — active и charge
// не трогаем, это источник истины для лимитов.
func (r *Repository) GetOrCreate(ctx context.Context, userID int64, username, firstName, lastName string) (*User, error) {
	query := `
		INSERT INTO users (user_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name
		RETURNING user_id, username, first_name, last_name, active, charge, created_at
	`
	var u User
	err := r.db.QueryRow(ctx, query, userID, username, firstName, lastName).Scan(
		&u.UserID, &u.Username, &u.FirstName, &u.LastName,
		&u.Active, &u.Charge, &u.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания/чтения пользователя (user_id=%d): %w", userID, err)
	}
	return &u, nil
}

// GetByUserID: если не найден — ошибка с common.ErrUserNotFound
func (r *Repository) GetByUserID(ctx context.Context, userID int64) (*User, error) {
	query := `
		SELECT user_id, username, first_name, last_name, active, charge, created_at
		FROM users
		WHERE user_id = $1
	`
	var u User
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&u.UserID, &u.Username, &u.FirstName, &u.LastName,
		&u.Active, &u.Charge, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user_id=%d: %w", userID, common.ErrUserNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения пользователя (user_id=%d): %w", userID, err)
	}
	return &u, nil
}

// AdjustCharge сдвигает баланс на delta (списание — отрицательная delta).
func (r *Repository) AdjustCharge(ctx context.Context, userID int64, delta float64) error {
	query := `UPDATE users SET charge = charge + $2 WHERE user_id = $1`
	if _, err := r.db.Exec(ctx, query, userID, delta); err != nil {
		return fmt.Errorf("ошибка изменения баланса (user_id=%d): %w", userID, err)
	}
	return nil
}

// SetActive включает/выключает пользователя.
func (r *Repository) SetActive(ctx context.Context, userID int64, active bool) error {
	query := `UPDATE users SET active = $2 WHERE user_id = $1`
	if _, err := r.db.Exec(ctx, query, userID, active); err != nil {
		return fmt.Errorf("ошибка смены активности (user_id=%d): %w", userID, err)
	}
	return nil
}

// UsageReport собирает сводку потребления: количество историй,
// количество витков (пара секций = один виток) и текущий баланс.
func (r *Repository) UsageReport(ctx context.Context, userID int64) (*UsageReport, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM stories WHERE user_id = $1),
			(SELECT COUNT(*) / 2 FROM sections s JOIN stories st ON st.id = s.story_id WHERE st.user_id = $1),
			(SELECT charge FROM users WHERE user_id = $1)
	`
	var report UsageReport
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&report.StoryCount, &report.SectionCount, &report.Charge,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка сводки потребления (user_id=%d): %w", userID, err)
	}
	return &report, nil
}

// ListAll возвращает всех пользователей, отсортированных по расходам.
// Используется офлайн-тулингом для экспорта.
func (r *Repository) ListAll(ctx context.Context) ([]*User, error) {
	query := `
		SELECT user_id, username, first_name, last_name, active, charge, created_at
		FROM users
		ORDER BY charge
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса пользователей: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(
			&u.UserID, &u.Username, &u.FirstName, &u.LastName,
			&u.Active, &u.Charge, &u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out = append(out, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}

	return out, nil
}

// Import восстанавливает пользователя из дампа, сохраняя все поля.
func (r *Repository) Import(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (user_id, username, first_name, last_name, active, charge, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		u.UserID, u.Username, u.FirstName, u.LastName, u.Active, u.Charge, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка импорта пользователя (user_id=%d): %w", u.UserID, err)
	}
	return nil
}

// Count возвращает число пользователей (для отчёта).
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}
	return count, nil
}
