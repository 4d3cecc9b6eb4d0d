package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository пишет записи журнала в llm_history.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordCall добавляет запись о вызове модели. Реализует llm.CallRecorder.
func (r *Repository) RecordCall(ctx context.Context, model, prompt, response string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO llm_history (model, prompt, response) VALUES ($1, $2, $3)`,
		model, prompt, response)
	if err != nil {
		return fmt.Errorf("запись в журнал вызовов: %w", err)
	}
	return nil
}

// Count возвращает общее число записей журнала.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM llm_history`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("подсчёт записей журнала: %w", err)
	}
	return n, nil
}

// List выгружает записи журнала по порядку создания, для дампа.
func (r *Repository) List(ctx context.Context, limit int) ([]*Record, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, model, prompt, response, created_at
		 FROM llm_history ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("выборка журнала: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec := &Record{}
		if err := rows.Scan(&rec.ID, &rec.Model, &rec.Prompt, &rec.Response, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("чтение записи журнала: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
