// Package chat — repository.go выполняет операции с таблицами sessions и chats.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ActiveSession возвращает активную сессию пользователя или nil.
func (r *Repository) ActiveSession(ctx context.Context, userID int64) (*Session, error) {
	query := `
		SELECT id, user_id, active, created_at
		FROM sessions
		WHERE user_id = $1 AND active = TRUE
		ORDER BY created_at DESC
		LIMIT 1
	`
	var s Session
	err := r.db.QueryRow(ctx, query, userID).Scan(&s.ID, &s.UserID, &s.Active, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения сессии (user_id=%d): %w", userID, err)
	}
	return &s, nil
}

// CreateSession создаёт новую активную сессию.
func (r *Repository) CreateSession(ctx context.Context, userID int64) (*Session, error) {
	query := `
		INSERT INTO sessions (user_id)
		VALUES ($1)
		RETURNING id, user_id, active, created_at
	`
	var s Session
	err := r.db.QueryRow(ctx, query, userID).Scan(&s.ID, &s.UserID, &s.Active, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания сессии (user_id=%d): %w", userID, err)
	}
	return &s, nil
}

// DeactivateSessions выключает все активные сессии пользователя.
// Идемпотентно: ноль активных сессий — не ошибка.
func (r *Repository) DeactivateSessions(ctx context.Context, userID int64) (int64, error) {
	query := `UPDATE sessions SET active = FALSE WHERE user_id = $1 AND active = TRUE`
	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("ошибка деактивации сессий (user_id=%d): %w", userID, err)
	}
	return tag.RowsAffected(), nil
}

// DeactivateSession выключает одну сессию.
func (r *Repository) DeactivateSession(ctx context.Context, sessionID int64) error {
	query := `UPDATE sessions SET active = FALSE WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("ошибка деактивации сессии (id=%d): %w", sessionID, err)
	}
	return nil
}

// InsertChat сохраняет одну реплику (например, системную инструкцию
// при старте сессии).
func (r *Repository) InsertChat(ctx context.Context, sessionID int64, text string, isSystem bool) error {
	query := `INSERT INTO chats (session_id, text, is_system) VALUES ($1, $2, $3)`
	if _, err := r.db.Exec(ctx, query, sessionID, text, isSystem); err != nil {
		return fmt.Errorf("ошибка вставки реплики (session_id=%d): %w", sessionID, err)
	}
	return nil
}

// InsertTurnChats атомарно сохраняет пару реплик одного витка:
// текст пользователя и сырой ответ модели.
func (r *Repository) InsertTurnChats(ctx context.Context, sessionID int64, userText, rawOutput string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `INSERT INTO chats (session_id, text, is_system) VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, insert, sessionID, userText, false); err != nil {
		return fmt.Errorf("ошибка вставки реплики пользователя: %w", err)
	}
	if _, err := tx.Exec(ctx, insert, sessionID, rawOutput, true); err != nil {
		return fmt.Errorf("ошибка вставки ответа модели: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// ChatsHistory возвращает реплики сессии в хронологическом порядке.
func (r *Repository) ChatsHistory(ctx context.Context, sessionID int64) ([]*Chat, error) {
	query := `
		SELECT id, session_id, text, is_system, created_at
		FROM chats
		WHERE session_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса реплик: %w", err)
	}
	defer rows.Close()

	var out []*Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Text, &c.IsSystem, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования реплики: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

// CountUserChatsSince считает реплики пользователя (не системные)
// за скользящее окно — для дневного лимита чата.
func (r *Repository) CountUserChatsSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM chats c
		JOIN sessions s ON s.id = c.session_id
		WHERE s.user_id = $1 AND c.is_system = FALSE AND c.created_at >= $2
	`
	var count int
	if err := r.db.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта реплик (user_id=%d): %w", userID, err)
	}
	return count, nil
}
