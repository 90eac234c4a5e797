// Package users — repository.go выполняет все операции с таблицей users.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"trueme.chat/telegram-bot/internal/common"
)

// Repository предоставляет методы для работы с таблицей users.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий пользователей.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetByTelegramID возвращает пользователя по его Telegram ID.
func (r *Repository) GetByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	query := `
		SELECT id, telegram_id, COALESCE(full_name, ''), role, is_verified, has_paid, created_at
		FROM users
		WHERE telegram_id = $1
	`
	var u User
	err := r.db.QueryRow(ctx, query, telegramID).Scan(
		&u.ID, &u.TelegramID, &u.FullName, &u.Role, &u.IsVerified, &u.HasPaid, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return &u, nil
}

// Create создаёт запись пользователя. Повторная вставка того же
// telegram_id безопасна (ON CONFLICT DO NOTHING).
func (r *Repository) Create(ctx context.Context, telegramID int64, fullName string) error {
	query := `
		INSERT INTO users (telegram_id, full_name)
		VALUES ($1, NULLIF($2, ''))
		ON CONFLICT (telegram_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, telegramID, fullName); err != nil {
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}

// UpdateRole устанавливает роль и флаг верификации.
func (r *Repository) UpdateRole(ctx context.Context, telegramID int64, role string, verified bool) error {
	query := `UPDATE users SET role = $2, is_verified = $3 WHERE telegram_id = $1`
	tag, err := r.db.Exec(ctx, query, telegramID, role, verified)
	if err != nil {
		return fmt.Errorf("ошибка установки роли: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrUserNotFound
	}
	return nil
}

// ClearRole сбрасывает роль (используется при отклонении анкеты).
func (r *Repository) ClearRole(ctx context.Context, telegramID int64) error {
	query := `UPDATE users SET role = NULL, is_verified = FALSE WHERE telegram_id = $1`
	tag, err := r.db.Exec(ctx, query, telegramID)
	if err != nil {
		return fmt.Errorf("ошибка сброса роли: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrUserNotFound
	}
	return nil
}

// SetVerified помечает пользователя верифицированным.
func (r *Repository) SetVerified(ctx context.Context, telegramID int64) error {
	query := `UPDATE users SET is_verified = TRUE WHERE telegram_id = $1`
	_, err := r.db.Exec(ctx, query, telegramID)
	return err
}

// SetHasPaid помечает, что пользователь хотя бы раз платил.
func (r *Repository) SetHasPaid(ctx context.Context, telegramID int64) error {
	query := `UPDATE users SET has_paid = TRUE WHERE telegram_id = $1`
	_, err := r.db.Exec(ctx, query, telegramID)
	return err
}

// GetPendingVerifications возвращает анкеты female, ожидающие проверки.
func (r *Repository) GetPendingVerifications(ctx context.Context) ([]*User, error) {
	query := `
		SELECT id, telegram_id, COALESCE(full_name, ''), role, is_verified, has_paid, created_at
		FROM users
		WHERE role = 'female' AND is_verified = FALSE
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения анкет: %w", err)
	}
	defer rows.Close()

	var pending []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.TelegramID, &u.FullName, &u.Role, &u.IsVerified, &u.HasPaid, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		pending = append(pending, &u)
	}
	return pending, rows.Err()
}

// CountByRole возвращает количество пользователей с указанной ролью.
func (r *Repository) CountByRole(ctx context.Context, role string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, role).Scan(&count)
	return count, err
}
