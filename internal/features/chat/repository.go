// Package chat — repository.go выполняет операции с таблицами chat_sessions
// и female_stats. Создание сессии и финализация — транзакции БД:
// списание и вставка строки сессии применяются вместе, начисление
// заработка и обновление статистики — тоже вместе.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"trueme.chat/telegram-bot/internal/common"
	"trueme.chat/telegram-bot/internal/features/wallet"
)

// Repository предоставляет методы для работы с сессиями.
type Repository struct {
	db      *pgxpool.Pool
	wallets *wallet.Repository
	billing Billing
}

// NewRepository создаёт новый репозиторий сессий.
func NewRepository(db *pgxpool.Pool, wallets *wallet.Repository, billing Billing) *Repository {
	return &Repository{db: db, wallets: wallets, billing: billing}
}

// StartPaidSession списывает авансовую стоимость с кошелька male
// и создаёт незавершённую сессию — одной транзакцией. Если минут
// не хватает (гонка с параллельной тратой), не происходит ничего
// и возвращается ErrInsufficientBalance.
func (r *Repository) StartPaidSession(ctx context.Context, maleID, femaleID, costMinutes int64) (*ChatSession, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Авансовое списание под блокировкой строки кошелька
	if err := r.wallets.DebitTx(ctx, tx, maleID, costMinutes); err != nil {
		return nil, err
	}

	session := &ChatSession{
		MaleID:           maleID,
		FemaleID:         femaleID,
		PrebilledMinutes: costMinutes,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO chat_sessions (male_id, female_id, prebilled_minutes)
		VALUES ($1, $2, $3)
		RETURNING id, started_at
	`, maleID, femaleID, costMinutes).Scan(&session.ID, &session.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания сессии: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return session, nil
}

// GetActiveSessionFor возвращает незавершённую сессию пользователя.
func (r *Repository) GetActiveSessionFor(ctx context.Context, userID int64) (*ChatSession, error) {
	query := `
		SELECT id, male_id, female_id, started_at, ended_at, completed, prebilled_minutes
		FROM chat_sessions
		WHERE (male_id = $1 OR female_id = $1) AND completed = FALSE
		ORDER BY started_at DESC
		LIMIT 1
	`
	var s ChatSession
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&s.ID, &s.MaleID, &s.FemaleID, &s.StartedAt, &s.EndedAt, &s.Completed, &s.PrebilledMinutes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения сессии: %w", err)
	}
	return &s, nil
}

// Finalize завершает сессию. Идемпотентна: отсутствующая или уже
// завершённая сессия — тихий no-op (AlreadyDone=true).
//
// Одна транзакция: штамп завершения, инкремент счётчика сессий,
// повышение уровня при пересечении порога и начисление выплаты
// применяются все вместе либо никак.
func (r *Repository) Finalize(ctx context.Context, sessionID int64) (*FinalizeOutcome, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var s ChatSession
	err = tx.QueryRow(ctx, `
		SELECT id, male_id, female_id, started_at, ended_at, completed, prebilled_minutes
		FROM chat_sessions
		WHERE id = $1
		FOR UPDATE
	`, sessionID).Scan(
		&s.ID, &s.MaleID, &s.FemaleID, &s.StartedAt, &s.EndedAt, &s.Completed, &s.PrebilledMinutes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &FinalizeOutcome{AlreadyDone: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка блокировки сессии: %w", err)
	}
	if s.Completed {
		return &FinalizeOutcome{Session: &s, AlreadyDone: true}, nil
	}

	// Штампуем завершение
	err = tx.QueryRow(ctx, `
		UPDATE chat_sessions
		SET ended_at = NOW(), completed = TRUE
		WHERE id = $1
		RETURNING ended_at
	`, sessionID).Scan(&s.EndedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка завершения сессии: %w", err)
	}
	s.Completed = true

	// Статистика зарабатывающей стороны под блокировкой
	_, err = tx.Exec(ctx, `
		INSERT INTO female_stats (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, s.FemaleID)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания статистики: %w", err)
	}

	var stats FemaleStats
	err = tx.QueryRow(ctx, `
		SELECT user_id, level, total_sessions
		FROM female_stats
		WHERE user_id = $1
		FOR UPDATE
	`, s.FemaleID).Scan(&stats.UserID, &stats.Level, &stats.TotalSessions)
	if err != nil {
		return nil, fmt.Errorf("ошибка блокировки статистики: %w", err)
	}

	stats.TotalSessions++
	if lvl := r.billing.LevelFor(stats.TotalSessions); lvl > stats.Level {
		stats.Level = lvl
	}

	_, err = tx.Exec(ctx, `
		UPDATE female_stats SET level = $2, total_sessions = $3 WHERE user_id = $1
	`, stats.UserID, stats.Level, stats.TotalSessions)
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления статистики: %w", err)
	}

	// Выплата по фактически прошедшему времени
	minutes := r.billing.BillableMinutes(s.StartedAt, *s.EndedAt)
	payout := r.billing.Payout(s.PrebilledMinutes, minutes, stats.Level)

	if err := r.wallets.CreditTx(ctx, tx, s.FemaleID, payout); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &FinalizeOutcome{
		Session:         &s,
		BillableMinutes: minutes,
		Payout:          payout,
		Level:           stats.Level,
	}, nil
}

// GetStats возвращает статистику зарабатывающей стороны.
func (r *Repository) GetStats(ctx context.Context, userID int64) (*FemaleStats, error) {
	var stats FemaleStats
	err := r.db.QueryRow(ctx, `
		SELECT user_id, level, total_sessions FROM female_stats WHERE user_id = $1
	`, userID).Scan(&stats.UserID, &stats.Level, &stats.TotalSessions)
	if errors.Is(err, pgx.ErrNoRows) {
		return &FemaleStats{UserID: userID, Level: 1}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики: %w", err)
	}
	return &stats, nil
}

// CountCompleted возвращает число завершённых сессий (для админ-статистики).
func (r *Repository) CountCompleted(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM chat_sessions WHERE completed = TRUE`).Scan(&count)
	return count, err
}
