// Package wallet — repository.go выполняет все операции с таблицами wallets,
// withdrawals и telegram_stars_ledger.
// Все денежные операции выполняются в транзакциях БД с блокировкой строки
// кошелька (FOR UPDATE): два конкурентных списания у одного пользователя
// никогда не спишут одни и те же минуты.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"trueme.chat/telegram-bot/internal/common"
)

// Repository предоставляет методы для работы с кошельками.
type Repository struct {
	db          *pgxpool.Pool
	freeMinutes int64 // бесплатные минуты при создании кошелька
}

// NewRepository создаёт новый репозиторий кошельков.
func NewRepository(db *pgxpool.Pool, freeMinutes int64) *Repository {
	return &Repository{db: db, freeMinutes: freeMinutes}
}

// EnsureWallet гарантирует, что у пользователя есть кошелёк.
// Создаётся лениво с бесплатными пробными минутами.
func (r *Repository) EnsureWallet(ctx context.Context, userID int64) error {
	query := `
		INSERT INTO wallets (user_id, free_minutes)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, userID, r.freeMinutes); err != nil {
		return fmt.Errorf("ошибка создания кошелька: %w", err)
	}
	return nil
}

// GetWallet возвращает кошелёк пользователя.
func (r *Repository) GetWallet(ctx context.Context, userID int64) (*Wallet, error) {
	query := `
		SELECT user_id, free_minutes, referral_minutes, paid_minutes,
		       lifetime_earnings, pending_balance, withdrawable_balance
		FROM wallets
		WHERE user_id = $1
	`
	var w Wallet
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&w.UserID, &w.FreeMinutes, &w.ReferralMinutes, &w.PaidMinutes,
		&w.LifetimeEarnings, &w.PendingBalance, &w.WithdrawableBalance,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения кошелька: %w", err)
	}
	return &w, nil
}

// PeekAvailable возвращает суммарный запас минут без блокировки строки.
// Используется для предварительной проверки перед матчем.
// Отсутствие кошелька трактуется как нулевой баланс.
func (r *Repository) PeekAvailable(ctx context.Context, userID int64) (int64, error) {
	query := `
		SELECT free_minutes + referral_minutes + paid_minutes
		FROM wallets
		WHERE user_id = $1
	`
	var total int64
	err := r.db.QueryRow(ctx, query, userID).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения баланса: %w", err)
	}
	return total, nil
}

// DebitTx списывает amount минут внутри уже открытой транзакции tx.
// Части тратятся в порядке free → referral → paid; одно списание может
// затронуть несколько частей. Если суммы не хватает — возвращается
// ErrInsufficientBalance и кошелёк не меняется.
//
// Вынесено в отдельный метод, чтобы оркестратор мог выполнить списание
// и создание сессии одной атомарной единицей.
func (r *Repository) DebitTx(ctx context.Context, tx pgx.Tx, userID int64, amount int64) error {
	var free, referral, paid int64
	err := tx.QueryRow(ctx, `
		SELECT free_minutes, referral_minutes, paid_minutes
		FROM wallets WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&free, &referral, &paid)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrInsufficientBalance
	}
	if err != nil {
		return fmt.Errorf("ошибка блокировки кошелька: %w", err)
	}

	split, ok := SplitDebit(free, referral, paid, amount)
	if !ok {
		return common.ErrInsufficientBalance
	}

	_, err = tx.Exec(ctx, `
		UPDATE wallets
		SET free_minutes = free_minutes - $2,
		    referral_minutes = referral_minutes - $3,
		    paid_minutes = paid_minutes - $4
		WHERE user_id = $1
	`, userID, split.Free, split.Referral, split.Paid)
	if err != nil {
		return fmt.Errorf("ошибка списания минут: %w", err)
	}
	return nil
}

// Debit списывает amount минут в собственной транзакции.
func (r *Repository) Debit(ctx context.Context, userID int64, amount int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.DebitTx(ctx, tx, userID, amount); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreditTx начисляет amount в pending и lifetime внутри открытой транзакции.
// Кошелёк создаётся, если его ещё нет (первое начисление).
func (r *Repository) CreditTx(ctx context.Context, tx pgx.Tx, userID int64, amount float64) error {
	if amount < 0 {
		return common.ErrInvalidAmount
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO wallets (user_id, free_minutes, pending_balance, lifetime_earnings)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET pending_balance = wallets.pending_balance + $3,
		    lifetime_earnings = wallets.lifetime_earnings + $3
	`, userID, r.freeMinutes, amount)
	if err != nil {
		return fmt.Errorf("ошибка начисления: %w", err)
	}
	return nil
}

// Credit начисляет amount в собственной транзакции.
func (r *Repository) Credit(ctx context.Context, userID int64, amount float64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.CreditTx(ctx, tx, userID, amount); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AddReferralMinutes начисляет бонусные минуты за реферала.
func (r *Repository) AddReferralMinutes(ctx context.Context, userID int64, minutes int64) error {
	query := `
		INSERT INTO wallets (user_id, free_minutes, referral_minutes)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET referral_minutes = wallets.referral_minutes + $3
	`
	if _, err := r.db.Exec(ctx, query, userID, r.freeMinutes, minutes); err != nil {
		return fmt.Errorf("ошибка начисления реферальных минут: %w", err)
	}
	return nil
}

// CreditStars обрабатывает пополнение звёздами из платёжного вебхука.
// Идемпотентность обеспечивает уникальный telegram_event_id в леджере:
// повторная доставка того же события не начисляет минуты второй раз.
// Возвращает credited=false для дубликата.
func (r *Repository) CreditStars(ctx context.Context, eventID string, userID, stars, minutes int64) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Сначала фиксируем событие: конфликт по event_id = уже обработано
	tag, err := tx.Exec(ctx, `
		INSERT INTO telegram_stars_ledger (telegram_event_id, telegram_user_id, stars)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_event_id) DO NOTHING
	`, eventID, userID, stars)
	if err != nil {
		return false, fmt.Errorf("ошибка записи в леджер звёзд: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Дубликат вебхука — ничего не начисляем
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO wallets (user_id, free_minutes, paid_minutes)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET paid_minutes = wallets.paid_minutes + $3
	`, userID, r.freeMinutes, minutes)
	if err != nil {
		return false, fmt.Errorf("ошибка начисления оплаченных минут: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// CreateWithdrawal переводит весь доступный к выводу баланс в заявку
// со статусом pending, обнуляя withdrawable_balance. Атомарно:
// либо заявка создана и баланс обнулён, либо ничего не произошло.
func (r *Repository) CreateWithdrawal(ctx context.Context, userID int64) (*Withdrawal, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var amount float64
	err = tx.QueryRow(ctx, `
		SELECT withdrawable_balance FROM wallets WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNoBalance
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка блокировки кошелька: %w", err)
	}

	if amount <= 0 {
		return nil, common.ErrNoBalance
	}

	w := &Withdrawal{
		Reference: uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Status:    WithdrawalStatusPending,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO withdrawals (reference, user_id, amount, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING id, created_at
	`, w.Reference, w.UserID, w.Amount).Scan(&w.ID, &w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания заявки на вывод: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE wallets SET withdrawable_balance = 0 WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка обнуления баланса: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// GetWithdrawal возвращает заявку на вывод по ID.
func (r *Repository) GetWithdrawal(ctx context.Context, id int64) (*Withdrawal, error) {
	query := `
		SELECT id, reference, user_id, amount, status, created_at, paid_at
		FROM withdrawals
		WHERE id = $1
	`
	var w Withdrawal
	err := r.db.QueryRow(ctx, query, id).Scan(
		&w.ID, &w.Reference, &w.UserID, &w.Amount, &w.Status, &w.CreatedAt, &w.PaidAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения заявки: %w", err)
	}
	return &w, nil
}

// MarkWithdrawalPaid помечает заявку оплаченной. Идемпотентный барьер:
// повторная оплата уже оплаченной заявки возвращает ErrAlreadyPaid
// без побочных эффектов.
func (r *Repository) MarkWithdrawalPaid(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE withdrawals
		SET status = 'paid', paid_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return fmt.Errorf("ошибка оплаты заявки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Либо заявки нет, либо она уже оплачена — различаем
		w, err := r.GetWithdrawal(ctx, id)
		if err != nil {
			return err
		}
		if w.Status == WithdrawalStatusPaid {
			return common.ErrAlreadyPaid
		}
		return common.ErrWithdrawalNotFound
	}
	return nil
}

// GetPendingWithdrawals возвращает все неоплаченные заявки (для админки).
func (r *Repository) GetPendingWithdrawals(ctx context.Context) ([]*Withdrawal, error) {
	query := `
		SELECT id, reference, user_id, amount, status, created_at, paid_at
		FROM withdrawals
		WHERE status = 'pending'
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения заявок: %w", err)
	}
	defer rows.Close()

	var pending []*Withdrawal
	for rows.Next() {
		var w Withdrawal
		if err := rows.Scan(&w.ID, &w.Reference, &w.UserID, &w.Amount, &w.Status, &w.CreatedAt, &w.PaidAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования заявки: %w", err)
		}
		pending = append(pending, &w)
	}
	return pending, rows.Err()
}
