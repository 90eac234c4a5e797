package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository - слой работы с базой данных для рефералов
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создает новый репозиторий
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Link фиксирует приглашение. Повторный /start по ссылке и
// самоприглашение молча игнорируются.
func (r *Repository) Link(ctx context.Context, referrerID, referredID int64) error {
	if referrerID == referredID {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO referrals (referrer_id, referred_id)
		VALUES ($1, $2)
		ON CONFLICT (referred_id) DO NOTHING
	`, referrerID, referredID)
	if err != nil {
		return fmt.Errorf("ошибка создания реферальной записи: %w", err)
	}
	return nil
}

// ClaimReward помечает приглашение выплаченным и возвращает ID
// пригласившего. Повторный вызов для того же приглашённого возвращает
// (0, false, nil): строка уже помечена, платить второй раз нечего.
func (r *Repository) ClaimReward(ctx context.Context, referredID int64) (int64, bool, error) {
	var referrerID int64
	err := r.db.QueryRow(ctx, `
		UPDATE referrals
		SET rewarded = TRUE
		WHERE referred_id = $1 AND rewarded = FALSE
		RETURNING referrer_id
	`, referredID).Scan(&referrerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("ошибка выплаты реферального бонуса: %w", err)
	}
	return referrerID, true, nil
}
