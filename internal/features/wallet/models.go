// Package wallet управляет балансами: минутами плательщиков
// и заработком зарабатывающей стороны.
// models.go описывает структуры кошелька, заявок на вывод и леджера звёзд.
package wallet

import "time"

// Wallet представляет кошелёк пользователя.
// Для male значимы минутные части (free/referral/paid),
// для female — денежные накопители.
type Wallet struct {
	UserID int64 `db:"user_id"` // Telegram user ID (первичный ключ)

	// Минуты плательщика. Тратятся в порядке: free → referral → paid.
	FreeMinutes     int64 `db:"free_minutes"`     // Бесплатный пробный запас
	ReferralMinutes int64 `db:"referral_minutes"` // Бонус за рефералов
	PaidMinutes     int64 `db:"paid_minutes"`     // Купленные за звёзды

	// Накопители зарабатывающей стороны.
	LifetimeEarnings    float64 `db:"lifetime_earnings"`    // Заработано за всё время
	PendingBalance      float64 `db:"pending_balance"`      // Начислено, но не доступно к выводу
	WithdrawableBalance float64 `db:"withdrawable_balance"` // Доступно к выводу
}

// Available возвращает суммарный запас минут по всем частям.
func (w *Wallet) Available() int64 {
	return w.FreeMinutes + w.ReferralMinutes + w.PaidMinutes
}

// Статусы заявки на вывод.
const (
	WithdrawalStatusPending = "pending"
	WithdrawalStatusPaid    = "paid"
)

// Withdrawal — заявка на вывод всей доступной суммы.
type Withdrawal struct {
	ID        int64      `db:"id"`
	Reference string     `db:"reference"` // Публичный код заявки (uuid)
	UserID    int64      `db:"user_id"`
	Amount    float64    `db:"amount"`
	Status    string     `db:"status"` // pending / paid
	CreatedAt time.Time  `db:"created_at"`
	PaidAt    *time.Time `db:"paid_at"`
}

// StarsCredit — одна запись леджера пополнений звёздами.
// Уникальный EventID защищает от повторной обработки вебхука.
type StarsCredit struct {
	ID         int64     `db:"id"`
	EventID    string    `db:"telegram_event_id"`
	TelegramID int64     `db:"telegram_user_id"`
	Stars      int64     `db:"stars"`
	CreatedAt  time.Time `db:"created_at"`
}

// DebitSplit описывает, сколько минут списывается из каждой части кошелька.
type DebitSplit struct {
	Free     int64
	Referral int64
	Paid     int64
}

// SplitDebit распределяет списание amount минут по частям кошелька
// в порядке приоритета free → referral → paid. Одно списание может
// затронуть несколько частей. Если суммарного запаса не хватает,
// возвращается ok=false и кошелёк не должен меняться.
func SplitDebit(free, referral, paid, amount int64) (DebitSplit, bool) {
	if amount < 0 || free+referral+paid < amount {
		return DebitSplit{}, false
	}

	var split DebitSplit
	remaining := amount

	split.Free = min64(free, remaining)
	remaining -= split.Free

	split.Referral = min64(referral, remaining)
	remaining -= split.Referral

	split.Paid = remaining
	return split, true
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
