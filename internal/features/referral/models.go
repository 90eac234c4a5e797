// Package referral реализует реферальную программу: фиксацию приглашений
// по ссылке /start ref_<id> и однократное начисление бонусных минут
// пригласившему после первого успеха приглашённого.
// models.go описывает структуры данных для работы с таблицей referrals.
package referral

import "time"

// Referral представляет связь "кто кого пригласил".
// Запись создаётся при первом /start по реферальной ссылке и
// вознаграждается не более одного раза.
type Referral struct {
	ID         int64     `db:"id"`          // Автоинкрементный ID записи
	ReferrerID int64     `db:"referrer_id"` // Telegram ID пригласившего
	ReferredID int64     `db:"referred_id"` // Telegram ID приглашённого (уникален)
	Rewarded   bool      `db:"rewarded"`    // Выплачен ли бонус пригласившему
	CreatedAt  time.Time `db:"created_at"`  // Когда зафиксировано приглашение
}
