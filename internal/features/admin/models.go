// Package admin реализует админ-панель в личных сообщениях с парольной
// аутентификацией: модерация анкет female, выплаты по заявкам на вывод
// и сводная статистика платформы.
// models.go описывает структуры сессий, попыток входа и статистики.
package admin

import "time"

// AdminSession — активная сессия администратора.
type AdminSession struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	SessionToken    string    `db:"session_token"`
	AuthenticatedAt time.Time `db:"authenticated_at"`
	ExpiresAt       time.Time `db:"expires_at"`
	LastActivity    time.Time `db:"last_activity"`
	IsActive        bool      `db:"is_active"`
}

// LoginAttempt — попытка входа (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	AttemptTime time.Time `db:"attempt_time"`
	Success     bool      `db:"success"`
}

// AdminState — состояние диалога с админом (конечный автомат).
// Панель работает по шагам: команда → выбор записи → подтверждение.
type AdminState struct {
	State     string      // Текущее состояние ("", "awaiting_password", ...)
	Data      interface{} // Данные контекста (выбранная анкета, заявка)
	ExpiresAt time.Time   // Когда состояние истекает (5 минут)
}

// Возможные состояния админ-диалога
const (
	StateNone             = ""                   // Нет активного состояния
	StateAwaitingPassword = "awaiting_password"  // Ждём пароль после /login
	StateReviewSelect     = "review_select"      // Ждём выбор анкеты на проверку
	StateWithdrawalSelect = "withdrawal_select"  // Ждём выбор заявки на выплату
)

// PlatformStats — сводка для команды /stats.
type PlatformStats struct {
	TotalMales         int64 // Зарегистрированных плательщиков
	TotalFemales       int64 // Зарегистрированных собеседниц
	PendingReviews     int64 // Анкет в очереди на проверку
	CompletedSessions  int64 // Завершённых чатов за всё время
	PendingWithdrawals int64 // Заявок на вывод в статусе pending
}
