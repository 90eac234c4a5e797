// Package users управляет пользователями платформы: регистрацией при первом
// контакте, выбором роли и флагом верификации.
// models.go описывает структуры данных для работы с таблицей users.
package users

import "time"

// Роли пользователей. Роль "male" платит минутами за чат,
// роль "female" зарабатывает на проведённом в чате времени.
const (
	RoleMale   = "male"
	RoleFemale = "female"
)

// Результаты выбора роли.
const (
	// RoleResultMaleActivated — роль male активирована сразу
	RoleResultMaleActivated = "male_activated"
	// RoleResultFemalePending — роль female ждёт одобрения админом
	RoleResultFemalePending = "female_pending"
)

// User представляет пользователя в базе данных.
// Создаётся при первом контакте с ботом, роль выбирается позже.
type User struct {
	ID         int64     `db:"id"`          // Автоинкрементный ID записи в БД
	TelegramID int64     `db:"telegram_id"` // Telegram user ID (уникальный)
	FullName   string    `db:"full_name"`   // Имя из Telegram (может быть пустым)
	Role       *string   `db:"role"`        // male / female, nil пока не выбрана
	IsVerified bool      `db:"is_verified"` // Для female — прошла ли проверку анкеты
	HasPaid    bool      `db:"has_paid"`    // Была ли хоть одна оплата (для рефералов)
	CreatedAt  time.Time `db:"created_at"`  // Когда запись создана
}

// HasRole сообщает, выбрана ли у пользователя роль.
func (u *User) HasRole() bool {
	return u.Role != nil && *u.Role != ""
}

// IsMale сообщает, является ли пользователь плательщиком.
func (u *User) IsMale() bool {
	return u.Role != nil && *u.Role == RoleMale
}

// IsFemale сообщает, является ли пользователь зарабатывающей стороной.
func (u *User) IsFemale() bool {
	return u.Role != nil && *u.Role == RoleFemale
}
