// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import "errors"

// Ошибки профиля и ролей
var (
	// ErrProfileIncomplete — у пользователя не выбрана роль
	ErrProfileIncomplete = errors.New("профиль не заполнен: роль не выбрана")
	// ErrRoleMismatch — действие недоступно для текущей роли
	ErrRoleMismatch = errors.New("действие недоступно для вашей роли")
	// ErrRoleLocked — роль верифицирована и не подлежит смене
	ErrRoleLocked = errors.New("роль уже подтверждена и не может быть изменена")
	// ErrNotVerified — анкета ещё не прошла проверку
	ErrNotVerified = errors.New("анкета ещё не прошла проверку")
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
)

// Ошибки кошелька и биллинга
var (
	// ErrInsufficientBalance — не хватает минут на старт сессии
	ErrInsufficientBalance = errors.New("недостаточно минут на балансе")
	// ErrInvalidAmount — некорректная сумма (отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть неотрицательной")
	// ErrNoBalance — нечего выводить, доступный к выводу баланс нулевой
	ErrNoBalance = errors.New("нет средств, доступных к выводу")
	// ErrWalletNotFound — кошелёк не найден
	ErrWalletNotFound = errors.New("кошелёк не найден")
)

// Ошибки матчмейкинга и сессий
var (
	// ErrAlreadyInSession — пользователь уже в активном чате
	ErrAlreadyInSession = errors.New("вы уже в активном чате")
	// ErrNoMatch — пары пока нет, пользователь остаётся в очереди.
	// Это штатный исход, а не сбой.
	ErrNoMatch = errors.New("подходящая пара не найдена")
	// ErrSessionNotFound — сессия не найдена
	ErrSessionNotFound = errors.New("сессия не найдена")
	// ErrAlreadyCompleted — сессия уже финализирована
	ErrAlreadyCompleted = errors.New("сессия уже завершена")
)

// Ошибки админки
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrAlreadyVerified — анкета уже одобрена
	ErrAlreadyVerified = errors.New("анкета уже одобрена")
	// ErrAlreadyPaid — заявка на вывод уже оплачена
	ErrAlreadyPaid = errors.New("заявка на вывод уже оплачена")
	// ErrWithdrawalNotFound — заявка на вывод не найдена
	ErrWithdrawalNotFound = errors.New("заявка на вывод не найдена")
)

// domainErrors — все ожидаемые ошибки, текст которых можно показывать в ответе.
var domainErrors = []error{
	ErrProfileIncomplete, ErrRoleMismatch, ErrRoleLocked, ErrNotVerified,
	ErrUserNotFound, ErrInsufficientBalance, ErrInvalidAmount, ErrNoBalance,
	ErrWalletNotFound, ErrAlreadyInSession, ErrNoMatch, ErrSessionNotFound,
	ErrAlreadyCompleted, ErrNotAdmin, ErrWrongPassword, ErrTooManyAttempts,
	ErrAlreadyVerified, ErrAlreadyPaid, ErrWithdrawalNotFound,
}

// IsDomainError сообщает, является ли err одной из ожидаемых доменных ошибок.
// Для них текст ошибки безопасно показывать пользователю, остальное уходит в лог.
func IsDomainError(err error) bool {
	for _, known := range domainErrors {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
