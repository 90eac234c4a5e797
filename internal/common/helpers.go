// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация, форматирование чисел и времени.
package common

import (
	"fmt"
	"math"
	"time"
)

// PluralizeMinutes возвращает правильную форму слова «минута» для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → "минута" (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → "минуты" (2, 3, 4, 22, ...)
//   - Остальные случаи → "минут" (0, 5-20, 25-30, 100, ...)
func PluralizeMinutes(n int64) string {
	absN := int64(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "минута"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "минуты"
	}
	return "минут"
}

// FormatMinutes форматирует количество минут в читабельную строку.
// Пример: FormatMinutes(49) → "49 минут"
func FormatMinutes(n int64) string {
	return fmt.Sprintf("%d %s", n, PluralizeMinutes(n))
}

// FormatMoney форматирует денежную сумму (звёзды) с двумя знаками после запятой.
func FormatMoney(amount float64) string {
	return fmt.Sprintf("%.2f ⭐", amount)
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04".
// Используется для отображения дат сессий и заявок на вывод.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format("02.01.2006 15:04")
}
