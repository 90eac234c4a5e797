// Package chat управляет жизненным циклом платных сессий:
// создание с авансовым списанием, финализация с начислением заработка
// и пересылка сообщений между участниками пары.
// models.go описывает структуры сессий, статистику и биллинговую математику.
package chat

import "time"

// ChatSession представляет одну платную сессию в базе данных.
// Создаётся незавершённой в момент матча; ровно один терминальный
// переход в completed=true происходит при финализации.
type ChatSession struct {
	ID               int64      `db:"id"`
	MaleID           int64      `db:"male_id"`
	FemaleID         int64      `db:"female_id"`
	StartedAt        time.Time  `db:"started_at"`
	EndedAt          *time.Time `db:"ended_at"`
	Completed        bool       `db:"completed"`
	PrebilledMinutes int64      `db:"prebilled_minutes"` // Сколько минут списано авансом
}

// FemaleStats — накопительная статистика зарабатывающей стороны.
// Уровень определяет коэффициент выплат и растёт с числом
// завершённых сессий.
type FemaleStats struct {
	UserID        int64 `db:"user_id"`
	Level         int   `db:"level"`
	TotalSessions int   `db:"total_sessions"`
}

// FinalizeOutcome — результат финализации сессии.
type FinalizeOutcome struct {
	Session         *ChatSession
	AlreadyDone     bool    // Повторная финализация — ничего не изменилось
	BillableMinutes int     // Оплачиваемые минуты после клампа
	Payout          float64 // Начислено зарабатывающей стороне
	Level           int     // Уровень, по которому считалась выплата
}

// Billing содержит параметры расчёта выплат.
// Чистая математика без побочных эффектов — вызывается изнутри
// транзакции финализации.
type Billing struct {
	CapMinutes        int     // Предельная длительность сессии
	FeeRate           float64 // Доля платформы Telegram
	TierTwoSessions   int     // Порог сессий для уровня 2
	TierThreeSessions int     // Порог сессий для уровня 3
	TierRates         [3]float64
}

// BillableMinutes возвращает оплачиваемые минуты сессии: фактическая
// длительность, зажатая в [1, CapMinutes]. Сессия короче минуты
// оплачивается как одна минута; дольше предела — по пределу.
func (b Billing) BillableMinutes(started, ended time.Time) int {
	minutes := int(ended.Sub(started) / time.Minute)
	if minutes < 1 {
		return 1
	}
	if minutes > b.CapMinutes {
		return b.CapMinutes
	}
	return minutes
}

// LevelFor возвращает уровень для накопленного числа завершённых сессий.
func (b Billing) LevelFor(totalSessions int) int {
	switch {
	case totalSessions >= b.TierThreeSessions:
		return 3
	case totalSessions >= b.TierTwoSessions:
		return 2
	default:
		return 1
	}
}

// Rate возвращает коэффициент выплат для уровня level (1..3).
func (b Billing) Rate(level int) float64 {
	if level < 1 {
		level = 1
	}
	if level > 3 {
		level = 3
	}
	return b.TierRates[level-1]
}

// Payout считает выплату зарабатывающей стороне:
// чистая выручка платформы за минуту, умноженная на оплачиваемые
// минуты и коэффициент уровня.
//
//	net = prebilled * (1 - FeeRate)
//	payout = net / CapMinutes * minutes * Rate(level)
func (b Billing) Payout(prebilledMinutes int64, minutes, level int) float64 {
	net := float64(prebilledMinutes) * (1 - b.FeeRate)
	perMinute := net / float64(b.CapMinutes)
	return perMinute * float64(minutes) * b.Rate(level)
}
