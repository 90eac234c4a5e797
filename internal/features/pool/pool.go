// Package pool управляет переходным состоянием матчмейкинга:
// очередями ожидания по ролям, флагами занятости и активными парами.
//
// Контракты:
//   - Pool: атомарный матч "оба-или-никто" — из очередей одновременно
//     изымаются один ожидающий male и одна ожидающая female, либо
//     очереди остаются нетронутыми.
//   - Pairs: симметричная связь пары. Если A указывает на B, то B
//     указывает на A; ставится и снимается всегда парой.
//
// Хранилища создаются при старте процесса и передаются по ссылке —
// глобального доступа к состоянию нет.
package pool

import (
	"context"
	"time"
)

// Pool — очередь ожидающих пользователей с атомарным матчем.
type Pool interface {
	// Join добавляет пользователя в очередь своей роли.
	// Идемпотентен: повторный вход не меняет позицию в очереди.
	// Пользователь с флагом занятости в очередь не попадает.
	Join(ctx context.Context, userID int64, role string) error

	// Leave убирает пользователя из очереди; no-op, если его там нет.
	Leave(ctx context.Context, userID int64) error

	// MatchOne атомарно выбирает самого давнего ожидающего male и самую
	// давнюю ожидающую female, убирает обоих из очередей и помечает
	// занятыми. Если пары нет — ErrNoMatch, очереди не меняются.
	MatchOne(ctx context.Context) (maleID, femaleID int64, err error)

	// Release снимает флаги занятости с обоих участников пары.
	Release(ctx context.Context, a, b int64) error

	// EvictStale убирает из очереди роли role всех, кто ждёт дольше
	// deadline, и возвращает их ID (для уведомления).
	EvictStale(ctx context.Context, role string, deadline time.Time) ([]int64, error)
}

// Pairs — симметричное отображение "пользователь → партнёр" активных чатов.
type Pairs interface {
	// Set связывает обоих участников (в обе стороны одной операцией).
	Set(ctx context.Context, a, b int64) error

	// Clear разрывает связь для обеих сторон одной операцией.
	Clear(ctx context.Context, a, b int64) error

	// Partner возвращает партнёра пользователя; ok=false, если пары нет.
	Partner(ctx context.Context, userID int64) (int64, bool, error)
}
