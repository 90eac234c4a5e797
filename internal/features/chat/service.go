// Package chat — service.go содержит бизнес-логику жизненного цикла сессии:
// NONE → ACTIVE → TERMINATED(expired|stopped), без переходов после
// терминального состояния.
package chat

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"trueme.chat/telegram-bot/internal/common"
	"trueme.chat/telegram-bot/internal/features/pool"
)

// SessionStore — операции хранилища, нужные жизненному циклу.
// Реализуется *Repository; в тестах подменяется моком.
type SessionStore interface {
	StartPaidSession(ctx context.Context, maleID, femaleID, costMinutes int64) (*ChatSession, error)
	GetActiveSessionFor(ctx context.Context, userID int64) (*ChatSession, error)
	Finalize(ctx context.Context, sessionID int64) (*FinalizeOutcome, error)
}

// Service управляет жизненным циклом сессий.
type Service struct {
	store      SessionStore
	pairs      pool.Pairs
	pool       pool.Pool
	capMinutes int
	now        func() time.Time
}

// NewService создаёт сервис жизненного цикла.
func NewService(store SessionStore, pairs pool.Pairs, p pool.Pool, capMinutes int) *Service {
	return &Service{
		store:      store,
		pairs:      pairs,
		pool:       p,
		capMinutes: capMinutes,
		now:        time.Now,
	}
}

// StartPaid создаёт оплаченную сессию для пары: списание и строка сессии —
// одна транзакция БД, затем устанавливается симметричная связь пары.
// Флаги занятости у обоих уже стоят (их поставил атомарный матч).
func (s *Service) StartPaid(ctx context.Context, maleID, femaleID, costMinutes int64) (*ChatSession, error) {
	session, err := s.store.StartPaidSession(ctx, maleID, femaleID, costMinutes)
	if err != nil {
		return nil, err
	}

	if err := s.pairs.Set(ctx, maleID, femaleID); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"session_id": session.ID,
		"male_id":    maleID,
		"female_id":  femaleID,
		"prebilled":  costMinutes,
	}).Info("Сессия запущена")
	return session, nil
}

// Stop завершает активную сессию вызывающего.
//
// Возвращает ID партнёра и ok=true, если сессия была; ok=false — тихий
// no-op (пары нет). Финализация начисляет заработок; связь пары и флаги
// занятости снимаются у обеих сторон вместе. Обратно в очередь никто
// не попадает — это отдельное явное действие пользователя.
func (s *Service) Stop(ctx context.Context, userID int64) (int64, bool, error) {
	partner, ok, err := s.pairs.Partner(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}

	// Отсутствие сессии при живой паре — рассинхрон, чистим пару ниже.
	// Любая другая ошибка прерывает остановку: разорвать пару, не
	// финализировав сессию, значит навсегда оставить заработок
	// неначисленным.
	session, err := s.store.GetActiveSessionFor(ctx, userID)
	if err != nil && !errors.Is(err, common.ErrSessionNotFound) {
		return 0, false, err
	}
	if err == nil {
		if _, err := s.store.Finalize(ctx, session.ID); err != nil {
			return 0, false, err
		}
	}

	if err := s.teardownPair(ctx, userID, partner); err != nil {
		return 0, false, err
	}

	log.WithFields(log.Fields{
		"user_id":    userID,
		"partner_id": partner,
	}).Info("Сессия остановлена")
	return partner, true, nil
}

// Finalize идемпотентно финализирует сессию по ID.
func (s *Service) Finalize(ctx context.Context, sessionID int64) (*FinalizeOutcome, error) {
	return s.store.Finalize(ctx, sessionID)
}

// expiryOf возвращает момент истечения сессии.
func (s *Service) expiryOf(session *ChatSession) time.Time {
	return session.StartedAt.Add(time.Duration(s.capMinutes) * time.Minute)
}

// teardownPair снимает связь пары и флаги занятости — всегда у обеих
// сторон вместе, чтобы одна сторона не осталась «в чате» без другой.
func (s *Service) teardownPair(ctx context.Context, a, b int64) error {
	if err := s.pairs.Clear(ctx, a, b); err != nil {
		return err
	}
	return s.pool.Release(ctx, a, b)
}
