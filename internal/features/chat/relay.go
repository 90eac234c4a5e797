// Package chat — relay.go реализует шлюз пересылки сообщений.
// На каждое входящее сообщение определяется партнёр отправителя,
// проверяется истечение сессии, и сообщение либо пересылается,
// либо сессия лениво финализируется.
//
// Истечение — не фоновый таймер: оно обнаруживается следующим
// обращением к сессии. Этого достаточно, потому что заработок
// начисляется только за наблюдаемое время.
package chat

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"trueme.chat/telegram-bot/internal/common"
)

// RelayResult — исход обработки входящего сообщения.
type RelayResult int

const (
	// ResultNone — партнёра нет, сообщение тихо отбрасывается.
	ResultNone RelayResult = iota
	// ResultRelay — сообщение пересылается партнёру дословно.
	ResultRelay
	// ResultExpired — сессия истекла и финализирована; само сообщение
	// не доставляется, обе стороны уведомляются.
	ResultExpired
)

// Relay обрабатывает входящее сообщение пользователя userID.
// Возвращает исход и ID партнёра (для ResultRelay и ResultExpired).
//
// Сбой любого поиска деградирует до ResultNone; связь пары при этом
// никогда не разрывается с одной стороны — только парой целиком.
func (s *Service) Relay(ctx context.Context, userID int64) (RelayResult, int64, error) {
	// 1. Партнёр по активной паре
	partner, ok, err := s.pairs.Partner(ctx, userID)
	if err != nil {
		return ResultNone, 0, err
	}
	if !ok {
		return ResultNone, 0, nil
	}

	// 2. Активная сессия. Её отсутствие — рассинхрон состояния:
	//    чистим зависшую пару и отбрасываем сообщение.
	session, err := s.store.GetActiveSessionFor(ctx, userID)
	if errors.Is(err, common.ErrSessionNotFound) {
		log.WithFields(log.Fields{
			"user_id":    userID,
			"partner_id": partner,
		}).Warn("Пара без активной сессии, чистим состояние")
		if _, _, err := s.Stop(ctx, userID); err != nil {
			return ResultNone, 0, err
		}
		return ResultNone, 0, nil
	}
	if err != nil {
		return ResultNone, 0, err
	}

	// 3. Проверка истечения
	if !s.now().Before(s.expiryOf(session)) {
		if _, err := s.store.Finalize(ctx, session.ID); err != nil {
			return ResultNone, 0, err
		}
		if err := s.teardownPair(ctx, userID, partner); err != nil {
			return ResultNone, 0, err
		}

		log.WithFields(log.Fields{
			"session_id": session.ID,
			"user_id":    userID,
			"partner_id": partner,
		}).Info("Сессия истекла и финализирована")
		return ResultExpired, partner, nil
	}

	// 4. Сессия жива — пересылаем
	return ResultRelay, partner, nil
}
