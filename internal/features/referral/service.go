package referral

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Rewarder — начисление бонусных минут в реферальный раздел кошелька.
type Rewarder interface {
	AddReferralMinutes(ctx context.Context, userID, minutes int64) error
}

// Store — хранилище реферальных связей (мокается в тестах).
type Store interface {
	Link(ctx context.Context, referrerID, referredID int64) error
	ClaimReward(ctx context.Context, referredID int64) (int64, bool, error)
}

// Service - бизнес-логика реферальной программы
type Service struct {
	store        Store
	wallets      Rewarder
	bonusMinutes int64
}

// NewService создает новый сервис
func NewService(store Store, wallets Rewarder, bonusMinutes int64) *Service {
	return &Service{store: store, wallets: wallets, bonusMinutes: bonusMinutes}
}

// Register фиксирует приглашение по ссылке /start ref_<id>.
func (s *Service) Register(ctx context.Context, referrerID, referredID int64) error {
	if err := s.store.Link(ctx, referrerID, referredID); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"referrer_id": referrerID,
		"referred_id": referredID,
	}).Info("Реферальная связь зафиксирована")
	return nil
}

// RewardFor выплачивает бонус пригласившему после первого успеха
// приглашённого: первой оплаты для male, одобрения анкеты для female.
// Возвращает ID пригласившего и признак фактической выплаты.
// Идемпотентность обеспечивает хранилище: бонус выплачивается один раз.
func (s *Service) RewardFor(ctx context.Context, referredID int64) (int64, bool, error) {
	referrerID, claimed, err := s.store.ClaimReward(ctx, referredID)
	if err != nil {
		return 0, false, err
	}
	if !claimed {
		return 0, false, nil
	}

	if err := s.wallets.AddReferralMinutes(ctx, referrerID, s.bonusMinutes); err != nil {
		return 0, false, err
	}

	log.WithFields(log.Fields{
		"referrer_id": referrerID,
		"referred_id": referredID,
		"minutes":     s.bonusMinutes,
	}).Info("Реферальный бонус выплачен")
	return referrerID, true, nil
}
