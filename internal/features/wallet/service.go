// Package wallet — service.go содержит бизнес-логику кошельков:
// проверки баланса, пополнения, заявки на вывод.
package wallet

import (
	"context"

	log "github.com/sirupsen/logrus"

	"trueme.chat/telegram-bot/internal/common"
)

// Service управляет кошельками пользователей.
type Service struct {
	repo *Repository
}

// NewService создаёт новый сервис кошельков.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// EnsureWallet лениво создаёт кошелёк с пробными минутами.
func (s *Service) EnsureWallet(ctx context.Context, userID int64) error {
	return s.repo.EnsureWallet(ctx, userID)
}

// GetWallet возвращает кошелёк пользователя.
func (s *Service) GetWallet(ctx context.Context, userID int64) (*Wallet, error) {
	return s.repo.GetWallet(ctx, userID)
}

// PeekAvailable возвращает суммарный запас минут без блокировки.
func (s *Service) PeekAvailable(ctx context.Context, userID int64) (int64, error) {
	return s.repo.PeekAvailable(ctx, userID)
}

// Debit списывает minutes минут (free → referral → paid).
func (s *Service) Debit(ctx context.Context, userID int64, minutes int64) error {
	if minutes < 0 {
		return common.ErrInvalidAmount
	}
	return s.repo.Debit(ctx, userID, minutes)
}

// Credit начисляет заработок в pending и lifetime.
func (s *Service) Credit(ctx context.Context, userID int64, amount float64) error {
	if amount < 0 {
		return common.ErrInvalidAmount
	}
	return s.repo.Credit(ctx, userID, amount)
}

// CreditStars обрабатывает пополнение звёздами. Идемпотентно по eventID.
// Возвращает начисленные минуты и credited=false для повторного события.
func (s *Service) CreditStars(ctx context.Context, eventID string, userID, stars, minutesPerStar int64) (int64, bool, error) {
	if stars <= 0 {
		return 0, false, common.ErrInvalidAmount
	}

	minutes := stars * minutesPerStar
	credited, err := s.repo.CreditStars(ctx, eventID, userID, stars, minutes)
	if err != nil {
		return 0, false, err
	}
	if !credited {
		log.WithFields(log.Fields{
			"event_id": eventID,
			"user_id":  userID,
		}).Warn("Повторное событие пополнения, начисление пропущено")
		return 0, false, nil
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"stars":   stars,
		"minutes": minutes,
	}).Info("Оплаченные минуты начислены")
	return minutes, true, nil
}

// AddReferralMinutes начисляет реферальный бонус.
func (s *Service) AddReferralMinutes(ctx context.Context, userID int64, minutes int64) error {
	return s.repo.AddReferralMinutes(ctx, userID, minutes)
}

// RequestWithdrawal создаёт заявку на вывод всей доступной суммы.
// Возвращает ErrNoBalance, если выводить нечего.
func (s *Service) RequestWithdrawal(ctx context.Context, userID int64) (*Withdrawal, error) {
	w, err := s.repo.CreateWithdrawal(ctx, userID)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":   userID,
		"amount":    w.Amount,
		"reference": w.Reference,
	}).Info("Создана заявка на вывод")
	return w, nil
}
