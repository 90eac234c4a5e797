// Package users — service.go содержит бизнес-логику регистрации и ролей.
package users

import (
	"context"

	log "github.com/sirupsen/logrus"

	"trueme.chat/telegram-bot/internal/common"
)

// Service управляет пользователями платформы.
type Service struct {
	repo *Repository
}

// NewService создаёт новый сервис пользователей.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// EnsureUser гарантирует, что пользователь есть в базе.
// Вызывается на каждый входящий апдейт: первое сообщение и есть регистрация.
func (s *Service) EnsureUser(ctx context.Context, telegramID int64, fullName string) (*User, error) {
	user, err := s.repo.GetByTelegramID(ctx, telegramID)
	if err == nil {
		return user, nil
	}
	if err != common.ErrUserNotFound {
		return nil, err
	}

	if err := s.repo.Create(ctx, telegramID, fullName); err != nil {
		return nil, err
	}

	log.WithField("telegram_id", telegramID).Info("Новый пользователь зарегистрирован")
	return s.repo.GetByTelegramID(ctx, telegramID)
}

// GetByTelegramID возвращает пользователя по Telegram ID.
func (s *Service) GetByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	return s.repo.GetByTelegramID(ctx, telegramID)
}

// SetRole устанавливает роль пользователя.
//
// Возвращает:
//   - RoleResultMaleActivated: male активируется сразу
//   - RoleResultFemalePending: female ждёт одобрения анкеты админом
//
// Роль верифицированного пользователя заблокирована (ErrRoleLocked).
func (s *Service) SetRole(ctx context.Context, telegramID int64, role string) (string, error) {
	user, err := s.repo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return "", err
	}

	// Верифицированную роль менять нельзя
	if user.HasRole() && user.IsVerified {
		return "", common.ErrRoleLocked
	}

	switch role {
	case RoleMale:
		if err := s.repo.UpdateRole(ctx, telegramID, RoleMale, true); err != nil {
			return "", err
		}
		return RoleResultMaleActivated, nil

	case RoleFemale:
		if err := s.repo.UpdateRole(ctx, telegramID, RoleFemale, false); err != nil {
			return "", err
		}
		return RoleResultFemalePending, nil
	}

	return "", common.ErrRoleMismatch
}

// IsMatchableFemale сообщает, может ли пользователь выходить в онлайн
// как зарабатывающая сторона: роль female и анкета одобрена.
func (s *Service) IsMatchableFemale(ctx context.Context, telegramID int64) (bool, error) {
	user, err := s.repo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return false, err
	}
	return user.IsFemale() && user.IsVerified, nil
}
