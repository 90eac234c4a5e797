// Package admin — service.go содержит логику аутентификации, управления сессиями,
// state-машину диалога и доменные действия админа: модерацию анкет и выплаты.
package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"trueme.chat/telegram-bot/internal/common"
	"trueme.chat/telegram-bot/internal/config"
	"trueme.chat/telegram-bot/internal/features/chat"
	"trueme.chat/telegram-bot/internal/features/referral"
	"trueme.chat/telegram-bot/internal/features/users"
	"trueme.chat/telegram-bot/internal/features/wallet"
)

// Service управляет админ-панелью.
type Service struct {
	repo      *Repository
	userRepo  *users.Repository
	wallets   *wallet.Repository
	sessions  *chat.Repository
	referrals *referral.Service
	cfg       *config.Config
	states    map[int64]*AdminState // Состояния диалогов (in-memory)
	statesMu  sync.RWMutex
}

// NewService создаёт сервис админ-панели.
func NewService(
	repo *Repository,
	userRepo *users.Repository,
	wallets *wallet.Repository,
	sessions *chat.Repository,
	referrals *referral.Service,
	cfg *config.Config,
) *Service {
	return &Service{
		repo:      repo,
		userRepo:  userRepo,
		wallets:   wallets,
		sessions:  sessions,
		referrals: referrals,
		cfg:       cfg,
		states:    make(map[int64]*AdminState),
	}
}

// IsAdmin проверяет, входит ли пользователь в список админов из конфига.
func (s *Service) IsAdmin(userID int64) bool {
	for _, id := range s.cfg.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// VerifyPassword проверяет пароль администратора с использованием Argon2id.
// Включает защиту от brute-force: 3 неудачные попытки = блокировка на 1 час.
func (s *Service) VerifyPassword(ctx context.Context, userID int64, password string) error {
	// Проверяем лимит попыток
	attempts, err := s.repo.GetRecentAttempts(ctx, userID, 1*time.Hour)
	if err != nil {
		return err
	}
	if attempts >= 3 {
		return common.ErrTooManyAttempts
	}

	// Проверяем пароль
	match := verifyArgon2id(password, s.cfg.AdminPasswordHash)

	// Логируем попытку
	s.repo.LogAttempt(ctx, userID, match)

	if !match {
		return common.ErrWrongPassword
	}

	// Создаём сессию (24 часа)
	token := generateSecureToken()
	session := &AdminSession{
		UserID:       userID,
		SessionToken: token,
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	}

	return s.repo.CreateSession(ctx, session)
}

// HasActiveSession проверяет, есть ли у пользователя активная сессия.
func (s *Service) HasActiveSession(ctx context.Context, userID int64) bool {
	session, err := s.repo.GetActiveSession(ctx, userID)
	return err == nil && session != nil
}

// Logout деактивирует сессию администратора.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	s.ClearState(userID)
	return s.repo.DeactivateSession(ctx, userID)
}

// GetState возвращает текущее состояние диалога.
func (s *Service) GetState(userID int64) *AdminState {
	s.statesMu.RLock()
	defer s.statesMu.RUnlock()

	state, ok := s.states[userID]
	if !ok {
		return nil
	}
	// Проверяем истечение
	if time.Now().After(state.ExpiresAt) {
		return nil
	}
	return state
}

// SetState устанавливает состояние диалога с 5-минутным таймаутом.
func (s *Service) SetState(userID int64, stateName string, data interface{}) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()

	s.states[userID] = &AdminState{
		State:     stateName,
		Data:      data,
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
}

// ClearState сбрасывает состояние диалога.
func (s *Service) ClearState(userID int64) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()
	delete(s.states, userID)
}

// --- Модерация анкет ---

// GetPendingReviews возвращает анкеты female, ожидающие проверки.
func (s *Service) GetPendingReviews(ctx context.Context) ([]*users.User, error) {
	return s.userRepo.GetPendingVerifications(ctx)
}

// ApproveFemale одобряет анкету. После одобрения female может выходить
// в онлайн, а её пригласивший получает реферальный бонус.
// Повторное одобрение возвращает ErrAlreadyVerified.
func (s *Service) ApproveFemale(ctx context.Context, telegramID int64) error {
	user, err := s.userRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return err
	}
	if !user.IsFemale() {
		return common.ErrRoleMismatch
	}
	if user.IsVerified {
		return common.ErrAlreadyVerified
	}

	if err := s.userRepo.SetVerified(ctx, telegramID); err != nil {
		return err
	}

	// Одобрение анкеты — "первый успех" приглашённой female
	if _, _, err := s.referrals.RewardFor(ctx, telegramID); err != nil {
		log.WithError(err).WithField("user_id", telegramID).
			Error("Ошибка выплаты реферального бонуса при одобрении анкеты")
	}

	log.WithField("user_id", telegramID).Info("Анкета одобрена")
	return nil
}

// RejectFemale отклоняет анкету: роль сбрасывается, пользователь
// может выбрать роль заново.
func (s *Service) RejectFemale(ctx context.Context, telegramID int64) error {
	user, err := s.userRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return err
	}
	if !user.IsFemale() {
		return common.ErrRoleMismatch
	}
	if user.IsVerified {
		return common.ErrAlreadyVerified
	}

	if err := s.userRepo.ClearRole(ctx, telegramID); err != nil {
		return err
	}

	log.WithField("user_id", telegramID).Info("Анкета отклонена")
	return nil
}

// --- Выплаты ---

// GetPendingWithdrawals возвращает заявки на вывод в статусе pending.
func (s *Service) GetPendingWithdrawals(ctx context.Context) ([]*wallet.Withdrawal, error) {
	return s.wallets.GetPendingWithdrawals(ctx)
}

// MarkWithdrawalPaid помечает заявку выплаченной после ручного перевода.
func (s *Service) MarkWithdrawalPaid(ctx context.Context, withdrawalID int64) error {
	if err := s.wallets.MarkWithdrawalPaid(ctx, withdrawalID); err != nil {
		return err
	}
	log.WithField("withdrawal_id", withdrawalID).Info("Заявка на вывод выплачена")
	return nil
}

// --- Статистика ---

// GetPlatformStats собирает сводку по платформе для команды /stats.
func (s *Service) GetPlatformStats(ctx context.Context) (*PlatformStats, error) {
	stats := &PlatformStats{}

	males, err := s.userRepo.CountByRole(ctx, users.RoleMale)
	if err != nil {
		return nil, err
	}
	stats.TotalMales = int64(males)

	females, err := s.userRepo.CountByRole(ctx, users.RoleFemale)
	if err != nil {
		return nil, err
	}
	stats.TotalFemales = int64(females)

	pending, err := s.userRepo.GetPendingVerifications(ctx)
	if err != nil {
		return nil, err
	}
	stats.PendingReviews = int64(len(pending))

	completed, err := s.sessions.CountCompleted(ctx)
	if err != nil {
		return nil, err
	}
	stats.CompletedSessions = int64(completed)

	withdrawals, err := s.wallets.GetPendingWithdrawals(ctx)
	if err != nil {
		return nil, err
	}
	stats.PendingWithdrawals = int64(len(withdrawals))

	return stats, nil
}

// --- Криптографические утилиты ---

// verifyArgon2id проверяет пароль по хешу Argon2id.
// Формат хеша: $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func verifyArgon2id(password, encodedHash string) bool {
	// Парсим хеш
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	// Извлекаем параметры
	var memory uint32
	var iterations uint32
	var parallelism uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism)
	if err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	// Декодируем соль
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}

	// Декодируем хеш
	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	// Вычисляем хеш введённого пароля
	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Сравниваем в постоянном времени (защита от timing attack)
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}

// generateSecureToken генерирует криптографически безопасный токен сессии.
func generateSecureToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}
