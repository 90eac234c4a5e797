// Package match реализует оркестратор матчмейкинга: связывает очередь
// ожидания, кошельки и жизненный цикл сессий.
// service.go содержит проверки допуска и сам сценарий подбора пары.
package match

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"trueme.chat/telegram-bot/internal/common"
	"trueme.chat/telegram-bot/internal/features/chat"
	"trueme.chat/telegram-bot/internal/features/pool"
	"trueme.chat/telegram-bot/internal/features/users"
)

// UserDirectory — доступ к профилям, нужный оркестратору.
type UserDirectory interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*users.User, error)
}

// BalancePeeker — предварительная проверка баланса без блокировок.
type BalancePeeker interface {
	PeekAvailable(ctx context.Context, userID int64) (int64, error)
}

// SessionStarter — запуск оплаченной сессии для подобранной пары.
type SessionStarter interface {
	StartPaid(ctx context.Context, maleID, femaleID, costMinutes int64) (*chat.ChatSession, error)
}

// Service — оркестратор матчмейкинга.
type Service struct {
	users       UserDirectory
	wallets     BalancePeeker
	pool        pool.Pool
	pairs       pool.Pairs
	sessions    SessionStarter
	costMinutes int64
}

// NewService создаёт оркестратор.
func NewService(
	userDir UserDirectory,
	wallets BalancePeeker,
	p pool.Pool,
	pairs pool.Pairs,
	sessions SessionStarter,
	costMinutes int64,
) *Service {
	return &Service{
		users:       userDir,
		wallets:     wallets,
		pool:        p,
		pairs:       pairs,
		sessions:    sessions,
		costMinutes: costMinutes,
	}
}

// FindMatch подбирает пару для пользователя userID.
//
// Каждая проверка — жёсткое предусловие: её провал возвращает ошибку
// без побочных эффектов в очереди и кошельках. ErrNoMatch — штатный
// исход: вызывающий остаётся в очереди и будет подобран позже.
func (s *Service) FindMatch(ctx context.Context, userID int64) (int64, int64, error) {
	user, err := s.users.GetByTelegramID(ctx, userID)
	if err != nil {
		return 0, 0, err
	}

	// 1. Роль должна быть выбрана
	if !user.HasRole() {
		return 0, 0, common.ErrProfileIncomplete
	}

	// 2. Неверифицированная female не допускается к матчу
	if user.IsFemale() && !user.IsVerified {
		return 0, 0, common.ErrNotVerified
	}

	// 3. Поиск инициирует только платящая сторона
	if !user.IsMale() {
		return 0, 0, common.ErrRoleMismatch
	}

	// 4. Предварительная проверка баланса (без блокировки)
	available, err := s.wallets.PeekAvailable(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	if available < s.costMinutes {
		return 0, 0, common.ErrInsufficientBalance
	}

	// 5. Уже в активном чате — нельзя
	if _, inChat, err := s.pairs.Partner(ctx, userID); err != nil {
		return 0, 0, err
	} else if inChat {
		return 0, 0, common.ErrAlreadyInSession
	}

	// 6. Встаём в очередь
	if err := s.pool.Join(ctx, userID, users.RoleMale); err != nil {
		return 0, 0, err
	}

	// 7. Пробуем атомарный матч
	maleID, femaleID, err := s.pool.MatchOne(ctx)
	if err != nil {
		// ErrNoMatch проходит как есть — пользователь остаётся в очереди
		return 0, 0, err
	}

	// 8. Списание + создание сессии одной атомарной единицей.
	// Проигранная гонка за баланс разматывает матч: флаги занятости
	// снимаются, female возвращается в онлайн, половинчатого матча
	// не остаётся.
	if _, err := s.sessions.StartPaid(ctx, maleID, femaleID, s.costMinutes); err != nil {
		if unwindErr := s.unwind(ctx, maleID, femaleID); unwindErr != nil {
			log.WithError(unwindErr).WithFields(log.Fields{
				"male_id":   maleID,
				"female_id": femaleID,
			}).Error("Не удалось размотать неудавшийся матч")
		}
		if errors.Is(err, common.ErrInsufficientBalance) {
			return 0, 0, common.ErrInsufficientBalance
		}
		return 0, 0, err
	}

	log.WithFields(log.Fields{
		"male_id":   maleID,
		"female_id": femaleID,
	}).Info("Пара подобрана")
	return maleID, femaleID, nil
}

// GoOnline ставит верифицированную female в очередь ожидания.
func (s *Service) GoOnline(ctx context.Context, userID int64) error {
	user, err := s.users.GetByTelegramID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasRole() {
		return common.ErrProfileIncomplete
	}
	if !user.IsFemale() {
		return common.ErrRoleMismatch
	}
	if !user.IsVerified {
		return common.ErrNotVerified
	}
	if _, inChat, err := s.pairs.Partner(ctx, userID); err != nil {
		return err
	} else if inChat {
		return common.ErrAlreadyInSession
	}

	return s.pool.Join(ctx, userID, users.RoleFemale)
}

// GoOffline убирает пользователя из очереди ожидания.
func (s *Service) GoOffline(ctx context.Context, userID int64) error {
	return s.pool.Leave(ctx, userID)
}

// unwind возвращает пару в состояние "не в сессии" после провала
// создания сессии: флаги занятости долой, female снова в онлайне.
func (s *Service) unwind(ctx context.Context, maleID, femaleID int64) error {
	if err := s.pool.Release(ctx, maleID, femaleID); err != nil {
		return err
	}
	return s.pool.Join(ctx, femaleID, users.RoleFemale)
}
