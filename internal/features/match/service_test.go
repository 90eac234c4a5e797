package match

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"trueme.chat/telegram-bot/internal/common"
	"trueme.chat/telegram-bot/internal/features/chat"
	"trueme.chat/telegram-bot/internal/features/pool"
	"trueme.chat/telegram-bot/internal/features/users"
)

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) GetByTelegramID(ctx context.Context, telegramID int64) (*users.User, error) {
	args := m.Called(ctx, telegramID)
	if u := args.Get(0); u != nil {
		return u.(*users.User), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockWallets struct {
	mock.Mock
}

func (m *mockWallets) PeekAvailable(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) StartPaid(ctx context.Context, maleID, femaleID, costMinutes int64) (*chat.ChatSession, error) {
	args := m.Called(ctx, maleID, femaleID, costMinutes)
	if s := args.Get(0); s != nil {
		return s.(*chat.ChatSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func strPtr(s string) *string { return &s }

func maleUser(id int64) *users.User {
	return &users.User{TelegramID: id, Role: strPtr(users.RoleMale), IsVerified: true}
}

func femaleUser(id int64, verified bool) *users.User {
	return &users.User{TelegramID: id, Role: strPtr(users.RoleFemale), IsVerified: verified}
}

type fixture struct {
	svc      *Service
	users    *mockUsers
	wallets  *mockWallets
	sessions *mockSessions
	store    *pool.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:    &mockUsers{},
		wallets:  &mockWallets{},
		sessions: &mockSessions{},
		store:    pool.NewMemoryStore(),
	}
	f.svc = NewService(f.users, f.wallets, f.store, f.store, f.sessions, 49)
	return f
}

func TestFindMatchNoRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.users.On("GetByTelegramID", ctx, int64(1)).
		Return(&users.User{TelegramID: 1}, nil)

	_, _, err := f.svc.FindMatch(ctx, 1)
	assert.ErrorIs(t, err, common.ErrProfileIncomplete)
}

func TestFindMatchUnverifiedFemale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.users.On("GetByTelegramID", ctx, int64(11)).Return(femaleUser(11, false), nil)

	_, _, err := f.svc.FindMatch(ctx, 11)
	assert.ErrorIs(t, err, common.ErrNotVerified)
}

func TestFindMatchVerifiedFemale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Верифицированная female не инициирует поиск, даже с балансом
	f.users.On("GetByTelegramID", ctx, int64(11)).Return(femaleUser(11, true), nil)

	_, _, err := f.svc.FindMatch(ctx, 11)
	assert.ErrorIs(t, err, common.ErrRoleMismatch)
}

func TestFindMatchInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.users.On("GetByTelegramID", ctx, int64(1)).Return(maleUser(1), nil)
	f.wallets.On("PeekAvailable", ctx, int64(1)).Return(int64(48), nil)

	_, _, err := f.svc.FindMatch(ctx, 1)
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)

	// В очередь при этом не попадает
	f.sessions.AssertNotCalled(t, "StartPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFindMatchAlreadyInSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.users.On("GetByTelegramID", ctx, int64(1)).Return(maleUser(1), nil)
	f.wallets.On("PeekAvailable", ctx, int64(1)).Return(int64(100), nil)
	require.NoError(t, f.store.Set(ctx, 1, 11))

	_, _, err := f.svc.FindMatch(ctx, 1)
	assert.ErrorIs(t, err, common.ErrAlreadyInSession)
}

func TestFindMatchNoFemaleOnline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.users.On("GetByTelegramID", ctx, int64(1)).Return(maleUser(1), nil)
	f.wallets.On("PeekAvailable", ctx, int64(1)).Return(int64(100), nil)

	_, _, err := f.svc.FindMatch(ctx, 1)
	assert.ErrorIs(t, err, common.ErrNoMatch)

	// Пользователь остался в очереди: появление female даёт матч
	f.users.On("GetByTelegramID", ctx, int64(11)).Return(femaleUser(11, true), nil)
	require.NoError(t, f.svc.GoOnline(ctx, 11))

	f.sessions.On("StartPaid", ctx, int64(1), int64(11), int64(49)).
		Return(&chat.ChatSession{ID: 1, MaleID: 1, FemaleID: 11}, nil)

	maleID, femaleID, err := f.svc.FindMatch(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), maleID)
	assert.Equal(t, int64(11), femaleID)
}

func TestFindMatchSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.users.On("GetByTelegramID", ctx, int64(11)).Return(femaleUser(11, true), nil)
	require.NoError(t, f.svc.GoOnline(ctx, 11))

	f.users.On("GetByTelegramID", ctx, int64(1)).Return(maleUser(1), nil)
	f.wallets.On("PeekAvailable", ctx, int64(1)).Return(int64(49), nil)
	f.sessions.On("StartPaid", ctx, int64(1), int64(11), int64(49)).
		Return(&chat.ChatSession{ID: 1, MaleID: 1, FemaleID: 11}, nil)

	maleID, femaleID, err := f.svc.FindMatch(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), maleID)
	assert.Equal(t, int64(11), femaleID)

	f.sessions.AssertExpectations(t)
}

func TestFindMatchDebitRaceUnwinds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.users.On("GetByTelegramID", ctx, int64(11)).Return(femaleUser(11, true), nil)
	require.NoError(t, f.svc.GoOnline(ctx, 11))

	// Предварительная проверка прошла, но к моменту списания минуты
	// уже потрачены другой сессией
	f.users.On("GetByTelegramID", ctx, int64(1)).Return(maleUser(1), nil)
	f.wallets.On("PeekAvailable", ctx, int64(1)).Return(int64(49), nil)
	f.sessions.On("StartPaid", ctx, int64(1), int64(11), int64(49)).
		Return(nil, common.ErrInsufficientBalance).Once()

	_, _, err := f.svc.FindMatch(ctx, 1)
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)

	// Матч размотан: female снова в онлайне и доступна другому плательщику
	f.users.On("GetByTelegramID", ctx, int64(2)).Return(maleUser(2), nil)
	f.wallets.On("PeekAvailable", ctx, int64(2)).Return(int64(100), nil)
	f.sessions.On("StartPaid", ctx, int64(2), int64(11), int64(49)).
		Return(&chat.ChatSession{ID: 2, MaleID: 2, FemaleID: 11}, nil)

	maleID, femaleID, err := f.svc.FindMatch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), maleID)
	assert.Equal(t, int64(11), femaleID)
}

func TestGoOnlinePreconditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.users.On("GetByTelegramID", ctx, int64(1)).Return(maleUser(1), nil)
	assert.ErrorIs(t, f.svc.GoOnline(ctx, 1), common.ErrRoleMismatch)

	f.users.On("GetByTelegramID", ctx, int64(11)).Return(femaleUser(11, false), nil)
	assert.ErrorIs(t, f.svc.GoOnline(ctx, 11), common.ErrNotVerified)

	f.users.On("GetByTelegramID", ctx, int64(12)).Return(femaleUser(12, true), nil)
	require.NoError(t, f.store.Set(ctx, 12, 2))
	assert.ErrorIs(t, f.svc.GoOnline(ctx, 12), common.ErrAlreadyInSession)
}
