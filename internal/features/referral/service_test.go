package referral

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockReferralStore struct {
	mock.Mock
}

func (m *mockReferralStore) Link(ctx context.Context, referrerID, referredID int64) error {
	args := m.Called(ctx, referrerID, referredID)
	return args.Error(0)
}

func (m *mockReferralStore) ClaimReward(ctx context.Context, referredID int64) (int64, bool, error) {
	args := m.Called(ctx, referredID)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

type mockRewarder struct {
	mock.Mock
}

func (m *mockRewarder) AddReferralMinutes(ctx context.Context, userID, minutes int64) error {
	args := m.Called(ctx, userID, minutes)
	return args.Error(0)
}

func TestRewardForPaysOnce(t *testing.T) {
	ctx := context.Background()
	store := &mockReferralStore{}
	wallets := &mockRewarder{}
	svc := NewService(store, wallets, 1)

	// Первый успех приглашённого: бонус уходит пригласившему
	store.On("ClaimReward", ctx, int64(100)).Return(int64(42), true, nil).Once()
	wallets.On("AddReferralMinutes", ctx, int64(42), int64(1)).Return(nil).Once()

	referrerID, rewarded, err := svc.RewardFor(ctx, 100)
	require.NoError(t, err)
	assert.True(t, rewarded)
	assert.Equal(t, int64(42), referrerID)

	// Повторный успех того же приглашённого: выплаты нет
	store.On("ClaimReward", ctx, int64(100)).Return(int64(0), false, nil).Once()

	_, rewarded, err = svc.RewardFor(ctx, 100)
	require.NoError(t, err)
	assert.False(t, rewarded)

	wallets.AssertNumberOfCalls(t, "AddReferralMinutes", 1)
}

func TestRewardForNoReferral(t *testing.T) {
	ctx := context.Background()
	store := &mockReferralStore{}
	wallets := &mockRewarder{}
	svc := NewService(store, wallets, 1)

	// Пользователь пришёл без реферальной ссылки
	store.On("ClaimReward", ctx, int64(200)).Return(int64(0), false, nil)

	_, rewarded, err := svc.RewardFor(ctx, 200)
	require.NoError(t, err)
	assert.False(t, rewarded)
	wallets.AssertNotCalled(t, "AddReferralMinutes", mock.Anything, mock.Anything, mock.Anything)
}
