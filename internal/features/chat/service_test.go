package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"trueme.chat/telegram-bot/internal/common"
	"trueme.chat/telegram-bot/internal/features/pool"
)

// mockStore — мок SessionStore для тестов без БД.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) StartPaidSession(ctx context.Context, maleID, femaleID, costMinutes int64) (*ChatSession, error) {
	args := m.Called(ctx, maleID, femaleID, costMinutes)
	if s := args.Get(0); s != nil {
		return s.(*ChatSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) GetActiveSessionFor(ctx context.Context, userID int64) (*ChatSession, error) {
	args := m.Called(ctx, userID)
	if s := args.Get(0); s != nil {
		return s.(*ChatSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) Finalize(ctx context.Context, sessionID int64) (*FinalizeOutcome, error) {
	args := m.Called(ctx, sessionID)
	if o := args.Get(0); o != nil {
		return o.(*FinalizeOutcome), args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestService(t *testing.T, store SessionStore) (*Service, *pool.MemoryStore) {
	t.Helper()
	mem := pool.NewMemoryStore()
	return NewService(store, mem, mem, 30), mem
}

func activeSession(startedAt time.Time) *ChatSession {
	return &ChatSession{
		ID:               7,
		MaleID:           1,
		FemaleID:         11,
		StartedAt:        startedAt,
		PrebilledMinutes: 49,
	}
}

func TestStartPaidSetsPair(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	svc, mem := newTestService(t, store)

	started := time.Now()
	store.On("StartPaidSession", ctx, int64(1), int64(11), int64(49)).
		Return(activeSession(started), nil)

	session, err := svc.StartPaid(ctx, 1, 11, 49)
	require.NoError(t, err)
	assert.Equal(t, int64(7), session.ID)

	p, ok, err := mem.Partner(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(11), p)

	store.AssertExpectations(t)
}

func TestStartPaidInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	svc, mem := newTestService(t, store)

	store.On("StartPaidSession", ctx, int64(1), int64(11), int64(49)).
		Return(nil, common.ErrInsufficientBalance)

	_, err := svc.StartPaid(ctx, 1, 11, 49)
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)

	// Связь пары при провале не ставится
	_, ok, err := mem.Partner(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStopFinalizesAndTearsDown(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	svc, mem := newTestService(t, store)

	require.NoError(t, mem.Set(ctx, 1, 11))
	session := activeSession(time.Now().Add(-5 * time.Minute))
	store.On("GetActiveSessionFor", ctx, int64(1)).Return(session, nil)
	store.On("Finalize", ctx, int64(7)).
		Return(&FinalizeOutcome{Session: session, BillableMinutes: 5}, nil)

	partner, ok, err := svc.Stop(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(11), partner)

	// Связь снята у обеих сторон
	_, ok, _ = mem.Partner(ctx, 1)
	assert.False(t, ok)
	_, ok, _ = mem.Partner(ctx, 11)
	assert.False(t, ok)

	store.AssertExpectations(t)
}

func TestStopStoreFailureKeepsPair(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	svc, mem := newTestService(t, store)

	require.NoError(t, mem.Set(ctx, 1, 11))
	store.On("GetActiveSessionFor", ctx, int64(1)).
		Return(nil, errors.New("db connection reset"))

	_, ok, err := svc.Stop(ctx, 1)
	require.Error(t, err)
	assert.False(t, ok)

	// Без финализации пара не разрывается: повторный /stop
	// довершит начисление
	store.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything)
	p, ok, _ := mem.Partner(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, int64(11), p)
}

func TestStopWithoutSessionStillTearsDown(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	svc, mem := newTestService(t, store)

	// Пара есть, сессии нет — рассинхрон, пару чистим молча
	require.NoError(t, mem.Set(ctx, 1, 11))
	store.On("GetActiveSessionFor", ctx, int64(1)).
		Return(nil, common.ErrSessionNotFound)

	partner, ok, err := svc.Stop(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(11), partner)

	_, ok, _ = mem.Partner(ctx, 1)
	assert.False(t, ok)
	store.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything)
}

func TestStopWithoutPairIsNoop(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	svc, _ := newTestService(t, store)

	_, ok, err := svc.Stop(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	// До хранилища дело не дошло
	store.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything)
}

func TestRelayNoPartner(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	svc, _ := newTestService(t, store)

	result, _, err := svc.Relay(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ResultNone, result)
}

func TestRelayActiveSession(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	svc, mem := newTestService(t, store)

	started := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return started.Add(10 * time.Minute) }

	require.NoError(t, mem.Set(ctx, 1, 11))
	store.On("GetActiveSessionFor", ctx, int64(1)).Return(activeSession(started), nil)

	result, partner, err := svc.Relay(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ResultRelay, result)
	assert.Equal(t, int64(11), partner)

	// Пара жива, сообщение можно слать в обе стороны
	store.On("GetActiveSessionFor", ctx, int64(11)).Return(activeSession(started), nil)
	result, partner, err = svc.Relay(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, ResultRelay, result)
	assert.Equal(t, int64(1), partner)
}

func TestRelayExpiredSession(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	svc, mem := newTestService(t, store)

	started := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	session := activeSession(started)

	// Ровно на границе предела сессия уже истекла
	svc.now = func() time.Time { return started.Add(30 * time.Minute) }

	require.NoError(t, mem.Set(ctx, 1, 11))
	store.On("GetActiveSessionFor", ctx, int64(1)).Return(session, nil)
	store.On("Finalize", ctx, int64(7)).
		Return(&FinalizeOutcome{Session: session, BillableMinutes: 30}, nil)

	result, partner, err := svc.Relay(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ResultExpired, result)
	assert.Equal(t, int64(11), partner)

	// Состояние пары вычищено
	_, ok, _ := mem.Partner(ctx, 1)
	assert.False(t, ok)
	_, ok, _ = mem.Partner(ctx, 11)
	assert.False(t, ok)

	store.AssertExpectations(t)
}

func TestRelayStalePairCleanup(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	svc, mem := newTestService(t, store)

	// Пара есть, а сессии нет — рассинхрон
	require.NoError(t, mem.Set(ctx, 1, 11))
	store.On("GetActiveSessionFor", ctx, int64(1)).Return(nil, common.ErrSessionNotFound)

	result, _, err := svc.Relay(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ResultNone, result)

	// Зависшая пара вычищена
	_, ok, _ := mem.Partner(ctx, 1)
	assert.False(t, ok)
}
