package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"trueme.chat/telegram-bot/internal/metrics"
)

const testSecret = "test-secret"

type mockCreditor struct {
	mock.Mock
}

func (m *mockCreditor) CreditStars(ctx context.Context, eventID string, userID, stars, minutesPerStar int64) (int64, bool, error) {
	args := m.Called(ctx, eventID, userID, stars, minutesPerStar)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

type mockMarker struct {
	mock.Mock
}

func (m *mockMarker) SetHasPaid(ctx context.Context, telegramID int64) error {
	args := m.Called(ctx, telegramID)
	return args.Error(0)
}

type mockRewarder struct {
	mock.Mock
}

func (m *mockRewarder) RewardFor(ctx context.Context, referredID int64) (int64, bool, error) {
	args := m.Called(ctx, referredID)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

type recordingNotifier struct {
	sent map[int64]string
}

func (n *recordingNotifier) Notify(userID int64, text string) {
	if n.sent == nil {
		n.sent = make(map[int64]string)
	}
	n.sent[userID] = text
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func newHandler(wallets StarsCreditor, users PaymentMarker, referrals ReferralRewarder, n Notifier) *StarsHandler {
	return NewStarsHandler(testSecret, 30, wallets, users, referrals, n, metrics.Registry("trueme_test"))
}

func postStars(t *testing.T, h *StarsHandler, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/stars", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStarsWebhookCreditsAndRewards(t *testing.T) {
	wallets := &mockCreditor{}
	users := &mockMarker{}
	referrals := &mockRewarder{}
	notifier := &recordingNotifier{}
	h := newHandler(wallets, users, referrals, notifier)

	body := []byte(`{"telegram_user_id": 1, "event_id": "evt-1", "stars": 2}`)

	wallets.On("CreditStars", mock.Anything, "evt-1", int64(1), int64(2), int64(30)).
		Return(int64(60), true, nil)
	users.On("SetHasPaid", mock.Anything, int64(1)).Return(nil)
	referrals.On("RewardFor", mock.Anything, int64(1)).Return(int64(42), true, nil)

	rec := postStars(t, h, body, sign(body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"minutes":60`)
	assert.Contains(t, notifier.sent[1], "60 minutes")

	wallets.AssertExpectations(t)
	users.AssertExpectations(t)
	referrals.AssertExpectations(t)
}

func TestStarsWebhookDuplicateEvent(t *testing.T) {
	wallets := &mockCreditor{}
	users := &mockMarker{}
	referrals := &mockRewarder{}
	h := newHandler(wallets, users, referrals, nil)

	body := []byte(`{"telegram_user_id": 1, "event_id": "evt-dup", "stars": 2}`)
	wallets.On("CreditStars", mock.Anything, "evt-dup", int64(1), int64(2), int64(30)).
		Return(int64(0), false, nil)

	rec := postStars(t, h, body, sign(body))

	// Дубликат подтверждается 200, чтобы шлюз не ретраил
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "duplicate")

	// Побочные эффекты первой оплаты не повторяются
	users.AssertNotCalled(t, "SetHasPaid", mock.Anything, mock.Anything)
	referrals.AssertNotCalled(t, "RewardFor", mock.Anything, mock.Anything)
}

func TestStarsWebhookRejectsBadSignature(t *testing.T) {
	wallets := &mockCreditor{}
	h := newHandler(wallets, &mockMarker{}, &mockRewarder{}, nil)

	body := []byte(`{"telegram_user_id": 1, "event_id": "evt-1", "stars": 2}`)

	rec := postStars(t, h, body, "deadbeef")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postStars(t, h, body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Подпись от другого тела не проходит
	rec = postStars(t, h, body, sign([]byte("other body")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	wallets.AssertNotCalled(t, "CreditStars",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStarsWebhookRejectsBadPayload(t *testing.T) {
	wallets := &mockCreditor{}
	h := newHandler(wallets, &mockMarker{}, &mockRewarder{}, nil)

	for _, body := range [][]byte{
		[]byte(`not json`),
		[]byte(`{"telegram_user_id": 0, "event_id": "e", "stars": 1}`),
		[]byte(`{"telegram_user_id": 1, "event_id": "", "stars": 1}`),
		[]byte(`{"telegram_user_id": 1, "event_id": "e", "stars": 0}`),
	} {
		rec := postStars(t, h, body, sign(body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", body)
	}
}

func TestStarsWebhookMethodNotAllowed(t *testing.T) {
	h := newHandler(&mockCreditor{}, &mockMarker{}, &mockRewarder{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/webhook/stars", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
