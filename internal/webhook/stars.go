// stars.go принимает события оплаты Telegram Stars: проверка подписи
// HMAC-SHA256, идемпотентное зачисление минут, реферальный бонус за
// первую оплату.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"trueme.chat/telegram-bot/internal/metrics"
)

// Заголовок с подписью тела запроса.
const signatureHeader = "X-Telegram-Signature"

// Максимальный размер тела запроса (защита от злоупотреблений).
const maxBodyBytes = 64 << 10

// starsEvent — событие оплаты от платёжного шлюза.
type starsEvent struct {
	TelegramUserID int64  `json:"telegram_user_id"`
	EventID        string `json:"event_id"`
	Stars          int64  `json:"stars"`
}

// StarsCreditor зачисляет оплату минутами. Повторное событие с тем же
// eventID возвращает credited=false без изменения баланса.
type StarsCreditor interface {
	CreditStars(ctx context.Context, eventID string, userID, stars, minutesPerStar int64) (int64, bool, error)
}

// PaymentMarker отмечает первую оплату пользователя.
type PaymentMarker interface {
	SetHasPaid(ctx context.Context, telegramID int64) error
}

// ReferralRewarder выплачивает реферальный бонус за первый успех приглашённого.
type ReferralRewarder interface {
	RewardFor(ctx context.Context, referredID int64) (int64, bool, error)
}

// Notifier доставляет пользователю уведомление о зачислении.
type Notifier interface {
	Notify(userID int64, text string)
}

// StarsHandler обрабатывает POST /webhook/stars.
type StarsHandler struct {
	secret         []byte
	minutesPerStar int64
	wallets        StarsCreditor
	users          PaymentMarker
	referrals      ReferralRewarder
	notifier       Notifier
	metrics        *metrics.Metrics
}

// NewStarsHandler создаёт обработчик событий оплаты.
func NewStarsHandler(
	secret string,
	minutesPerStar int64,
	wallets StarsCreditor,
	users PaymentMarker,
	referrals ReferralRewarder,
	notifier Notifier,
	m *metrics.Metrics,
) *StarsHandler {
	return &StarsHandler{
		secret:         []byte(secret),
		minutesPerStar: minutesPerStar,
		wallets:        wallets,
		users:          users,
		referrals:      referrals,
		notifier:       notifier,
		metrics:        m,
	}
}

func (h *StarsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	// Подпись считается по сырому телу, до разбора JSON
	if !h.validSignature(body, r.Header.Get(signatureHeader)) {
		log.Warn("Вебхук оплаты: неверная подпись")
		h.metrics.Errors.WithLabelValues("stars_webhook").Inc()
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var event starsEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if event.TelegramUserID == 0 || event.EventID == "" || event.Stars <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	minutes, credited, err := h.wallets.CreditStars(
		r.Context(), event.EventID, event.TelegramUserID, event.Stars, h.minutesPerStar,
	)
	if err != nil {
		log.WithError(err).WithField("event_id", event.EventID).
			Error("Ошибка зачисления оплаты")
		h.metrics.Errors.WithLabelValues("stars_webhook").Inc()
		http.Error(w, "credit failed", http.StatusInternalServerError)
		return
	}

	// Дубликат события: отвечаем 200, чтобы шлюз перестал ретраить
	if !credited {
		log.WithField("event_id", event.EventID).Info("Повторное событие оплаты, пропускаем")
		writeJSON(w, map[string]any{"status": "duplicate"})
		return
	}

	h.metrics.StarsCredited.Add(float64(event.Stars))

	// Первая оплата открывает реферальный бонус пригласившему
	if err := h.users.SetHasPaid(r.Context(), event.TelegramUserID); err != nil {
		log.WithError(err).WithField("user_id", event.TelegramUserID).
			Error("Не удалось отметить оплату пользователя")
	}
	if _, _, err := h.referrals.RewardFor(r.Context(), event.TelegramUserID); err != nil {
		log.WithError(err).WithField("user_id", event.TelegramUserID).
			Error("Ошибка выплаты реферального бонуса после оплаты")
	}

	if h.notifier != nil {
		h.notifier.Notify(event.TelegramUserID, paymentCreditedText(minutes))
	}

	log.WithFields(log.Fields{
		"event_id": event.EventID,
		"user_id":  event.TelegramUserID,
		"stars":    event.Stars,
		"minutes":  minutes,
	}).Info("Оплата зачислена")
	writeJSON(w, map[string]any{"status": "ok", "minutes": minutes})
}

func paymentCreditedText(minutes int64) string {
	return fmt.Sprintf("Payment received! %d minutes have been added to your balance.", minutes)
}

// validSignature сверяет HMAC-SHA256 тела с подписью из заголовка.
func (h *StarsHandler) validSignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), provided)
}
