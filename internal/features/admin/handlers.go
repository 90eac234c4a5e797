// Package admin — handlers.go обрабатывает взаимодействие с админ-панелью.
// Панель работает через Reply Keyboard в личных сообщениях.
// Поток: аутентификация → клавиатура → выбор действия → пошаговый диалог.
package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"trueme.chat/telegram-bot/internal/common"
	"trueme.chat/telegram-bot/internal/features/users"
	"trueme.chat/telegram-bot/internal/features/wallet"
)

// Кнопки клавиатуры админ-панели.
const (
	btnReviews     = "Анкеты"
	btnWithdrawals = "Выплаты"
	btnStats       = "Статистика"
	btnLogout      = "Выход"
)

// Handler обрабатывает админ-команды.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик админ-панели.
func NewHandler(service *Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleAdminMessage обрабатывает любое сообщение от администратора в DM.
// Определяет текущее состояние диалога и маршрутизирует сообщение.
// Возвращает false, если сообщение не относится к админ-панели.
func (h *Handler) HandleAdminMessage(ctx context.Context, chatID int64, userID int64, text string) bool {
	if !h.service.IsAdmin(userID) {
		return false
	}

	state := h.service.GetState(userID)

	// Ожидание пароля после /login
	if state != nil && state.State == StateAwaitingPassword {
		h.handlePasswordInput(ctx, chatID, userID, text)
		return true
	}

	// Явный запрос входа
	if strings.HasPrefix(text, "/login") {
		if h.service.HasActiveSession(ctx, userID) {
			h.showKeyboard(chatID)
			return true
		}
		h.sendMessage(chatID, "🔐 Введите пароль для доступа к админ-панели:")
		h.service.SetState(userID, StateAwaitingPassword, nil)
		return true
	}

	// Без активной сессии панель недоступна
	if !h.service.HasActiveSession(ctx, userID) {
		return false
	}

	// Обновляем активность сессии
	h.service.repo.UpdateActivity(ctx, userID)

	// Пошаговые диалоги
	if state != nil {
		switch state.State {
		case StateReviewSelect:
			h.handleReviewSelect(ctx, chatID, userID, text)
			return true
		case StateWithdrawalSelect:
			h.handleWithdrawalSelect(ctx, chatID, userID, text)
			return true
		}
	}

	// Кнопки клавиатуры
	switch text {
	case btnReviews:
		h.startReview(ctx, chatID, userID)
		return true
	case btnWithdrawals:
		h.startWithdrawals(ctx, chatID, userID)
		return true
	case btnStats:
		h.handleStats(ctx, chatID)
		return true
	case btnLogout:
		if err := h.service.Logout(ctx, userID); err != nil {
			log.WithError(err).WithField("user_id", userID).Error("Ошибка выхода из админ-панели")
		}
		h.sendMessage(chatID, "Сессия завершена")
		return true
	case "Админ", "Панель", "админ", "панель":
		h.showKeyboard(chatID)
		return true
	}

	return false
}

// handlePasswordInput обрабатывает ввод пароля.
func (h *Handler) handlePasswordInput(ctx context.Context, chatID int64, userID int64, password string) {
	err := h.service.VerifyPassword(ctx, userID, password)
	if err != nil {
		h.sendMessage(chatID, fmt.Sprintf("❌ %s", err.Error()))
		h.service.ClearState(userID)
		return
	}

	h.service.ClearState(userID)
	h.sendMessage(chatID, "✅ Аутентификация успешна!")
	h.showKeyboard(chatID)
}

// showKeyboard отображает клавиатуру админ-панели.
func (h *Handler) showKeyboard(chatID int64) {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnReviews),
			tgbotapi.NewKeyboardButton(btnWithdrawals),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnStats),
			tgbotapi.NewKeyboardButton(btnLogout),
		),
	)

	msg := tgbotapi.NewMessage(chatID, "✅ Админ-панель открыта")
	msg.ReplyMarkup = keyboard
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки клавиатуры")
	}
}

// --- Модерация анкет (2 шага) ---

// startReview — Шаг 1: показать анкеты в очереди на проверку.
func (h *Handler) startReview(ctx context.Context, chatID int64, userID int64) {
	pending, err := h.service.GetPendingReviews(ctx)
	if err != nil || len(pending) == 0 {
		h.sendMessage(chatID, "Очередь анкет пуста")
		return
	}

	var sb strings.Builder
	sb.WriteString("Анкеты на проверку. Ответьте:\n<номер> да — одобрить\n<номер> нет — отклонить\n\n")
	for i, u := range pending {
		sb.WriteString(fmt.Sprintf("%d. %s (id %d)\n", i+1, u.FullName, u.TelegramID))
	}

	h.sendMessage(chatID, sb.String())
	h.service.SetState(userID, StateReviewSelect, pending)
}

// handleReviewSelect — Шаг 2: админ прислал "<номер> да|нет".
func (h *Handler) handleReviewSelect(ctx context.Context, chatID int64, userID int64, text string) {
	state := h.service.GetState(userID)
	pending := state.Data.([]*users.User)

	parts := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(parts) != 2 {
		h.sendMessage(chatID, "❌ Формат: <номер> да|нет")
		return
	}

	num, err := strconv.Atoi(parts[0])
	if err != nil || num < 1 || num > len(pending) {
		h.sendMessage(chatID, "❌ Неверный номер. Попробуйте ещё раз.")
		return
	}
	selected := pending[num-1]

	switch parts[1] {
	case "да":
		if err := h.service.ApproveFemale(ctx, selected.TelegramID); err != nil {
			h.replyError(chatID, err)
			h.service.ClearState(userID)
			return
		}
		h.sendMessage(chatID, fmt.Sprintf("✅ Анкета %s одобрена", selected.FullName))
		h.notifyUser(selected.TelegramID, "Your profile has been approved! Use /online to start receiving chats.")
	case "нет":
		if err := h.service.RejectFemale(ctx, selected.TelegramID); err != nil {
			h.replyError(chatID, err)
			h.service.ClearState(userID)
			return
		}
		h.sendMessage(chatID, fmt.Sprintf("✅ Анкета %s отклонена", selected.FullName))
		h.notifyUser(selected.TelegramID, "Your profile was not approved. You can pick a role again with /start.")
	default:
		h.sendMessage(chatID, "❌ Формат: <номер> да|нет")
		return
	}

	h.service.ClearState(userID)
}

// --- Выплаты (2 шага) ---

// startWithdrawals — Шаг 1: показать заявки на вывод.
func (h *Handler) startWithdrawals(ctx context.Context, chatID int64, userID int64) {
	pending, err := h.service.GetPendingWithdrawals(ctx)
	if err != nil || len(pending) == 0 {
		h.sendMessage(chatID, "Заявок на вывод нет")
		return
	}

	var sb strings.Builder
	sb.WriteString("Заявки на вывод. Отправьте номер выплаченной:\n\n")
	for i, wd := range pending {
		sb.WriteString(fmt.Sprintf("%d. %s на $%.2f (user %d)\n", i+1, wd.Reference, wd.Amount, wd.UserID))
	}

	h.sendMessage(chatID, sb.String())
	h.service.SetState(userID, StateWithdrawalSelect, pending)
}

// handleWithdrawalSelect — Шаг 2: админ выбрал заявку.
func (h *Handler) handleWithdrawalSelect(ctx context.Context, chatID int64, userID int64, text string) {
	state := h.service.GetState(userID)
	pending := state.Data.([]*wallet.Withdrawal)

	num, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || num < 1 || num > len(pending) {
		h.sendMessage(chatID, "❌ Неверный номер")
		return
	}
	selected := pending[num-1]

	if err := h.service.MarkWithdrawalPaid(ctx, selected.ID); err != nil {
		h.replyError(chatID, err)
		h.service.ClearState(userID)
		return
	}

	h.sendMessage(chatID, fmt.Sprintf("✅ Заявка %s выплачена", selected.Reference))
	h.notifyUser(selected.UserID, fmt.Sprintf("Your withdrawal %s has been paid out.", selected.Reference))
	h.service.ClearState(userID)
}

// --- Статистика ---

func (h *Handler) handleStats(ctx context.Context, chatID int64) {
	stats, err := h.service.GetPlatformStats(ctx)
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	h.sendMessage(chatID, fmt.Sprintf(
		"📊 Статистика платформы\n\n"+
			"Плательщиков: %d\n"+
			"Собеседниц: %d\n"+
			"Анкет на проверке: %d\n"+
			"Завершённых чатов: %d\n"+
			"Заявок на вывод: %d",
		stats.TotalMales, stats.TotalFemales, stats.PendingReviews,
		stats.CompletedSessions, stats.PendingWithdrawals,
	))
}

// replyError переводит доменные ошибки в ответ админу.
func (h *Handler) replyError(chatID int64, err error) {
	switch {
	case isKnown(err):
		h.sendMessage(chatID, fmt.Sprintf("❌ %s", err.Error()))
	default:
		log.WithError(err).Error("Ошибка админ-действия")
		h.sendMessage(chatID, "❌ Внутренняя ошибка, подробности в логах")
	}
}

func isKnown(err error) bool {
	return common.IsDomainError(err)
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}

// notifyUser отправляет уведомление пользователю платформы.
func (h *Handler) notifyUser(userID int64, text string) {
	msg := tgbotapi.NewMessage(userID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("user_id", userID).Debug("Не удалось отправить уведомление")
	}
}
