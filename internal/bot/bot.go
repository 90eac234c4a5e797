// Package bot содержит главный модуль бота — инициализацию, запуск и остановку.
// bot.go запускает polling, ограничивает параллелизм обработки апдейтов
// и маршрутизирует команды; всё остальное — пересылка партнёру.
package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"trueme.chat/telegram-bot/internal/bot/middleware"
	"trueme.chat/telegram-bot/internal/common"
	"trueme.chat/telegram-bot/internal/config"
	"trueme.chat/telegram-bot/internal/features/admin"
	"trueme.chat/telegram-bot/internal/features/chat"
	"trueme.chat/telegram-bot/internal/features/match"
	"trueme.chat/telegram-bot/internal/features/referral"
	"trueme.chat/telegram-bot/internal/features/users"
	"trueme.chat/telegram-bot/internal/features/wallet"
	"trueme.chat/telegram-bot/internal/metrics"
)

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	rateLimiter *middleware.RateLimiter

	userService     *users.Service
	walletService   *wallet.Service
	chatService     *chat.Service
	matchService    *match.Service
	referralService *referral.Service
	adminHandler    *admin.Handler

	metrics *metrics.Metrics

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	userService *users.Service,
	walletService *wallet.Service,
	chatService *chat.Service,
	matchService *match.Service,
	referralService *referral.Service,
	adminHandler *admin.Handler,
	m *metrics.Metrics,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:             api,
		cfg:             cfg,
		rateLimiter:     middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		userService:     userService,
		walletService:   walletService,
		chatService:     chatService,
		matchService:    matchService,
		referralService: referralService,
		adminHandler:    adminHandler,
		metrics:         m,
		inflight:        make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			b.rateLimiter.Close()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic()

	// Бот работает только в личных сообщениях
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	message := update.Message
	if message.From == nil || !message.Chat.IsPrivate() {
		return
	}

	middleware.LogMessage(message)

	// Rate limiting
	if !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	chatID := message.Chat.ID
	userID := message.From.ID

	// Регистрация при первом контакте. Ошибки нельзя игнорировать,
	// иначе дальше всё упадёт на "пользователь не найден".
	if _, err := b.userService.EnsureUser(ctx, userID, fullNameOf(message.From)); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("EnsureUser failed")
		return
	}
	if err := b.walletService.EnsureWallet(ctx, userID); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("EnsureWallet failed")
		return
	}

	// Админ-панель перехватывает сообщение целиком
	if b.adminHandler.HandleAdminMessage(ctx, chatID, userID, message.Text) {
		return
	}

	cmd, args, isCommand := parseCommand(message.Text)
	if isCommand {
		b.routeCommand(ctx, chatID, userID, cmd, args)
		return
	}

	// Не команда — пересылаем партнёру по активному чату
	b.handleRelay(ctx, chatID, userID, message.Text)
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, chatID, userID int64, cmd string, args []string) {
	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debug("routing command")

	switch cmd {
	case "start":
		b.handleStart(ctx, chatID, userID, args)
	case "help":
		b.sendMessage(chatID, textHelp)
	case "male":
		b.handleRole(ctx, chatID, userID, users.RoleMale)
	case "female":
		b.handleRole(ctx, chatID, userID, users.RoleFemale)
	case "find":
		b.handleFind(ctx, chatID, userID)
	case "stop":
		b.handleStop(ctx, chatID, userID)
	case "next":
		b.handleNext(ctx, chatID, userID)
	case "online":
		b.handleOnline(ctx, chatID, userID)
	case "offline":
		b.handleOffline(ctx, chatID, userID)
	case "balance":
		b.handleBalance(ctx, chatID, userID)
	case "withdraw":
		b.handleWithdraw(ctx, chatID, userID)
	case "ref":
		b.sendMessage(chatID, refLinkText(b.api.Self.UserName, userID))
	default:
		b.sendMessage(chatID, textHelp)
	}
}

// handleStart обрабатывает /start, в том числе реферальную ссылку
// вида /start ref_<id>.
func (b *Bot) handleStart(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) > 0 && strings.HasPrefix(args[0], "ref_") {
		if referrerID, err := strconv.ParseInt(strings.TrimPrefix(args[0], "ref_"), 10, 64); err == nil {
			if err := b.referralService.Register(ctx, referrerID, userID); err != nil {
				log.WithError(err).WithField("user_id", userID).Warn("Не удалось записать реферала")
			}
		}
	}

	user, err := b.userService.GetByTelegramID(ctx, userID)
	if err != nil || !user.HasRole() {
		b.sendMessage(chatID, textWelcome)
		return
	}
	b.sendMessage(chatID, textHelp)
}

// handleRole обрабатывает выбор роли (/male, /female).
func (b *Bot) handleRole(ctx context.Context, chatID, userID int64, role string) {
	result, err := b.userService.SetRole(ctx, userID, role)
	if err != nil {
		b.sendMessage(chatID, errorText(err))
		return
	}

	switch result {
	case users.RoleResultMaleActivated:
		b.sendMessage(chatID, textMaleActivated)
	case users.RoleResultFemalePending:
		b.sendMessage(chatID, textFemalePending)
	}
}

// handleFind запускает поиск пары для плательщика.
func (b *Bot) handleFind(ctx context.Context, chatID, userID int64) {
	maleID, femaleID, err := b.matchService.FindMatch(ctx, userID)
	if errors.Is(err, common.ErrNoMatch) {
		b.sendMessage(chatID, textSearching)
		return
	}
	if err != nil {
		if !common.IsDomainError(err) {
			log.WithError(err).WithField("user_id", userID).Error("Ошибка поиска пары")
			b.metrics.Errors.WithLabelValues("match").Inc()
		}
		b.sendMessage(chatID, errorText(err))
		return
	}

	b.metrics.MatchesTotal.Inc()
	b.Notify(maleID, textMatched)
	b.Notify(femaleID, textMatched)
}

// handleStop завершает активный чат.
func (b *Bot) handleStop(ctx context.Context, chatID, userID int64) {
	partner, ok, err := b.chatService.Stop(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка остановки чата")
		b.metrics.Errors.WithLabelValues("chat").Inc()
		b.sendMessage(chatID, errorText(err))
		return
	}
	if !ok {
		b.sendMessage(chatID, textNoActiveChat)
		return
	}

	b.metrics.SessionsFinalized.WithLabelValues("stopped").Inc()
	b.sendMessage(chatID, textChatEnded)
	b.Notify(partner, textChatEndedPartner)
}

// handleNext завершает текущий чат и сразу ищет следующий.
func (b *Bot) handleNext(ctx context.Context, chatID, userID int64) {
	if partner, ok, err := b.chatService.Stop(ctx, userID); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка остановки чата")
		b.sendMessage(chatID, errorText(err))
		return
	} else if ok {
		b.metrics.SessionsFinalized.WithLabelValues("stopped").Inc()
		b.Notify(partner, textChatEndedPartner)
	}

	b.handleFind(ctx, chatID, userID)
}

// handleOnline ставит собеседницу в очередь ожидания.
func (b *Bot) handleOnline(ctx context.Context, chatID, userID int64) {
	if err := b.matchService.GoOnline(ctx, userID); err != nil {
		b.sendMessage(chatID, errorText(err))
		return
	}
	b.sendMessage(chatID, textWentOnline)
}

// handleOffline убирает пользователя из очереди.
func (b *Bot) handleOffline(ctx context.Context, chatID, userID int64) {
	if err := b.matchService.GoOffline(ctx, userID); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка выхода из очереди")
		b.sendMessage(chatID, errorText(err))
		return
	}
	b.sendMessage(chatID, textWentOffline)
}

// handleBalance показывает баланс в зависимости от роли.
func (b *Bot) handleBalance(ctx context.Context, chatID, userID int64) {
	user, err := b.userService.GetByTelegramID(ctx, userID)
	if err != nil {
		b.sendMessage(chatID, errorText(err))
		return
	}

	w, err := b.walletService.GetWallet(ctx, userID)
	if err != nil {
		b.sendMessage(chatID, errorText(err))
		return
	}

	b.sendMessage(chatID, balanceText(user.IsFemale(), w))
}

// handleWithdraw создаёт заявку на вывод всей доступной суммы.
func (b *Bot) handleWithdraw(ctx context.Context, chatID, userID int64) {
	user, err := b.userService.GetByTelegramID(ctx, userID)
	if err != nil {
		b.sendMessage(chatID, errorText(err))
		return
	}
	if !user.IsFemale() {
		b.sendMessage(chatID, errorText(common.ErrRoleMismatch))
		return
	}

	wd, err := b.walletService.RequestWithdrawal(ctx, userID)
	if err != nil {
		if !common.IsDomainError(err) {
			log.WithError(err).WithField("user_id", userID).Error("Ошибка создания заявки на вывод")
			b.metrics.Errors.WithLabelValues("withdrawal").Inc()
		}
		b.sendMessage(chatID, errorText(err))
		return
	}

	b.metrics.Withdrawals.WithLabelValues("requested").Inc()
	b.sendMessage(chatID, withdrawalCreatedText(wd))
}

// handleRelay пересылает обычное сообщение партнёру по чату.
func (b *Bot) handleRelay(ctx context.Context, chatID, userID int64, text string) {
	result, partner, err := b.chatService.Relay(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка шлюза пересылки")
		b.metrics.Errors.WithLabelValues("relay").Inc()
		return
	}

	switch result {
	case chat.ResultRelay:
		b.metrics.RelayedMessages.WithLabelValues("relayed").Inc()
		b.Notify(partner, text)

	case chat.ResultExpired:
		b.metrics.RelayedMessages.WithLabelValues("expired").Inc()
		b.metrics.SessionsFinalized.WithLabelValues("expired").Inc()
		b.sendMessage(chatID, textChatExpired)
		b.Notify(partner, textChatExpired)

	case chat.ResultNone:
		// Сообщение вне чата отбрасывается молча: ответ на каждое
		// случайное сообщение превращается в спам.
		b.metrics.RelayedMessages.WithLabelValues("dropped").Inc()
	}
}

// sendMessage — утилита для отправки сообщений.
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// Notify отправляет сообщение пользователю (вебхук, задачи, партнёр по чату).
func (b *Bot) Notify(userID int64, text string) {
	msg := tgbotapi.NewMessage(userID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("user_id", userID).Debug("Не удалось отправить сообщение")
	}
}

func fullNameOf(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}

// parseCommand разбирает текст на команду и аргументы.
// Командой считается только текст с префиксом "/", всё остальное
// уходит в пересылку партнёру.
func parseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}

	parts := strings.Fields(strings.TrimPrefix(text, "/"))
	if len(parts) == 0 {
		return "", nil, false
	}

	command := strings.ToLower(parts[0])
	// Команда может приходить как /cmd@botname
	if i := strings.Index(command, "@"); i >= 0 {
		command = command[:i]
	}

	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	return command, args, true
}
