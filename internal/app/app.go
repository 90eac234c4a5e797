// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, Redis, репозитории, сервисы,
// обработчики и собирает всё в один объект App.
package app

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"trueme.chat/telegram-bot/internal/bot"
	"trueme.chat/telegram-bot/internal/cache"
	"trueme.chat/telegram-bot/internal/config"
	"trueme.chat/telegram-bot/internal/db/postgres"
	"trueme.chat/telegram-bot/internal/features/admin"
	"trueme.chat/telegram-bot/internal/features/chat"
	"trueme.chat/telegram-bot/internal/features/match"
	"trueme.chat/telegram-bot/internal/features/pool"
	"trueme.chat/telegram-bot/internal/features/referral"
	"trueme.chat/telegram-bot/internal/features/users"
	"trueme.chat/telegram-bot/internal/features/wallet"
	"trueme.chat/telegram-bot/internal/jobs"
	"trueme.chat/telegram-bot/internal/metrics"
	"trueme.chat/telegram-bot/internal/webhook"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	HTTP      *webhook.Server
	DB        *pgxpool.Pool
	Redis     *cache.Redis
	BotAPI    *tgbotapi.BotAPI
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	dbPool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := runMigrations(ctx, dbPool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Redis ===
	redisCache := cache.New(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ошибка подключения к Redis: %w", err)
	}

	// === 3. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// === 4. Метрики ===
	m := metrics.Registry("trueme")

	// === 5. Репозитории ===
	userRepo := users.NewRepository(dbPool)
	walletRepo := wallet.NewRepository(dbPool, cfg.WalletFreeMinutes)
	billing := chat.Billing{
		CapMinutes:        cfg.SessionDurationCapMinutes,
		FeeRate:           cfg.PlatformFeeRate,
		TierTwoSessions:   cfg.TierTwoSessions,
		TierThreeSessions: cfg.TierThreeSessions,
		TierRates:         [3]float64{cfg.TierOneRate, cfg.TierTwoRate, cfg.TierThreeRate},
	}
	chatRepo := chat.NewRepository(dbPool, walletRepo, billing)
	referralRepo := referral.NewRepository(dbPool)
	adminRepo := admin.NewRepository(dbPool)

	// Очередь поиска и активные пары живут в Redis
	store := pool.NewRedisStore(redisCache.Client(), []string{users.RoleMale, users.RoleFemale})

	// === 6. Сервисы ===
	userService := users.NewService(userRepo)
	walletService := wallet.NewService(walletRepo)
	chatService := chat.NewService(chatRepo, store, store, cfg.SessionDurationCapMinutes)
	matchService := match.NewService(
		userService, walletRepo, store, store, chatService, cfg.SessionCostMinutes,
	)
	referralService := referral.NewService(referralRepo, walletRepo, cfg.ReferralBonusMinutes)
	adminService := admin.NewService(adminRepo, userRepo, walletRepo, chatRepo, referralService, cfg)

	// === 7. Обработчики ===
	adminHandler := admin.NewHandler(adminService, botAPI)

	// === 8. Собираем бота ===
	b := bot.New(
		botAPI, cfg,
		userService, walletService, chatService, matchService, referralService,
		adminHandler, m,
	)

	// === 9. HTTP: вебхук оплат, здоровье, метрики ===
	starsHandler := webhook.NewStarsHandler(
		cfg.StarsSecret, cfg.MinutesPerStar,
		walletService, userRepo, referralService, notifierFunc(b.Notify), m,
	)
	httpServer := webhook.New(cfg.HTTPAddr, starsHandler)

	// === 10. Планировщик задач ===
	scheduler := jobs.NewScheduler(
		store, walletRepo, cfg.SearchTTL, cfg.AdminIDs, b.Notify, staleSearchText,
	)

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		HTTP:      httpServer,
		DB:        dbPool,
		Redis:     redisCache,
		BotAPI:    botAPI,
	}, nil
}

// staleSearchText — уведомление убранному из очереди по таймауту.
const staleSearchText = "We couldn't find a partner this time. Use /find to try again."

// notifierFunc адаптирует функцию отправки к интерфейсу webhook.Notifier.
type notifierFunc func(userID int64, text string)

func (f notifierFunc) Notify(userID int64, text string) { f(userID, text) }

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	// Инициализируем систему миграций
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return err
	}

	// Выполняем миграции по порядку
	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Users},
		{2, migration002Wallets},
		{3, migration003Sessions},
		{4, migration004Referrals},
		{5, migration005Admin},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    telegram_id BIGINT UNIQUE NOT NULL,
    full_name VARCHAR(255),
    role VARCHAR(16),
    is_verified BOOLEAN DEFAULT FALSE,
    has_paid BOOLEAN DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_telegram_id ON users(telegram_id);
CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
`

var migration002Wallets = `
CREATE TABLE IF NOT EXISTS wallets (
    user_id BIGINT PRIMARY KEY,
    free_minutes BIGINT DEFAULT 0,
    referral_minutes BIGINT DEFAULT 0,
    paid_minutes BIGINT DEFAULT 0,
    lifetime_earnings DOUBLE PRECISION DEFAULT 0,
    pending_balance DOUBLE PRECISION DEFAULT 0,
    withdrawable_balance DOUBLE PRECISION DEFAULT 0
);
CREATE TABLE IF NOT EXISTS telegram_stars_ledger (
    id BIGSERIAL PRIMARY KEY,
    telegram_event_id VARCHAR(128) UNIQUE NOT NULL,
    telegram_user_id BIGINT NOT NULL,
    stars BIGINT NOT NULL,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS withdrawals (
    id BIGSERIAL PRIMARY KEY,
    reference VARCHAR(64) UNIQUE NOT NULL,
    user_id BIGINT NOT NULL,
    amount DOUBLE PRECISION NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'pending',
    created_at TIMESTAMP DEFAULT NOW(),
    paid_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_withdrawals_user_id ON withdrawals(user_id);
CREATE INDEX IF NOT EXISTS idx_withdrawals_status ON withdrawals(status);
`

var migration003Sessions = `
CREATE TABLE IF NOT EXISTS chat_sessions (
    id BIGSERIAL PRIMARY KEY,
    male_id BIGINT NOT NULL,
    female_id BIGINT NOT NULL,
    started_at TIMESTAMP NOT NULL DEFAULT NOW(),
    ended_at TIMESTAMP,
    completed BOOLEAN DEFAULT FALSE,
    prebilled_minutes BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_sessions_male ON chat_sessions(male_id) WHERE completed = FALSE;
CREATE INDEX IF NOT EXISTS idx_chat_sessions_female ON chat_sessions(female_id) WHERE completed = FALSE;
CREATE TABLE IF NOT EXISTS female_stats (
    user_id BIGINT PRIMARY KEY,
    level INTEGER DEFAULT 1,
    total_sessions INTEGER DEFAULT 0
);
`

var migration004Referrals = `
CREATE TABLE IF NOT EXISTS referrals (
    id BIGSERIAL PRIMARY KEY,
    referrer_id BIGINT NOT NULL,
    referred_id BIGINT UNIQUE NOT NULL,
    rewarded BOOLEAN DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_referrals_referrer ON referrals(referrer_id);
`

var migration005Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    session_token VARCHAR(255) NOT NULL,
    authenticated_at TIMESTAMP DEFAULT NOW(),
    expires_at TIMESTAMP NOT NULL,
    last_activity TIMESTAMP DEFAULT NOW(),
    is_active BOOLEAN DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_user ON admin_sessions(user_id, is_active);
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    attempt_time TIMESTAMP DEFAULT NOW(),
    success BOOLEAN NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_admin_attempts_user ON admin_login_attempts(user_id, attempt_time);
`
