// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	AdminIDsRaw      string  `envconfig:"ADMIN_IDS" required:"true"`
	AdminIDs         []int64 `envconfig:"-"` // заполним вручную

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"trueme"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Redis (очередь поиска, активные пары) ---
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"redis:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisUseTLS   bool   `envconfig:"REDIS_USE_TLS" default:"false"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Billing ---
	// Стоимость одной сессии в минутах, списывается авансом целиком.
	SessionCostMinutes int64 `envconfig:"SESSION_COST_MINUTES" default:"49"`
	// Предельная длительность сессии в минутах. Используется и для
	// проверки истечения, и для клампа биллинга при финализации.
	SessionDurationCapMinutes int `envconfig:"SESSION_DURATION_CAP_MINUTES" default:"30"`
	// Доля платформы Telegram, удерживаемая с каждой оплаты.
	PlatformFeeRate float64 `envconfig:"PLATFORM_FEE_RATE" default:"0.30"`
	// Бесплатные минуты при создании кошелька.
	WalletFreeMinutes int64 `envconfig:"WALLET_FREE_MINUTES" default:"15"`

	// --- Commission tiers ---
	// Пороговые значения завершённых сессий для повышения уровня.
	TierTwoSessions   int `envconfig:"TIER_TWO_SESSIONS" default:"1200"`
	TierThreeSessions int `envconfig:"TIER_THREE_SESSIONS" default:"3000"`
	// Коэффициенты выплат по уровням.
	TierOneRate   float64 `envconfig:"TIER_ONE_RATE" default:"1.00"`
	TierTwoRate   float64 `envconfig:"TIER_TWO_RATE" default:"1.05"`
	TierThreeRate float64 `envconfig:"TIER_THREE_RATE" default:"1.10"`

	// --- Stars webhook ---
	HTTPAddr       string `envconfig:"HTTP_ADDR" default:":8080"`
	StarsSecret    string `envconfig:"TELEGRAM_STARS_SECRET" required:"true"`
	MinutesPerStar int64  `envconfig:"MINUTES_PER_STAR" default:"30"`

	// --- Referral ---
	ReferralBonusMinutes int64 `envconfig:"REFERRAL_BONUS_MINUTES" default:"1"`

	// --- Matchmaking ---
	// Сколько может просидеть плательщик в очереди до автоматического удаления.
	SearchTTL time.Duration `envconfig:"SEARCH_TTL" default:"15m"`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"20"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// TierRate возвращает коэффициент выплат для уровня level (1..3).
func (c *Config) TierRate(level int) float64 {
	switch {
	case level >= 3:
		return c.TierThreeRate
	case level == 2:
		return c.TierTwoRate
	default:
		return c.TierOneRate
	}
}

func (c *Config) Validate() error {
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.SessionCostMinutes <= 0 {
		return fmt.Errorf("SESSION_COST_MINUTES должен быть > 0")
	}
	if c.SessionDurationCapMinutes <= 0 {
		return fmt.Errorf("SESSION_DURATION_CAP_MINUTES должен быть > 0")
	}
	if c.PlatformFeeRate < 0 || c.PlatformFeeRate >= 1 {
		return fmt.Errorf("PLATFORM_FEE_RATE должен быть в [0, 1)")
	}
	if c.TierTwoSessions <= 0 || c.TierThreeSessions <= c.TierTwoSessions {
		return fmt.Errorf("некорректные пороги уровней TIER_TWO_SESSIONS/TIER_THREE_SESSIONS")
	}
	if len(c.AdminIDs) == 0 {
		return fmt.Errorf("ADMIN_IDS не задан")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
