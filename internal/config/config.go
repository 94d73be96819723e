// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
//
// Экономические параметры (пороги уровней, множители, сроки, штрафы, цены)
// собираются один раз в неизменяемую структуру Economy и передаются в каждый
// сервис движка. Бизнес-логика никогда не читает окружение сама.
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
	AdminIDsRaw      string  `envconfig:"ADMIN_IDS"`
	AdminIDs         []int64 `envconfig:"-"` // заполним вручную
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	// Ссылка, которую участник публикует в репосте
	ShareURL string `envconfig:"SHARE_URL" default:"https://t.me/ascenso_signals_bot"`

	// --- Database ---
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"ascenso"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Redis (кеш рейтинга) ---
	// Пустой адрес отключает кеш.
	RedisAddr       string        `envconfig:"REDIS_ADDR" default:""`
	RedisPassword   string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB         int           `envconfig:"REDIS_DB" default:"0"`
	RankingCacheTTL time.Duration `envconfig:"RANKING_CACHE_TTL" default:"30s"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"info"`
	// Адрес служебного HTTP (/healthz, /metrics). Пустой — не поднимаем.
	OpsAddr string `envconfig:"OPS_ADDR" default:":9090"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Cron (UTC) ---
	CronRollover string `envconfig:"CRON_ROLLOVER" default:"5 0 * * *"`
	CronSweep    string `envconfig:"CRON_SWEEP" default:"*/15 * * * *"`

	// --- Economy ---
	TierDays            int     `envconfig:"TIER_DAYS" default:"30"`
	EliteThreshold      int64   `envconfig:"ELITE_THRESHOLD" default:"200"`
	TitanThreshold      int64   `envconfig:"TITAN_THRESHOLD" default:"400"`
	EliteMultiplier     float64 `envconfig:"ELITE_MULT" default:"1.2"`
	TitanMultiplier     float64 `envconfig:"TITAN_MULT" default:"1.5"`
	TitanPremiumRedeems int     `envconfig:"TITAN_PREMIUM_REDEEMS" default:"3"`
	PenaltyFirstPoints  int64   `envconfig:"PENALTY_FIRST_POINTS" default:"50"`
	BlockDays           int     `envconfig:"BLOCK_DAYS" default:"7"`
	RankingMinPoints    int64   `envconfig:"RANKING_MIN_POINTS" default:"80"`
	RankingTopLimit     int     `envconfig:"RANKING_TOP_LIMIT" default:"10"`
	CostPlus            int64   `envconfig:"COST_PLUS" default:"250"`
	CostPremium         int64   `envconfig:"COST_PREMIUM" default:"400"`
	PlanDays            int     `envconfig:"PLAN_DAYS" default:"30"`
	BonusFirstRedeem    int64   `envconfig:"BONUS_FIRST_REDEEM" default:"20"`
	PointsCheckin       int64   `envconfig:"PTS_CHECKIN" default:"2"`
	PointsLessonQuiz    int64   `envconfig:"PTS_LESSON_QUIZ" default:"3"`
	PointsSharePost     int64   `envconfig:"PTS_SHARE_POST" default:"6"`
	PolicyVersion       string  `envconfig:"POLICY_VERSION" default:"1.0"`
}

// Economy — неизменяемые параметры экономики. Передаётся по значению.
type Economy struct {
	TierDays            int
	EliteThreshold      int64
	TitanThreshold      int64
	EliteMultiplier     float64
	TitanMultiplier     float64
	TitanPremiumRedeems int
	PenaltyFirstPoints  int64
	BlockDays           int
	RankingMinPoints    int64
	RankingTopLimit     int
	CostPlus            int64
	CostPremium         int64
	PlanDays            int
	BonusFirstRedeem    int64
	PointsCheckin       int64
	PointsLessonQuiz    int64
	PointsSharePost     int64
	PolicyVersion       string
}

// TierDuration — стандартный срок уровня.
func (e Economy) TierDuration() time.Duration {
	return time.Duration(e.TierDays) * 24 * time.Hour
}

// BlockDuration — срок временной блокировки.
func (e Economy) BlockDuration() time.Duration {
	return time.Duration(e.BlockDays) * 24 * time.Hour
}

// PlanDuration — срок действия выкупленного тарифа.
func (e Economy) PlanDuration() time.Duration {
	return time.Duration(e.PlanDays) * 24 * time.Hour
}

// DefaultEconomy возвращает значения по умолчанию (те же, что в тегах Config).
func DefaultEconomy() Economy {
	return Economy{
		TierDays:            30,
		EliteThreshold:      200,
		TitanThreshold:      400,
		EliteMultiplier:     1.2,
		TitanMultiplier:     1.5,
		TitanPremiumRedeems: 3,
		PenaltyFirstPoints:  50,
		BlockDays:           7,
		RankingMinPoints:    80,
		RankingTopLimit:     10,
		CostPlus:            250,
		CostPremium:         400,
		PlanDays:            30,
		BonusFirstRedeem:    20,
		PointsCheckin:       2,
		PointsLessonQuiz:    3,
		PointsSharePost:     6,
		PolicyVersion:       "1.0",
	}
}

// Economy собирает параметры экономики, приводя значения к допустимым:
// множители не ниже 1.0, пороги и сроки не ниже 1.
func (c *Config) Economy() Economy {
	return Economy{
		TierDays:            maxInt(c.TierDays, 1),
		EliteThreshold:      maxInt64(c.EliteThreshold, 1),
		TitanThreshold:      maxInt64(c.TitanThreshold, 1),
		EliteMultiplier:     maxFloat(c.EliteMultiplier, 1.0),
		TitanMultiplier:     maxFloat(c.TitanMultiplier, 1.0),
		TitanPremiumRedeems: maxInt(c.TitanPremiumRedeems, 1),
		PenaltyFirstPoints:  maxInt64(c.PenaltyFirstPoints, 1),
		BlockDays:           maxInt(c.BlockDays, 1),
		RankingMinPoints:    maxInt64(c.RankingMinPoints, 0),
		RankingTopLimit:     maxInt(c.RankingTopLimit, 1),
		CostPlus:            maxInt64(c.CostPlus, 1),
		CostPremium:         maxInt64(c.CostPremium, 1),
		PlanDays:            maxInt(c.PlanDays, 1),
		BonusFirstRedeem:    maxInt64(c.BonusFirstRedeem, 1),
		PointsCheckin:       maxInt64(c.PointsCheckin, 1),
		PointsLessonQuiz:    maxInt64(c.PointsLessonQuiz, 1),
		PointsSharePost:     maxInt64(c.PointsSharePost, 1),
		PolicyVersion:       c.PolicyVersion,
	}
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// IsAdmin проверяет, входит ли userID в ADMIN_IDS.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Validate проверяет общие настройки. Токен Telegram проверяет только
// процесс бота (ValidateBot), утилите ledgerctl он не нужен.
func (c *Config) Validate() error {
	if c.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD не задан")
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.TitanThreshold < c.EliteThreshold {
		return fmt.Errorf("TITAN_THRESHOLD (%d) меньше ELITE_THRESHOLD (%d)", c.TitanThreshold, c.EliteThreshold)
	}
	if c.RankingCacheTTL < 0 {
		return fmt.Errorf("RANKING_CACHE_TTL не может быть отрицательным")
	}
	return nil
}

// ValidateBot проверяет настройки, обязательные для Telegram-процесса.
func (c *Config) ValidateBot() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN не задан")
	}
	if len(c.AdminIDs) == 0 {
		return fmt.Errorf("ADMIN_IDS не задан")
	}
	if c.AdminPasswordHash == "" {
		return fmt.Errorf("ADMIN_PASSWORD_HASH не задан")
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
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func maxInt(v, floor int) int {
	if v < floor {
		return floor
	}
	return v
}

func maxInt64(v, floor int64) int64 {
	if v < floor {
		return floor
	}
	return v
}

func maxFloat(v, floor float64) float64 {
	if v < floor {
		return floor
	}
	return v
}
