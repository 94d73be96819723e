// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, хранилище, кеш, сервисы движка,
// обработчики Telegram, планировщик и служебный HTTP.
package app

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/ascenso-bot/internal/bot"
	"serotonyl.ru/ascenso-bot/internal/cache"
	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/config"
	"serotonyl.ru/ascenso-bot/internal/db/postgres"
	"serotonyl.ru/ascenso-bot/internal/features/admin"
	"serotonyl.ru/ascenso-bot/internal/features/discipline"
	"serotonyl.ru/ascenso-bot/internal/features/ledger"
	"serotonyl.ru/ascenso-bot/internal/features/members"
	"serotonyl.ru/ascenso-bot/internal/features/ranking"
	"serotonyl.ru/ascenso-bot/internal/features/redeem"
	"serotonyl.ru/ascenso-bot/internal/features/rollover"
	"serotonyl.ru/ascenso-bot/internal/features/tasks"
	"serotonyl.ru/ascenso-bot/internal/features/tiers"
	"serotonyl.ru/ascenso-bot/internal/features/winners"
	"serotonyl.ru/ascenso-bot/internal/jobs"
	"serotonyl.ru/ascenso-bot/internal/ops"
	"serotonyl.ru/ascenso-bot/internal/store"
)

// Engine — сервисы движка поверх одного хранилища.
type Engine struct {
	Store      store.Store
	Members    *members.Service
	Ledger     *ledger.Service
	Tiers      *tiers.Service
	Tasks      *tasks.Service
	Discipline *discipline.Service
	Ranking    *ranking.Service
	Rollover   *rollover.Service
	Winners    *winners.Service
	Redeem     *redeem.Service

	pool  *pgxpool.Pool
	cache *cache.RankingCache
}

// BuildEngine собирает сервисы. rankCache может быть nil.
func BuildEngine(st store.Store, clock common.Clock, eco config.Economy, rankCache ranking.Cache) *Engine {
	led := ledger.NewService(st, clock)
	tr := tiers.NewService(st, clock, eco)
	rk := ranking.NewService(st, clock, eco, rankCache)
	return &Engine{
		Store:      st,
		Members:    members.NewService(st, clock, eco),
		Ledger:     led,
		Tiers:      tr,
		Tasks:      tasks.NewService(st, clock, eco, led, tr),
		Discipline: discipline.NewService(st, clock, eco, led),
		Ranking:    rk,
		Rollover:   rollover.NewService(st, clock, rk),
		Winners:    winners.NewService(st, clock),
		Redeem:     redeem.NewService(st, clock, eco, led, tr),
	}
}

// NewEngine подключается к PostgreSQL (и Redis, если задан), применяет
// миграции и собирает движок.
func NewEngine(ctx context.Context, cfg *config.Config) (*Engine, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Кеш рейтинга (необязателен) ===
	var rc *cache.RankingCache
	var rankCache ranking.Cache
	if cfg.RedisAddr != "" {
		rc, err = cache.NewRankingCache(ctx, cfg)
		if err != nil {
			// без кеша рейтинг читается из БД
			log.WithError(err).Warn("Кеш рейтинга отключён")
			rc = nil
		} else {
			rankCache = rc
			log.WithField("addr", cfg.RedisAddr).Info("Кеш рейтинга подключён")
		}
	}

	// === 3. Сервисы ===
	e := BuildEngine(postgres.NewStore(pool), common.UTCClock{}, cfg.Economy(), rankCache)
	e.pool, e.cache = pool, rc
	return e, nil
}

// Close освобождает соединения.
func (e *Engine) Close() {
	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			log.WithError(err).Warn("Ошибка закрытия Redis")
		}
	}
	if e.pool != nil {
		e.pool.Close()
	}
}

// healthChecks — зависимости для /healthz.
func (e *Engine) healthChecks() map[string]ops.Pinger {
	checks := map[string]ops.Pinger{"postgres": e.Store}
	if e.cache != nil {
		checks["redis"] = e.cache
	}
	return checks
}

// App содержит все компоненты процесса бота.
type App struct {
	*Engine
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	Ops       *ops.Server
	BotAPI    *tgbotapi.BotAPI
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	e, err := NewEngine(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// === 4. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// === 5. Обработчики ===
	adminService := admin.NewService(cfg.AdminIDs, cfg.AdminPasswordHash, common.UTCClock{})
	handlers := bot.Handlers{
		Members: members.NewHandler(e.Members, e.Tiers, e.Ranking, botAPI),
		Ledger:  ledger.NewHandler(e.Ledger, botAPI),
		Tasks:   tasks.NewHandler(e.Tasks, e.Members, botAPI, cfg.ShareURL),
		Ranking: ranking.NewHandler(e.Ranking, botAPI),
		Winners: winners.NewHandler(e.Winners, botAPI),
		Redeem:  redeem.NewHandler(e.Redeem, botAPI),
		Admin: admin.NewHandler(adminService, admin.Services{
			Ledger:     e.Ledger,
			Tasks:      e.Tasks,
			Tiers:      e.Tiers,
			Discipline: e.Discipline,
			Redeem:     e.Redeem,
			Winners:    e.Winners,
			Rollover:   e.Rollover,
		}, botAPI),
	}

	// === 6. Собираем бота ===
	b := bot.New(botAPI, botAPI, cfg, e.Members, handlers)

	// === 7. Планировщик задач ===
	scheduler, err := jobs.NewScheduler(cfg.CronRollover, cfg.CronSweep, e.Rollover, e.Discipline, e.Tiers)
	if err != nil {
		e.Close()
		return nil, err
	}

	// === 8. Служебный HTTP ===
	var opsServer *ops.Server
	if cfg.OpsAddr != "" {
		opsServer = ops.NewServer(cfg.OpsAddr, e.healthChecks())
	}

	return &App{
		Engine:    e,
		Bot:       b,
		Scheduler: scheduler,
		Ops:       opsServer,
		BotAPI:    botAPI,
	}, nil
}
