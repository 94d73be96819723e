// Package metrics — счётчики Prometheus движка баллов.
// Регистрируются в глобальном реестре при импорте, отдаются через /metrics (internal/ops).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ascenso"

// --- журнал ---

// LedgerEntries — записанные проводки по типу.
var LedgerEntries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "entries_total",
	Help:      "Записанные проводки журнала по типу.",
}, []string{"type"})

// LedgerPoints — сумма баллов по типу проводки (модуль).
var LedgerPoints = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "points_total",
	Help:      "Сумма баллов в проводках по типу.",
}, []string{"type"})

// LedgerIDCollisions — повторная генерация id проводки.
var LedgerIDCollisions = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "id_collisions_total",
	Help:      "Сколько раз id проводки пришлось сгенерировать заново.",
})

// LedgerDrift — расхождения кеша баланса, найденные сверкой.
var LedgerDrift = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "cache_drift_total",
	Help:      "Расхождения кеша баланса с журналом, найденные сверкой.",
})

// --- заявки ---

// Claims — исходы заявок: task, outcome (approved|rejected|pending|duplicate).
var Claims = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "tasks",
	Name:      "claims_total",
	Help:      "Заявки на задания по коду и исходу.",
}, []string{"task", "outcome"})

// --- уровни и дисциплина ---

// TierChanges — активации, продления и снятия уровней.
var TierChanges = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "tiers",
	Name:      "changes_total",
	Help:      "Изменения уровней по слоту и действию.",
}, []string{"tier", "action"})

// Sanctions — применённые санкции по уровню лестницы.
var Sanctions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "discipline",
	Name:      "sanctions_total",
	Help:      "Применённые санкции по уровню.",
}, []string{"level"})

// Redeems — обмены баллов на тариф.
var Redeems = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "redeem",
	Name:      "plans_total",
	Help:      "Выкупленные тарифы.",
}, []string{"plan"})

// --- периоды и фоновые задачи ---

// Rollovers — выполненные перекаты периода.
var Rollovers = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "rollover",
	Name:      "runs_total",
	Help:      "Перекаты рейтингового периода, изменившие состояние.",
})

// JobRuns — запуски фоновых задач по имени и исходу.
var JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "jobs",
	Name:      "runs_total",
	Help:      "Запуски фоновых задач.",
}, []string{"job", "status"})

// RankingCache — обращения к кешу рейтинга: hit|miss|error.
var RankingCache = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ranking",
	Name:      "cache_requests_total",
	Help:      "Обращения к кешу рейтинга.",
}, []string{"result"})

// --- бот ---

// Updates — обработанные апдейты Telegram по типу.
var Updates = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "bot",
	Name:      "updates_total",
	Help:      "Обработанные апдейты Telegram.",
}, []string{"kind"})

// HandlerDuration — время обработки апдейта.
var HandlerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "bot",
	Name:      "handler_seconds",
	Help:      "Время обработки одного апдейта.",
	Buckets:   prometheus.DefBuckets,
})
