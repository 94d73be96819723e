package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/config"
	"serotonyl.ru/ascenso-bot/internal/db/memory"
	"serotonyl.ru/ascenso-bot/internal/domain"
)

// Сквозной сценарий поверх собранного движка: начисление, уровень, обмен, перекат.
func TestEngineEndToEnd(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	clock := common.NewManualClock(time.Date(2026, 4, 20, 10, 0, 0, 0, time.UTC))
	e := BuildEngine(st, clock, config.DefaultEconomy(), nil)

	_, created, err := e.Members.EnsureMember(ctx, 1, "ana", "Ana", "")
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, e.Members.AcceptPolicy(ctx, 1))

	_, err = e.Rollover.EnsureRollover(ctx)
	require.NoError(t, err)

	_, err = e.Ledger.PostAdjustment(ctx, 1, 300, "SEED", nil)
	require.NoError(t, err)
	_, err = e.Tasks.ClaimDaily(ctx, 1, domain.TaskDailyCheckin)
	require.NoError(t, err)

	r, err := e.Redeem.RedeemPlan(ctx, 1, domain.PlanPlus, 9)
	require.NoError(t, err)
	require.Equal(t, int64(20), r.BonusPoints)

	audit, err := e.Ledger.Reconcile(ctx, 1, false)
	require.NoError(t, err)
	require.True(t, audit.Consistent())

	clock.Set(time.Date(2026, 5, 1, 0, 5, 0, 0, time.UTC))
	res, err := e.Rollover.EnsureRollover(ctx)
	require.NoError(t, err)
	require.True(t, res.Changed)

	snap, err := e.Rollover.GetSnapshot(ctx, "2026-04")
	require.NoError(t, err)
	require.Equal(t, "2026-04", snap.PeriodKey)

	checks := e.healthChecks()
	require.Len(t, checks, 1)
	require.NoError(t, checks["postgres"].Ping(ctx))
}
