package redeem

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/config"
	"serotonyl.ru/ascenso-bot/internal/db/memory"
	"serotonyl.ru/ascenso-bot/internal/domain"
	"serotonyl.ru/ascenso-bot/internal/features/ledger"
	"serotonyl.ru/ascenso-bot/internal/features/tiers"
)

var start = time.Date(2026, 4, 20, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T, balance int64) (*Service, *memory.Store, *common.ManualClock) {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	clock := common.NewManualClock(start)
	eco := config.DefaultEconomy()
	require.NoError(t, st.CreateUser(ctx, domain.NewUser(1, "", "U", "", "1.0", start)))

	led := ledger.NewService(st, clock)
	if balance > 0 {
		_, err := led.PostAdjustment(ctx, 1, balance, "SEED", nil)
		require.NoError(t, err)
	}
	return NewService(st, clock, eco, led, tiers.NewService(st, clock, eco)), st, clock
}

func TestRedeemPlusWithFirstBonus(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := setup(t, 300)

	r, err := svc.RedeemPlan(ctx, 1, domain.PlanPlus, 9)
	require.NoError(t, err)
	require.Equal(t, int64(250), r.Cost)
	require.Equal(t, int64(20), r.BonusPoints)
	require.Equal(t, start.Add(30*24*time.Hour), r.ExpiresAt)

	u, err := st.GetUser(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(70), u.Points.Balance)
	require.Equal(t, int64(250), u.Points.LifetimeSpent)
	require.Equal(t, domain.PlanPlus, u.Plan.Type)

	entries, err := st.ListLedgerEntries(ctx, 1, 10)
	require.NoError(t, err)
	reasons := map[string]int{}
	for _, e := range entries {
		reasons[e.ReasonCode]++
	}
	require.Equal(t, 1, reasons[domain.ReasonRedeemPlus])
	require.Equal(t, 1, reasons[domain.ReasonBonusFirstRedeem])
}

func TestBonusOnlyOnce(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := setup(t, 600)

	_, err := svc.RedeemPlan(ctx, 1, domain.PlanPlus, 9)
	require.NoError(t, err)
	r, err := svc.RedeemPlan(ctx, 1, domain.PlanPlus, 9)
	require.NoError(t, err)
	require.Zero(t, r.BonusPoints)

	u, err := st.GetUser(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(600-250+20-250), u.Points.Balance)
}

func TestRedeemRefusals(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := setup(t, 100)

	_, err := svc.RedeemPlan(ctx, 1, domain.PlanType("GOLD"), 9)
	require.ErrorIs(t, err, common.ErrInvalidPlan)

	_, err = svc.RedeemPlan(ctx, 1, domain.PlanPlus, 9)
	require.ErrorIs(t, err, common.ErrInsufficientBalance)

	_, err = svc.RedeemPlan(ctx, 2, domain.PlanPlus, 9)
	require.ErrorIs(t, err, common.ErrUserNotFound)

	// Заблокированный не может обменять даже при достаточном балансе
	svc2, st2, _ := setup(t, 500)
	until := start.Add(24 * time.Hour)
	require.NoError(t, st2.SaveDiscipline(ctx, 1,
		domain.Status{State: domain.StateBlocked, BlockedUntil: &until}, domain.Infractions{Count: 2}, start))
	_, err = svc2.RedeemPlan(ctx, 1, domain.PlanPlus, 9)
	require.ErrorIs(t, err, common.ErrInsufficientBalance)

	// Ничего не списано
	u, err := st.GetUser(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(100), u.Points.Balance)
	require.Equal(t, domain.PlanFree, u.Plan.Type)
}

func TestPremiumRedeemsGrantTitan(t *testing.T) {
	ctx := context.Background()
	svc, st, clock := setup(t, 1200)
	// Баланс заработан в прошлом месяце: порог по баллам периода не сработает
	clock.Set(time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC))

	for i := 1; i <= 3; i++ {
		r, err := svc.RedeemPlan(ctx, 1, domain.PlanPremium, 9)
		require.NoError(t, err)
		require.Equal(t, i, r.PremiumRedeems)
		if i < 3 {
			require.Nil(t, r.Promotion)
			clock.Advance(time.Hour)
			continue
		}
		require.NotNil(t, r.Promotion)
		require.Equal(t, domain.TierTitan, r.Promotion.Tier)
	}

	u, err := st.GetUser(ctx, 1)
	require.NoError(t, err)
	require.True(t, u.Titan.Active)
	require.Equal(t, 3, u.PremiumRedeems)
	// 1200 + 20 - 3*400
	require.Equal(t, int64(20), u.Points.Balance)
}

func TestConcurrentRedeemsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := setup(t, 500)

	const n = 6
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RedeemPlan(ctx, 1, domain.PlanPlus, 9)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, common.ErrInsufficientBalance)
	}
	// 500 -> 250+20=270 -> 20: два обмена
	require.Equal(t, 2, ok)

	u, err := st.GetUser(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(20), u.Points.Balance)
}

func TestRequestText(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t, 300)

	text, err := svc.RequestText(ctx, 1, domain.PlanPremium)
	require.NoError(t, err)
	require.Contains(t, text, "🆔 ID: 1")
	require.Contains(t, text, "цена 400 баллов")
	require.Contains(t, text, "Баллов достаточно: НЕТ")
	require.Contains(t, text, "/redeem 1 premium")

	text, err = svc.RequestText(ctx, 1, domain.PlanPlus)
	require.NoError(t, err)
	require.Contains(t, text, "Баллов достаточно: ДА")

	_, err = svc.RequestText(ctx, 1, domain.PlanFree)
	require.ErrorIs(t, err, common.ErrInvalidPlan)
}
