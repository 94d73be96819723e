package tasks

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

type fixture struct {
	svc   *Service
	tiers *tiers.Service
	st    *memory.Store
	clock *common.ManualClock
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	clock := common.NewManualClock(start)
	eco := config.DefaultEconomy()

	u := domain.NewUser(1, "ana", "Ana", "", "1.0", start)
	u.Policy.Accepted = true
	require.NoError(t, st.CreateUser(ctx, u))

	led := ledger.NewService(st, clock)
	tr := tiers.NewService(st, clock, eco)
	return &fixture{svc: NewService(st, clock, eco, led, tr), tiers: tr, st: st, clock: clock}
}

func (f *fixture) balance(t *testing.T) int64 {
	t.Helper()
	u, err := f.st.GetUser(context.Background(), 1)
	require.NoError(t, err)
	return u.Points.Balance
}

func TestCreditedPoints(t *testing.T) {
	cases := []struct {
		base int64
		mult float64
		want int64
	}{
		{2, 1.0, 2},
		{3, 1.2, 4},
		{6, 1.5, 9},
		{2, 1.2, 3},
		{1, 1.0, 1},
		{0, 1.5, 1},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, CreditedPoints(tc.base, tc.mult), "base=%d mult=%v", tc.base, tc.mult)
	}
	require.Equal(t, "1.5", FormatMultiplier(1.5))
	require.Equal(t, "1.0", FormatMultiplier(1))
}

func TestClaimDailyOncePerDay(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	c, err := f.svc.ClaimDaily(ctx, 1, domain.TaskDailyCheckin)
	require.NoError(t, err)
	require.Equal(t, int64(2), c.Points)
	require.Equal(t, "1.0", c.Multiplier)

	_, err = f.svc.ClaimDaily(ctx, 1, domain.TaskDailyCheckin)
	require.ErrorIs(t, err, common.ErrAlreadyClaimed)
	require.Equal(t, int64(2), f.balance(t))

	// Другое задание в тот же день засчитывается отдельно
	_, err = f.svc.ClaimDaily(ctx, 1, domain.TaskLessonQuiz)
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	_, err = f.svc.ClaimDaily(ctx, 1, domain.TaskDailyCheckin)
	require.NoError(t, err)
	require.Equal(t, int64(7), f.balance(t))

	entries, err := f.st.ListLedgerEntries(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}

func TestClaimDailyConcurrentCreditsOnce(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ClaimDaily(ctx, 1, domain.TaskLessonQuiz)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok, dup := 0, 0
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, common.ErrAlreadyClaimed)
		dup++
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 9, dup)
	require.Equal(t, int64(3), f.balance(t))
}

func TestClaimDailyEliteMultiplier(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.tiers.ForceSet(ctx, 1, domain.TierElite, 30, 99, "")
	require.NoError(t, err)

	c, err := f.svc.ClaimDaily(ctx, 1, domain.TaskLessonQuiz)
	require.NoError(t, err)
	require.Equal(t, int64(4), c.Points)
	require.Equal(t, "1.2", c.Multiplier)
}

func TestClaimDailyRefusals(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.ClaimDaily(ctx, 1, domain.TaskSharePost)
	require.ErrorIs(t, err, common.ErrContractViolation)

	_, err = f.svc.ClaimDaily(ctx, 2, domain.TaskDailyCheckin)
	require.ErrorIs(t, err, common.ErrUserNotFound)

	require.NoError(t, f.st.CreateUser(ctx, domain.NewUser(3, "", "New", "", "1.0", start)))
	_, err = f.svc.ClaimDaily(ctx, 3, domain.TaskDailyCheckin)
	require.ErrorIs(t, err, common.ErrPolicyNotAccepted)

	until := start.Add(time.Hour)
	require.NoError(t, f.st.SaveDiscipline(ctx, 1, domain.Status{State: domain.StateBlocked, BlockedUntil: &until}, domain.Infractions{Count: 2}, start))
	_, err = f.svc.ClaimDaily(ctx, 1, domain.TaskDailyCheckin)
	require.ErrorIs(t, err, common.ErrUserBlocked)

	// Отказ не оставляет заявку: после снятия блокировки задание доступно
	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.ClaimDaily(ctx, 1, domain.TaskDailyCheckin)
	require.NoError(t, err)
}

func TestEvidenceMultiplierTakenAtApproval(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	claim, err := f.svc.SubmitEvidence(ctx, 1, "photo-file-id", "репост")
	require.NoError(t, err)
	require.Equal(t, domain.ClaimPending, claim.Status)
	require.Equal(t, "ASC-202617", claim.WeeklyCode)
	require.Zero(t, f.balance(t))

	_, err = f.tiers.ForceSet(ctx, 1, domain.TierTitan, 30, 99, "")
	require.NoError(t, err)

	d, err := f.svc.Decide(ctx, claim.ID, true, 99, "")
	require.NoError(t, err)
	require.Equal(t, int64(9), d.Credit.Points)
	require.Equal(t, "1.5", d.Claim.Multiplier)
	require.Equal(t, int64(9), f.balance(t))

	stored, err := f.st.GetClaim(ctx, claim.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ClaimApproved, stored.Status)
	require.Equal(t, int64(9), stored.Credited)
}

func TestDecideExactlyOnceUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	claim, err := f.svc.SubmitEvidence(ctx, 1, "photo", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(admin int64) {
			defer wg.Done()
			_, err := f.svc.Decide(ctx, claim.ID, true, admin, "")
			results <- err
		}(int64(100 + i))
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, common.ErrClaimProcessed)
	}
	require.Equal(t, 1, ok)

	entries, err := f.st.ListLedgerEntries(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, int64(6), f.balance(t))
}

func TestDecideRejectAndErrors(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.Decide(ctx, "not-a-uuid", true, 9, "")
	require.ErrorIs(t, err, common.ErrClaimNotFound)
	_, err = f.svc.Decide(ctx, "1b4e28ba-2fa1-11d2-883f-0016d3cca427", true, 9, "")
	require.ErrorIs(t, err, common.ErrClaimNotFound)

	daily, err := f.svc.ClaimDaily(ctx, 1, domain.TaskDailyCheckin)
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, daily.ClaimID, true, 9, "")
	require.ErrorIs(t, err, common.ErrClaimNotManual)

	claim, err := f.svc.SubmitEvidence(ctx, 1, "photo", "")
	require.NoError(t, err)
	d, err := f.svc.Decide(ctx, claim.ID, false, 9, "")
	require.NoError(t, err)
	require.Nil(t, d.Credit)
	require.Equal(t, "Отклонено", d.Claim.Note)

	_, err = f.svc.Decide(ctx, claim.ID, true, 9, "")
	require.ErrorIs(t, err, common.ErrClaimProcessed)
	require.Equal(t, int64(2), f.balance(t))

	pending, err := f.svc.ListPending(ctx, 10, 0)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestDecideRefusesBannedUser(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	claim, err := f.svc.SubmitEvidence(ctx, 1, "photo", "")
	require.NoError(t, err)
	require.NoError(t, f.st.SaveDiscipline(ctx, 1, domain.Status{State: domain.StateBanned, BanReason: "x"}, domain.Infractions{Count: 3}, start))

	_, err = f.svc.Decide(ctx, claim.ID, true, 9, "")
	require.ErrorIs(t, err, common.ErrUserBanned)

	stored, err := f.st.GetClaim(ctx, claim.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ClaimPending, stored.Status)
}

func TestAutoPromotionAfterCredit(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	require.NoError(t, f.st.ApplyBalanceDelta(ctx, 1, domain.BalanceDelta{Signed: 398, MonthEarned: 398, PeriodKey: "2026-04", At: start}))
	c, err := f.svc.ClaimDaily(ctx, 1, domain.TaskDailyCheckin)
	require.NoError(t, err)
	require.NotNil(t, c.Promotion)
	require.Equal(t, domain.TierTitan, c.Promotion.Tier)
	require.Equal(t, start.Add(30*24*time.Hour), c.Promotion.Until)
}

func TestShareText(t *testing.T) {
	txt := ShareText("https://t.me/x_bot", 42, start)
	require.Contains(t, txt, "https://t.me/x_bot?start=ref_42")
	require.Contains(t, txt, "ASC-202617")
}
