package winners

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/db/memory"
	"serotonyl.ru/ascenso-bot/internal/domain"
)

var start = time.Date(2026, 4, 28, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, st.CreateUser(ctx, domain.NewUser(id, "", "Имя", "", "1.0", start)))
		require.NoError(t, st.ApplyBalanceDelta(ctx, id, domain.BalanceDelta{Signed: id * 100, MonthEarned: id * 100, PeriodKey: "2026-04", At: start}))
	}
	return NewService(st, common.NewManualClock(start)), st
}

func TestUpsertReplacesSlot(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	w, replaced, err := svc.Upsert(ctx, "", 1, 3, 9, "  лучший месяц ")
	require.NoError(t, err)
	require.False(t, replaced)
	require.Equal(t, int64(300), w.PeriodPoints)
	require.Equal(t, "лучший месяц", w.Note)
	require.Equal(t, "2026-04", w.PeriodKey)

	_, replaced, err = svc.Upsert(ctx, "2026-04", 1, 2, 9, "")
	require.NoError(t, err)
	require.True(t, replaced)

	_, _, err = svc.Upsert(ctx, "2026-04", 3, 1, 9, "")
	require.NoError(t, err)

	period, list, err := svc.Get(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "2026-04", period)
	require.Len(t, list, 2)
	require.Equal(t, 1, list[0].Position)
	require.Equal(t, int64(2), list[0].UserID)
	require.Equal(t, 3, list[1].Position)
}

func TestUpsertRefusals(t *testing.T) {
	ctx := context.Background()
	svc, st := setup(t)

	for _, pos := range []int{0, 4, -1} {
		_, _, err := svc.Upsert(ctx, "", pos, 1, 9, "")
		require.ErrorIs(t, err, common.ErrInvalidPosition)
	}
	_, _, err := svc.Upsert(ctx, "", 1, 404, 9, "")
	require.ErrorIs(t, err, common.ErrUserNotFound)
	_, _, err = svc.Upsert(ctx, "2026/04", 1, 1, 9, "")
	require.ErrorIs(t, err, common.ErrInvalidPeriod)

	require.NoError(t, st.SaveDiscipline(ctx, 2, domain.Status{State: domain.StateBanned, BanReason: "x"}, domain.Infractions{Count: 3}, start))
	_, _, err = svc.Upsert(ctx, "", 1, 2, 9, "")
	require.ErrorIs(t, err, common.ErrUserBanned)
}

func TestPeriodPointsForOtherPeriodIsZero(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	w, _, err := svc.Upsert(ctx, "2026-03", 2, 3, 9, "")
	require.NoError(t, err)
	require.Zero(t, w.PeriodPoints)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	_, err := svc.Clear(ctx, "", 9)
	require.ErrorIs(t, err, common.ErrNoWinners)

	_, _, err = svc.Upsert(ctx, "", 1, 1, 9, "")
	require.NoError(t, err)
	period, err := svc.Clear(ctx, "", 9)
	require.NoError(t, err)
	require.Equal(t, "2026-04", period)

	_, list, err := svc.Get(ctx, "")
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestFormatWinners(t *testing.T) {
	require.Equal(t, "🏅 Победители 2026-04 ещё не объявлены", FormatWinners("2026-04", nil))

	text := FormatWinners("2026-04", []*domain.Winner{
		{Position: 1, DisplayName: "@ana", PeriodPoints: 420, Note: "лучший месяц"},
		{Position: 3, DisplayName: "Bo", PeriodPoints: 81},
	})
	require.Contains(t, text, "1 место — @ana (420 баллов): лучший месяц")
	require.Contains(t, text, "3 место — Bo (81 балл)\n")
}
