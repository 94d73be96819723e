package ranking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/config"
	"serotonyl.ru/ascenso-bot/internal/db/memory"
	"serotonyl.ru/ascenso-bot/internal/domain"
)

var start = time.Date(2026, 4, 20, 10, 0, 0, 0, time.UTC)

type mapCache struct {
	rows map[string][]domain.RankingRow
	sets int
	fail bool
}

func (c *mapCache) GetTop(ctx context.Context, periodKey string) ([]domain.RankingRow, bool, error) {
	if c.fail {
		return nil, false, errors.New("redis down")
	}
	rows, ok := c.rows[periodKey]
	return rows, ok, nil
}

func (c *mapCache) SetTop(ctx context.Context, periodKey string, rows []domain.RankingRow) error {
	c.sets++
	c.rows[periodKey] = rows
	return nil
}

func (c *mapCache) Invalidate(ctx context.Context, periodKey string) error {
	delete(c.rows, periodKey)
	return nil
}

func seed(t *testing.T, st *memory.Store, id, earned int64, username string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.CreateUser(ctx, domain.NewUser(id, username, "U", "", "1.0", start)))
	if earned > 0 {
		require.NoError(t, st.ApplyBalanceDelta(ctx, id, domain.BalanceDelta{Signed: earned, MonthEarned: earned, PeriodKey: "2026-04", At: start}))
	}
}

func TestTopFiltersOrdersAndCaches(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seed(t, st, 10, 150, "b")
	seed(t, st, 4, 150, "a")
	seed(t, st, 7, 300, "c")
	seed(t, st, 8, 79, "low")
	seed(t, st, 9, 500, "banned")
	require.NoError(t, st.SaveDiscipline(ctx, 9, domain.Status{State: domain.StateBanned, BanReason: "x"}, domain.Infractions{Count: 3}, start))

	cache := &mapCache{rows: map[string][]domain.RankingRow{}}
	svc := NewService(st, common.NewManualClock(start), config.DefaultEconomy(), cache)

	period, rows, err := svc.Top(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "2026-04", period)
	require.Len(t, rows, 3)
	require.Equal(t, int64(7), rows[0].UserID)
	require.Equal(t, int64(4), rows[1].UserID)
	require.Equal(t, int64(10), rows[2].UserID)
	require.Equal(t, 3, rows[2].Position)
	require.Equal(t, "@a", rows[1].Name)
	require.Equal(t, 1, cache.sets)

	_, again, err := svc.Top(ctx, "2026-04")
	require.NoError(t, err)
	require.Equal(t, rows, again)
	require.Equal(t, 1, cache.sets)

	_, _, err = svc.Top(ctx, "2026-4")
	require.ErrorIs(t, err, common.ErrInvalidPeriod)
}

func TestTopFallsBackWhenCacheFails(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seed(t, st, 1, 100, "")

	svc := NewService(st, common.NewManualClock(start), config.DefaultEconomy(), &mapCache{rows: map[string][]domain.RankingRow{}, fail: true})
	_, rows, err := svc.Top(ctx, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestUserPositionAmongQualified(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seed(t, st, 1, 300, "")
	seed(t, st, 2, 120, "")
	seed(t, st, 3, 120, "")
	seed(t, st, 4, 50, "")
	seed(t, st, 5, 900, "")
	require.NoError(t, st.SaveDiscipline(ctx, 5, domain.Status{State: domain.StateBanned, BanReason: "x"}, domain.Infractions{Count: 3}, start))

	svc := NewService(st, common.NewManualClock(start), config.DefaultEconomy(), nil)

	pos, err := svc.UserPosition(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, pos.Position)

	pos, err = svc.UserPosition(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, 2, pos.Position)
	require.Equal(t, int64(120), pos.Points)

	pos, err = svc.UserPosition(ctx, 4)
	require.NoError(t, err)
	require.False(t, pos.Qualified())
	require.Equal(t, int64(50), pos.Points)

	pts, err := svc.UserPeriodPoints(ctx, 5)
	require.NoError(t, err)
	require.Zero(t, pts)
}

func TestUserPeriodPointsStalePeriod(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seed(t, st, 1, 300, "")

	clock := common.NewManualClock(time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC))
	svc := NewService(st, clock, config.DefaultEconomy(), nil)

	pts, err := svc.UserPeriodPoints(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, pts)
}

func TestFormatTop(t *testing.T) {
	require.Contains(t, FormatTop("2026-04", nil, 80), "Пока никто не набрал 80 баллов")

	text := FormatTop("2026-04", []domain.RankingRow{
		{Position: 1, Name: "@ana", Points: 420, Badge: "TITAN"},
		{Position: 2, Name: "Bo", Points: 201},
		{Position: 4, Name: "ID:9", Points: 85},
	}, 80)
	require.Contains(t, text, "🥇 @ana — 420 баллов [TITAN]")
	require.Contains(t, text, "🥈 Bo — 201 балл\n")
	require.Contains(t, text, "4. ID:9 — 85 баллов")

	require.Equal(t, "📍 Ваше место: 2 (120 баллов)", FormatPosition(Position{Position: 2, Points: 120}))
	require.Equal(t, "📍 У вас 50 баллов — пока вне рейтинга", FormatPosition(Position{Points: 50}))
}
