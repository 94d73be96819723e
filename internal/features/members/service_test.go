package members

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

var start = time.Date(2026, 4, 20, 10, 0, 0, 0, time.UTC)

func TestEnsureMemberCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewService(st, common.NewManualClock(start), config.DefaultEconomy())

	u, created, err := svc.EnsureMember(ctx, 7, "ana", "Ana", "")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, domain.StateActive, u.Status.State)
	require.Equal(t, domain.PlanFree, u.Plan.Type)
	require.Equal(t, "2026-04", u.Rank.PeriodKey)
	require.False(t, u.Policy.Accepted)

	u, created, err = svc.EnsureMember(ctx, 7, "ana_new", "Ana", "Li")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "@ana_new", u.DisplayName())

	stored, err := st.GetUser(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "Li", stored.LastName)
}

func TestEligibility(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	clock := common.NewManualClock(start)
	svc := NewService(st, clock, config.DefaultEconomy())

	_, err := svc.CheckEligible(ctx, 1)
	require.ErrorIs(t, err, common.ErrUserNotFound)

	_, _, err = svc.EnsureMember(ctx, 1, "", "U", "")
	require.NoError(t, err)
	_, err = svc.CheckEligible(ctx, 1)
	require.ErrorIs(t, err, common.ErrPolicyNotAccepted)

	require.NoError(t, svc.AcceptPolicy(ctx, 1))
	u, err := svc.CheckEligible(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "1.0", u.Policy.Version)

	until := start.Add(time.Hour)
	require.NoError(t, st.SaveDiscipline(ctx, 1, domain.Status{State: domain.StateBlocked, BlockedUntil: &until}, domain.Infractions{Count: 2}, start))
	_, err = svc.CheckEligible(ctx, 1)
	require.ErrorIs(t, err, common.ErrUserBlocked)

	clock.Advance(2 * time.Hour)
	_, err = svc.CheckEligible(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, st.SaveDiscipline(ctx, 1, domain.Status{State: domain.StateBanned, BanReason: "x"}, domain.Infractions{Count: 3}, start))
	_, err = svc.CheckEligible(ctx, 1)
	require.ErrorIs(t, err, common.ErrUserBanned)
}
