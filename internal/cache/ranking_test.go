package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/ascenso-bot/internal/config"
	"serotonyl.ru/ascenso-bot/internal/domain"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RankingCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRankingCache(context.Background(), &config.Config{RedisAddr: mr.Addr(), RankingCacheTTL: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestTopKey(t *testing.T) {
	require.Equal(t, "ascenso:ranking:2026-04:top", TopKey("2026-04"))
}

func TestGetTopMiss(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	rows, ok, err := c.GetTop(context.Background(), "2026-04")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, rows)
}

func TestSetGetTopWithTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, time.Minute)

	want := []domain.RankingRow{
		{Position: 1, UserID: 7, Name: "@ana", Points: 420, Badge: "💎"},
		{Position: 2, UserID: 3, Name: "Boris", Points: 210},
	}
	require.NoError(t, c.SetTop(ctx, "2026-04", want))
	require.Equal(t, time.Minute, mr.TTL(TopKey("2026-04")))

	got, ok, err := c.GetTop(ctx, "2026-04")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)

	_, ok, err = c.GetTop(ctx, "2026-05")
	require.NoError(t, err)
	require.False(t, ok)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.GetTop(ctx, "2026-04")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetTopDisabledByZeroTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, 0)

	require.NoError(t, c.SetTop(ctx, "2026-04", []domain.RankingRow{{Position: 1, UserID: 1, Points: 10}}))
	require.False(t, mr.Exists(TopKey("2026-04")))
}

func TestInvalidateAndCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, time.Minute)

	require.NoError(t, c.SetTop(ctx, "2026-04", []domain.RankingRow{{Position: 1, UserID: 1, Points: 10}}))
	require.NoError(t, c.Invalidate(ctx, "2026-04"))
	_, ok, err := c.GetTop(ctx, "2026-04")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mr.Set(TopKey("2026-04"), "{not json"))
	_, ok, err = c.GetTop(ctx, "2026-04")
	require.Error(t, err)
	require.False(t, ok)
}

func TestPingAndUnavailable(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	require.NoError(t, c.Ping(context.Background()))

	_, err := NewRankingCache(context.Background(), &config.Config{RedisAddr: "127.0.0.1:1"})
	require.Error(t, err)
}
