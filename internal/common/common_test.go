package common

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPluralizePoints(t *testing.T) {
	cases := map[int64]string{
		0: "баллов", 1: "балл", 2: "балла", 4: "балла", 5: "баллов",
		11: "баллов", 12: "баллов", 21: "балл", 22: "балла", 111: "баллов", -3: "балла",
	}
	for n, want := range cases {
		require.Equal(t, want, PluralizePoints(n), "n=%d", n)
	}
	require.Equal(t, "дня", PluralizeDays(3))
	require.Equal(t, "+4 балла", FormatSignedPoints(4))
	require.Equal(t, "-50 баллов", FormatSignedPoints(-50))
	require.Equal(t, "2 350", FormatNumber(2350))
	require.Equal(t, "1 000 000", FormatNumber(1000000))
}

func TestKeys(t *testing.T) {
	ts := time.Date(2026, 2, 12, 23, 30, 0, 0, time.FixedZone("MSK", 3*3600))
	require.Equal(t, "2026-02", MonthKey(ts))
	require.Equal(t, "2026-02-12", DayKey(ts))
	require.Equal(t, "ASC-202607", WeeklyCode(ts))

	prev, err := PreviousMonthKey("2026-01")
	require.NoError(t, err)
	require.Equal(t, "2025-12", prev)

	_, err = PreviousMonthKey("январь")
	require.ErrorIs(t, err, ErrInvalidPeriod)

	require.True(t, ValidPeriodKey("2026-12"))
	require.False(t, ValidPeriodKey("2026-13"))
	require.False(t, ValidPeriodKey("2026-1"))
}

func TestManualClock(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	c.Advance(36 * time.Hour)
	require.Equal(t, start.Add(36*time.Hour), c.Now())
}

func TestIsBusiness(t *testing.T) {
	require.True(t, IsBusiness(fmt.Errorf("decide: %w", ErrClaimProcessed)))
	require.False(t, IsBusiness(fmt.Errorf("%w: points must be > 0", ErrContractViolation)))
	require.False(t, IsBusiness(errors.New("connection reset")))
	require.False(t, IsBusiness(nil))
}

func TestUserMessage(t *testing.T) {
	require.Equal(t, "❌ заявка уже обработана", UserMessage(fmt.Errorf("decide: %w", ErrClaimProcessed)))
	require.Equal(t, "⛔ вы временно заблокированы", UserMessage(ErrUserBlocked))
	require.Equal(t, "❌ Внутренняя ошибка, попробуйте позже", UserMessage(errors.New("connection reset")))
}
