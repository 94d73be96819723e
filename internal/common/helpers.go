// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: источник времени (UTC), ключи периодов и дней, форматирование.
package common

import (
	"fmt"
	"regexp"
	"sync"
	"time"
)

// Clock — единственный источник времени для движка.
// Все вычисления ведутся в UTC.
type Clock interface {
	Now() time.Time
}

// UTCClock — системные часы в UTC.
type UTCClock struct{}

// Now возвращает текущее время в UTC.
func (UTCClock) Now() time.Time { return time.Now().UTC() }

// ManualClock — часы, которые двигаются только вручную. Используются в тестах.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock создаёт часы, остановленные на момент t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t.UTC()}
}

// Now возвращает текущее значение часов.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set переставляет часы.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

// Advance сдвигает часы вперёд на d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var periodKeyRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// MonthKey возвращает ключ рейтингового периода: "2006-01".
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// DayKey возвращает ключ календарного дня (UTC): "2006-01-02".
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ValidPeriodKey проверяет формат ключа периода.
func ValidPeriodKey(key string) bool {
	return periodKeyRe.MatchString(key)
}

// PreviousMonthKey возвращает ключ периода, предшествующего key.
func PreviousMonthKey(key string) (string, error) {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, key)
	}
	return t.AddDate(0, -1, 0).Format("2006-01"), nil
}

// WeeklyCode возвращает недельный код по ISO-неделе: ASC-YYYYWW.
// Код вкладывается в текст репоста и в метаданные заявки.
func WeeklyCode(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("ASC-%d%02d", year, week)
}

// FormatDateTime форматирует время в "02.01.2006 15:04 UTC".
// Используется для отображения дат в истории и сроков блокировок.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format("02.01.2006 15:04") + " UTC"
}

// FormatPoints форматирует сумму баллов: FormatPoints(21) → "21 балл".
func FormatPoints(n int64) string {
	return fmt.Sprintf("%d %s", n, PluralizePoints(n))
}
