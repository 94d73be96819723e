package domain

import "time"

// RankingRow — строка рейтинга.
type RankingRow struct {
	Position int    `json:"position"`
	UserID   int64  `json:"user_id"`
	Name     string `json:"name"`
	Points   int64  `json:"points"`
	Badge    string `json:"badge,omitempty"`
}

// PeriodStats — агрегаты по периоду (без исключённых).
type PeriodStats struct {
	Participants int64
	TotalEarned  int64
	MaxEarned    int64
}

// MonthSnapshot — снимок закрытого периода. Создаётся не более одного раза.
type MonthSnapshot struct {
	PeriodKey string
	Top       []RankingRow
	Stats     PeriodStats
	CreatedAt time.Time
}

// RolloverState — синглтон последнего обработанного периода.
type RolloverState struct {
	PeriodKey string
	LastRunAt time.Time
}

// Winner — слот ручного списка победителей месяца.
type Winner struct {
	PeriodKey    string
	Position     int
	UserID       int64
	DisplayName  string
	PeriodPoints int64
	Note         string
	AdminID      int64
	AssignedAt   time.Time
}
