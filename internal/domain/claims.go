package domain

import "time"

// Коды заданий.
const (
	TaskDailyCheckin = "TASK_DAILY_CHECKIN"
	TaskLessonQuiz   = "TASK_LESSON_QUIZ"
	TaskSharePost    = "TASK_SHARE_POST"
)

// IsDailyTask — задание засчитывается раз в день без проверки админом.
func IsDailyTask(code string) bool {
	return code == TaskDailyCheckin || code == TaskLessonQuiz
}

// ClaimStatus — состояние заявки.
type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
)

// TaskClaim — попытка выполнения задания.
type TaskClaim struct {
	ID          string
	UserID      int64
	TaskCode    string
	Points      int64  // базовые баллы до множителя
	Credited    int64  // начислено фактически (0 пока не одобрено)
	Multiplier  string // множитель на момент начисления, "1.5"
	Status      ClaimStatus
	DayKey      *string // только для ежедневных
	EvidenceRef string
	Caption     string
	WeeklyCode  string
	AdminID     int64
	Note        string
	CreatedAt   time.Time
	DecidedAt   *time.Time
}

// ClaimDecision — параметры перехода pending → approved|rejected.
type ClaimDecision struct {
	Status     ClaimStatus
	Credited   int64
	Multiplier string
	AdminID    int64
	Note       string
	At         time.Time
}
