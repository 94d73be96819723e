// Package admin реализует админ-доступ с парольной аутентификацией.
// models.go описывает сессии, попытки входа и состояние диалога.
package admin

import "time"

// Session — активная сессия администратора.
type Session struct {
	UserID          int64
	Token           string
	AuthenticatedAt time.Time
	ExpiresAt       time.Time
	LastActivity    time.Time
}

// State — состояние диалога с админом (конечный автомат).
// Сейчас используется для ввода пароля и подтверждения санкции.
type State struct {
	Name      string
	Data      any
	ExpiresAt time.Time
}

// SanctionDraft — санкция, ожидающая подтверждения.
type SanctionDraft struct {
	UserID int64
	Note   string
}

// Возможные состояния админ-диалога
const (
	StateAwaitingPassword = "awaiting_password"
	StateConfirmSanction  = "confirm_sanction"
)

// Параметры доступа
const (
	SessionTTL       = 24 * time.Hour
	StateTTL         = 5 * time.Minute
	MaxFailedLogins  = 3
	FailedLoginsSpan = time.Hour
)
