// Package admin — service.go содержит аутентификацию, управление сессиями
// и состояние пошаговых админ-действий.
//
// Администратор определяется по ADMIN_IDS; доступ к командам дополнительно
// требует входа по паролю (Argon2id). 3 неудачные попытки за час блокируют
// вход до истечения часа. Сессии живут в памяти процесса 24 часа.
package admin

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"serotonyl.ru/ascenso-bot/internal/common"
)

// Service управляет доступом администраторов.
type Service struct {
	adminIDs     map[int64]struct{}
	passwordHash string
	clock        common.Clock

	mu       sync.Mutex
	sessions map[int64]*Session
	failures map[int64][]time.Time
	states   map[int64]*State
}

// NewService создаёт сервис админ-доступа.
func NewService(adminIDs []int64, passwordHash string, clock common.Clock) *Service {
	ids := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		ids[id] = struct{}{}
	}
	return &Service{
		adminIDs:     ids,
		passwordHash: passwordHash,
		clock:        clock,
		sessions:     make(map[int64]*Session),
		failures:     make(map[int64][]time.Time),
		states:       make(map[int64]*State),
	}
}

// IsAdmin проверяет, входит ли пользователь в ADMIN_IDS.
func (s *Service) IsAdmin(userID int64) bool {
	_, ok := s.adminIDs[userID]
	return ok
}

// recentFailures возвращает неудачные попытки за последний час. Вызывать под mu.
func (s *Service) recentFailures(userID int64, now time.Time) []time.Time {
	cutoff := now.Add(-FailedLoginsSpan)
	var recent []time.Time
	for _, t := range s.failures[userID] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) == 0 {
		delete(s.failures, userID)
	} else {
		s.failures[userID] = recent
	}
	return recent
}

// Login проверяет пароль администратора с использованием Argon2id.
// Защита от brute-force: 3 неудачные попытки = блокировка на 1 час.
func (s *Service) Login(userID int64, password string) (*Session, error) {
	if !s.IsAdmin(userID) {
		return nil, common.ErrNotAdmin
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if len(s.recentFailures(userID, now)) >= MaxFailedLogins {
		return nil, common.ErrTooManyAttempts
	}

	if !VerifyPassword(password, s.passwordHash) {
		s.failures[userID] = append(s.failures[userID], now)
		log.WithField("user_id", userID).Warn("Неудачная попытка входа администратора")
		return nil, common.ErrWrongPassword
	}

	delete(s.failures, userID)
	session := &Session{
		UserID:          userID,
		Token:           generateSecureToken(),
		AuthenticatedAt: now,
		ExpiresAt:       now.Add(SessionTTL),
		LastActivity:    now,
	}
	s.sessions[userID] = session
	log.WithField("user_id", userID).Info("Администратор авторизован")
	return session, nil
}

// Logout завершает сессию.
func (s *Service) Logout(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// HasActiveSession проверяет, есть ли у пользователя активная сессия.
func (s *Service) HasActiveSession(userID int64) bool {
	return s.Authorize(userID) == nil
}

// Authorize проверяет право на админ-команду и обновляет активность сессии.
func (s *Service) Authorize(userID int64) error {
	if !s.IsAdmin(userID) {
		return common.ErrNotAdmin
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	session, ok := s.sessions[userID]
	if !ok || !session.ExpiresAt.After(now) {
		delete(s.sessions, userID)
		return common.ErrSessionExpired
	}
	session.LastActivity = now
	return nil
}

// GetState возвращает текущее состояние диалога.
func (s *Service) GetState(userID int64) *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[userID]
	if !ok {
		return nil
	}
	if !state.ExpiresAt.After(s.clock.Now()) {
		delete(s.states, userID)
		return nil
	}
	return state
}

// SetState устанавливает состояние диалога с 5-минутным таймаутом.
func (s *Service) SetState(userID int64, name string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[userID] = &State{
		Name:      name,
		Data:      data,
		ExpiresAt: s.clock.Now().Add(StateTTL),
	}
}

// ClearState сбрасывает состояние диалога.
func (s *Service) ClearState(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
}

// --- Криптографические утилиты ---

// Параметры Argon2id для новых хешей.
const (
	argonMemory      uint32 = 64 * 1024
	argonIterations  uint32 = 3
	argonParallelism uint8  = 2
	argonKeyLength   uint32 = 32
	argonSaltLength         = 16
)

// HashPassword возвращает хеш в формате
// $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("ошибка генерации соли: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonIterations, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// VerifyPassword проверяет пароль по хешу Argon2id.
func VerifyPassword(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expected)))

	// Сравнение в постоянном времени
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// generateSecureToken генерирует токен сессии.
func generateSecureToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}
