// Package ledger — service.go ведёт журнал движения баллов.
//
// Журнал — единственный источник истины: проводки только добавляются,
// никогда не меняются и не удаляются. Кеш баланса в members обновляется
// атомарным инкрементом в той же транзакции, что и вставка проводки.
// Если кеш всё же разошёлся с журналом, его восстанавливает Reconcile.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/domain"
	"serotonyl.ru/ascenso-bot/internal/metrics"
	"serotonyl.ru/ascenso-bot/internal/store"
)

// Сколько раз пробуем сгенерировать id проводки при коллизии.
const entryIDAttempts = 3

// Service записывает проводки и обслуживает кеш баланса.
type Service struct {
	store store.Store
	clock common.Clock
}

// NewService создаёт сервис журнала.
func NewService(st store.Store, clock common.Clock) *Service {
	return &Service{store: st, clock: clock}
}

// NewEntryID генерирует id проводки вида LED-20260212-A1B2C3.
func NewEntryID(at time.Time) string {
	id := uuid.New()
	return fmt.Sprintf("LED-%s-%X", at.UTC().Format("20060102"), id[:3])
}

// PostEntry записывает проводку фиксированного знака (EARN, BONUS, SPEND, PENALTY)
// и обновляет кеш баланса. Возвращает id проводки.
func (s *Service) PostEntry(ctx context.Context, userID int64, t domain.EntryType, category, reasonCode string, points int64, meta map[string]any) (string, error) {
	signed, monthEarned, err := domain.SignedAmounts(t, points)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrContractViolation, err)
	}

	var entryID string
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		var err error
		entryID, err = s.post(ctx, tx, userID, t, category, reasonCode, points, signed, monthEarned, meta)
		return err
	})
	if err != nil {
		return "", err
	}
	return entryID, nil
}

// PostEntryTx — то же внутри транзакции вызывающего.
// Используется, когда проводка — часть большего перехода (одобрение заявки, обмен, штраф).
func (s *Service) PostEntryTx(ctx context.Context, tx store.Store, userID int64, t domain.EntryType, category, reasonCode string, points int64, meta map[string]any) (string, error) {
	signed, monthEarned, err := domain.SignedAmounts(t, points)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrContractViolation, err)
	}
	return s.post(ctx, tx, userID, t, category, reasonCode, points, signed, monthEarned, meta)
}

// PostAdjustment записывает ручную корректировку со знаком (ADJUST).
func (s *Service) PostAdjustment(ctx context.Context, userID, delta int64, reasonCode string, meta map[string]any) (string, error) {
	var entryID string
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		var err error
		entryID, err = s.PostAdjustmentTx(ctx, tx, userID, delta, reasonCode, meta)
		return err
	})
	if err != nil {
		return "", err
	}
	return entryID, nil
}

// PostAdjustmentTx — корректировка внутри транзакции вызывающего.
func (s *Service) PostAdjustmentTx(ctx context.Context, tx store.Store, userID, delta int64, reasonCode string, meta map[string]any) (string, error) {
	points, signed, monthEarned, err := domain.AdjustAmounts(delta)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrContractViolation, err)
	}
	if reasonCode == "" {
		reasonCode = domain.ReasonAdminAdjust
	}
	return s.post(ctx, tx, userID, domain.EntryAdjust, domain.CategoryAdmin, reasonCode, points, signed, monthEarned, meta)
}

// post вставляет проводку, затем применяет приращение к кешу.
func (s *Service) post(ctx context.Context, tx store.Store, userID int64, t domain.EntryType, category, reasonCode string, points, signed, monthEarned int64, meta map[string]any) (string, error) {
	if meta == nil {
		meta = map[string]any{}
	}
	now := s.clock.Now()
	periodKey := common.MonthKey(now)

	entry := &domain.LedgerEntry{
		UserID:            userID,
		Type:              t,
		Category:          category,
		ReasonCode:        reasonCode,
		Points:            points,
		SignedPoints:      signed,
		MonthEarnedPoints: monthEarned,
		Meta:              meta,
		PeriodKey:         periodKey,
		CreatedAt:         now,
	}

	var err error
	for attempt := 0; attempt < entryIDAttempts; attempt++ {
		entry.EntryID = NewEntryID(now)
		err = tx.InsertLedgerEntry(ctx, entry)
		if err == nil || !errors.Is(err, store.ErrDuplicate) {
			break
		}
		// Уникальность по reason_code (первый обмен) новым id не обойти
		if reasonCode == domain.ReasonBonusFirstRedeem {
			break
		}
		metrics.LedgerIDCollisions.Inc()
	}
	if err != nil {
		return "", fmt.Errorf("ошибка записи проводки: %w", err)
	}

	delta := domain.BalanceDelta{Signed: signed, MonthEarned: monthEarned, PeriodKey: periodKey, At: now}
	if err := tx.ApplyBalanceDelta(ctx, userID, delta); err != nil {
		return "", fmt.Errorf("ошибка обновления баланса: %w", err)
	}

	metrics.LedgerEntries.WithLabelValues(string(t)).Inc()
	metrics.LedgerPoints.WithLabelValues(string(t)).Add(float64(points))

	log.WithFields(log.Fields{
		"user_id":  userID,
		"entry_id": entry.EntryID,
		"type":     t,
		"reason":   reasonCode,
		"signed":   signed,
	}).Info("Проводка записана")

	return entry.EntryID, nil
}

// HasSufficientBalance — хватает ли баллов на cost. Для заблокированных
// и исключённых всегда false.
func (s *Service) HasSufficientBalance(ctx context.Context, userID, cost int64) (bool, error) {
	if cost <= 0 {
		return false, fmt.Errorf("%w: cost must be > 0, got %d", common.ErrContractViolation, cost)
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return Affordable(u, cost, s.clock.Now()), nil
}

// Affordable — проверка баланса по уже загруженному участнику.
func Affordable(u *domain.User, cost int64, now time.Time) bool {
	if u.IsRestricted(now) {
		return false
	}
	return u.Points.Balance >= cost
}

// History возвращает последние проводки участника, новые первыми.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]*domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListLedgerEntries(ctx, userID, limit)
}
