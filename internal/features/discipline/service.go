// Package discipline — лестница санкций: штраф → временная блокировка → бан.
//
// Уровень определяется счётчиком нарушений участника:
//   - 0 → штраф баллами (не больше текущего баланса);
//   - 1 → блокировка на BlockDays;
//   - 2 и больше → бан навсегда.
//
// Исключённому повторная санкция не применяется. Отмена санкции до
// подтверждения существует только в интерфейсе бота (Preview без Apply).
package discipline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/config"
	"serotonyl.ru/ascenso-bot/internal/domain"
	"serotonyl.ru/ascenso-bot/internal/features/ledger"
	"serotonyl.ru/ascenso-bot/internal/metrics"
	"serotonyl.ru/ascenso-bot/internal/store"
)

// Level — ступень лестницы.
type Level int

const (
	LevelPenalty Level = 1
	LevelBlock   Level = 2
	LevelBan     Level = 3
)

// DefaultBanReason — причина бана, если админ не указал свою.
const DefaultBanReason = "Третье нарушение"

// Outcome — что сделает (Preview) или сделала (ApplyNext) санкция.
type Outcome struct {
	UserID        int64
	Level         Level
	Count         int   // счётчик после применения
	PointsRemoved int64 // только для LevelPenalty
	BlockedUntil  *time.Time
	BanReason     string
	EntryID       string // проводка штрафа, если была
}

// Message — текст для администратора.
func (o *Outcome) Message() string {
	switch o.Level {
	case LevelPenalty:
		return fmt.Sprintf("⚠️ Первое нарушение: снято %s.", common.FormatPoints(o.PointsRemoved))
	case LevelBlock:
		return fmt.Sprintf("⛔ Второе нарушение: блокировка до %s.", common.FormatDateTime(*o.BlockedUntil))
	default:
		return fmt.Sprintf("🚫 Третье нарушение: участник исключён (%s).", o.BanReason)
	}
}

// Service применяет санкции.
type Service struct {
	store  store.Store
	clock  common.Clock
	eco    config.Economy
	ledger *ledger.Service
}

// NewService создаёт сервис санкций.
func NewService(st store.Store, clock common.Clock, eco config.Economy, led *ledger.Service) *Service {
	return &Service{store: st, clock: clock, eco: eco, ledger: led}
}

// next вычисляет следующую санкцию без изменений.
func (s *Service) next(u *domain.User, now time.Time, note string) (*Outcome, error) {
	if u.IsBanned() {
		return nil, common.ErrAlreadyBanned
	}
	out := &Outcome{UserID: u.UserID, Count: u.Infractions.Count + 1}
	switch u.Infractions.Count {
	case 0:
		out.Level = LevelPenalty
		balance := u.Points.Balance
		if balance < 0 {
			balance = 0
		}
		out.PointsRemoved = min(s.eco.PenaltyFirstPoints, balance)
	case 1:
		out.Level = LevelBlock
		until := now.Add(s.eco.BlockDuration())
		out.BlockedUntil = &until
	default:
		out.Level = LevelBan
		out.BanReason = note
		if out.BanReason == "" {
			out.BanReason = DefaultBanReason
		}
	}
	return out, nil
}

// Preview показывает, что сделает следующая санкция.
func (s *Service) Preview(ctx context.Context, userID int64) (*Outcome, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.next(u, s.clock.Now(), "")
}

// ApplyNext применяет следующую ступень лестницы в одной транзакции
// под блокировкой строки участника.
func (s *Service) ApplyNext(ctx context.Context, userID, adminID int64, note string) (*Outcome, error) {
	var out *Outcome
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		u, err := tx.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		out, err = s.next(u, now, note)
		if err != nil {
			return err
		}

		status := u.Status
		switch out.Level {
		case LevelPenalty:
			if out.PointsRemoved > 0 {
				if note == "" {
					note = "Первое нарушение"
				}
				out.EntryID, err = s.ledger.PostEntryTx(ctx, tx, userID, domain.EntryPenalty,
					domain.CategorySecurity, domain.ReasonPenaltyRemoved, out.PointsRemoved,
					map[string]any{"admin_id": adminID, "note": note})
				if err != nil {
					return err
				}
			}
		case LevelBlock:
			status = domain.Status{State: domain.StateBlocked, BlockedUntil: out.BlockedUntil}
		case LevelBan:
			status = domain.Status{State: domain.StateBanned, BanReason: out.BanReason}
		}

		inf := domain.Infractions{Count: out.Count, LastAt: &now}
		if err := tx.SaveDiscipline(ctx, userID, status, inf, now); err != nil {
			return fmt.Errorf("ошибка сохранения санкции: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Sanctions.WithLabelValues(strconv.Itoa(int(out.Level))).Inc()
	log.WithFields(log.Fields{
		"user_id":  userID,
		"admin_id": adminID,
		"level":    out.Level,
		"count":    out.Count,
		"removed":  out.PointsRemoved,
	}).Info("Санкция применена")
	return out, nil
}

// ReleaseExpiredBlocks возвращает в active участников с истёкшей блокировкой.
// Пути чтения и так считают такую блокировку снятой; очистка приводит
// хранимое состояние в порядок.
func (s *Service) ReleaseExpiredBlocks(ctx context.Context) (int64, error) {
	n, err := s.store.ReleaseExpiredBlocks(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("ошибка снятия блокировок: %w", err)
	}
	if n > 0 {
		log.WithField("count", n).Info("Истёкшие блокировки сняты")
	}
	return n, nil
}
