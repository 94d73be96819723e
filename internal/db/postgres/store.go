package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/domain"
	"serotonyl.ru/ascenso-bot/internal/store"
)

// DBTX — общее подмножество *pgxpool.Pool и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store — реализация store.Store поверх PostgreSQL.
type Store struct {
	db   DBTX
	pool *pgxpool.Pool // nil внутри транзакции
}

var _ store.Store = (*Store)(nil)

// NewStore создаёт хранилище поверх пула соединений.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, pool: pool}
}

// WithinTx открывает транзакцию (READ COMMITTED) и выполняет fn.
// Блокировки строк берутся явно: SELECT ... FOR UPDATE.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Store{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// Ping проверяет доступность базы.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

// --- участники ---

const userColumns = `
	user_id, username, first_name, last_name,
	policy_accepted, policy_accepted_at, policy_version,
	status, blocked_until, ban_reason,
	infractions_count, infractions_last_at,
	balance_cached, lifetime_earned, lifetime_spent, points_updated_at,
	rank_period, rank_earned, rank_last_reset_at,
	elite_active, elite_until, elite_forced, elite_forced_by, elite_forced_note,
	titan_active, titan_until, titan_forced, titan_forced_by, titan_forced_note,
	premium_redeems, plan_type, plan_expires_at,
	created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var state, plan string
	err := row.Scan(
		&u.UserID, &u.Username, &u.FirstName, &u.LastName,
		&u.Policy.Accepted, &u.Policy.AcceptedAt, &u.Policy.Version,
		&state, &u.Status.BlockedUntil, &u.Status.BanReason,
		&u.Infractions.Count, &u.Infractions.LastAt,
		&u.Points.Balance, &u.Points.LifetimeEarned, &u.Points.LifetimeSpent, &u.Points.UpdatedAt,
		&u.Rank.PeriodKey, &u.Rank.Earned, &u.Rank.LastResetAt,
		&u.Elite.Active, &u.Elite.ActiveUntil, &u.Elite.Forced, &u.Elite.ForcedByAdminID, &u.Elite.ForcedNote,
		&u.Titan.Active, &u.Titan.ActiveUntil, &u.Titan.Forced, &u.Titan.ForcedByAdminID, &u.Titan.ForcedNote,
		&u.PremiumRedeems, &plan, &u.Plan.ExpiresAt,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Status.State = domain.State(state)
	u.Plan.Type = domain.PlanType(plan)
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("участник %d повреждён: %w", u.UserID, err)
	}
	return &u, nil
}

// CreateUser добавляет участника со значениями по умолчанию.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("некорректный участник: %w", err)
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO members (
			user_id, username, first_name, last_name, policy_version,
			status, rank_period, rank_last_reset_at, plan_type, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, u.UserID, u.Username, u.FirstName, u.LastName, u.Policy.Version,
		string(u.Status.State), u.Rank.PeriodKey, u.Rank.LastResetAt, string(u.Plan.Type), u.CreatedAt)
	if err != nil {
		return mapErr(err, nil)
	}
	return nil
}

// execUser выполняет UPDATE по участнику; 0 строк → ErrUserNotFound.
func (s *Store) execUser(ctx context.Context, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrUserNotFound
	}
	return nil
}

func (s *Store) UpdateProfile(ctx context.Context, userID int64, username, firstName, lastName string, at time.Time) error {
	return s.execUser(ctx, `
		UPDATE members SET username = $2, first_name = $3, last_name = $4, updated_at = $5
		WHERE user_id = $1
	`, userID, username, firstName, lastName, at)
}

func (s *Store) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM members WHERE user_id = $1`, userID))
	if err != nil {
		return nil, mapErr(err, common.ErrUserNotFound)
	}
	return u, nil
}

// GetUserForUpdate читает участника с блокировкой строки до конца транзакции.
func (s *Store) GetUserForUpdate(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM members WHERE user_id = $1 FOR UPDATE`, userID))
	if err != nil {
		return nil, mapErr(err, common.ErrUserNotFound)
	}
	return u, nil
}

func (s *Store) AcceptPolicy(ctx context.Context, userID int64, version string, at time.Time) error {
	return s.execUser(ctx, `
		UPDATE members
		SET policy_accepted = TRUE, policy_accepted_at = $2, policy_version = $3, updated_at = $2
		WHERE user_id = $1
	`, userID, at, version)
}

// --- журнал ---

// InsertLedgerEntry добавляет проводку. Совпадение entry_id → store.ErrDuplicate
// без прерывания транзакции, чтобы вызывающий мог сгенерировать новый id.
func (s *Store) InsertLedgerEntry(ctx context.Context, e *domain.LedgerEntry) error {
	meta := e.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO ledger_entries (
			entry_id, user_id, entry_type, category, reason_code,
			points, signed_points, month_earned_points, meta, period_key, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (entry_id) DO NOTHING
		RETURNING id
	`, e.EntryID, e.UserID, string(e.Type), e.Category, e.ReasonCode,
		e.Points, e.SignedPoints, e.MonthEarnedPoints, meta, e.PeriodKey, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return mapErr(err, store.ErrDuplicate)
	}
	return nil
}

// ApplyBalanceDelta — атомарный инкремент кеша одним UPDATE.
// Все выражения SET видят старые значения строки, поэтому сброс периода
// и прибавка заработка выполняются корректно в одном выражении.
func (s *Store) ApplyBalanceDelta(ctx context.Context, userID int64, d domain.BalanceDelta) error {
	return s.execUser(ctx, `
		UPDATE members SET
			balance_cached = balance_cached + $2,
			lifetime_earned = lifetime_earned + $3,
			lifetime_spent = lifetime_spent + $4,
			rank_earned = CASE WHEN rank_period = $6 THEN rank_earned + $5 ELSE $5 END,
			rank_last_reset_at = CASE WHEN rank_period = $6 THEN rank_last_reset_at ELSE $7 END,
			rank_period = $6,
			points_updated_at = $7,
			updated_at = $7
		WHERE user_id = $1
	`, userID, d.Signed, d.Earned(), d.Spent(), d.MonthEarned, d.PeriodKey, d.At)
}

func (s *Store) ListLedgerEntries(ctx context.Context, userID int64, limit int) ([]*domain.LedgerEntry, error) {
	query := `
		SELECT id, entry_id, user_id, entry_type, category, reason_code,
		       points, signed_points, month_earned_points, meta, period_key, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var typ string
		if err := rows.Scan(
			&e.ID, &e.EntryID, &e.UserID, &typ, &e.Category, &e.ReasonCode,
			&e.Points, &e.SignedPoints, &e.MonthEarnedPoints, &e.Meta, &e.PeriodKey, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования проводки: %w", err)
		}
		e.Type = domain.EntryType(typ)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *Store) SumLedger(ctx context.Context, userID int64, periodKey string) (domain.LedgerTotals, error) {
	var t domain.LedgerTotals
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(signed_points), 0),
		       COALESCE(SUM(GREATEST(signed_points, 0)), 0),
		       COALESCE(SUM(GREATEST(-signed_points, 0)), 0),
		       COALESCE(SUM(month_earned_points) FILTER (WHERE period_key = $2), 0),
		       COUNT(*)
		FROM ledger_entries
		WHERE user_id = $1
	`, userID, periodKey).Scan(&t.Balance, &t.Earned, &t.Spent, &t.PeriodEarned, &t.Entries)
	if err != nil {
		return t, fmt.Errorf("ошибка пересчёта журнала: %w", err)
	}
	return t, nil
}

func (s *Store) HasLedgerReason(ctx context.Context, userID int64, reasonCode string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE user_id = $1 AND reason_code = $2)`,
		userID, reasonCode,
	).Scan(&exists)
	return exists, err
}

func (s *Store) OverwritePointsCache(ctx context.Context, userID int64, t domain.LedgerTotals, periodKey string, at time.Time) error {
	return s.execUser(ctx, `
		UPDATE members SET
			balance_cached = $2, lifetime_earned = $3, lifetime_spent = $4,
			rank_period = $5, rank_earned = $6,
			points_updated_at = $7, updated_at = $7
		WHERE user_id = $1
	`, userID, t.Balance, t.Earned, t.Spent, periodKey, t.PeriodEarned, at)
}

// --- заявки ---

const claimColumns = `
	id::text, user_id, task_code, points, credited, multiplier, status, day_key,
	evidence_ref, caption, weekly_code, admin_id, note, created_at, decided_at`

func scanClaim(row pgx.Row) (*domain.TaskClaim, error) {
	var c domain.TaskClaim
	var status string
	err := row.Scan(
		&c.ID, &c.UserID, &c.TaskCode, &c.Points, &c.Credited, &c.Multiplier, &status, &c.DayKey,
		&c.EvidenceRef, &c.Caption, &c.WeeklyCode, &c.AdminID, &c.Note, &c.CreatedAt, &c.DecidedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = domain.ClaimStatus(status)
	return &c, nil
}

// InsertClaim добавляет заявку. Уникальность (user, task, day) проверяет
// сама база; повтор → store.ErrDuplicate без прерывания транзакции.
func (s *Store) InsertClaim(ctx context.Context, c *domain.TaskClaim) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO task_claims (
			id, user_id, task_code, points, credited, multiplier, status, day_key,
			evidence_ref, caption, weekly_code, admin_id, note, created_at, decided_at
		) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT DO NOTHING
	`, c.ID, c.UserID, c.TaskCode, c.Points, c.Credited, c.Multiplier, string(c.Status), c.DayKey,
		c.EvidenceRef, c.Caption, c.WeeklyCode, c.AdminID, c.Note, c.CreatedAt, c.DecidedAt)
	if err != nil {
		return mapErr(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDuplicate
	}
	return nil
}

func (s *Store) GetClaim(ctx context.Context, claimID string) (*domain.TaskClaim, error) {
	c, err := scanClaim(s.db.QueryRow(ctx, `SELECT `+claimColumns+` FROM task_claims WHERE id = $1::uuid`, claimID))
	if err != nil {
		return nil, mapErr(err, common.ErrClaimNotFound)
	}
	return c, nil
}

// TransitionClaim — compare-and-swap: меняет статус, только если заявка ещё pending.
// Конкурентный второй UPDATE дождётся фиксации первого и не найдёт строку.
func (s *Store) TransitionClaim(ctx context.Context, claimID string, d domain.ClaimDecision) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE task_claims
		SET status = $2, credited = $3, multiplier = $4, admin_id = $5, note = $6, decided_at = $7
		WHERE id = $1::uuid AND status = 'pending'
	`, claimID, string(d.Status), d.Credited, d.Multiplier, d.AdminID, d.Note, d.At)
	if err != nil {
		return false, fmt.Errorf("ошибка смены статуса заявки: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListPendingClaims(ctx context.Context, limit, offset int) ([]*domain.TaskClaim, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+claimColumns+`
		FROM task_claims
		WHERE status = 'pending'
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения заявок: %w", err)
	}
	defer rows.Close()

	var claims []*domain.TaskClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования заявки: %w", err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// --- уровни и тарифы ---

func (s *Store) SaveTiers(ctx context.Context, userID int64, elite, titan domain.TierSlot, at time.Time) error {
	return s.execUser(ctx, `
		UPDATE members SET
			elite_active = $2, elite_until = $3, elite_forced = $4, elite_forced_by = $5, elite_forced_note = $6,
			titan_active = $7, titan_until = $8, titan_forced = $9, titan_forced_by = $10, titan_forced_note = $11,
			updated_at = $12
		WHERE user_id = $1
	`, userID,
		elite.Active, elite.ActiveUntil, elite.Forced, elite.ForcedByAdminID, elite.ForcedNote,
		titan.Active, titan.ActiveUntil, titan.Forced, titan.ForcedByAdminID, titan.ForcedNote,
		at)
}

func (s *Store) IncrementPremiumRedeems(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		UPDATE members SET premium_redeems = premium_redeems + 1
		WHERE user_id = $1
		RETURNING premium_redeems
	`, userID).Scan(&n)
	if err != nil {
		return 0, mapErr(err, common.ErrUserNotFound)
	}
	return n, nil
}

func (s *Store) SetPlan(ctx context.Context, userID int64, plan domain.Plan, at time.Time) error {
	return s.execUser(ctx, `
		UPDATE members SET plan_type = $2, plan_expires_at = $3, updated_at = $4
		WHERE user_id = $1
	`, userID, string(plan.Type), plan.ExpiresAt, at)
}

func (s *Store) ListUsersWithExpiredTiers(ctx context.Context, now time.Time) ([]int64, error) {
	return s.queryIDs(ctx, `
		SELECT user_id FROM members
		WHERE (elite_active AND elite_until <= $1) OR (titan_active AND titan_until <= $1)
		ORDER BY user_id
	`, now)
}

func (s *Store) queryIDs(ctx context.Context, sql string, args ...any) ([]int64, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- дисциплина ---

func (s *Store) SaveDiscipline(ctx context.Context, userID int64, st domain.Status, inf domain.Infractions, at time.Time) error {
	return s.execUser(ctx, `
		UPDATE members SET
			status = $2, blocked_until = $3, ban_reason = $4,
			infractions_count = $5, infractions_last_at = $6, updated_at = $7
		WHERE user_id = $1
	`, userID, string(st.State), st.BlockedUntil, st.BanReason, inf.Count, inf.LastAt, at)
}

func (s *Store) ReleaseExpiredBlocks(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE members SET status = 'active', blocked_until = NULL, updated_at = $1
		WHERE status = 'blocked' AND blocked_until <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("ошибка снятия блокировок: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- рейтинг ---

func (s *Store) TopByPeriod(ctx context.Context, periodKey string, minPoints int64, limit int) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM members
		WHERE status <> 'banned' AND rank_period = $1 AND rank_earned >= $2
		ORDER BY rank_earned DESC, user_id ASC
	`
	args := []any{periodKey, minPoints}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения рейтинга: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) CountAhead(ctx context.Context, periodKey string, points, minPoints int64) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM members
		WHERE status <> 'banned' AND rank_period = $1 AND rank_earned > $2 AND rank_earned >= $3
	`, periodKey, points, minPoints).Scan(&n)
	return n, err
}

func (s *Store) PeriodStats(ctx context.Context, periodKey string) (domain.PeriodStats, error) {
	var st domain.PeriodStats
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(rank_earned), 0), COALESCE(MAX(rank_earned), 0)
		FROM members
		WHERE status <> 'banned' AND rank_period = $1
	`, periodKey).Scan(&st.Participants, &st.TotalEarned, &st.MaxEarned)
	return st, err
}

// --- перекат ---

const rolloverStateID = "rollover"

// GetRolloverState читает синглтон с блокировкой строки. nil — записи ещё нет.
func (s *Store) GetRolloverState(ctx context.Context) (*domain.RolloverState, error) {
	var st domain.RolloverState
	err := s.db.QueryRow(ctx,
		`SELECT period_key, last_run_at FROM system_state WHERE id = $1 FOR UPDATE`, rolloverStateID,
	).Scan(&st.PeriodKey, &st.LastRunAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

func (s *Store) SaveRolloverState(ctx context.Context, st domain.RolloverState) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO system_state (id, period_key, last_run_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET period_key = EXCLUDED.period_key, last_run_at = EXCLUDED.last_run_at
	`, rolloverStateID, st.PeriodKey, st.LastRunAt)
	return err
}

func (s *Store) CreateSnapshotIfMissing(ctx context.Context, snap *domain.MonthSnapshot) (bool, error) {
	top := snap.Top
	if top == nil {
		top = []domain.RankingRow{}
	}
	tag, err := s.db.Exec(ctx, `
		INSERT INTO month_snapshots (period_key, top, participants, total_earned, max_earned, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (period_key) DO NOTHING
	`, snap.PeriodKey, top, snap.Stats.Participants, snap.Stats.TotalEarned, snap.Stats.MaxEarned, snap.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("ошибка записи снимка: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) GetSnapshot(ctx context.Context, periodKey string) (*domain.MonthSnapshot, error) {
	var snap domain.MonthSnapshot
	err := s.db.QueryRow(ctx, `
		SELECT period_key, top, participants, total_earned, max_earned, created_at
		FROM month_snapshots WHERE period_key = $1
	`, periodKey).Scan(&snap.PeriodKey, &snap.Top, &snap.Stats.Participants,
		&snap.Stats.TotalEarned, &snap.Stats.MaxEarned, &snap.CreatedAt)
	if err != nil {
		return nil, mapErr(err, common.ErrSnapshotNotFound)
	}
	return &snap, nil
}

// ResetPeriod обнуляет заработок периода у всех, кто ещё числится в prevKey.
// Баланс и журнал не трогаются.
func (s *Store) ResetPeriod(ctx context.Context, prevKey, curKey string, at time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE members SET rank_period = $2, rank_earned = 0, rank_last_reset_at = $3
		WHERE rank_period = $1
	`, prevKey, curKey, at)
	if err != nil {
		return 0, fmt.Errorf("ошибка сброса периода: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- победители ---

// UpsertWinner записывает слот; true — слот был занят и заменён.
func (s *Store) UpsertWinner(ctx context.Context, w *domain.Winner) (bool, error) {
	var replaced bool
	err := s.db.QueryRow(ctx, `
		INSERT INTO monthly_winners (period_key, position, user_id, display_name, period_points, note, admin_id, assigned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (period_key, position) DO UPDATE SET
			user_id = EXCLUDED.user_id, display_name = EXCLUDED.display_name,
			period_points = EXCLUDED.period_points, note = EXCLUDED.note,
			admin_id = EXCLUDED.admin_id, assigned_at = EXCLUDED.assigned_at
		RETURNING xmax::text <> '0'
	`, w.PeriodKey, w.Position, w.UserID, w.DisplayName, w.PeriodPoints, w.Note, w.AdminID, w.AssignedAt,
	).Scan(&replaced)
	if err != nil {
		return false, fmt.Errorf("ошибка записи победителя: %w", err)
	}
	return replaced, nil
}

func (s *Store) ClearWinners(ctx context.Context, periodKey string) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM monthly_winners WHERE period_key = $1`, periodKey)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления победителей: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ListWinners(ctx context.Context, periodKey string) ([]*domain.Winner, error) {
	rows, err := s.db.Query(ctx, `
		SELECT period_key, position, user_id, display_name, period_points, note, admin_id, assigned_at
		FROM monthly_winners WHERE period_key = $1
		ORDER BY position
	`, periodKey)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения победителей: %w", err)
	}
	defer rows.Close()

	var winners []*domain.Winner
	for rows.Next() {
		var w domain.Winner
		if err := rows.Scan(&w.PeriodKey, &w.Position, &w.UserID, &w.DisplayName,
			&w.PeriodPoints, &w.Note, &w.AdminID, &w.AssignedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования победителя: %w", err)
		}
		winners = append(winners, &w)
	}
	return winners, rows.Err()
}
