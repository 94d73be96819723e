// Package memory — хранилище движка в памяти процесса.
//
// Используется в тестах сервисов движка.
// Гарантии те же, что у postgres: уникальность заявок за день, CAS по статусу
// заявки, атомарные инкременты кеша, откат транзакции при ошибке.
// Транзакции сериализуются одним мьютексом, поэтому «FOR UPDATE» здесь
// выполняется автоматически.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/domain"
	"serotonyl.ru/ascenso-bot/internal/store"
)

type data struct {
	users     map[int64]*domain.User
	entries   []*domain.LedgerEntry
	entryIDs  map[string]struct{}
	claims    map[string]*domain.TaskClaim
	daily     map[string]string // user|task|day → claim id
	snapshots map[string]*domain.MonthSnapshot
	rollover  *domain.RolloverState
	winners   map[string]map[int]*domain.Winner
	seq       int64
}

func newData() *data {
	return &data{
		users:     make(map[int64]*domain.User),
		entryIDs:  make(map[string]struct{}),
		claims:    make(map[string]*domain.TaskClaim),
		daily:     make(map[string]string),
		snapshots: make(map[string]*domain.MonthSnapshot),
		winners:   make(map[string]map[int]*domain.Winner),
	}
}

// clone копирует состояние для отката. Проводки и снимки неизменяемы,
// поэтому копируются только срезы и карты.
func (d *data) clone() *data {
	c := newData()
	for id, u := range d.users {
		cp := *u
		c.users[id] = &cp
	}
	c.entries = append([]*domain.LedgerEntry(nil), d.entries...)
	for k := range d.entryIDs {
		c.entryIDs[k] = struct{}{}
	}
	for id, cl := range d.claims {
		cp := *cl
		c.claims[id] = &cp
	}
	for k, v := range d.daily {
		c.daily[k] = v
	}
	for k, v := range d.snapshots {
		c.snapshots[k] = v
	}
	if d.rollover != nil {
		st := *d.rollover
		c.rollover = &st
	}
	for period, slots := range d.winners {
		m := make(map[int]*domain.Winner, len(slots))
		for pos, w := range slots {
			cp := *w
			m[pos] = &cp
		}
		c.winners[period] = m
	}
	c.seq = d.seq
	return c
}

// Store — реализация store.Store в памяти.
type Store struct {
	mu   *sync.Mutex
	root **data
	inTx bool
}

var _ store.Store = (*Store)(nil)

// New создаёт пустое хранилище.
func New() *Store {
	d := newData()
	return &Store{mu: &sync.Mutex{}, root: &d}
}

func (s *Store) d() *data { return *s.root }

// lock берёт мьютекс вне транзакции. Внутри WithinTx мьютекс уже удержан.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// WithinTx выполняет fn под общим мьютексом; при ошибке состояние восстанавливается.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.d().clone()
	tx := &Store{mu: s.mu, root: s.root, inTx: true}
	if err := fn(tx); err != nil {
		*s.root = backup
		return err
	}
	return nil
}

// Ping всегда успешен.
func (s *Store) Ping(ctx context.Context) error { return nil }

// --- участники ---

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("некорректный участник: %w", err)
	}
	defer s.lock()()
	if _, ok := s.d().users[u.UserID]; ok {
		return store.ErrDuplicate
	}
	cp := *u
	s.d().users[u.UserID] = &cp
	return nil
}

func (s *Store) user(userID int64) (*domain.User, error) {
	u, ok := s.d().users[userID]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) UpdateProfile(ctx context.Context, userID int64, username, firstName, lastName string, at time.Time) error {
	defer s.lock()()
	u, err := s.user(userID)
	if err != nil {
		return err
	}
	u.Username, u.FirstName, u.LastName, u.UpdatedAt = username, firstName, lastName, at
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	defer s.lock()()
	u, err := s.user(userID)
	if err != nil {
		return nil, err
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserForUpdate(ctx context.Context, userID int64) (*domain.User, error) {
	return s.GetUser(ctx, userID)
}

func (s *Store) AcceptPolicy(ctx context.Context, userID int64, version string, at time.Time) error {
	defer s.lock()()
	u, err := s.user(userID)
	if err != nil {
		return err
	}
	u.Policy = domain.Policy{Accepted: true, AcceptedAt: &at, Version: version}
	u.UpdatedAt = at
	return nil
}

// --- журнал ---

func (s *Store) InsertLedgerEntry(ctx context.Context, e *domain.LedgerEntry) error {
	defer s.lock()()
	d := s.d()
	if _, ok := d.entryIDs[e.EntryID]; ok {
		return store.ErrDuplicate
	}
	if e.ReasonCode == domain.ReasonBonusFirstRedeem {
		for _, x := range d.entries {
			if x.UserID == e.UserID && x.ReasonCode == domain.ReasonBonusFirstRedeem {
				return store.ErrDuplicate
			}
		}
	}
	d.seq++
	cp := *e
	cp.ID = d.seq
	d.entries = append(d.entries, &cp)
	d.entryIDs[e.EntryID] = struct{}{}
	e.ID = cp.ID
	return nil
}

func (s *Store) ApplyBalanceDelta(ctx context.Context, userID int64, delta domain.BalanceDelta) error {
	defer s.lock()()
	u, err := s.user(userID)
	if err != nil {
		return err
	}
	u.Points.Balance += delta.Signed
	u.Points.LifetimeEarned += delta.Earned()
	u.Points.LifetimeSpent += delta.Spent()
	at := delta.At
	u.Points.UpdatedAt = &at
	if u.Rank.PeriodKey != delta.PeriodKey {
		u.Rank.PeriodKey = delta.PeriodKey
		u.Rank.Earned = 0
		u.Rank.LastResetAt = &at
	}
	u.Rank.Earned += delta.MonthEarned
	u.UpdatedAt = at
	return nil
}

func (s *Store) ListLedgerEntries(ctx context.Context, userID int64, limit int) ([]*domain.LedgerEntry, error) {
	defer s.lock()()
	var out []*domain.LedgerEntry
	entries := s.d().entries
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].UserID != userID {
			continue
		}
		cp := *entries[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) SumLedger(ctx context.Context, userID int64, periodKey string) (domain.LedgerTotals, error) {
	defer s.lock()()
	var t domain.LedgerTotals
	for _, e := range s.d().entries {
		if e.UserID != userID {
			continue
		}
		t.Entries++
		t.Balance += e.SignedPoints
		if e.SignedPoints > 0 {
			t.Earned += e.SignedPoints
		} else {
			t.Spent -= e.SignedPoints
		}
		if e.PeriodKey == periodKey {
			t.PeriodEarned += e.MonthEarnedPoints
		}
	}
	return t, nil
}

func (s *Store) HasLedgerReason(ctx context.Context, userID int64, reasonCode string) (bool, error) {
	defer s.lock()()
	for _, e := range s.d().entries {
		if e.UserID == userID && e.ReasonCode == reasonCode {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) OverwritePointsCache(ctx context.Context, userID int64, totals domain.LedgerTotals, periodKey string, at time.Time) error {
	defer s.lock()()
	u, err := s.user(userID)
	if err != nil {
		return err
	}
	u.Points.Balance = totals.Balance
	u.Points.LifetimeEarned = totals.Earned
	u.Points.LifetimeSpent = totals.Spent
	u.Points.UpdatedAt = &at
	u.Rank.PeriodKey = periodKey
	u.Rank.Earned = totals.PeriodEarned
	u.UpdatedAt = at
	return nil
}

// --- заявки ---

func dailyKey(userID int64, task, day string) string {
	return fmt.Sprintf("%d|%s|%s", userID, task, day)
}

func (s *Store) InsertClaim(ctx context.Context, c *domain.TaskClaim) error {
	defer s.lock()()
	d := s.d()
	if _, ok := d.claims[c.ID]; ok {
		return store.ErrDuplicate
	}
	if c.DayKey != nil {
		k := dailyKey(c.UserID, c.TaskCode, *c.DayKey)
		if _, ok := d.daily[k]; ok {
			return store.ErrDuplicate
		}
		d.daily[k] = c.ID
	}
	cp := *c
	d.claims[c.ID] = &cp
	return nil
}

func (s *Store) GetClaim(ctx context.Context, claimID string) (*domain.TaskClaim, error) {
	defer s.lock()()
	c, ok := s.d().claims[claimID]
	if !ok {
		return nil, common.ErrClaimNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) TransitionClaim(ctx context.Context, claimID string, dec domain.ClaimDecision) (bool, error) {
	defer s.lock()()
	c, ok := s.d().claims[claimID]
	if !ok || c.Status != domain.ClaimPending {
		return false, nil
	}
	at := dec.At
	c.Status = dec.Status
	c.Credited = dec.Credited
	c.Multiplier = dec.Multiplier
	c.AdminID = dec.AdminID
	c.Note = dec.Note
	c.DecidedAt = &at
	return true, nil
}

func (s *Store) ListPendingClaims(ctx context.Context, limit, offset int) ([]*domain.TaskClaim, error) {
	defer s.lock()()
	var pending []*domain.TaskClaim
	for _, c := range s.d().claims {
		if c.Status == domain.ClaimPending {
			cp := *c
			pending = append(pending, &cp)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return page(pending, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// --- уровни и тарифы ---

func (s *Store) SaveTiers(ctx context.Context, userID int64, elite, titan domain.TierSlot, at time.Time) error {
	defer s.lock()()
	u, err := s.user(userID)
	if err != nil {
		return err
	}
	u.Elite, u.Titan, u.UpdatedAt = elite, titan, at
	return nil
}

func (s *Store) IncrementPremiumRedeems(ctx context.Context, userID int64) (int, error) {
	defer s.lock()()
	u, err := s.user(userID)
	if err != nil {
		return 0, err
	}
	u.PremiumRedeems++
	return u.PremiumRedeems, nil
}

func (s *Store) SetPlan(ctx context.Context, userID int64, plan domain.Plan, at time.Time) error {
	defer s.lock()()
	u, err := s.user(userID)
	if err != nil {
		return err
	}
	u.Plan, u.UpdatedAt = plan, at
	return nil
}

func (s *Store) ListUsersWithExpiredTiers(ctx context.Context, now time.Time) ([]int64, error) {
	defer s.lock()()
	var ids []int64
	for id, u := range s.d().users {
		if u.Elite.Expired(now) || u.Titan.Expired(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// --- дисциплина ---

func (s *Store) SaveDiscipline(ctx context.Context, userID int64, status domain.Status, inf domain.Infractions, at time.Time) error {
	defer s.lock()()
	u, err := s.user(userID)
	if err != nil {
		return err
	}
	u.Status, u.Infractions, u.UpdatedAt = status, inf, at
	return nil
}

func (s *Store) ReleaseExpiredBlocks(ctx context.Context, now time.Time) (int64, error) {
	defer s.lock()()
	var n int64
	for _, u := range s.d().users {
		if u.Status.State == domain.StateBlocked && u.Status.BlockedUntil != nil && !u.Status.BlockedUntil.After(now) {
			u.Status = domain.Status{State: domain.StateActive}
			u.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// --- рейтинг ---

// ranked возвращает неисключённых участников периода, отсортированных
// по заработку (убывание), затем по user_id (возрастание).
func (s *Store) ranked(periodKey string, minPoints int64) []*domain.User {
	var out []*domain.User
	for _, u := range s.d().users {
		if u.IsBanned() || u.Rank.PeriodKey != periodKey || u.Rank.Earned < minPoints {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank.Earned != out[j].Rank.Earned {
			return out[i].Rank.Earned > out[j].Rank.Earned
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func (s *Store) TopByPeriod(ctx context.Context, periodKey string, minPoints int64, limit int) ([]*domain.User, error) {
	defer s.lock()()
	return page(s.ranked(periodKey, minPoints), limit, 0), nil
}

func (s *Store) CountAhead(ctx context.Context, periodKey string, points, minPoints int64) (int, error) {
	defer s.lock()()
	n := 0
	for _, u := range s.ranked(periodKey, minPoints) {
		if u.Rank.Earned > points {
			n++
		}
	}
	return n, nil
}

func (s *Store) PeriodStats(ctx context.Context, periodKey string) (domain.PeriodStats, error) {
	defer s.lock()()
	var st domain.PeriodStats
	for _, u := range s.ranked(periodKey, 0) {
		st.Participants++
		st.TotalEarned += u.Rank.Earned
		if u.Rank.Earned > st.MaxEarned {
			st.MaxEarned = u.Rank.Earned
		}
	}
	return st, nil
}

// --- перекат ---

func (s *Store) GetRolloverState(ctx context.Context) (*domain.RolloverState, error) {
	defer s.lock()()
	if s.d().rollover == nil {
		return nil, nil
	}
	st := *s.d().rollover
	return &st, nil
}

func (s *Store) SaveRolloverState(ctx context.Context, st domain.RolloverState) error {
	defer s.lock()()
	s.d().rollover = &st
	return nil
}

func (s *Store) CreateSnapshotIfMissing(ctx context.Context, snap *domain.MonthSnapshot) (bool, error) {
	defer s.lock()()
	if _, ok := s.d().snapshots[snap.PeriodKey]; ok {
		return false, nil
	}
	cp := *snap
	cp.Top = append([]domain.RankingRow(nil), snap.Top...)
	s.d().snapshots[snap.PeriodKey] = &cp
	return true, nil
}

func (s *Store) GetSnapshot(ctx context.Context, periodKey string) (*domain.MonthSnapshot, error) {
	defer s.lock()()
	snap, ok := s.d().snapshots[periodKey]
	if !ok {
		return nil, common.ErrSnapshotNotFound
	}
	cp := *snap
	cp.Top = append([]domain.RankingRow(nil), snap.Top...)
	return &cp, nil
}

func (s *Store) ResetPeriod(ctx context.Context, prevKey, curKey string, at time.Time) (int64, error) {
	defer s.lock()()
	var n int64
	for _, u := range s.d().users {
		if u.Rank.PeriodKey != prevKey {
			continue
		}
		u.Rank = domain.Rank{PeriodKey: curKey, LastResetAt: &at}
		n++
	}
	return n, nil
}

// --- победители ---

func (s *Store) UpsertWinner(ctx context.Context, w *domain.Winner) (bool, error) {
	defer s.lock()()
	slots, ok := s.d().winners[w.PeriodKey]
	if !ok {
		slots = make(map[int]*domain.Winner)
		s.d().winners[w.PeriodKey] = slots
	}
	_, replaced := slots[w.Position]
	cp := *w
	slots[w.Position] = &cp
	return replaced, nil
}

func (s *Store) ClearWinners(ctx context.Context, periodKey string) (int64, error) {
	defer s.lock()()
	n := int64(len(s.d().winners[periodKey]))
	delete(s.d().winners, periodKey)
	return n, nil
}

func (s *Store) ListWinners(ctx context.Context, periodKey string) ([]*domain.Winner, error) {
	defer s.lock()()
	var out []*domain.Winner
	for _, w := range s.d().winners[periodKey] {
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}
