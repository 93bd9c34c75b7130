//go:build !integration

package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-sms-relay/internal/domain"
	"telegram-sms-relay/internal/domain/model"
	"telegram-sms-relay/internal/domain/ports/repository"
)

//
// ---------------- in-memory infra mocks (repos/tx) ----------------
//

type memQuotaRepo struct {
	byID map[int64]*model.User

	errFind error
	errSave error
}

func newMemQuotaRepo() *memQuotaRepo {
	return &memQuotaRepo{byID: map[int64]*model.User{}}
}

func (m *memQuotaRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if m.errSave != nil {
		return m.errSave
	}
	cp := *u
	m.byID[u.UserID] = &cp
	return nil
}

func (m *memQuotaRepo) Find(ctx context.Context, tx repository.Tx, userID int64) (*model.User, error) {
	if m.errFind != nil {
		return nil, m.errFind
	}
	u, ok := m.byID[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memQuotaRepo) AddBonus(ctx context.Context, tx repository.Tx, userID int64, delta int) error {
	if u, ok := m.byID[userID]; ok {
		u.BonusAllowance += delta
	}
	return nil
}

func (m *memQuotaRepo) IncrementReferrals(ctx context.Context, tx repository.Tx, userID int64) error {
	if u, ok := m.byID[userID]; ok {
		u.Referrals++
	}
	return nil
}

func (m *memQuotaRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	return len(m.byID), nil
}

func (m *memQuotaRepo) ResetStale(ctx context.Context, tx repository.Tx, today time.Time) (int64, error) {
	var n int64
	for _, u := range m.byID {
		if !model.SameDate(u.LastResetDate, today) {
			u.DailySent = 0
			u.LastResetDate = model.Day(today)
			n++
		}
	}
	return n, nil
}

func (m *memQuotaRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.User, error) {
	out := make([]*model.User, 0, len(m.byID))
	for _, u := range m.byID {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

type memDispatchRepo struct {
	entries []*model.DispatchEntry
	nextID  int64

	errAppend error
	errCount  error
}

func newMemDispatchRepo() *memDispatchRepo { return &memDispatchRepo{nextID: 1} }

func (m *memDispatchRepo) Append(ctx context.Context, tx repository.Tx, e *model.DispatchEntry) error {
	if m.errAppend != nil {
		return m.errAppend
	}
	cp := *e
	cp.ID = m.nextID
	m.nextID++
	m.entries = append(m.entries, &cp)
	e.ID = cp.ID
	return nil
}

func (m *memDispatchRepo) CountForDestination(ctx context.Context, tx repository.Tx, userID int64, destination string, day time.Time) (int, error) {
	if m.errCount != nil {
		return 0, m.errCount
	}
	n := 0
	for _, e := range m.entries {
		if e.UserID == userID && e.Destination == destination && model.SameDate(e.SentAt, day) {
			n++
		}
	}
	return n, nil
}

func (m *memDispatchRepo) ListByUser(ctx context.Context, tx repository.Tx, userID int64, offset, limit int) ([]*model.DispatchEntry, error) {
	var mine []*model.DispatchEntry
	for _, e := range m.entries {
		if e.UserID == userID {
			cp := *e
			mine = append(mine, &cp)
		}
	}
	// most recent first
	sort.Slice(mine, func(i, j int) bool { return mine[i].ID > mine[j].ID })
	if offset >= len(mine) {
		return nil, nil
	}
	mine = mine[offset:]
	if limit > 0 && len(mine) > limit {
		mine = mine[:limit]
	}
	return mine, nil
}

func (m *memDispatchRepo) CountByUser(ctx context.Context, tx repository.Tx, userID int64) (int, error) {
	n := 0
	for _, e := range m.entries {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memDispatchRepo) CountAll(ctx context.Context, tx repository.Tx) (int, error) {
	return len(m.entries), nil
}

func (m *memDispatchRepo) CountOnDay(ctx context.Context, tx repository.Tx, day time.Time) (int, error) {
	n := 0
	for _, e := range m.entries {
		if model.SameDate(e.SentAt, day) {
			n++
		}
	}
	return n, nil
}

func (m *memDispatchRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.DispatchEntry, error) {
	out := make([]*model.DispatchEntry, 0, len(m.entries))
	for _, e := range m.entries {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

type memReferralRepo struct {
	byReferee map[int64]int64
}

func newMemReferralRepo() *memReferralRepo { return &memReferralRepo{byReferee: map[int64]int64{}} }

func (m *memReferralRepo) Create(ctx context.Context, tx repository.Tx, refereeID, referrerID int64) error {
	if _, ok := m.byReferee[refereeID]; ok {
		return domain.ErrAlreadyExists
	}
	m.byReferee[refereeID] = referrerID
	return nil
}

type noTx struct{}

type mockTxManager struct{}

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, noTx{})
}

//
// ---------------- adapter mocks ----------------
//

type mockRelay struct {
	err   error
	calls []string // "destination|message"
}

func (m *mockRelay) Send(ctx context.Context, destination, message string) error {
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, destination+"|"+message)
	return nil
}

type mockLocker struct {
	locked map[string]bool
	busy   bool
}

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.busy {
		return "", domain.ErrSendInProgress
	}
	if m.locked == nil {
		m.locked = map[string]bool{}
	}
	if m.locked[key] {
		return "", domain.ErrSendInProgress
	}
	m.locked[key] = true
	return "tok", nil
}

func (m *mockLocker) Unlock(ctx context.Context, key, token string) error {
	delete(m.locked, key)
	return nil
}

type mockChecker struct {
	status string
	err    error
}

func (m *mockChecker) MemberStatus(ctx context.Context, channel string, userID int64) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.status, nil
}

//
// ---------------- helpers ----------------
//

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

var errBoom = errors.New("boom")
