package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-sms-relay/internal/domain"
	"telegram-sms-relay/internal/domain/model"
	"telegram-sms-relay/internal/domain/ports/repository"
)

var _ repository.QuotaRepository = (*QuotaRepo)(nil)

type QuotaRepo struct {
	pool *pgxpool.Pool
}

func NewQuotaRepo(pool *pgxpool.Pool) *QuotaRepo {
	return &QuotaRepo{pool: pool}
}

func (r *QuotaRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (
  user_id, daily_sent, last_reset_date, referrals, bonus_allowance,
  admin_pending_action, conversation_phase, conversation_pending_number, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
) ON CONFLICT (user_id) DO UPDATE SET
  daily_sent=$2, last_reset_date=$3, referrals=$4, bonus_allowance=$5,
  admin_pending_action=$6, conversation_phase=$7, conversation_pending_number=$8;
`
	ex, err := pick(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, u.UserID, u.DailySent, u.LastResetDate, u.Referrals, u.BonusAllowance,
		u.AdminPendingAction, string(u.Phase), u.PendingNumber, u.CreatedAt)
	return err
}

func (r *QuotaRepo) Find(ctx context.Context, tx repository.Tx, userID int64) (*model.User, error) {
	const q = `
SELECT user_id, daily_sent, last_reset_date, referrals, bonus_allowance,
       admin_pending_action, conversation_phase, conversation_pending_number, created_at
  FROM users WHERE user_id=$1;
`
	ex, err := pick(r.pool, tx)
	if err != nil {
		return nil, err
	}
	var u model.User
	var phase string
	if err := ex.QueryRow(ctx, q, userID).Scan(&u.UserID, &u.DailySent, &u.LastResetDate, &u.Referrals,
		&u.BonusAllowance, &u.AdminPendingAction, &phase, &u.PendingNumber, &u.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	u.Phase = model.ConversationPhase(phase)
	return &u, nil
}

func (r *QuotaRepo) AddBonus(ctx context.Context, tx repository.Tx, userID int64, delta int) error {
	ex, err := pick(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, `UPDATE users SET bonus_allowance = bonus_allowance + $2 WHERE user_id=$1;`, userID, delta)
	return err
}

func (r *QuotaRepo) IncrementReferrals(ctx context.Context, tx repository.Tx, userID int64) error {
	ex, err := pick(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, `UPDATE users SET referrals = referrals + 1 WHERE user_id=$1;`, userID)
	return err
}

func (r *QuotaRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	ex, err := pick(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx, `SELECT COUNT(*) FROM users;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *QuotaRepo) ResetStale(ctx context.Context, tx repository.Tx, today time.Time) (int64, error) {
	ex, err := pick(r.pool, tx)
	if err != nil {
		return 0, err
	}
	tag, err := ex.Exec(ctx, `UPDATE users SET daily_sent=0, last_reset_date=$1 WHERE last_reset_date <> $1;`, model.Day(today))
	if err != nil {
		return 0, fmt.Errorf("reset stale: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *QuotaRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.User, error) {
	const q = `
SELECT user_id, daily_sent, last_reset_date, referrals, bonus_allowance,
       admin_pending_action, conversation_phase, conversation_pending_number, created_at
  FROM users ORDER BY user_id;
`
	ex, err := pick(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		var u model.User
		var phase string
		if err := rows.Scan(&u.UserID, &u.DailySent, &u.LastResetDate, &u.Referrals,
			&u.BonusAllowance, &u.AdminPendingAction, &phase, &u.PendingNumber, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Phase = model.ConversationPhase(phase)
		out = append(out, &u)
	}
	return out, rows.Err()
}
