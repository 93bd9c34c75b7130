package repository

import (
	"context"
	"time"

	"telegram-sms-relay/internal/domain/model"
)

// -----------------------------
// Quota ledger
// -----------------------------

type QuotaRepository interface {
	// Save upserts the full user row (quota counters and conversation state).
	Save(ctx context.Context, tx Tx, u *model.User) error
	Find(ctx context.Context, tx Tx, userID int64) (*model.User, error)
	// AddBonus adds a signed delta to bonus_allowance. Missing users are a no-op.
	AddBonus(ctx context.Context, tx Tx, userID int64, delta int) error
	// IncrementReferrals bumps the referral counter kept for the profile view.
	IncrementReferrals(ctx context.Context, tx Tx, userID int64) error
	CountUsers(ctx context.Context, tx Tx) (int, error)
	// ResetStale zeroes daily_sent for rows whose last_reset_date is not today.
	// Purely a sweep optimization; correctness rests on rollover-on-access.
	ResetStale(ctx context.Context, tx Tx, today time.Time) (int64, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.User, error)
}

// ReferralRepository records which referrer brought each referee. The
// referee is the primary key, which is what makes the +3 credit
// once-per-referred-user at the store level.
type ReferralRepository interface {
	// Create returns domain.ErrAlreadyExists when the referee was credited before.
	Create(ctx context.Context, tx Tx, refereeID, referrerID int64) error
}
