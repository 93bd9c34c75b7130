package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-sms-relay/internal/domain"
	"telegram-sms-relay/internal/domain/ports/repository"
)

var _ repository.ReferralRepository = (*ReferralRepo)(nil)

type ReferralRepo struct {
	pool *pgxpool.Pool
}

func NewReferralRepo(pool *pgxpool.Pool) *ReferralRepo {
	return &ReferralRepo{pool: pool}
}

// Create inserts the referee->referrer link. The referee primary key turns a
// duplicate credit attempt into a unique violation, mapped to ErrAlreadyExists.
func (r *ReferralRepo) Create(ctx context.Context, tx repository.Tx, refereeID, referrerID int64) error {
	ex, err := pick(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, `INSERT INTO referrals (referee_id, referrer_id) VALUES ($1,$2);`, refereeID, referrerID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}
