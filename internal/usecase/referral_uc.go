package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-sms-relay/internal/domain"
	"telegram-sms-relay/internal/domain/model"
	"telegram-sms-relay/internal/domain/ports/repository"
	"telegram-sms-relay/internal/infra/logging"
	"telegram-sms-relay/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ ReferralUseCase = (*referralUC)(nil)

// ReferralUseCase credits a referrer's bonus allowance when a new user
// arrives through their deep link. The credit happens at most once per
// referred user, and only when the referee record did not exist before.
type ReferralUseCase interface {
	CreditOnFirstStart(ctx context.Context, refereeID, referrerID int64) (credited bool, err error)
	Link(botUsername string, userID int64) string
}

type referralUC struct {
	quotas    repository.QuotaRepository
	referrals repository.ReferralRepository
	tm        repository.TransactionManager
	bonus     int

	log *zerolog.Logger
	now func() time.Time
}

func NewReferralUseCase(
	quotas repository.QuotaRepository,
	referrals repository.ReferralRepository,
	tm repository.TransactionManager,
	bonus int,
	logger *zerolog.Logger,
) *referralUC {
	if bonus <= 0 {
		bonus = 3
	}
	return &referralUC{quotas: quotas, referrals: referrals, tm: tm, bonus: bonus, log: logger, now: time.Now}
}

func (r *referralUC) CreditOnFirstStart(ctx context.Context, refereeID, referrerID int64) (bool, error) {
	defer logging.TraceDuration(r.log, "ReferralUC.CreditOnFirstStart")()

	if referrerID <= 0 || refereeID <= 0 || refereeID == referrerID {
		return false, nil
	}

	credited := false
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err := r.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		// Only a genuinely new referee earns the referrer a credit.
		if _, err := r.quotas.Find(ctx, tx, refereeID); err == nil {
			return nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		// A referrer without a record gets nothing credited. The referral
		// row is still written so a later /start never re-earns it.
		referrerKnown := true
		if _, err := r.quotas.Find(ctx, tx, referrerID); errors.Is(err, domain.ErrNotFound) {
			referrerKnown = false
		} else if err != nil {
			return err
		}

		referee, err := model.NewUser(refereeID, r.now())
		if err != nil {
			return err
		}
		if err := r.quotas.Save(ctx, tx, referee); err != nil {
			return err
		}

		if err := r.referrals.Create(ctx, tx, refereeID, referrerID); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return nil
			}
			return err
		}
		if !referrerKnown {
			r.log.Debug().Int64("referrer", referrerID).Int64("referee", refereeID).Msg("referrer unknown, nothing credited")
			return nil
		}
		if err := r.quotas.AddBonus(ctx, tx, referrerID, r.bonus); err != nil {
			return err
		}
		if err := r.quotas.IncrementReferrals(ctx, tx, referrerID); err != nil {
			return err
		}
		credited = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("credit referral: %w", err)
	}
	if credited {
		metrics.AddBonusGranted("referral", r.bonus)
		r.log.Info().Int64("referrer", referrerID).Int64("referee", refereeID).Int("bonus", r.bonus).Msg("referral credited")
	}
	return credited, nil
}

func (r *referralUC) Link(botUsername string, userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", botUsername, userID)
}
