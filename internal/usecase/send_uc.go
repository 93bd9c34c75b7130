package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"telegram-sms-relay/internal/domain"
	"telegram-sms-relay/internal/domain/model"
	"telegram-sms-relay/internal/domain/ports/adapter"
	"telegram-sms-relay/internal/domain/ports/repository"
	"telegram-sms-relay/internal/infra/logging"
	"telegram-sms-relay/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Limits are the quota caps applied by the ledger.
type Limits struct {
	DailyCap     int // base daily cap, before bonus allowance
	PerNumberCap int // per-destination daily cap
}

// Locker serializes sends per user identity.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// Compile-time check
var _ SendUseCase = (*sendUC)(nil)

// SendUseCase is the quota ledger plus the dispatch pipeline. Send checks
// both caps, calls the relay, and on success records the counter increment
// and the log append as one transaction. A denied or failed send never
// mutates the ledger or the log.
type SendUseCase interface {
	Send(ctx context.Context, userID int64, destination, message string) error
	// Snapshot returns the user's quota record with the date rollover applied
	// and persisted, creating a zeroed record on first access.
	Snapshot(ctx context.Context, userID int64) (*model.User, error)
}

type sendUC struct {
	quotas     repository.QuotaRepository
	dispatches repository.DispatchLogRepository
	tm         repository.TransactionManager
	relay      adapter.RelayClient
	locker     Locker
	limits     Limits

	log *zerolog.Logger
	now func() time.Time
}

func NewSendUseCase(
	quotas repository.QuotaRepository,
	dispatches repository.DispatchLogRepository,
	tm repository.TransactionManager,
	relay adapter.RelayClient,
	locker Locker,
	limits Limits,
	logger *zerolog.Logger,
) *sendUC {
	if limits.DailyCap <= 0 {
		limits.DailyCap = 10
	}
	if limits.PerNumberCap <= 0 {
		limits.PerNumberCap = 4
	}
	return &sendUC{
		quotas:     quotas,
		dispatches: dispatches,
		tm:         tm,
		relay:      relay,
		locker:     locker,
		limits:     limits,
		log:        logger,
		now:        time.Now,
	}
}

func sendLockKey(userID int64) string { return fmt.Sprintf("send_lock:%d", userID) }

func (s *sendUC) Send(ctx context.Context, userID int64, destination, message string) error {
	defer logging.TraceDuration(s.log, "SendUC.Send")()

	if !model.ValidDestinationNumber(destination) || strings.TrimSpace(message) == "" {
		return domain.ErrMalformedInput
	}

	if s.locker != nil {
		token, err := s.locker.TryLock(ctx, sendLockKey(userID), 30*time.Second)
		if err != nil {
			return err
		}
		defer func() { _ = s.locker.Unlock(ctx, sendLockKey(userID), token) }()
	}

	today := s.now()
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}

	// Cap evaluation. The transaction always commits so a date rollover is
	// persisted even when the send is denied.
	var denial error
	err := s.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		u, err := s.loadForToday(ctx, tx, userID, true)
		if err != nil {
			return err
		}
		// The per-destination cap is evaluated first: when both caps would
		// fail, the user is told about the per-number limit.
		n, err := s.dispatches.CountForDestination(ctx, tx, userID, destination, today)
		if err != nil {
			return err
		}
		if n >= s.limits.PerNumberCap {
			denial = domain.ErrPerNumberLimit
			return nil
		}
		if u.DailySent+1 > u.EffectiveCap(s.limits.DailyCap) {
			denial = domain.ErrDailyLimit
			return nil
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("evaluate caps: %w", err)
	}
	if denial != nil {
		switch {
		case errors.Is(denial, domain.ErrPerNumberLimit):
			metrics.IncDispatch("denied_per_number")
		case errors.Is(denial, domain.ErrDailyLimit):
			metrics.IncDispatch("denied_daily")
		}
		s.log.Info().Int64("user_id", userID).Str("reason", denial.Error()).Msg("send denied")
		return denial
	}

	if err := s.relay.Send(ctx, destination, message); err != nil {
		metrics.IncDispatch("relay_failed")
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("relay dispatch failed")
		return err
	}

	entry, err := model.NewDispatchEntry(userID, destination, message, today)
	if err != nil {
		return err
	}
	// Increment and append commit together; a partial write would break the
	// daily_sent == today's-log-count invariant.
	err = s.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		u, err := s.loadForToday(ctx, tx, userID, false)
		if err != nil {
			return err
		}
		u.DailySent++
		if err := s.quotas.Save(ctx, tx, u); err != nil {
			return err
		}
		return s.dispatches.Append(ctx, tx, entry)
	})
	if err != nil {
		return fmt.Errorf("record dispatch: %w", err)
	}
	metrics.IncDispatch("sent")
	return nil
}

func (s *sendUC) Snapshot(ctx context.Context, userID int64) (*model.User, error) {
	defer logging.TraceDuration(s.log, "SendUC.Snapshot")()

	var u *model.User
	err := s.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		u, err = s.loadForToday(ctx, tx, userID, true)
		return err
	})
	return u, err
}

// loadForToday fetches the record, applying (and persisting) the daily
// rollover before any cap can be read.
func (s *sendUC) loadForToday(ctx context.Context, tx repository.Tx, userID int64, lazyCreate bool) (*model.User, error) {
	u, err := s.quotas.Find(ctx, tx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		if !lazyCreate {
			return nil, err
		}
		u, err = model.NewUser(userID, s.now())
		if err != nil {
			return nil, err
		}
		if err := s.quotas.Save(ctx, tx, u); err != nil {
			return nil, err
		}
		return u, nil
	}
	if err != nil {
		return nil, err
	}
	if u.Rollover(s.now()) {
		if err := s.quotas.Save(ctx, tx, u); err != nil {
			return nil, err
		}
	}
	return u, nil
}
