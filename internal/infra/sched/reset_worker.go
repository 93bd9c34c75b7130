package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-sms-relay/internal/domain/model"
	"telegram-sms-relay/internal/domain/ports/repository"
	"telegram-sms-relay/internal/infra/metrics"
)

// ResetWorker periodically zeroes stale daily counters. The ledger already
// rolls records over lazily on access; the sweep keeps the stats endpoints
// honest for users who go quiet.
type ResetWorker struct {
	interval time.Duration
	quotas   repository.QuotaRepository
	log      *zerolog.Logger
	now      func() time.Time
}

func NewResetWorker(interval time.Duration, quotas repository.QuotaRepository, logger *zerolog.Logger) *ResetWorker {
	compLog := logger.With().Str("component", "ResetWorker").Logger()
	if interval <= 0 {
		interval = time.Hour
	}
	return &ResetWorker{
		interval: interval,
		quotas:   quotas,
		log:      &compLog,
		now:      time.Now,
	}
}

func (w *ResetWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting reset worker")
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping reset worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ResetWorker) sweep(ctx context.Context) {
	n, err := w.quotas.ResetStale(ctx, repository.NoTX, model.Day(w.now()))
	if err != nil {
		w.log.Error().Err(err).Msg("reset sweep failed")
		return
	}
	if n > 0 {
		metrics.AddSweepResets(n)
		w.log.Info().Int64("count", n).Msg("stale counters reset")
	}
}
