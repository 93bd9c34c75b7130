package usecase

import (
	"context"
	"time"

	"telegram-sms-relay/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Stats are the aggregate counters shown to admins.
type Stats struct {
	Users           int `json:"users"`
	TotalDispatches int `json:"total_dispatches"`
	TodayDispatches int `json:"today_dispatches"`
}

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type StatsUseCase interface {
	Totals(ctx context.Context) (*Stats, error)
}

type statsUC struct {
	quotas     repository.QuotaRepository
	dispatches repository.DispatchLogRepository

	log *zerolog.Logger
	now func() time.Time
}

func NewStatsUseCase(quotas repository.QuotaRepository, dispatches repository.DispatchLogRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{quotas: quotas, dispatches: dispatches, log: logger, now: time.Now}
}

func (s *statsUC) Totals(ctx context.Context) (*Stats, error) {
	users, err := s.quotas.CountUsers(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	total, err := s.dispatches.CountAll(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	today, err := s.dispatches.CountOnDay(ctx, repository.NoTX, s.now())
	if err != nil {
		return nil, err
	}
	return &Stats{Users: users, TotalDispatches: total, TodayDispatches: today}, nil
}
