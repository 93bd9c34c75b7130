package usecase

import (
	"context"

	"telegram-sms-relay/internal/domain/model"
	"telegram-sms-relay/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// ItemsPerPage is the history page size.
const ItemsPerPage = 5

// HistoryPage is one window of a user's dispatch log, most-recent-first.
type HistoryPage struct {
	Entries    []*model.DispatchEntry
	Page       int // zero-based, clamped into range
	TotalPages int
	TotalCount int
}

// Compile-time check
var _ HistoryUseCase = (*historyUC)(nil)

type HistoryUseCase interface {
	Page(ctx context.Context, userID int64, page int) (*HistoryPage, error)
}

type historyUC struct {
	dispatches repository.DispatchLogRepository
	log        *zerolog.Logger
}

func NewHistoryUseCase(dispatches repository.DispatchLogRepository, logger *zerolog.Logger) *historyUC {
	return &historyUC{dispatches: dispatches, log: logger}
}

func (h *historyUC) Page(ctx context.Context, userID int64, page int) (*HistoryPage, error) {
	total, err := h.dispatches.CountByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return &HistoryPage{Page: 0, TotalPages: 0, TotalCount: 0}, nil
	}

	totalPages := (total + ItemsPerPage - 1) / ItemsPerPage
	if page < 0 {
		page = 0
	}
	if page >= totalPages {
		page = totalPages - 1
	}

	entries, err := h.dispatches.ListByUser(ctx, repository.NoTX, userID, page*ItemsPerPage, ItemsPerPage)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{
		Entries:    entries,
		Page:       page,
		TotalPages: totalPages,
		TotalCount: total,
	}, nil
}
