package repository

import (
	"context"
	"time"

	"telegram-sms-relay/internal/domain/model"
)

// -----------------------------
// Dispatch log
// -----------------------------

type DispatchLogRepository interface {
	Append(ctx context.Context, tx Tx, e *model.DispatchEntry) error
	// CountForDestination counts entries for user+destination on the given day;
	// the basis of the per-number throttle.
	CountForDestination(ctx context.Context, tx Tx, userID int64, destination string, day time.Time) (int, error)
	// ListByUser returns entries most-recent-first.
	ListByUser(ctx context.Context, tx Tx, userID int64, offset, limit int) ([]*model.DispatchEntry, error)
	CountByUser(ctx context.Context, tx Tx, userID int64) (int, error)
	CountAll(ctx context.Context, tx Tx) (int, error)
	CountOnDay(ctx context.Context, tx Tx, day time.Time) (int, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.DispatchEntry, error)
}
