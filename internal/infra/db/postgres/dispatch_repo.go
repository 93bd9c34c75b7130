package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-sms-relay/internal/domain/model"
	"telegram-sms-relay/internal/domain/ports/repository"
)

var _ repository.DispatchLogRepository = (*DispatchLogRepo)(nil)

type DispatchLogRepo struct {
	pool *pgxpool.Pool
}

func NewDispatchLogRepo(pool *pgxpool.Pool) *DispatchLogRepo {
	return &DispatchLogRepo{pool: pool}
}

func (r *DispatchLogRepo) Append(ctx context.Context, tx repository.Tx, e *model.DispatchEntry) error {
	const q = `
INSERT INTO dispatch_log (user_id, destination, message, sent_at)
VALUES ($1,$2,$3,$4) RETURNING id;
`
	ex, err := pick(r.pool, tx)
	if err != nil {
		return err
	}
	return ex.QueryRow(ctx, q, e.UserID, e.Destination, e.Message, model.Day(e.SentAt)).Scan(&e.ID)
}

func (r *DispatchLogRepo) CountForDestination(ctx context.Context, tx repository.Tx, userID int64, destination string, day time.Time) (int, error) {
	ex, err := pick(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx,
		`SELECT COUNT(*) FROM dispatch_log WHERE user_id=$1 AND destination=$2 AND sent_at=$3;`,
		userID, destination, model.Day(day)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count for destination: %w", err)
	}
	return n, nil
}

func (r *DispatchLogRepo) ListByUser(ctx context.Context, tx repository.Tx, userID int64, offset, limit int) ([]*model.DispatchEntry, error) {
	const q = `
SELECT id, user_id, destination, message, sent_at
  FROM dispatch_log WHERE user_id=$1
 ORDER BY id DESC OFFSET $2 LIMIT $3;
`
	ex, err := pick(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.DispatchEntry
	for rows.Next() {
		var e model.DispatchEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Destination, &e.Message, &e.SentAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *DispatchLogRepo) CountByUser(ctx context.Context, tx repository.Tx, userID int64) (int, error) {
	return r.scanCount(ctx, tx, `SELECT COUNT(*) FROM dispatch_log WHERE user_id=$1;`, userID)
}

func (r *DispatchLogRepo) CountAll(ctx context.Context, tx repository.Tx) (int, error) {
	return r.scanCount(ctx, tx, `SELECT COUNT(*) FROM dispatch_log;`)
}

func (r *DispatchLogRepo) CountOnDay(ctx context.Context, tx repository.Tx, day time.Time) (int, error) {
	return r.scanCount(ctx, tx, `SELECT COUNT(*) FROM dispatch_log WHERE sent_at=$1;`, model.Day(day))
}

func (r *DispatchLogRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.DispatchEntry, error) {
	const q = `SELECT id, user_id, destination, message, sent_at FROM dispatch_log ORDER BY id;`
	ex, err := pick(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.DispatchEntry
	for rows.Next() {
		var e model.DispatchEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Destination, &e.Message, &e.SentAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *DispatchLogRepo) scanCount(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (int, error) {
	ex, err := pick(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("dispatch count: %w", err)
	}
	return n, nil
}
