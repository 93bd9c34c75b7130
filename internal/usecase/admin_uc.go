package usecase

import (
	"context"
	"encoding/json"
	"time"

	"telegram-sms-relay/internal/domain"
	"telegram-sms-relay/internal/domain/model"
	"telegram-sms-relay/internal/domain/ports/repository"
	"telegram-sms-relay/internal/infra/logging"
	"telegram-sms-relay/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ AdminUseCase = (*adminUC)(nil)

// AdminUseCase is the privileged read/write surface over the ledger and log.
// Callers authenticate at their own boundary (the bot adapter checks
// IsAdmin against the allow-list; the web API checks its session token)
// before invoking these.
type AdminUseCase interface {
	IsAdmin(userID int64) bool
	// GrantBonus adds a signed delta to the target's bonus allowance. The
	// allowance never decreases automatically, only by an explicit grant.
	GrantBonus(ctx context.Context, target int64, delta int) error
	UserLog(ctx context.Context, target int64, limit int) ([]*model.DispatchEntry, error)
	// Backup exports the whole persisted store as a JSON artifact.
	Backup(ctx context.Context) ([]byte, error)
	// Pending actions drive the button-initiated admin flows: the panel
	// button stores the verb, the admin's next message carries the arguments.
	SetPendingAction(ctx context.Context, adminID int64, action string) error
	TakePendingAction(ctx context.Context, adminID int64) (string, error)
}

type adminUC struct {
	quotas     repository.QuotaRepository
	dispatches repository.DispatchLogRepository
	allowList  map[int64]struct{}

	log *zerolog.Logger
	now func() time.Time
}

func NewAdminUseCase(
	quotas repository.QuotaRepository,
	dispatches repository.DispatchLogRepository,
	adminIDs []int64,
	logger *zerolog.Logger,
) *adminUC {
	allow := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		allow[id] = struct{}{}
	}
	return &adminUC{quotas: quotas, dispatches: dispatches, allowList: allow, log: logger, now: time.Now}
}

func (a *adminUC) IsAdmin(userID int64) bool {
	_, ok := a.allowList[userID]
	return ok
}

func (a *adminUC) GrantBonus(ctx context.Context, target int64, delta int) error {
	defer logging.TraceDuration(a.log, "AdminUC.GrantBonus")()
	if delta == 0 {
		return domain.ErrInvalidArgument
	}
	if _, err := a.quotas.Find(ctx, repository.NoTX, target); err != nil {
		return err
	}
	if err := a.quotas.AddBonus(ctx, repository.NoTX, target, delta); err != nil {
		return err
	}
	if delta > 0 {
		metrics.AddBonusGranted("admin", delta)
	}
	a.log.Info().Int64("target", target).Int("delta", delta).Msg("bonus granted")
	return nil
}

func (a *adminUC) UserLog(ctx context.Context, target int64, limit int) ([]*model.DispatchEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	return a.dispatches.ListByUser(ctx, repository.NoTX, target, 0, limit)
}

type backupArtifact struct {
	ExportedAt time.Time     `json:"exported_at"`
	Users      []backupUser  `json:"users"`
	Dispatches []backupEntry `json:"dispatch_log"`
}

type backupUser struct {
	UserID         int64  `json:"user_id"`
	DailySent      int    `json:"daily_sent"`
	LastResetDate  string `json:"last_reset_date"`
	Referrals      int    `json:"referrals"`
	BonusAllowance int    `json:"bonus_allowance"`
}

type backupEntry struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	Destination string `json:"destination"`
	Message     string `json:"message"`
	SentAt      string `json:"sent_at"`
}

func (a *adminUC) Backup(ctx context.Context) ([]byte, error) {
	defer logging.TraceDuration(a.log, "AdminUC.Backup")()

	users, err := a.quotas.ListAll(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	entries, err := a.dispatches.ListAll(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}

	art := backupArtifact{ExportedAt: a.now(), Users: make([]backupUser, 0, len(users)), Dispatches: make([]backupEntry, 0, len(entries))}
	for _, u := range users {
		art.Users = append(art.Users, backupUser{
			UserID:         u.UserID,
			DailySent:      u.DailySent,
			LastResetDate:  u.LastResetDate.Format("2006-01-02"),
			Referrals:      u.Referrals,
			BonusAllowance: u.BonusAllowance,
		})
	}
	for _, e := range entries {
		art.Dispatches = append(art.Dispatches, backupEntry{
			ID:          e.ID,
			UserID:      e.UserID,
			Destination: e.Destination,
			Message:     e.Message,
			SentAt:      e.SentAt.Format("2006-01-02"),
		})
	}
	return json.MarshalIndent(art, "", "  ")
}

func (a *adminUC) SetPendingAction(ctx context.Context, adminID int64, action string) error {
	u, err := a.quotas.Find(ctx, repository.NoTX, adminID)
	if err != nil {
		return err
	}
	u.AdminPendingAction = action
	return a.quotas.Save(ctx, repository.NoTX, u)
}

func (a *adminUC) TakePendingAction(ctx context.Context, adminID int64) (string, error) {
	u, err := a.quotas.Find(ctx, repository.NoTX, adminID)
	if err != nil {
		return "", err
	}
	action := u.AdminPendingAction
	if action == "" {
		return "", nil
	}
	u.AdminPendingAction = ""
	if err := a.quotas.Save(ctx, repository.NoTX, u); err != nil {
		return "", err
	}
	return action, nil
}
