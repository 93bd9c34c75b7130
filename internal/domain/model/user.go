package model

import (
	"time"

	"telegram-sms-relay/internal/domain"
)

// ConversationPhase is the user's position inside the multi-turn send flow.
type ConversationPhase string

const (
	PhaseIdle            ConversationPhase = "idle"
	PhaseAwaitingNumber  ConversationPhase = "awaiting_number"
	PhaseAwaitingMessage ConversationPhase = "awaiting_message"
)

// User is the per-identity quota record. It also carries the persisted
// conversation state so a restart does not reset mid-flow users.
type User struct {
	UserID             int64
	DailySent          int
	LastResetDate      time.Time
	Referrals          int
	BonusAllowance     int
	AdminPendingAction string
	Phase              ConversationPhase
	PendingNumber      string
	CreatedAt          time.Time
}

func NewUser(userID int64, today time.Time) (*User, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &User{
		UserID:        userID,
		DailySent:     0,
		LastResetDate: Day(today),
		Phase:         PhaseIdle,
		CreatedAt:     time.Now(),
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.UserID == 0 }

// Rollover zeroes the daily counter when the record is stale. It returns
// true when a reset happened; the caller must persist before any cap check.
func (u *User) Rollover(today time.Time) bool {
	if SameDate(u.LastResetDate, today) {
		return false
	}
	u.DailySent = 0
	u.LastResetDate = Day(today)
	return true
}

// EffectiveCap is the base daily cap plus the user's bonus allowance.
func (u *User) EffectiveCap(base int) int { return base + u.BonusAllowance }

func (u *User) RemainingToday(base int) int {
	rem := u.EffectiveCap(base) - u.DailySent
	if rem < 0 {
		return 0
	}
	return rem
}

// Send flow transitions. PendingNumber is set if and only if the phase is
// awaiting_message.

func (u *User) BeginSendFlow() {
	u.Phase = PhaseAwaitingNumber
	u.PendingNumber = ""
}

func (u *User) CaptureNumber(number string) {
	u.Phase = PhaseAwaitingMessage
	u.PendingNumber = number
}

// CompleteAttempt re-enters number entry after a send attempt, regardless
// of its outcome.
func (u *User) CompleteAttempt() {
	u.Phase = PhaseAwaitingNumber
	u.PendingNumber = ""
}

func (u *User) ClearFlow() {
	u.Phase = PhaseIdle
	u.PendingNumber = ""
}

// Day normalizes a timestamp to its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ValidDestinationNumber accepts all-digit strings of at least 10 characters.
func ValidDestinationNumber(s string) bool {
	if len(s) < 10 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
