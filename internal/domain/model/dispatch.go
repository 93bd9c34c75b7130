package model

import (
	"strings"
	"time"

	"telegram-sms-relay/internal/domain"
)

// DispatchEntry is one successfully relayed SMS. Entries are append-only;
// they are never mutated or deleted outside a full backup export.
type DispatchEntry struct {
	ID          int64
	UserID      int64
	Destination string
	Message     string
	SentAt      time.Time // calendar date of the dispatch
}

func NewDispatchEntry(userID int64, destination, message string, day time.Time) (*DispatchEntry, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if !ValidDestinationNumber(destination) {
		return nil, domain.ErrInvalidArgument
	}
	if strings.TrimSpace(message) == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &DispatchEntry{
		UserID:      userID,
		Destination: destination,
		Message:     message,
		SentAt:      Day(day),
	}, nil
}
