package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")

	// Send pipeline errors; each is recovered at the boundary and turned
	// into a user-facing reply.
	ErrNotChannelMember = errors.New("user is not a channel member")
	ErrPerNumberLimit   = errors.New("per-number daily limit reached")
	ErrDailyLimit       = errors.New("daily send limit reached")
	ErrRelayFailure     = errors.New("relay dispatch failed")
	ErrMalformedInput   = errors.New("malformed input")
	ErrUnauthorized     = errors.New("unauthorized")

	// Concurrency
	ErrSendInProgress = errors.New("another send is already in progress for this user")
)
